// Package tools provides declarative tool schemas and the invoker that maps a
// tool name to a remote call.
//
// Tool definitions are static configuration rendered into agent prompts. The
// Invoker is the single place where the orchestration core touches network
// I/O; the registered handlers are thin clients for the remote batch and
// results services.
package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"finchat/pkg/logx"
)

// Param describes one tool parameter. Parameters keep their declared order so
// prompt rendering is deterministic.
type Param struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
}

// Definition is a declared remote capability: a name, a description, and an
// ordered parameter list.
type Definition struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"parameters"`
}

// Describe renders the definition in the prompt format agents embed in their
// system prompts.
func (d Definition) Describe() string {
	params := make([]string, len(d.Params))
	for i, p := range d.Params {
		opt := ""
		if !p.Required {
			opt = ", optional"
		}
		params[i] = fmt.Sprintf("%s (%s%s)", p.Name, p.Type, opt)
	}
	return fmt.Sprintf("Tool: %s\nDescription: %s\nParameters: %s\n",
		d.Name, d.Description, strings.Join(params, ", "))
}

// DescribeAll renders a set of definitions for prompt embedding.
func DescribeAll(defs []Definition) string {
	parts := make([]string, len(defs))
	for i, d := range defs {
		parts[i] = d.Describe()
	}
	return strings.Join(parts, "\n\n")
}

// Call is a tool invocation request parsed out of a model response. It lives
// for one agent turn and is never persisted.
type Call struct {
	Name       string         `json:"tool_name"`
	Parameters map[string]any `json:"parameters"`
}

// Status is the outcome of a tool invocation.
type Status string

const (
	// StatusSuccess means the handler returned data.
	StatusSuccess Status = "success"
	// StatusError means the tool was unknown or the handler failed.
	StatusError Status = "error"
)

// Response is the result of one tool invocation. Only derived fields are ever
// written to the shared context; the response itself is consumed immediately.
type Response struct {
	Status Status `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Handler executes one tool against its remote service.
type Handler func(ctx context.Context, params map[string]any) (any, error)

// Observer receives the outcome of every Execute call.
type Observer func(tool string, status Status)

// Invoker dispatches tool calls to registered handlers.
type Invoker struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	observer Observer
	logger   *logx.Logger
}

// NewInvoker creates an empty invoker.
func NewInvoker() *Invoker {
	return &Invoker{
		handlers: make(map[string]Handler),
		logger:   logx.NewLogger("tools"),
	}
}

// Register adds a handler under the given tool name.
func (inv *Invoker) Register(name string, handler Handler) error {
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler for tool %s cannot be nil", name)
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()

	if _, exists := inv.handlers[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	inv.handlers[name] = handler
	return nil
}

// SetObserver installs a callback invoked with every Execute outcome.
func (inv *Invoker) SetObserver(obs Observer) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.observer = obs
}

// Execute runs the named tool. Unknown names and handler failures are
// converted to an error Response; Execute never returns a Go error because
// the agent must complete its turn and surface the failure to the user.
func (inv *Invoker) Execute(ctx context.Context, name string, params map[string]any) Response {
	inv.mu.RLock()
	handler, exists := inv.handlers[name]
	observer := inv.observer
	inv.mu.RUnlock()

	resp := inv.execute(ctx, name, handler, exists, params)
	if observer != nil {
		observer(name, resp.Status)
	}
	return resp
}

func (inv *Invoker) execute(ctx context.Context, name string, handler Handler, exists bool, params map[string]any) Response {
	if !exists {
		return Response{Status: StatusError, Error: fmt.Sprintf("Unknown tool: %s", name)}
	}

	data, err := handler(ctx, params)
	if err != nil {
		inv.logger.Warn("tool %s failed: %v", name, err)
		return Response{Status: StatusError, Error: fmt.Sprintf("Error executing %s: %v", name, err)}
	}
	return Response{Status: StatusSuccess, Data: data}
}

// Names returns the registered tool names, for diagnostics.
func (inv *Invoker) Names() []string {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	names := make([]string, 0, len(inv.handlers))
	for name := range inv.handlers {
		names = append(names, name)
	}
	return names
}
