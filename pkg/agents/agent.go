// Package agents implements the conversational worker agents. Each agent
// handles one turn: build a prompt from shared context and tool schemas, call
// the model, execute at most one tool call, and append exactly one assistant
// message to the conversation.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"finchat/pkg/chat"
	"finchat/pkg/contextstore"
	"finchat/pkg/llm"
	"finchat/pkg/logx"
	"finchat/pkg/tools"
)

// Spec is the registry-facing identity of an agent. Groups restricts which
// user groups may be routed to it; empty means everyone.
type Spec struct {
	ID          string
	Name        string
	Description string
	Groups      []string
}

// PostProcessFunc folds a tool response into shared-context updates. shared is
// the context view fetched at the start of the turn; the returned map is
// merged last-write-wins. A nil return means no updates.
type PostProcessFunc func(shared map[string]any, call tools.Call, resp tools.Response) map[string]any

// Config assembles one agent.
type Config struct {
	Spec           Spec
	PromptTemplate string
	Tools          []tools.Definition
	ContextKeys    []string
	PostProcess    PostProcessFunc
}

// Agent is a single-turn conversational worker. Per turn it makes at most two
// model calls and at most one tool invocation.
type Agent struct {
	spec        Spec
	tmpl        *template.Template
	toolDefs    []tools.Definition
	contextKeys []string
	postProcess PostProcessFunc

	client        llm.Client
	invoker       *tools.Invoker
	store         *contextstore.Store
	counter       *llm.TokenCounter
	historyBudget int
	logger        *logx.Logger
}

// New builds an agent from its config and collaborators. historyBudget caps
// the token count of the history sent to the model; <= 0 disables trimming.
func New(cfg Config, client llm.Client, invoker *tools.Invoker, store *contextstore.Store, historyBudget int) (*Agent, error) {
	if cfg.Spec.ID == "" {
		return nil, fmt.Errorf("agent id cannot be empty")
	}
	tmpl, err := template.New(cfg.Spec.ID).Parse(cfg.PromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid prompt template for agent %s: %w", cfg.Spec.ID, err)
	}

	return &Agent{
		spec:          cfg.Spec,
		tmpl:          tmpl,
		toolDefs:      cfg.Tools,
		contextKeys:   cfg.ContextKeys,
		postProcess:   cfg.PostProcess,
		client:        client,
		invoker:       invoker,
		store:         store,
		counter:       llm.NewTokenCounter(),
		historyBudget: historyBudget,
		logger:        logx.NewLogger(cfg.Spec.ID),
	}, nil
}

// ID returns the agent's registry id.
func (a *Agent) ID() string { return a.spec.ID }

// Spec returns the agent's registry identity.
func (a *Agent) Spec() Spec { return a.spec }

// ContextKeys implements contextstore.Capability.
func (a *Agent) ContextKeys() []string { return a.contextKeys }

// Process runs one agent turn and returns the updated state with exactly one
// new assistant message appended.
func (a *Agent) Process(ctx context.Context, state *chat.State) (*chat.State, error) {
	shared, err := a.store.Get(ctx, state.ConversationID, a)
	if err != nil {
		return nil, fmt.Errorf("agent %s failed to load shared context: %w", a.spec.ID, err)
	}

	system := a.systemPrompt(shared)
	history := a.history(state)
	if a.historyBudget > 0 {
		history = a.counter.TrimHistory(history, a.historyBudget)
	}

	first, err := a.client.Complete(ctx, system, history)
	if err != nil {
		return nil, fmt.Errorf("agent %s completion failed: %w", a.spec.ID, err)
	}

	final := first
	if call, ok := ParseToolCall(first); ok {
		a.logger.Debug("executing tool %s", call.Name)
		resp := a.invoker.Execute(ctx, call.Name, call.Parameters)

		if a.postProcess != nil {
			if updates := a.postProcess(shared, call, resp); len(updates) > 0 {
				if _, err := a.store.Update(ctx, state.ConversationID, a.spec.ID, updates); err != nil {
					return nil, fmt.Errorf("agent %s failed to update shared context: %w", a.spec.ID, err)
				}
			}
		}

		encoded, err := json.Marshal(resp)
		if err != nil {
			return nil, fmt.Errorf("agent %s failed to encode tool response: %w", a.spec.ID, err)
		}
		followup := append(append([]llm.Message(nil), history...),
			llm.Message{Role: llm.RoleAssistant, Content: first},
			llm.Message{Role: llm.RoleUser, Content: fmt.Sprintf(
				"Tool response: %s\n\nNow, provide a helpful response to the user based on this tool output. Format any structured data for readability.",
				encoded)})

		final, err = a.client.Complete(ctx, system, followup)
		if err != nil {
			return nil, fmt.Errorf("agent %s followup completion failed: %w", a.spec.ID, err)
		}
	}

	out := state.Clone()
	out.AppendAssistant(a.spec.ID, final)
	return out, nil
}

// promptData is the template context for system prompts. Line fields arrive
// pre-rendered so templates stay free of conditionals.
type promptData struct {
	Tools               string
	ConversationSummary string
	LatestUserMessage   string
	ActiveRunLine       string
	RecentRunTypesLine  string
}

// systemPrompt renders the agent's prompt template over the shared context,
// substituting defaults for missing fields. A render failure degrades to a
// minimal generic prompt that still names the tools.
func (a *Agent) systemPrompt(shared map[string]any) string {
	data := promptData{
		Tools:              tools.DescribeAll(a.toolDefs),
		LatestUserMessage:  "No recent messages",
		ActiveRunLine:      "- No active run ID",
		RecentRunTypesLine: "- No recent run types mentioned",
	}

	if summary, ok := shared["conversation_summary"].(string); ok {
		data.ConversationSummary = summary
	}
	if recent, ok := shared["recent_user_messages"].([]string); ok && len(recent) > 0 {
		data.LatestUserMessage = recent[0]
	}
	if runID, ok := shared["active_run_id"].(string); ok && runID != "" {
		data.ActiveRunLine = "- Active run ID: " + runID
	}
	if types := stringSlice(shared["recent_run_types"]); len(types) > 0 {
		data.RecentRunTypesLine = "- Recently discussed run types: " + strings.Join(types, ", ")
	}

	var buf strings.Builder
	if err := a.tmpl.Execute(&buf, data); err != nil {
		a.logger.Warn("prompt template failed, using fallback: %v", err)
		return "You are a Financial Assistant. You have access to tools: " + data.Tools
	}
	return buf.String()
}

// history builds the model-facing history: user messages plus this agent's
// own assistant messages. An agent with no prior turns sees only the latest
// user message.
func (a *Agent) history(state *chat.State) []llm.Message {
	var msgs []llm.Message
	hasOwn := false
	for i := range state.Messages {
		msg := &state.Messages[i]
		switch {
		case msg.Role == chat.RoleUser:
			msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: msg.Content})
		case msg.Role == chat.RoleAssistant && msg.AgentID == a.spec.ID:
			msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: msg.Content})
			hasOwn = true
		}
	}

	if !hasOwn {
		if latest := state.LatestUserMessage(); latest != "" {
			return []llm.Message{{Role: llm.RoleUser, Content: latest}}
		}
		return nil
	}
	return msgs
}

// stringSlice coerces a decoded JSON value into a string slice.
func stringSlice(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
