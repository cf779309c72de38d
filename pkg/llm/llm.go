// Package llm abstracts the chat completion providers behind a single
// interface. Agents, the planner, and the supervisor all speak to models
// through Client; provider selection happens once at startup.
package llm

import (
	"context"
	"fmt"
	"time"

	"finchat/pkg/config"
)

// Role identifies the author of a completion message.
type Role string

const (
	// RoleUser marks end-user input.
	RoleUser Role = "user"
	// RoleAssistant marks prior model output.
	RoleAssistant Role = "assistant"
)

// Message is one entry of the completion history. System content is passed
// separately because providers disagree on where it belongs.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Client produces one completion from a system prompt and a message history.
// Implementations must be safe for concurrent use.
type Client interface {
	Complete(ctx context.Context, system string, msgs []Message) (string, error)
}

// NewClient builds the provider client selected by cfg and wraps it with the
// configured per-call timeout.
func NewClient(cfg *config.Config) (Client, error) {
	key := cfg.APIKey()
	if key == "" {
		return nil, fmt.Errorf("no API key configured for provider %s", cfg.Model.Provider)
	}

	var client Client
	switch cfg.Model.Provider {
	case config.ProviderOpenAI:
		client = NewOpenAIClient(key, cfg.Model.Name, float64(cfg.Model.Temperature))
	case config.ProviderAnthropic:
		client = NewAnthropicClient(key, cfg.Model.Name, float64(cfg.Model.Temperature))
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Model.Provider)
	}

	if cfg.LLMTimeout > 0 {
		client = WithTimeout(client, cfg.LLMTimeout)
	}
	return client, nil
}

// WithTimeout caps every Complete call at d. A slow provider surfaces as a
// context deadline error instead of a stuck conversation turn.
func WithTimeout(inner Client, d time.Duration) Client {
	return &timeoutClient{inner: inner, timeout: d}
}

type timeoutClient struct {
	inner   Client
	timeout time.Duration
}

func (t *timeoutClient) Complete(ctx context.Context, system string, msgs []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Complete(ctx, system, msgs)
}

// Instrument reports the outcome of every Complete call to observe. Used to
// feed per-component completion counters without coupling callers to a
// metrics type.
func Instrument(inner Client, observe func(err error)) Client {
	return &instrumentedClient{inner: inner, observe: observe}
}

type instrumentedClient struct {
	inner   Client
	observe func(err error)
}

func (i *instrumentedClient) Complete(ctx context.Context, system string, msgs []Message) (string, error) {
	out, err := i.inner.Complete(ctx, system, msgs)
	i.observe(err)
	return out, err
}
