package llm

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedCall records one Complete invocation seen by a ScriptedClient.
type ScriptedCall struct {
	System   string
	Messages []Message
}

// ScriptedClient replays a fixed sequence of responses and records the
// requests it receives. Intended for tests; safe for concurrent use.
type ScriptedClient struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     []ScriptedCall
}

// NewScriptedClient returns a client that yields the given responses in order.
// Once exhausted it keeps returning the last response.
func NewScriptedClient(responses ...string) *ScriptedClient {
	return &ScriptedClient{responses: responses}
}

// Script replaces the remaining responses and clears any scripted failure.
func (s *ScriptedClient) Script(responses ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = responses
	s.err = nil
}

// Fail makes every subsequent Complete call return err.
func (s *ScriptedClient) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Complete implements the Client interface.
func (s *ScriptedClient) Complete(_ context.Context, system string, msgs []Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]Message, len(msgs))
	copy(copied, msgs)
	s.calls = append(s.calls, ScriptedCall{System: system, Messages: copied})

	if s.err != nil {
		return "", s.err
	}
	if len(s.responses) == 0 {
		return "", fmt.Errorf("scripted client has no responses")
	}

	next := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return next, nil
}

// Calls returns a copy of the recorded invocations.
func (s *ScriptedClient) Calls() []ScriptedCall {
	s.mu.Lock()
	defer s.mu.Unlock()

	calls := make([]ScriptedCall, len(s.calls))
	copy(calls, s.calls)
	return calls
}

// CallCount returns how many Complete invocations were recorded.
func (s *ScriptedClient) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
