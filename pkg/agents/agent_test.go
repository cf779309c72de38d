package agents

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finchat/pkg/chat"
	"finchat/pkg/contextstore"
	"finchat/pkg/llm"
	"finchat/pkg/persistence"
	"finchat/pkg/tools"
)

type harness struct {
	store    *persistence.Store
	ctxStore *contextstore.Store
	invoker  *tools.Invoker
	convID   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store, err := persistence.Open(filepath.Join(t.TempDir(), "test.db"), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	convID, err := store.CreateConversation(context.Background(), "alice")
	require.NoError(t, err)

	return &harness{
		store:    store,
		ctxStore: contextstore.New(store, true),
		invoker:  tools.NewInvoker(),
		convID:   convID,
	}
}

func TestProcessWithoutToolCall(t *testing.T) {
	h := newHarness(t)
	client := llm.NewScriptedClient("Hello! How can I help with your batch runs?")

	agent, err := NewBatchAgent(client, h.invoker, h.ctxStore, 0)
	require.NoError(t, err)

	state := chat.NewState(h.convID, "alice")
	state.AppendUser("hi")

	out, err := agent.Process(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, 1, client.CallCount())
	require.Len(t, out.Messages, 2)
	last := out.Messages[len(out.Messages)-1]
	assert.Equal(t, chat.RoleAssistant, last.Role)
	assert.Equal(t, BatchAgentID, last.AgentID)
	assert.Equal(t, "Hello! How can I help with your batch runs?", last.Content)

	// Input state untouched.
	assert.Len(t, state.Messages, 1)
}

func TestProcessWithToolCall(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.invoker.Register(tools.ToolStartBatchRun,
		func(context.Context, map[string]any) (any, error) {
			return map[string]any{"runId": "run-42", "startTime": "2026-08-28T10:00:00Z"}, nil
		}))

	client := llm.NewScriptedClient(
		"```json\n{\"tool_name\": \"start_batch_run\", \"parameters\": {\"runType\": \"CCAR\"}}\n```",
		"I started the CCAR run. The run ID is run-42.",
	)

	agent, err := NewBatchAgent(client, h.invoker, h.ctxStore, 0)
	require.NoError(t, err)

	state := chat.NewState(h.convID, "alice")
	state.AppendUser("start a CCAR run")

	out, err := agent.Process(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, 2, client.CallCount())
	assert.Equal(t, "I started the CCAR run. The run ID is run-42.", out.LatestAssistantMessage())

	// The second call carries the tool response as context.
	calls := client.Calls()
	followup := calls[1].Messages
	require.NotEmpty(t, followup)
	assert.Contains(t, followup[len(followup)-1].Content, "Tool response:")
	assert.Contains(t, followup[len(followup)-1].Content, "run-42")

	// Post-processing recorded the run in shared context.
	values, err := h.store.ContextValues(context.Background(), h.convID)
	require.NoError(t, err)
	assert.Equal(t, "run-42", values["active_run_id"])
	assert.Equal(t, "CCAR", values["run_type"])
	assert.Equal(t, "Base", values["run_scenario"])
	history, ok := values["run_history"].([]any)
	require.True(t, ok)
	require.Len(t, history, 1)
}

func TestProcessToolFailureStillAnswers(t *testing.T) {
	h := newHarness(t)
	// No handler registered: the invoker reports an unknown tool and the
	// agent still completes its turn.
	client := llm.NewScriptedClient(
		`{"tool_name": "start_batch_run", "parameters": {"runType": "Stress"}}`,
		"I could not start the run: the batch service rejected the request.",
	)

	agent, err := NewBatchAgent(client, h.invoker, h.ctxStore, 0)
	require.NoError(t, err)

	state := chat.NewState(h.convID, "alice")
	state.AppendUser("start a stress run")

	out, err := agent.Process(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, 2, client.CallCount())
	assert.Contains(t, out.LatestAssistantMessage(), "could not start the run")

	values, err := h.store.ContextValues(context.Background(), h.convID)
	require.NoError(t, err)
	assert.NotContains(t, values, "active_run_id")
}

func TestSystemPromptIncludesToolsAndContext(t *testing.T) {
	h := newHarness(t)
	client := llm.NewScriptedClient("ok")

	agent, err := NewBatchAgent(client, h.invoker, h.ctxStore, 0)
	require.NoError(t, err)

	state := chat.NewState(h.convID, "alice")
	state.AppendUser("hello")

	_, err = agent.Process(context.Background(), state)
	require.NoError(t, err)

	system := client.Calls()[0].System
	assert.Contains(t, system, "Financial Batch Processing Agent")
	assert.Contains(t, system, "Tool: start_batch_run")
	assert.Contains(t, system, "- No active run ID")
	assert.Contains(t, system, "Conversation just started")
}

func TestHistoryScopedToOwnMessages(t *testing.T) {
	h := newHarness(t)
	client := llm.NewScriptedClient("ok")

	agent, err := NewBatchAgent(client, h.invoker, h.ctxStore, 0)
	require.NoError(t, err)

	state := chat.NewState(h.convID, "alice")
	state.AppendUser("first question")
	state.AppendAssistant(ResultsAgentID, "results answer")
	state.AppendUser("second question")

	_, err = agent.Process(context.Background(), state)
	require.NoError(t, err)

	// No prior turns from this agent: only the latest user message goes out.
	first := client.Calls()[0].Messages
	require.Len(t, first, 1)
	assert.Equal(t, "second question", first[0].Content)

	// With an own prior turn, the full user+own history goes out.
	state.AppendAssistant(BatchAgentID, "batch answer")
	state.AppendUser("third question")

	_, err = agent.Process(context.Background(), state)
	require.NoError(t, err)

	second := client.Calls()[1].Messages
	require.Len(t, second, 4)
	assert.Equal(t, llm.RoleAssistant, second[2].Role)
	assert.Equal(t, "batch answer", second[2].Content)
}
