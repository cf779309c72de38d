package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewState(t *testing.T) {
	state := NewState("conv-1", "alice")

	assert.Equal(t, "conv-1", state.ConversationID)
	assert.Equal(t, "alice", state.UserID)
	assert.NotZero(t, state.CreatedAt)
	assert.Empty(t, state.Messages)
}

func TestAppendAndLatest(t *testing.T) {
	state := NewState("conv-1", "alice")

	assert.Empty(t, state.LatestUserMessage())
	assert.Empty(t, state.LatestAssistantMessage())

	state.AppendUser("start a run")
	state.AppendAssistant("batch_agent", "run started")
	state.AppendUser("check status")

	assert.Equal(t, "check status", state.LatestUserMessage())
	assert.Equal(t, "run started", state.LatestAssistantMessage())
	require.Len(t, state.Messages, 3)
	assert.Equal(t, "batch_agent", state.Messages[1].AgentID)
}

func TestMarkCompletedIdempotent(t *testing.T) {
	state := NewState("conv-1", "alice")
	state.Subtasks = []Subtask{{ID: "s1"}, {ID: "s2"}}

	state.MarkCompleted("s1")
	state.MarkCompleted("s1")

	assert.Equal(t, []string{"s1"}, state.Completed)
	assert.True(t, state.IsCompleted("s1"))
	assert.False(t, state.IsCompleted("s2"))
	assert.False(t, state.AllCompleted())

	state.MarkCompleted("s2")
	assert.True(t, state.AllCompleted())
}

func TestAllCompletedEmptyPlan(t *testing.T) {
	state := NewState("conv-1", "alice")
	assert.False(t, state.AllCompleted())
}

func TestCloneIsDeep(t *testing.T) {
	state := NewState("conv-1", "alice")
	state.AppendUser("hello")
	state.Plan = &TaskPlan{
		Type:     TaskComplex,
		Subtasks: []Subtask{{ID: "s1", Agent: "batch_agent", DependsOn: []string{}}},
	}
	state.Subtasks = []Subtask{{ID: "s1", Agent: "batch_agent", DependsOn: []string{}}}
	state.Completed = []string{}
	state.Current = &Subtask{ID: "s1", Agent: "batch_agent"}
	state.History = []HistoryEntry{{UserQuery: "q", Keywords: map[string]any{"runId": "r1"}}}

	clone := state.Clone()
	clone.AppendUser("more")
	clone.Plan.Subtasks[0].Agent = "other"
	clone.Subtasks[0].ID = "changed"
	clone.Current.ID = "changed"
	clone.MarkCompleted("s1")
	clone.History[0].Keywords["runId"] = "r2"

	assert.Len(t, state.Messages, 1)
	assert.Equal(t, "batch_agent", state.Plan.Subtasks[0].Agent)
	assert.Equal(t, "s1", state.Subtasks[0].ID)
	assert.Equal(t, "s1", state.Current.ID)
	assert.Empty(t, state.Completed)
	assert.Equal(t, "r1", state.History[0].Keywords["runId"])
}
