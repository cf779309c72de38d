package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finchat/pkg/agents"
	"finchat/pkg/chat"
	"finchat/pkg/contextstore"
	"finchat/pkg/llm"
	"finchat/pkg/tools"
)

func newRegistry(t *testing.T, ids ...string) *agents.Registry {
	t.Helper()
	reg := agents.NewRegistry()
	for _, id := range ids {
		agent, err := agents.New(agents.Config{
			Spec:           agents.Spec{ID: id, Description: id},
			PromptTemplate: "{{.Tools}}",
		}, llm.NewScriptedClient("ok"), tools.NewInvoker(), contextstore.New(nil, false), 0)
		require.NoError(t, err)
		require.NoError(t, reg.Register(agent))
	}
	return reg
}

func complexState(subtasks []chat.Subtask, completed ...string) *chat.State {
	state := chat.NewState("conv-1", "alice")
	state.Plan = &chat.TaskPlan{Type: chat.TaskComplex, Subtasks: subtasks}
	state.Subtasks = subtasks
	state.Completed = completed
	return state
}

func TestRouteNoPlan(t *testing.T) {
	state := chat.NewState("conv-1", "alice")

	out := Route(state, newRegistry(t, "batch_agent"))

	assert.Equal(t, chat.TargetEnd, out.Target)
	assert.Equal(t, chat.EndNoPlan, out.EndReason)
	assert.Nil(t, out.Current)
}

func TestRouteSimple(t *testing.T) {
	state := chat.NewState("conv-1", "alice")
	state.Plan = &chat.TaskPlan{Type: chat.TaskSimple, PrimaryAgent: "batch_agent"}

	out := Route(state, newRegistry(t, "batch_agent"))

	assert.Equal(t, "batch_agent", out.Target)
	assert.Empty(t, out.EndReason)
	assert.Nil(t, out.Current)
}

func TestRouteSimpleMissingPrimary(t *testing.T) {
	state := chat.NewState("conv-1", "alice")
	state.Plan = &chat.TaskPlan{Type: chat.TaskSimple}

	out := Route(state, newRegistry(t, "batch_agent"))

	assert.Equal(t, chat.TargetEnd, out.Target)
	assert.Equal(t, chat.EndNoPlan, out.EndReason)
}

func TestRouteSimpleUnknownAgent(t *testing.T) {
	state := chat.NewState("conv-1", "alice")
	state.Plan = &chat.TaskPlan{Type: chat.TaskSimple, PrimaryAgent: "ghost_agent"}

	out := Route(state, newRegistry(t, "batch_agent"))

	assert.Equal(t, chat.TargetEnd, out.Target)
	assert.Equal(t, chat.EndUnknownAgent, out.EndReason)
}

func TestRouteComplexFirstMatchWins(t *testing.T) {
	subtasks := []chat.Subtask{
		{ID: "s1", Agent: "batch_agent"},
		{ID: "s2", Agent: "results_agent"},
	}
	state := complexState(subtasks)

	out := Route(state, newRegistry(t, "batch_agent", "results_agent"))

	assert.Equal(t, "batch_agent", out.Target)
	require.NotNil(t, out.Current)
	assert.Equal(t, "s1", out.Current.ID)
}

func TestRouteComplexSkipsCompletedAndBlocked(t *testing.T) {
	subtasks := []chat.Subtask{
		{ID: "s1", Agent: "batch_agent"},
		{ID: "s2", Agent: "results_agent", DependsOn: []string{"s1"}},
		{ID: "s3", Agent: "results_agent", DependsOn: []string{"s2"}},
	}
	state := complexState(subtasks, "s1")

	out := Route(state, newRegistry(t, "batch_agent", "results_agent"))

	assert.Equal(t, "results_agent", out.Target)
	require.NotNil(t, out.Current)
	assert.Equal(t, "s2", out.Current.ID)
}

func TestRouteComplexUnknownAgentTerminal(t *testing.T) {
	subtasks := []chat.Subtask{{ID: "s1", Agent: "ghost_agent"}}
	state := complexState(subtasks)

	out := Route(state, newRegistry(t, "batch_agent"))

	assert.Equal(t, chat.TargetEnd, out.Target)
	assert.Equal(t, chat.EndUnknownAgent, out.EndReason)
	assert.Nil(t, out.Current)
}

func TestRouteComplexAllDone(t *testing.T) {
	subtasks := []chat.Subtask{
		{ID: "s1", Agent: "batch_agent"},
		{ID: "s2", Agent: "batch_agent"},
	}
	state := complexState(subtasks, "s1", "s2")

	out := Route(state, newRegistry(t, "batch_agent"))

	assert.Equal(t, chat.TargetEnd, out.Target)
	assert.Equal(t, chat.EndAllDone, out.EndReason)
}

func TestRouteComplexDeadlockIsBlocked(t *testing.T) {
	// s2 waits on a subtask that never completes because s1 is done but s3
	// is not in the completed set and depends on s2 itself.
	subtasks := []chat.Subtask{
		{ID: "s1", Agent: "batch_agent"},
		{ID: "s2", Agent: "batch_agent", DependsOn: []string{"s3"}},
		{ID: "s3", Agent: "batch_agent", DependsOn: []string{"s2"}},
	}
	state := complexState(subtasks, "s1")

	out := Route(state, newRegistry(t, "batch_agent"))

	assert.Equal(t, chat.TargetEnd, out.Target)
	assert.Equal(t, chat.EndBlocked, out.EndReason)
}

func TestRouteDanglingDependencyEndsImmediately(t *testing.T) {
	subtasks := []chat.Subtask{
		{ID: "s2", Agent: "batch_agent", DependsOn: []string{"s1"}},
	}
	state := complexState(subtasks)

	out := Route(state, newRegistry(t, "batch_agent"))

	assert.Equal(t, chat.TargetEnd, out.Target)
	assert.Equal(t, chat.EndBlocked, out.EndReason)
	assert.Nil(t, out.Current)
}

func TestRouteIsDeterministic(t *testing.T) {
	subtasks := []chat.Subtask{
		{ID: "s1", Agent: "batch_agent"},
		{ID: "s2", Agent: "results_agent"},
	}
	reg := newRegistry(t, "batch_agent", "results_agent")
	state := complexState(subtasks)

	first := Route(state, reg)
	for i := 0; i < 10; i++ {
		again := Route(state, reg)
		assert.Equal(t, first.Target, again.Target)
		assert.Equal(t, first.Current.ID, again.Current.ID)
	}
}
