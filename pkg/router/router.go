// Package router selects the next agent to run. Routing is a pure function
// of conversation state and the agent registry; it never calls a model.
package router

import (
	"finchat/pkg/agents"
	"finchat/pkg/chat"
)

// Route picks the next target for the state and returns the updated copy.
//
// No plan ends the turn. SIMPLE plans target the primary agent. COMPLEX plans
// scan subtasks in declared order and pick the first incomplete one whose
// dependencies are all completed; first match wins. A candidate naming an
// unregistered agent is a terminal failure. No candidate means either every
// subtask finished or the remainder is deadlocked behind unsatisfied
// dependencies; the end reason records which.
func Route(state *chat.State, registry *agents.Registry) *chat.State {
	out := state.Clone()
	out.Current = nil

	if out.Plan == nil {
		return end(out, chat.EndNoPlan)
	}

	if out.Plan.Type == chat.TaskSimple {
		if out.Plan.PrimaryAgent == "" {
			return end(out, chat.EndNoPlan)
		}
		if _, ok := registry.Get(out.Plan.PrimaryAgent); !ok {
			return end(out, chat.EndUnknownAgent)
		}
		out.Target = out.Plan.PrimaryAgent
		out.EndReason = ""
		return out
	}

	for i := range out.Subtasks {
		st := &out.Subtasks[i]
		if out.IsCompleted(st.ID) {
			continue
		}
		if !depsSatisfied(st, out) {
			continue
		}
		if _, ok := registry.Get(st.Agent); !ok {
			return end(out, chat.EndUnknownAgent)
		}

		selected := *st
		selected.DependsOn = append([]string(nil), st.DependsOn...)
		out.Current = &selected
		out.Target = st.Agent
		out.EndReason = ""
		return out
	}

	if len(out.Completed) == len(out.Subtasks) {
		return end(out, chat.EndAllDone)
	}
	return end(out, chat.EndBlocked)
}

func depsSatisfied(st *chat.Subtask, state *chat.State) bool {
	for _, dep := range st.DependsOn {
		if !state.IsCompleted(dep) {
			return false
		}
	}
	return true
}

func end(state *chat.State, reason chat.EndReason) *chat.State {
	state.Target = chat.TargetEnd
	state.EndReason = reason
	return state
}
