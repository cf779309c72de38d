// Package engine wires the planner, step router, agents, and supervisor into
// the per-turn execution graph and owns conversation load/persist around it.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finchat/pkg/agents"
	"finchat/pkg/chat"
	"finchat/pkg/config"
	"finchat/pkg/logx"
	"finchat/pkg/metrics"
	"finchat/pkg/persistence"
	"finchat/pkg/planner"
	"finchat/pkg/router"
	"finchat/pkg/supervisor"
)

// Phase labels one stage of the execution graph, for logging.
type Phase string

const (
	PhasePlanning   Phase = "PLANNING"
	PhaseRouting    Phase = "ROUTING"
	PhaseExecuting  Phase = "AGENT_EXECUTING"
	PhaseSupervisng Phase = "SUPERVISING"
	PhaseDone       Phase = "DONE"
)

// fallbackReply is returned when a turn produced no assistant messages.
const fallbackReply = "I'm not sure how to respond to that."

// Result is the outcome of one conversation turn.
type Result struct {
	ConversationID string
	Reply          string
}

// Engine executes conversation turns. One engine serves all conversations;
// turns for different conversations may run concurrently.
type Engine struct {
	planner    *planner.Planner
	registry   *agents.Registry
	supervisor *supervisor.Supervisor
	store      *persistence.Store
	recorder   *metrics.Recorder
	features   config.FeaturesCfg
	maxIter    int
	logger     *logx.Logger
}

// New assembles an engine. recorder may be nil.
func New(p *planner.Planner, reg *agents.Registry, sup *supervisor.Supervisor,
	store *persistence.Store, recorder *metrics.Recorder, cfg *config.Config) *Engine {
	return &Engine{
		planner:    p,
		registry:   reg,
		supervisor: sup,
		store:      store,
		recorder:   recorder,
		features:   cfg.Features,
		maxIter:    cfg.MaxGraphIterations,
		logger:     logx.NewLogger("engine"),
	}
}

// ProcessMessage handles one user turn: load or create the conversation,
// append the user message, run the graph, persist, and assemble the reply.
// The state is persisted and the user gets a response even when a graph node
// fails; the node error is still returned for logging.
func (e *Engine) ProcessMessage(ctx context.Context, userID, message, conversationID string) (Result, error) {
	started := time.Now()

	state, err := e.loadOrCreate(ctx, userID, conversationID)
	if err != nil {
		return Result{}, err
	}

	state.AppendUser(message)
	baseline := len(state.Messages)

	final, runErr := e.run(ctx, state)
	if runErr != nil {
		e.logger.Error("turn failed in conversation %s: %v", final.ConversationID, runErr)
		final.AppendAssistant("system", fmt.Sprintf(
			"Sorry, something went wrong while processing your request: %v", runErr))
	}

	if err := e.store.SaveState(ctx, final); err != nil {
		return Result{}, fmt.Errorf("failed to persist conversation %s: %w", final.ConversationID, err)
	}

	reply := e.assembleReply(ctx, final, baseline)

	if e.recorder != nil {
		status := "success"
		if runErr != nil {
			status = "error"
		}
		e.recorder.ObserveTurn(status, time.Since(started))
		e.recorder.ObserveTermination(string(final.EndReason))
	}

	return Result{ConversationID: final.ConversationID, Reply: reply}, runErr
}

// loadOrCreate fetches the conversation state, creating a fresh conversation
// when the id is absent, unknown, or expired.
func (e *Engine) loadOrCreate(ctx context.Context, userID, conversationID string) (*chat.State, error) {
	if conversationID != "" {
		state, err := e.store.GetState(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		if state != nil {
			return state, nil
		}
		e.logger.Info("conversation %s not found, starting a new one", conversationID)
	}

	id, err := e.store.CreateConversation(ctx, userID)
	if err != nil {
		return nil, err
	}
	return chat.NewState(id, userID), nil
}

// run drives the graph for one turn. It always returns a usable state; the
// error reports the failing node.
func (e *Engine) run(ctx context.Context, state *chat.State) (*chat.State, error) {
	e.logger.Debug("conversation %s: %s", state.ConversationID, PhasePlanning)
	planned, err := e.planner.Process(ctx, state)
	if err != nil {
		return state, err
	}
	state = planned

	for i := 0; i < e.maxIter; i++ {
		e.logger.Debug("conversation %s: %s", state.ConversationID, PhaseRouting)
		state = router.Route(state, e.registry)
		if state.Target == chat.TargetEnd {
			e.logger.Debug("conversation %s: %s (%s)", state.ConversationID, PhaseDone, state.EndReason)
			return state, nil
		}

		target := state.Target
		agent, ok := e.registry.Get(target)
		if !ok {
			state.Target = chat.TargetEnd
			state.EndReason = chat.EndUnknownAgent
			return state, fmt.Errorf("router targeted unknown agent %s", target)
		}

		e.logger.Debug("conversation %s: %s (%s)", state.ConversationID, PhaseExecuting, agent.ID())
		next, err := agent.Process(ctx, state)
		if err != nil {
			return state, err
		}
		state = next

		e.logger.Debug("conversation %s: %s", state.ConversationID, PhaseSupervisng)
		judged, err := e.supervise(ctx, state)
		if judged != nil {
			state = judged
		}
		if err != nil {
			return state, err
		}
		if state.Target == chat.TargetEnd {
			e.logger.Debug("conversation %s: %s (%s)", state.ConversationID, PhaseDone, state.EndReason)
			return state, nil
		}
	}

	state.Target = chat.TargetEnd
	state.EndReason = chat.EndRetryBudget
	return state, fmt.Errorf("graph exceeded %d iterations in conversation %s", e.maxIter, state.ConversationID)
}

// supervise runs the supervisor, or a minimal completion rule when the
// supervisor feature is disabled: the current subtask is taken at face value
// and marked complete.
func (e *Engine) supervise(ctx context.Context, state *chat.State) (*chat.State, error) {
	if e.features.Supervisor {
		return e.supervisor.Process(ctx, state)
	}

	out := state.Clone()
	if out.Plan == nil || out.Plan.Type == chat.TaskSimple || out.Current == nil {
		out.Target = chat.TargetEnd
		out.EndReason = chat.EndAllDone
		return out, nil
	}
	out.MarkCompleted(out.Current.ID)
	if out.AllCompleted() {
		out.Target = chat.TargetEnd
		out.EndReason = chat.EndAllDone
	}
	return out, nil
}

// assembleReply joins the assistant messages appended this turn. An empty
// turn yields a fixed fallback, optionally extended with an active-run hint.
func (e *Engine) assembleReply(ctx context.Context, state *chat.State, baseline int) string {
	var parts []string
	for i := baseline; i < len(state.Messages); i++ {
		if state.Messages[i].Role == chat.RoleAssistant {
			parts = append(parts, state.Messages[i].Content)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n\n")
	}

	reply := fallbackReply
	if e.features.CrossAgentHints {
		if hint := e.activeRunHint(ctx, state.ConversationID); hint != "" {
			reply += " " + hint
		}
	}
	return reply
}

func (e *Engine) activeRunHint(ctx context.Context, conversationID string) string {
	values, err := e.store.ContextValues(ctx, conversationID)
	if err != nil {
		e.logger.Warn("failed to load context for hint: %v", err)
		return ""
	}
	if runID, ok := values["active_run_id"].(string); ok && runID != "" {
		return fmt.Sprintf("You have an active run (ID: %s); you can ask about its status or results.", runID)
	}
	return ""
}
