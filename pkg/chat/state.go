// Package chat defines the conversation state record shared by every node of
// the orchestration graph.
//
// The state is an explicit record with a fixed set of optional fields. Nodes
// receive a state, return an updated copy, and never communicate through side
// channels; all durable conversation data lives here or in the shared context
// store.
package chat

import "time"

// Role identifies the author of a message.
type Role string

const (
	// RoleUser marks a message typed by the human user.
	RoleUser Role = "user"
	// RoleAssistant marks a message produced by an agent.
	RoleAssistant Role = "assistant"
)

// TargetEnd is the sentinel routing target that terminates the graph.
const TargetEnd = "END"

// EndReason says why the graph reached its terminal state. It distinguishes
// normal completion from a blocked dependency graph or an aborted workflow.
type EndReason string

const (
	// EndAllDone means every subtask completed (or a SIMPLE turn finished).
	EndAllDone EndReason = "all_done"
	// EndBlocked means subtasks remain but none is runnable.
	EndBlocked EndReason = "blocked"
	// EndNoPlan means routing was requested before a plan existed.
	EndNoPlan EndReason = "no_plan"
	// EndUnknownAgent means the plan named an unregistered agent.
	EndUnknownAgent EndReason = "unknown_agent"
	// EndInvalid means the supervisor judged an agent response invalid.
	EndInvalid EndReason = "invalid_response"
	// EndNeedsFeedback means the workflow paused for user input.
	EndNeedsFeedback EndReason = "needs_feedback"
	// EndJudgeError means the supervisor verdict could not be parsed.
	EndJudgeError EndReason = "judge_error"
	// EndRetryBudget means a subtask stayed incomplete past the retry budget.
	EndRetryBudget EndReason = "retry_budget"
)

// Message is one entry in the conversation log. AgentID is set only on
// assistant messages and names the agent that produced the text.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	AgentID string `json:"agent_id,omitempty"`
}

// TaskType classifies a plan as single-agent or multi-step.
type TaskType string

const (
	// TaskSimple routes the whole request to one primary agent.
	TaskSimple TaskType = "SIMPLE"
	// TaskComplex decomposes the request into a dependency DAG of subtasks.
	TaskComplex TaskType = "COMPLEX"
)

// Subtask is one node in a planner-produced dependency DAG, assigned to
// exactly one agent. DependsOn references subtask ids in the same plan.
type Subtask struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Agent       string   `json:"agent"`
	DependsOn   []string `json:"depends_on"`
}

// TaskPlan is the planner's output for one user turn.
type TaskPlan struct {
	Type         TaskType  `json:"task_type"`
	PrimaryAgent string    `json:"primary_agent,omitempty"`
	Subtasks     []Subtask `json:"subtasks,omitempty"`
}

// HistoryEntry is one record in the supervisor's private audit trail. It is
// independent of the message log.
type HistoryEntry struct {
	UserQuery         string         `json:"user_query"`
	AssistantResponse string         `json:"assistant_response"`
	Keywords          map[string]any `json:"keywords"`
}

// State is the full mutable state of one conversation turn.
type State struct {
	ConversationID string   `json:"conversation_id"`
	UserID         string   `json:"user_id"`
	UserGroups     []string `json:"user_groups,omitempty"`
	CreatedAt      int64    `json:"created_at,omitempty"`

	// Messages is the ordered conversation log. Append-only within a turn.
	Messages []Message `json:"messages"`

	Plan *TaskPlan `json:"task_plan,omitempty"`
	// Subtasks mirrors Plan.Subtasks for COMPLEX plans so routing state
	// survives persistence independently of the plan document.
	Subtasks []Subtask `json:"subtasks,omitempty"`
	// Completed holds ids of finished subtasks in completion order. It only
	// grows and is always a subset of the subtask ids.
	Completed []string `json:"completed_subtasks,omitempty"`
	// Current is the subtask assigned to an agent right now, nil when no
	// runnable subtask exists.
	Current *Subtask `json:"current_subtask,omitempty"`

	// Target is the id of the next node to execute, or TargetEnd. It is the
	// single routing signal: the step router (and the supervisor, for
	// terminal verdicts) write it, the engine dispatches on it.
	Target    string    `json:"agent_id,omitempty"`
	EndReason EndReason `json:"end_reason,omitempty"`

	// History is the supervisor's audit trail for the current plan.
	History []HistoryEntry `json:"conversation_history,omitempty"`

	// ErrorCount tracks recoverable failures within the current plan; the
	// supervisor terminates the workflow when it exceeds the retry budget.
	ErrorCount int `json:"error_count,omitempty"`
}

// NewState creates an empty conversation state.
func NewState(conversationID, userID string) *State {
	return &State{
		ConversationID: conversationID,
		UserID:         userID,
		CreatedAt:      time.Now().Unix(),
		Messages:       make([]Message, 0),
	}
}

// Clone returns a deep copy of the state. Nodes mutate the copy so a failed
// node never leaves a half-updated state behind.
func (s *State) Clone() *State {
	out := *s
	out.UserGroups = append([]string(nil), s.UserGroups...)
	out.Messages = append([]Message(nil), s.Messages...)
	out.Completed = append([]string(nil), s.Completed...)
	out.Subtasks = cloneSubtasks(s.Subtasks)
	if s.Plan != nil {
		plan := *s.Plan
		plan.Subtasks = cloneSubtasks(s.Plan.Subtasks)
		out.Plan = &plan
	}
	if s.Current != nil {
		cur := *s.Current
		cur.DependsOn = append([]string(nil), s.Current.DependsOn...)
		out.Current = &cur
	}
	out.History = make([]HistoryEntry, len(s.History))
	for i, h := range s.History {
		entry := h
		entry.Keywords = make(map[string]any, len(h.Keywords))
		for k, v := range h.Keywords {
			entry.Keywords[k] = v
		}
		out.History[i] = entry
	}
	return &out
}

func cloneSubtasks(in []Subtask) []Subtask {
	if in == nil {
		return nil
	}
	out := make([]Subtask, len(in))
	for i, st := range in {
		st.DependsOn = append([]string(nil), in[i].DependsOn...)
		out[i] = st
	}
	return out
}

// AppendUser appends a user message to the log.
func (s *State) AppendUser(content string) {
	s.Messages = append(s.Messages, Message{Role: RoleUser, Content: content})
}

// AppendAssistant appends an assistant message attributed to the given agent.
func (s *State) AppendAssistant(agentID, content string) {
	s.Messages = append(s.Messages, Message{Role: RoleAssistant, Content: content, AgentID: agentID})
}

// LatestUserMessage returns the content of the most recent user message, or
// an empty string when there is none.
func (s *State) LatestUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// LatestAssistantMessage returns the content of the most recent assistant
// message, or an empty string when there is none.
func (s *State) LatestAssistantMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i].Content
		}
	}
	return ""
}

// IsCompleted reports whether the given subtask id is in the completed set.
func (s *State) IsCompleted(id string) bool {
	for _, done := range s.Completed {
		if done == id {
			return true
		}
	}
	return false
}

// MarkCompleted adds a subtask id to the completed set. Adding an id twice
// has no effect; the set only grows.
func (s *State) MarkCompleted(id string) {
	if !s.IsCompleted(id) {
		s.Completed = append(s.Completed, id)
	}
}

// AllCompleted reports whether every subtask in the plan is completed.
func (s *State) AllCompleted() bool {
	return len(s.Subtasks) > 0 && len(s.Completed) == len(s.Subtasks)
}
