// Package supervisor validates agent output for multi-step workflows. After
// every agent turn in a COMPLEX plan it asks a judge model whether the
// response was valid, whether the user must be consulted, and whether the
// subtask is finished, then updates the completion state accordingly.
package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"finchat/pkg/agents"
	"finchat/pkg/chat"
	"finchat/pkg/llm"
	"finchat/pkg/logx"
)

const judgePrompt = `You are a Supervisor AI agent responsible for evaluating whether a given LLM agent's response is correct based on the original query that the user asked from that agent and the tools that were available to the agent.

[CAUSE] User Query: %s

[EFFECT] Response from Agent: %s

Agents available: %s

[CONTEXT] You can use the following conversation for more context: %s

Your task is to determine whether the response is valid or not.
Respond strictly in the following format:
{
    "is_valid": true/false,
    "needs_feedback": [TRUE IF AGENT REQUESTS SOME INFORMATION FROM USER OR RAISES SOME ERROR ELSE FALSE],
    "is_job_done": [TRUE IF AGENT COMPLETED THE USER REQUESTED TASK ELSE FALSE],
    "keywords": {DICTIONARY OF KEY DETAILS LIKE RUN ID, STATUS, ETC.}
}

Understand the difference between "is_valid" and "is_job_done" through the following examples:
- User Query: "Check the status of run ID 12345"
- Agent Response: "The status of run ID 12345 is 'running'."
    -- is_valid: true
    -- is_job_done: false

ASSUME THAT AGENTS ARE HONEST AND DO NOT LIE. YOU NEED NOT VALIDATE FACTUAL ACCURACY OF THE RESPONSE.

 - Example of a valid query and response:
 [CAUSE] User Query: "Trigger a batch run for CCAR"
 [EFFECT] Response from Agent: "I have started the batch run for CCAR. The run ID is 12345."

 [CAUSE] User Query: "What is the status of run ID 12345?"
 [EFFECT] Response from Agent: "The status of run ID 12345 is 'completed'."`

var fencedRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// Verdict is the judge's structured assessment of one agent response.
type Verdict struct {
	IsValid       bool           `json:"is_valid"`
	NeedsFeedback bool           `json:"needs_feedback"`
	IsJobDone     bool           `json:"is_job_done"`
	Keywords      map[string]any `json:"keywords"`
}

// Supervisor judges agent turns for COMPLEX plans.
type Supervisor struct {
	client     llm.Client
	registry   *agents.Registry
	maxRetries int
	logger     *logx.Logger
}

// New creates a supervisor. maxRetries bounds how many valid-but-unfinished
// verdicts a single subtask may accumulate before the workflow aborts.
func New(client llm.Client, registry *agents.Registry, maxRetries int) *Supervisor {
	return &Supervisor{
		client:     client,
		registry:   registry,
		maxRetries: maxRetries,
		logger:     logx.NewLogger("supervisor"),
	}
}

// Process evaluates the latest agent turn.
//
// SIMPLE plans and planless states pass through terminally: single-agent
// turns run once and are not validated. For COMPLEX plans the judge verdict
// drives the decision table; an unparseable verdict terminates the workflow
// with a surfaced error rather than looping on garbage. Process always
// returns a usable state, even alongside an error.
func (s *Supervisor) Process(ctx context.Context, state *chat.State) (*chat.State, error) {
	out := state.Clone()

	if out.Plan == nil || out.Plan.Type == chat.TaskSimple || len(out.Subtasks) == 0 {
		out.Target = chat.TargetEnd
		out.EndReason = chat.EndAllDone
		return out, nil
	}
	if out.Current == nil {
		out.Target = chat.TargetEnd
		out.EndReason = chat.EndBlocked
		return out, fmt.Errorf("supervisor invoked without a current subtask")
	}

	response := out.LatestAssistantMessage()
	verdict, err := s.judge(ctx, response, out.Current, out.History)
	if err != nil {
		out.Target = chat.TargetEnd
		out.EndReason = chat.EndJudgeError
		return out, fmt.Errorf("supervisor verdict unavailable: %w", err)
	}

	if !verdict.IsValid {
		s.logger.Warn("subtask %s response judged invalid", out.Current.ID)
		out.Target = chat.TargetEnd
		out.EndReason = chat.EndInvalid
		return out, nil
	}
	if verdict.NeedsFeedback {
		out.Target = chat.TargetEnd
		out.EndReason = chat.EndNeedsFeedback
		return out, nil
	}

	out.History = append(out.History, chat.HistoryEntry{
		UserQuery:         out.Current.Description,
		AssistantResponse: response,
		Keywords:          verdict.Keywords,
	})

	if !verdict.IsJobDone {
		out.ErrorCount++
		if out.ErrorCount > s.maxRetries {
			s.logger.Warn("subtask %s exceeded %d retries, aborting", out.Current.ID, s.maxRetries)
			out.Target = chat.TargetEnd
			out.EndReason = chat.EndRetryBudget
			return out, nil
		}
		return out, nil
	}

	out.MarkCompleted(out.Current.ID)
	out.ErrorCount = 0
	if out.AllCompleted() {
		out.Target = chat.TargetEnd
		out.EndReason = chat.EndAllDone
	}
	return out, nil
}

// judge asks the model for a verdict over the subtask and response.
func (s *Supervisor) judge(ctx context.Context, response string, current *chat.Subtask, history []chat.HistoryEntry) (Verdict, error) {
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to encode history: %w", err)
	}

	var specs []string
	for _, agent := range s.registry.List() {
		spec := agent.Spec()
		specs = append(specs, fmt.Sprintf("%s (%s)", spec.ID, spec.Description))
	}

	prompt := fmt.Sprintf(judgePrompt, current.Description, response, strings.Join(specs, "; "), historyJSON)
	raw, err := s.client.Complete(ctx, "", []llm.Message{{Role: llm.RoleUser, Content: prompt}})
	if err != nil {
		return Verdict{}, fmt.Errorf("judge completion failed: %w", err)
	}
	return parseVerdict(raw)
}

// parseVerdict decodes the judge output. The object must carry is_valid;
// anything else is a parse failure, not a default verdict.
func parseVerdict(raw string) (Verdict, error) {
	trimmed := strings.TrimSpace(raw)
	if m := fencedRe.FindStringSubmatch(trimmed); m != nil {
		trimmed = m[1]
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &probe); err != nil {
		return Verdict{}, fmt.Errorf("judge output is not a JSON object: %w", err)
	}
	if _, ok := probe["is_valid"]; !ok {
		return Verdict{}, fmt.Errorf("judge output missing is_valid")
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(trimmed), &verdict); err != nil {
		return Verdict{}, fmt.Errorf("judge output malformed: %w", err)
	}
	return verdict, nil
}
