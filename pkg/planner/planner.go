// Package planner classifies each user turn into a SIMPLE single-agent
// response or a COMPLEX multi-step workflow with a subtask dependency graph.
package planner

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

const plannerPrompt = `You are a task planning agent for a financial assistant. Your job is to determine if this query needs:
1. A simple single-agent response
2. A complex multi-agent workflow

For COMPLEX tasks, break the query into subtasks and assign each to the most appropriate agent.

Available agents:
%s

If this is a SIMPLE task, respond with:
{
    "task_type": "SIMPLE",
    "primary_agent": "[AGENT_ID]"
}

If this is a COMPLEX task, respond with:
{
    "task_type": "COMPLEX",
    "subtasks": [
        {"id": "subtask1", "description": "...", "agent": "[AGENT_ID]", "depends_on": []},
        {"id": "subtask2", "description": "...", "agent": "[AGENT_ID]", "depends_on": ["subtask1"]}
    ]
}`

var fencedRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// Planner produces the task plan for one user turn.
type Planner struct {
	client       llm.Client
	registry     *agents.Registry
	fallbackHook func()
	logger       *logx.Logger
}

// New creates a planner over the given model client and agent registry.
func New(client llm.Client, registry *agents.Registry) *Planner {
	return &Planner{client: client, registry: registry, logger: logx.NewLogger("planner")}
}

// SetFallbackHook installs a callback fired whenever classification degrades
// to the SIMPLE fallback plan.
func (p *Planner) SetFallbackHook(hook func()) {
	p.fallbackHook = hook
}

// Process classifies the latest user message and installs the resulting plan.
// A model or parse failure degrades to a SIMPLE plan targeting the first
// eligible agent; an invalid COMPLEX dependency graph is an error because
// routing it would deadlock silently.
func (p *Planner) Process(ctx context.Context, state *chat.State) (*chat.State, error) {
	out := state.Clone()

	plan := p.classify(ctx, out.LatestUserMessage(), out.UserGroups)
	out.Plan = &plan
	out.ErrorCount = 0
	out.History = nil
	out.Current = nil
	out.Target = ""
	out.EndReason = ""

	if plan.Type == chat.TaskComplex {
		if err := ValidatePlan(plan.Subtasks); err != nil {
			return nil, fmt.Errorf("invalid task plan: %w", err)
		}
		out.Subtasks = plan.Subtasks
		out.Completed = []string{}
	} else {
		out.Subtasks = nil
		out.Completed = nil
	}
	return out, nil
}

// classify asks the model for a plan and falls back to SIMPLE with the first
// eligible agent when anything about the response is unusable.
func (p *Planner) classify(ctx context.Context, userMessage string, userGroups []string) chat.TaskPlan {
	eligible := p.registry.Eligible(userGroups)

	var lines []string
	for _, agent := range eligible {
		spec := agent.Spec()
		lines = append(lines, fmt.Sprintf("- AgentId: %s, AgentDescription: %s", spec.ID, spec.Description))
	}
	system := fmt.Sprintf(plannerPrompt, strings.Join(lines, "\n"))

	response, err := p.client.Complete(ctx, system, []llm.Message{{Role: llm.RoleUser, Content: userMessage}})
	if err != nil {
		p.logger.Warn("plan completion failed, falling back to SIMPLE: %v", err)
		return p.fallback(eligible)
	}

	raw := strings.TrimSpace(response)
	if m := fencedRe.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}

	var plan chat.TaskPlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		p.logger.Warn("plan parse failed, falling back to SIMPLE: %v", err)
		return p.fallback(eligible)
	}
	if plan.Type != chat.TaskSimple && plan.Type != chat.TaskComplex {
		p.logger.Warn("plan has unknown task type %q, falling back to SIMPLE", plan.Type)
		return p.fallback(eligible)
	}
	return plan
}

func (p *Planner) fallback(eligible []*agents.Agent) chat.TaskPlan {
	if p.fallbackHook != nil {
		p.fallbackHook()
	}
	plan := chat.TaskPlan{Type: chat.TaskSimple}
	if len(eligible) > 0 {
		plan.PrimaryAgent = eligible[0].ID()
	}
	return plan
}

// ValidatePlan rejects subtask graphs that could never finish: references to
// unknown subtask ids and dependency cycles. Detection is Kahn's algorithm;
// any node left unprocessed sits on a cycle.
func ValidatePlan(subtasks []chat.Subtask) error {
	ids := make(map[string]bool, len(subtasks))
	for _, st := range subtasks {
		if st.ID == "" {
			return fmt.Errorf("subtask with empty id")
		}
		if ids[st.ID] {
			return fmt.Errorf("duplicate subtask id %q", st.ID)
		}
		ids[st.ID] = true
	}

	indegree := make(map[string]int, len(subtasks))
	dependents := make(map[string][]string)
	for _, st := range subtasks {
		indegree[st.ID] += 0
		for _, dep := range st.DependsOn {
			if !ids[dep] {
				return fmt.Errorf("subtask %q depends on unknown subtask %q", st.ID, dep)
			}
			indegree[st.ID]++
			dependents[dep] = append(dependents[dep], st.ID)
		}
	}

	var queue []string
	for _, st := range subtasks {
		if indegree[st.ID] == 0 {
			queue = append(queue, st.ID)
		}
	}

	processed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++
		for _, next := range dependents[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if processed != len(subtasks) {
		var cyclic []string
		for _, st := range subtasks {
			if indegree[st.ID] > 0 {
				cyclic = append(cyclic, st.ID)
			}
		}
		return fmt.Errorf("dependency cycle among subtasks: %s", strings.Join(cyclic, ", "))
	}
	return nil
}
