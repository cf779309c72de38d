package agents

import (
	"fmt"
	"sync"
)

// Registry holds the registered agents in declaration order. Order matters:
// the planner's SIMPLE fallback and group filtering both walk agents in the
// order they were registered.
type Registry struct {
	mu     sync.RWMutex
	agents []*Agent
	byID   map[string]*Agent
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Agent)}
}

// Register adds an agent. Duplicate ids are rejected.
func (r *Registry) Register(agent *Agent) error {
	if agent == nil {
		return fmt.Errorf("agent cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[agent.ID()]; exists {
		return fmt.Errorf("agent %s already registered", agent.ID())
	}
	r.byID[agent.ID()] = agent
	r.agents = append(r.agents, agent)
	return nil
}

// Get returns the agent with the given id.
func (r *Registry) Get(id string) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.byID[id]
	return agent, ok
}

// List returns all agents in registration order.
func (r *Registry) List() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Agent(nil), r.agents...)
}

// Eligible returns the agents the given user groups may use, in registration
// order. Agents with no group restriction are open to everyone.
func (r *Registry) Eligible(userGroups []string) []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var eligible []*Agent
	for _, agent := range r.agents {
		if allowed(agent.Spec().Groups, userGroups) {
			eligible = append(eligible, agent)
		}
	}
	return eligible
}

func allowed(agentGroups, userGroups []string) bool {
	if len(agentGroups) == 0 {
		return true
	}
	for _, ag := range agentGroups {
		for _, ug := range userGroups {
			if ag == ug {
				return true
			}
		}
	}
	return false
}
