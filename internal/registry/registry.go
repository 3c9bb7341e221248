// Package registry tracks registered marketplace agents and their roles.
package registry

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/unblockhq/unblock/internal/clock"
	"github.com/unblockhq/unblock/models"
	"github.com/unblockhq/unblock/types"
)

// Registry is an in-process agent directory.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]models.AgentRegistration
	clock  clock.Clock
	log    logrus.FieldLogger
}

// New creates an empty registry.
func New(clk clock.Clock, log logrus.FieldLogger) *Registry {
	return &Registry{
		agents: make(map[string]models.AgentRegistration),
		clock:  clk,
		log:    log,
	}
}

// Register creates a new agent identity.
func (r *Registry) Register(req models.RegisterAgentRequest) models.AgentRegistration {
	r.mu.Lock()
	defer r.mu.Unlock()
	agent := models.AgentRegistration{
		AgentID:        uuid.New().String(),
		Name:           req.Name,
		Role:           req.Role,
		Pubkey:         req.Pubkey,
		RegisteredAtMs: r.clock.NowMs(),
		Active:         true,
	}
	r.agents[agent.AgentID] = agent
	r.log.WithFields(logrus.Fields{
		"agent": agent.AgentID,
		"role":  agent.Role,
		"name":  agent.Name,
	}).Info("agent registered")
	return agent
}

// Get retrieves an agent by id.
func (r *Registry) Get(agentID string) (models.AgentRegistration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.agents[agentID]
	if !ok {
		return models.AgentRegistration{}, types.NewAgentError(types.ErrNotFound, agentID, "agent not found")
	}
	return agent, nil
}

// PubkeyFor resolves the payout pubkey for an agent, falling back to the
// agent id when the agent is unknown to the registry.
func (r *Registry) PubkeyFor(agentID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if agent, ok := r.agents[agentID]; ok && agent.Pubkey != "" {
		return agent.Pubkey
	}
	return agentID
}

// List returns all registered agents.
func (r *Registry) List() []models.AgentRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.AgentRegistration, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	return out
}

// ListByRole returns agents with the given role.
func (r *Registry) ListByRole(role models.AgentRole) []models.AgentRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.AgentRegistration
	for _, a := range r.agents {
		if a.Role == role {
			out = append(out, a)
		}
	}
	return out
}

// Deactivate marks an agent inactive. Unknown ids are ignored.
func (r *Registry) Deactivate(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if agent, ok := r.agents[agentID]; ok {
		agent.Active = false
		r.agents[agentID] = agent
	}
}
