package models

// AgentRole identifies what an agent does in the marketplace.
type AgentRole string

const (
	RolePublisher  AgentRole = "publisher"
	RoleSubscriber AgentRole = "subscriber"
	RoleSupervisor AgentRole = "supervisor"
)

// AgentRegistration is a registered agent identity.
type AgentRegistration struct {
	AgentID        string    `json:"agentId" validate:"required,uuid4"`
	Name           string    `json:"name" validate:"required,min=1,max=128"`
	Role           AgentRole `json:"role" validate:"required,oneof=publisher subscriber supervisor"`
	Pubkey         string    `json:"pubkey" validate:"required"`
	RegisteredAtMs int64     `json:"registeredAtMs" validate:"required"`
	Active         bool      `json:"active"`
}
