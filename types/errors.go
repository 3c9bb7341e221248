package types

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for the marketplace core. Callers match these with
// errors.Is; the structured MarketError below carries the task/agent context.
var (
	// ErrNotFound indicates an unknown task or calibration task id.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition indicates a status precondition violation.
	// The task is left unchanged.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrIdentityMismatch indicates the acting agent does not own a binding
	// established earlier in the task's life.
	ErrIdentityMismatch = errors.New("identity mismatch")
	// ErrCapabilityDenied indicates the agent's trust tier does not permit
	// the attempted operation.
	ErrCapabilityDenied = errors.New("capability denied")
	// ErrValidation indicates a malformed request payload.
	ErrValidation = errors.New("validation failed")
	// ErrEscrow indicates a payment rail call failed. This is the only
	// retryable kind: the lifecycle transition that preceded it stands.
	ErrEscrow = errors.New("escrow failure")
)

// MarketError is a structured error wrapping one of the sentinel kinds.
type MarketError struct {
	Kind    error
	Message string
	TaskID  string
	AgentID string
}

func (e *MarketError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Error()
	}
	switch {
	case e.TaskID != "" && e.AgentID != "":
		return fmt.Sprintf("%s (task=%s agent=%s)", msg, e.TaskID, e.AgentID)
	case e.TaskID != "":
		return fmt.Sprintf("%s (task=%s)", msg, e.TaskID)
	case e.AgentID != "":
		return fmt.Sprintf("%s (agent=%s)", msg, e.AgentID)
	}
	return msg
}

func (e *MarketError) Unwrap() error { return e.Kind }

// NewTaskError creates a MarketError bound to a task.
func NewTaskError(kind error, taskID, format string, args ...any) *MarketError {
	return &MarketError{Kind: kind, TaskID: taskID, Message: fmt.Sprintf(format, args...)}
}

// NewAgentError creates a MarketError bound to an agent.
func NewAgentError(kind error, agentID, format string, args ...any) *MarketError {
	return &MarketError{Kind: kind, AgentID: agentID, Message: fmt.Sprintf(format, args...)}
}
