package models

// Request payloads accepted by the orchestrator and the HTTP layer.
// Transport-level shape checks live in the validate tags; the orchestrator
// enforces the lifecycle and trust rules on top.

// CreateTaskRequest posts a new bounty-funded question.
type CreateTaskRequest struct {
	Question         string   `json:"question" validate:"required,min=1"`
	Context          string   `json:"context,omitempty"`
	ImageURLs        []string `json:"imageUrls,omitempty" validate:"dive,url"`
	BountyAmount     int64    `json:"bountyAmount" validate:"required,gt=0"`
	PayerPubkey      string   `json:"payerPubkey" validate:"required"`
	LockProof        string   `json:"lockProof,omitempty"`
	ExpiresInSec     int64    `json:"expiresInSec,omitempty" validate:"omitempty,gt=0"`
	PublisherAgentID string   `json:"publisherAgentId,omitempty" validate:"omitempty,uuid4"`
}

// ClaimTaskRequest claims an open task for a subscriber.
type ClaimTaskRequest struct {
	SubscriberAgentID string `json:"subscriberAgentId" validate:"required,uuid4"`
}

// SubmitFulfillmentRequest submits the claimed task's answer.
type SubmitFulfillmentRequest struct {
	SubscriberAgentID string         `json:"subscriberAgentId" validate:"required,uuid4"`
	FulfillmentText   string         `json:"fulfillmentText" validate:"required,min=1"`
	FulfillmentData   map[string]any `json:"fulfillmentData,omitempty"`
}

// SubmitScoreRequest scores a fulfillment against the pass/fail threshold.
type SubmitScoreRequest struct {
	SupervisorAgentID string  `json:"supervisorAgentId" validate:"required,uuid4"`
	Score             float64 `json:"score" validate:"gte=0,lte=100"`
	Reasoning         string  `json:"reasoning,omitempty"`
}

// SubmitVerificationRequest adjudicates a supervisor score.
type SubmitVerificationRequest struct {
	VerifierPubkey       string  `json:"verifierPubkey" validate:"required"`
	GroundTruthScore     float64 `json:"groundTruthScore" validate:"gte=0,lte=100"`
	AgreesWithSupervisor bool    `json:"agreesWithSupervisor"`
	Feedback             string  `json:"feedback,omitempty"`
}

// SubmitCalibrationScoreRequest scores a practice task.
type SubmitCalibrationScoreRequest struct {
	SupervisorAgentID string  `json:"supervisorAgentId" validate:"required,uuid4"`
	Score             float64 `json:"score" validate:"gte=0,lte=100"`
	Reasoning         string  `json:"reasoning,omitempty"`
}

// RegisterAgentRequest registers a marketplace agent.
type RegisterAgentRequest struct {
	Name   string    `json:"name" validate:"required,min=1,max=128"`
	Role   AgentRole `json:"role" validate:"required,oneof=publisher subscriber supervisor"`
	Pubkey string    `json:"pubkey" validate:"required"`
}

// SubmitAnswerRequest answers a task on the legacy single-resolver path.
type SubmitAnswerRequest struct {
	ResolverPubkey string `json:"resolverPubkey" validate:"required"`
	AnswerText     string `json:"answerText" validate:"required,min=1"`
}
