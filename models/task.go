package models

// TaskStatus represents the possible statuses of a task.
type TaskStatus string

const (
	StatusOpen         TaskStatus = "OPEN"
	StatusClaimed      TaskStatus = "CLAIMED"
	StatusFulfilled    TaskStatus = "FULFILLED"
	StatusScored       TaskStatus = "SCORED"
	StatusUnderReview  TaskStatus = "UNDER_REVIEW"
	StatusVerifiedPaid TaskStatus = "VERIFIED_PAID"
	StatusDisputed     TaskStatus = "DISPUTED"

	// StatusExpiredRefunded marks a task whose bounty lock was returned
	// after expiry. Set by the host's expiry sweep, not by the core edges.
	StatusExpiredRefunded TaskStatus = "EXPIRED_REFUNDED"

	// Legacy single-resolver flow.
	StatusAnswered         TaskStatus = "ANSWERED"
	StatusConfirmedPaid    TaskStatus = "CONFIRMED_PAID"
	StatusRejectedRefunded TaskStatus = "REJECTED_REFUNDED"
)

// Terminal reports whether no further transition may leave the status.
// A DISPUTED task is terminal for its own record; republishing creates a
// new task linked by PreviousTaskID.
func (s TaskStatus) Terminal() bool {
	switch s {
	case StatusVerifiedPaid, StatusDisputed, StatusExpiredRefunded,
		StatusConfirmedPaid, StatusRejectedRefunded:
		return true
	}
	return false
}

// Task is a bounty-funded question posted by a publisher agent.
// It is owned exclusively by the lifecycle service; all mutation happens
// through lifecycle transitions.
type Task struct {
	ID          string `json:"id" validate:"required,uuid4"`
	CreatedAtMs int64  `json:"createdAtMs" validate:"required"`
	UpdatedAtMs int64  `json:"updatedAtMs" validate:"required"`

	// Publisher-provided
	Question  string   `json:"question" validate:"required"`
	Context   string   `json:"context,omitempty"`
	ImageURLs []string `json:"imageUrls,omitempty" validate:"dive,url"`

	BountyAmount int64  `json:"bountyAmount" validate:"required,gt=0"`
	PayerPubkey  string `json:"payerPubkey" validate:"required"`
	LockProof    string `json:"lockProof,omitempty"`

	Status      TaskStatus `json:"status" validate:"required"`
	ExpiresAtMs int64      `json:"expiresAtMs,omitempty"`

	// Bound agent identities
	PublisherAgentID  string `json:"publisherAgentId,omitempty"`
	SubscriberAgentID string `json:"subscriberAgentId,omitempty"`

	Fulfillment     *Fulfillment     `json:"fulfillment,omitempty"`
	SupervisorScore *SupervisorScore `json:"supervisorScore,omitempty"`
	VerifierReview  *VerifierReview  `json:"verifierReview,omitempty"`

	// Payment tracking
	ReleaseProof           string `json:"releaseProof,omitempty"`
	RefundProof            string `json:"refundProof,omitempty"`
	SubscriberPaymentProof string `json:"subscriberPaymentProof,omitempty"`
	VerifierPaymentProof   string `json:"verifierPaymentProof,omitempty"`

	// SettlementPending is set when the lifecycle outcome was decided but
	// the escrow call failed; the payout must be retried by the caller.
	SettlementPending bool `json:"settlementPending,omitempty"`

	// Dispute lineage
	PreviousTaskID string `json:"previousTaskId,omitempty"`
	AttemptNumber  int    `json:"attemptNumber,omitempty"`

	AutoApproved bool `json:"autoApproved,omitempty"`

	// Legacy single-resolver flow
	ResolverPubkey string `json:"resolverPubkey,omitempty"`
	AnswerText     string `json:"answerText,omitempty"`
}

// Fulfillment is a subscriber's answer to a claimed task. At most one per
// task; re-answering after a dispute happens on a fresh task.
type Fulfillment struct {
	ID                string         `json:"id" validate:"required,uuid4"`
	TaskID            string         `json:"taskId" validate:"required,uuid4"`
	SubscriberAgentID string         `json:"subscriberAgentId" validate:"required"`
	FulfillmentText   string         `json:"fulfillmentText" validate:"required"`
	FulfillmentData   map[string]any `json:"fulfillmentData,omitempty"`
	SubmittedAtMs     int64          `json:"submittedAtMs" validate:"required"`
}

// SupervisorScore records a supervisor's pass/fail call on a fulfillment.
// PassesThreshold is computed once at scoring time against the configured
// threshold shared with calibration matching.
type SupervisorScore struct {
	ID                string  `json:"id" validate:"required,uuid4"`
	TaskID            string  `json:"taskId" validate:"required,uuid4"`
	FulfillmentID     string  `json:"fulfillmentId" validate:"required,uuid4"`
	SupervisorAgentID string  `json:"supervisorAgentId" validate:"required"`
	Score             float64 `json:"score" validate:"gte=0,lte=100"`
	Reasoning         string  `json:"reasoning,omitempty"`
	PassesThreshold   bool    `json:"passesThreshold"`
	ScoredAtMs        int64   `json:"scoredAtMs" validate:"required"`
}

// VerifierReview is the ground-truth adjudication of a supervisor score.
type VerifierReview struct {
	ID                   string  `json:"id" validate:"required,uuid4"`
	TaskID               string  `json:"taskId" validate:"required,uuid4"`
	FulfillmentID        string  `json:"fulfillmentId" validate:"required,uuid4"`
	ScoreID              string  `json:"scoreId" validate:"required,uuid4"`
	VerifierPubkey       string  `json:"verifierPubkey" validate:"required"`
	GroundTruthScore     float64 `json:"groundTruthScore" validate:"gte=0,lte=100"`
	AgreesWithSupervisor bool    `json:"agreesWithSupervisor"`
	Feedback             string  `json:"feedback,omitempty"`
	ReviewedAtMs         int64   `json:"reviewedAtMs" validate:"required"`
}
