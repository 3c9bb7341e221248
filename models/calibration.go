package models

// CalibrationTask is a known-ground-truth practice task derived from a
// verified real task. At most one exists per source task.
type CalibrationTask struct {
	ID                string  `json:"id" validate:"required,uuid4"`
	SourceTaskID      string  `json:"sourceTaskId" validate:"required,uuid4"`
	Question          string  `json:"question" validate:"required"`
	Context           string  `json:"context,omitempty"`
	FulfillmentText   string  `json:"fulfillmentText"`
	GroundTruthScore  float64 `json:"groundTruthScore" validate:"gte=0,lte=100"`
	GroundTruthPasses bool    `json:"groundTruthPasses"`
	CreatedAtMs       int64   `json:"createdAtMs" validate:"required"`
}

// CalibrationAttempt records one supervisor's shot at a calibration task.
// A given (calibration task, supervisor) pair produces at most one attempt.
type CalibrationAttempt struct {
	ID                 string  `json:"id" validate:"required,uuid4"`
	CalibrationTaskID  string  `json:"calibrationTaskId" validate:"required,uuid4"`
	SupervisorAgentID  string  `json:"supervisorAgentId" validate:"required"`
	Score              float64 `json:"score" validate:"gte=0,lte=100"`
	PassesThreshold    bool    `json:"passesThreshold"`
	MatchesGroundTruth bool    `json:"matchesGroundTruth"`
	TrustDelta         float64 `json:"trustDelta"`
	AttemptedAtMs      int64   `json:"attemptedAtMs" validate:"required"`
}
