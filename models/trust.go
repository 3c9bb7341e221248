package models

// Tier is the capability class derived purely from an agent's trust score.
type Tier int

const (
	TierAutonomous Tier = 1
	TierStandard   Tier = 2
	TierProbation  Tier = 3
	TierSuspended  Tier = 4
)

// TierInfo describes the capabilities a tier grants.
type TierInfo struct {
	Tier                 Tier    `json:"tier"`
	Label                string  `json:"label"`
	CanScoreRealTasks    bool    `json:"canScoreRealTasks"`
	CanAutoApprove       bool    `json:"canAutoApprove"`
	TaskAllocationWeight float64 `json:"taskAllocationWeight"`
}

// ConfusionOutcome classifies a supervisor's pass/fail call against the
// eventual verifier verdict.
type ConfusionOutcome string

const (
	OutcomeTruePositive  ConfusionOutcome = "TP"
	OutcomeTrueNegative  ConfusionOutcome = "TN"
	OutcomeFalsePositive ConfusionOutcome = "FP"
	OutcomeFalseNegative ConfusionOutcome = "FN"
)

// ConfusionMatrix holds per-agent outcome counters. Observational only;
// counters never feed back into the score directly.
type ConfusionMatrix struct {
	TP int `json:"tp"`
	TN int `json:"tn"`
	FP int `json:"fp"`
	FN int `json:"fn"`
}

// TrustEvent is one entry in an agent's bounded trust history.
type TrustEvent struct {
	TaskID      string  `json:"taskId"`
	Delta       float64 `json:"delta"`
	Reason      string  `json:"reason"`
	TimestampMs int64   `json:"timestampMs"`
	Proof       string  `json:"proof,omitempty"`
}

// TrustRecord is an agent's reputation ledger entry. Created lazily on
// first reference, seeded at score 50, and mutated only through the trust
// store's delta operation.
type TrustRecord struct {
	AgentID         string          `json:"agentId"`
	Score           float64         `json:"score"` // clamped to [0,100]
	Tier            Tier            `json:"tier"`
	TotalTasks      int             `json:"totalTasks"`
	SuccessfulTasks int             `json:"successfulTasks"`
	FailedTasks     int             `json:"failedTasks"`
	LastUpdatedMs   int64           `json:"lastUpdatedMs"`
	History         []TrustEvent    `json:"history"`
	ConfusionMatrix ConfusionMatrix `json:"confusionMatrix"`

	CalibrationAttempts  int `json:"calibrationAttempts"`
	CalibrationSuccesses int `json:"calibrationSuccesses"`
}
