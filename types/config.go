package types

// AppConfig represents the complete application configuration
type AppConfig struct {
	Verbose bool         `mapstructure:"verbose"`
	Config  string       `mapstructure:"config"`
	Server  ServerConfig `mapstructure:"server" validate:"required"`
	Market  MarketConfig `mapstructure:"market" validate:"required"`
	Escrow  EscrowConfig `mapstructure:"escrow"`
	Ledger  LedgerConfig `mapstructure:"ledger"`
	Log     LogConfig    `mapstructure:"log"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`
}

// MarketConfig holds the trust-routing and payment-split policy knobs.
// Defaults mirror the recognized options table: threshold 60, subscriber
// share 0.7, audit rate 0.20, auto-approve min trust 40, min claim trust 10,
// calibration tolerance 15.
type MarketConfig struct {
	// SupervisorScoreThreshold is the pass/fail cutoff shared by live
	// scoring and calibration ground truth.
	SupervisorScoreThreshold float64 `mapstructure:"supervisorScoreThreshold" validate:"gte=0,lte=100"`
	// SubscriberPaymentShare is the fraction of the bounty paid to the
	// subscriber on a verified split; the remainder goes to the verifier.
	SubscriberPaymentShare float64 `mapstructure:"subscriberPaymentShare" validate:"gt=0,lte=1"`
	// AuditSampleRate is the probability a Tier-1 auto-approval is routed
	// to manual verification anyway.
	AuditSampleRate float64 `mapstructure:"auditSampleRate" validate:"gte=0,lte=1"`
	// AutoApproveSubscriberMinTrust is the minimum subscriber trust score
	// required to skip verification.
	AutoApproveSubscriberMinTrust float64 `mapstructure:"autoApproveSubscriberMinTrust" validate:"gte=0,lte=100"`
	// SubscriberMinClaimTrust is the minimum subscriber trust score
	// required to claim a task.
	SubscriberMinClaimTrust float64 `mapstructure:"subscriberMinClaimTrust" validate:"gte=0,lte=100"`
	// CalibrationScoreTolerance is the max |score - groundTruth| distance
	// for a calibration attempt to count as a match.
	CalibrationScoreTolerance float64 `mapstructure:"calibrationScoreTolerance" validate:"gte=0,lte=100"`
}

// EscrowConfig selects the payment rail backend.
type EscrowConfig struct {
	// Mock selects the in-process mock rail. The real rail is an external
	// collaborator wired in by the host process.
	Mock bool `mapstructure:"mock"`
}

// LedgerConfig holds settlement ledger storage configuration.
type LedgerConfig struct {
	// Path is the SQLite file for the settlement ledger. Empty disables
	// durable recording.
	Path string `mapstructure:"path"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json"`
}

// DefaultMarketConfig returns the policy knobs at their documented defaults.
func DefaultMarketConfig() MarketConfig {
	return MarketConfig{
		SupervisorScoreThreshold:      60,
		SubscriberPaymentShare:        0.7,
		AuditSampleRate:               0.20,
		AutoApproveSubscriberMinTrust: 40,
		SubscriberMinClaimTrust:       10,
		CalibrationScoreTolerance:     15,
	}
}
