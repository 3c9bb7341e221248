// Package trust maintains the per-agent reputation ledger and derives
// capability tiers from scores.
package trust

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/unblockhq/unblock/internal/clock"
	"github.com/unblockhq/unblock/models"
)

const (
	initialScore = 50
	maxHistory   = 50
)

// Store is the per-agent reputation ledger. Records are created lazily on
// first reference and live for the process lifetime. All score mutation
// goes through ApplyDelta; the store mutex makes each mutation atomic per
// agent.
type Store struct {
	mu      sync.Mutex
	records map[string]*models.TrustRecord
	clock   clock.Clock
	log     logrus.FieldLogger
}

// NewStore creates an empty trust store.
func NewStore(clk clock.Clock, log logrus.FieldLogger) *Store {
	return &Store{
		records: make(map[string]*models.TrustRecord),
		clock:   clk,
		log:     log,
	}
}

// GetOrCreate returns a copy of the agent's record, seeding a fresh one at
// score 50 if none exists.
func (s *Store) GetOrCreate(agentID string) models.TrustRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRecord(s.getOrCreateLocked(agentID))
}

// copyRecord detaches the returned value from the live record. The history
// slice is copied so callers cannot write through to the store.
func copyRecord(rec *models.TrustRecord) models.TrustRecord {
	out := *rec
	out.History = append([]models.TrustEvent(nil), rec.History...)
	return out
}

func (s *Store) getOrCreateLocked(agentID string) *models.TrustRecord {
	rec, ok := s.records[agentID]
	if !ok {
		rec = &models.TrustRecord{
			AgentID:       agentID,
			Score:         initialScore,
			Tier:          TierForScore(initialScore),
			LastUpdatedMs: s.clock.NowMs(),
			History:       []models.TrustEvent{},
		}
		s.records[agentID] = rec
	}
	return rec
}

// ApplyDelta is the only mutator of an agent's score. It clamps the result
// into [0,100], recomputes the tier, updates the task counters by the sign
// of the delta, and appends to the bounded event history (oldest dropped
// past 50 entries). The updated record is returned by value.
func (s *Store) ApplyDelta(agentID string, delta float64, taskID, reason, proof string) models.TrustRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.getOrCreateLocked(agentID)
	rec.Score = clamp(rec.Score+delta, 0, 100)
	rec.Tier = TierForScore(rec.Score)
	rec.TotalTasks++
	if delta > 0 {
		rec.SuccessfulTasks++
	}
	if delta < 0 {
		rec.FailedTasks++
	}
	now := s.clock.NowMs()
	rec.LastUpdatedMs = now

	rec.History = append(rec.History, models.TrustEvent{
		TaskID:      taskID,
		Delta:       delta,
		Reason:      reason,
		TimestampMs: now,
		Proof:       proof,
	})
	if len(rec.History) > maxHistory {
		rec.History = rec.History[len(rec.History)-maxHistory:]
	}

	s.log.WithFields(logrus.Fields{
		"agent":  agentID,
		"score":  rec.Score,
		"tier":   rec.Tier,
		"delta":  delta,
		"reason": reason,
	}).Info("trust delta applied")
	return copyRecord(rec)
}

// TierInfo returns the capability tier derived from the agent's current
// score, seeding the record if needed.
func (s *Store) TierInfo(agentID string) models.TierInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.getOrCreateLocked(agentID)
	return InfoForTier(TierForScore(rec.Score))
}

// RecordConfusionOutcome increments one of the four confusion counters.
// Purely observational; the score is untouched.
func (s *Store) RecordConfusionOutcome(agentID string, outcome models.ConfusionOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.getOrCreateLocked(agentID)
	switch outcome {
	case models.OutcomeTruePositive:
		rec.ConfusionMatrix.TP++
	case models.OutcomeTrueNegative:
		rec.ConfusionMatrix.TN++
	case models.OutcomeFalsePositive:
		rec.ConfusionMatrix.FP++
	case models.OutcomeFalseNegative:
		rec.ConfusionMatrix.FN++
	}
}

// RecordCalibrationAttempt updates the attempt/success counters consumed
// by the rehabilitation policy.
func (s *Store) RecordCalibrationAttempt(agentID string, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.getOrCreateLocked(agentID)
	rec.CalibrationAttempts++
	if success {
		rec.CalibrationSuccesses++
	}
}

// MeetsThreshold gates subscribers before a claim. Agents never seen
// before pass by default.
func (s *Store) MeetsThreshold(agentID string, threshold float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[agentID]
	if !ok {
		return true
	}
	return rec.Score >= threshold
}

// Get returns a copy of the record without seeding, and whether it exists.
func (s *Store) Get(agentID string) (models.TrustRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[agentID]
	if !ok {
		return models.TrustRecord{}, false
	}
	return copyRecord(rec), true
}

// List returns copies of all records.
func (s *Store) List() []models.TrustRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.TrustRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, copyRecord(rec))
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
