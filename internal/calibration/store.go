// Package calibration derives practice tasks from verified real tasks and
// tracks which suspended supervisors have attempted which practice task.
package calibration

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/unblockhq/unblock/internal/clock"
	"github.com/unblockhq/unblock/models"
	"github.com/unblockhq/unblock/types"
)

// Store holds calibration tasks and attempts. Creation is idempotent per
// source task; a supervisor never sees the same calibration task twice.
type Store struct {
	mu          sync.Mutex
	tasks       map[string]*models.CalibrationTask
	bySource    map[string]string // source task id -> calibration task id
	attempts    []models.CalibrationAttempt
	attemptedBy map[string]map[string]bool // calibration task id -> supervisor ids
	clock       clock.Clock
	log         logrus.FieldLogger
}

// NewStore creates an empty calibration store.
func NewStore(clk clock.Clock, log logrus.FieldLogger) *Store {
	return &Store{
		tasks:       make(map[string]*models.CalibrationTask),
		bySource:    make(map[string]string),
		attemptedBy: make(map[string]map[string]bool),
		clock:       clk,
		log:         log,
	}
}

// CreateFromVerified derives a calibration task from a verified-paid task,
// snapshotting the question, context and fulfillment text and taking the
// ground truth from the verifier's review. Calling it again with the same
// source task returns the existing calibration task unchanged.
func (s *Store) CreateFromVerified(task models.Task, threshold float64) models.CalibrationTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.bySource[task.ID]; ok {
		return *s.tasks[id]
	}

	var fulfillmentText string
	if task.Fulfillment != nil {
		fulfillmentText = task.Fulfillment.FulfillmentText
	}
	var groundTruth float64
	if task.VerifierReview != nil {
		groundTruth = task.VerifierReview.GroundTruthScore
	}

	ct := &models.CalibrationTask{
		ID:                uuid.New().String(),
		SourceTaskID:      task.ID,
		Question:          task.Question,
		Context:           task.Context,
		FulfillmentText:   fulfillmentText,
		GroundTruthScore:  groundTruth,
		GroundTruthPasses: groundTruth >= threshold,
		CreatedAtMs:       s.clock.NowMs(),
	}
	s.tasks[ct.ID] = ct
	s.bySource[task.ID] = ct.ID

	s.log.WithFields(logrus.Fields{
		"calibrationTask": ct.ID,
		"sourceTask":      task.ID,
	}).Info("calibration task created")
	return *ct
}

// Get retrieves a calibration task by id.
func (s *Store) Get(id string) (models.CalibrationTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ct, ok := s.tasks[id]
	if !ok {
		return models.CalibrationTask{}, types.NewTaskError(types.ErrNotFound, id, "calibration task not found")
	}
	return *ct, nil
}

// ListFor returns the calibration tasks the given supervisor has never
// attempted, guaranteeing a fresh, non-repeating practice set.
func (s *Store) ListFor(supervisorAgentID string) []models.CalibrationTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.CalibrationTask, 0, len(s.tasks))
	for _, ct := range s.tasks {
		if !s.attemptedBy[ct.ID][supervisorAgentID] {
			out = append(out, *ct)
		}
	}
	return out
}

// RecordAttempt stores the attempt and marks the supervisor as having
// attempted the calibration task.
func (s *Store) RecordAttempt(attempt models.CalibrationAttempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, attempt)
	set, ok := s.attemptedBy[attempt.CalibrationTaskID]
	if !ok {
		set = make(map[string]bool)
		s.attemptedBy[attempt.CalibrationTaskID] = set
	}
	set[attempt.SupervisorAgentID] = true
}

// Attempted reports whether the supervisor has already attempted the
// given calibration task.
func (s *Store) Attempted(calibrationTaskID, supervisorAgentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attemptedBy[calibrationTaskID][supervisorAgentID]
}

// AttemptsFor returns the attempts a supervisor has made, oldest first.
func (s *Store) AttemptsFor(supervisorAgentID string) []models.CalibrationAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CalibrationAttempt
	for _, a := range s.attempts {
		if a.SupervisorAgentID == supervisorAgentID {
			out = append(out, a)
		}
	}
	return out
}

// MatchesGroundTruth applies the calibration match rule: the supervisor
// must land on the correct side of the threshold AND within tolerance of
// the ground-truth magnitude. Picking the right side by chance with a
// wildly wrong score does not count.
func MatchesGroundTruth(ct models.CalibrationTask, score, threshold, tolerance float64) bool {
	passes := score >= threshold
	diff := score - ct.GroundTruthScore
	if diff < 0 {
		diff = -diff
	}
	return passes == ct.GroundTruthPasses && diff <= tolerance
}
