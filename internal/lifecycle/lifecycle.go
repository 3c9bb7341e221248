// Package lifecycle owns the task state machine. Every transition
// validates the current status, validates the acting identity against any
// binding made earlier in the task's life, and stamps the update time from
// the injected clock. A failed transition makes no change.
package lifecycle

import (
	"github.com/google/uuid"

	"github.com/unblockhq/unblock/internal/clock"
	"github.com/unblockhq/unblock/models"
	"github.com/unblockhq/unblock/store"
	"github.com/unblockhq/unblock/types"
)

// Service performs pure state-machine transitions over tasks held in the
// injected store.
type Service struct {
	store store.TaskStore
	clock clock.Clock
}

// NewService creates a lifecycle service over the given store.
func NewService(st store.TaskStore, clk clock.Clock) *Service {
	return &Service{store: st, clock: clk}
}

// Create opens a new task from a publisher request.
func (s *Service) Create(req models.CreateTaskRequest) (models.Task, error) {
	now := s.clock.NowMs()
	task := models.Task{
		ID:               uuid.New().String(),
		CreatedAtMs:      now,
		UpdatedAtMs:      now,
		Question:         req.Question,
		Context:          req.Context,
		ImageURLs:        req.ImageURLs,
		BountyAmount:     req.BountyAmount,
		PayerPubkey:      req.PayerPubkey,
		LockProof:        req.LockProof,
		Status:           models.StatusOpen,
		PublisherAgentID: req.PublisherAgentID,
	}
	if req.ExpiresInSec > 0 {
		task.ExpiresAtMs = now + req.ExpiresInSec*1000
	}
	if err := s.store.Upsert(task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// Claim binds a subscriber to an open task.
func (s *Service) Claim(taskID, subscriberAgentID string) (models.Task, error) {
	task, err := s.requireStatus(taskID, models.StatusOpen)
	if err != nil {
		return models.Task{}, err
	}
	task.Status = models.StatusClaimed
	task.SubscriberAgentID = subscriberAgentID
	return s.commit(task)
}

// Fulfill records the claimed subscriber's answer. The acting subscriber
// must be the one that claimed.
func (s *Service) Fulfill(taskID string, req models.SubmitFulfillmentRequest) (models.Task, error) {
	task, err := s.requireStatus(taskID, models.StatusClaimed)
	if err != nil {
		return models.Task{}, err
	}
	if task.SubscriberAgentID != req.SubscriberAgentID {
		return models.Task{}, &types.MarketError{
			Kind:    types.ErrIdentityMismatch,
			Message: "fulfillment must come from the claiming subscriber",
			TaskID:  taskID,
			AgentID: req.SubscriberAgentID,
		}
	}
	now := s.clock.NowMs()
	task.Fulfillment = &models.Fulfillment{
		ID:                uuid.New().String(),
		TaskID:            taskID,
		SubscriberAgentID: req.SubscriberAgentID,
		FulfillmentText:   req.FulfillmentText,
		FulfillmentData:   req.FulfillmentData,
		SubmittedAtMs:     now,
	}
	task.Status = models.StatusFulfilled
	return s.commit(task)
}

// SubmitScore records a supervisor score. PassesThreshold is computed here,
// once, with the caller-supplied threshold shared with calibration.
func (s *Service) SubmitScore(taskID string, req models.SubmitScoreRequest, threshold float64) (models.Task, error) {
	task, err := s.requireStatus(taskID, models.StatusFulfilled)
	if err != nil {
		return models.Task{}, err
	}
	now := s.clock.NowMs()
	task.SupervisorScore = &models.SupervisorScore{
		ID:                uuid.New().String(),
		TaskID:            taskID,
		FulfillmentID:     task.Fulfillment.ID,
		SupervisorAgentID: req.SupervisorAgentID,
		Score:             req.Score,
		Reasoning:         req.Reasoning,
		PassesThreshold:   req.Score >= threshold,
		ScoredAtMs:        now,
	}
	task.Status = models.StatusScored
	return s.commit(task)
}

// AssignVerifier routes a scored task to manual review.
func (s *Service) AssignVerifier(taskID string) (models.Task, error) {
	task, err := s.requireStatus(taskID, models.StatusScored)
	if err != nil {
		return models.Task{}, err
	}
	task.Status = models.StatusUnderReview
	return s.commit(task)
}

// AutoApprove bypasses the verifier for a scored task. The routing policy
// deciding when this is allowed lives in the orchestrator.
func (s *Service) AutoApprove(taskID string) (models.Task, error) {
	task, err := s.requireStatus(taskID, models.StatusScored)
	if err != nil {
		return models.Task{}, err
	}
	task.Status = models.StatusVerifiedPaid
	task.AutoApproved = true
	return s.commit(task)
}

// SubmitVerification records the verifier's verdict: VERIFIED_PAID on
// agreement, DISPUTED otherwise.
func (s *Service) SubmitVerification(taskID string, req models.SubmitVerificationRequest) (models.Task, error) {
	task, err := s.requireStatus(taskID, models.StatusUnderReview)
	if err != nil {
		return models.Task{}, err
	}
	now := s.clock.NowMs()
	task.VerifierReview = &models.VerifierReview{
		ID:                   uuid.New().String(),
		TaskID:               taskID,
		FulfillmentID:        task.Fulfillment.ID,
		ScoreID:              task.SupervisorScore.ID,
		VerifierPubkey:       req.VerifierPubkey,
		GroundTruthScore:     req.GroundTruthScore,
		AgreesWithSupervisor: req.AgreesWithSupervisor,
		Feedback:             req.Feedback,
		ReviewedAtMs:         now,
	}
	if req.AgreesWithSupervisor {
		task.Status = models.StatusVerifiedPaid
	} else {
		task.Status = models.StatusDisputed
	}
	return s.commit(task)
}

// Republish creates a new OPEN task from a disputed one, carrying forward
// the question, context, images, bounty and lock proof. The new task links
// back via PreviousTaskID with AttemptNumber incremented (base 1).
func (s *Service) Republish(taskID string) (models.Task, error) {
	task, err := s.requireStatus(taskID, models.StatusDisputed)
	if err != nil {
		return models.Task{}, err
	}
	attempt := task.AttemptNumber
	if attempt == 0 {
		attempt = 1
	}
	now := s.clock.NowMs()
	newTask := models.Task{
		ID:               uuid.New().String(),
		CreatedAtMs:      now,
		UpdatedAtMs:      now,
		Question:         task.Question,
		Context:          task.Context,
		ImageURLs:        task.ImageURLs,
		BountyAmount:     task.BountyAmount,
		PayerPubkey:      task.PayerPubkey,
		LockProof:        task.LockProof,
		Status:           models.StatusOpen,
		PublisherAgentID: task.PublisherAgentID,
		PreviousTaskID:   task.ID,
		AttemptNumber:    attempt + 1,
	}
	if err := s.store.Upsert(newTask); err != nil {
		return models.Task{}, err
	}
	return newTask, nil
}

// SubmitAnswer answers an open task on the legacy single-resolver path.
func (s *Service) SubmitAnswer(taskID string, req models.SubmitAnswerRequest) (models.Task, error) {
	task, err := s.requireStatus(taskID, models.StatusOpen)
	if err != nil {
		return models.Task{}, err
	}
	task.Status = models.StatusAnswered
	task.ResolverPubkey = req.ResolverPubkey
	task.AnswerText = req.AnswerText
	return s.commit(task)
}

// MarkConfirmedPaid confirms a legacy answer and records the release proof.
func (s *Service) MarkConfirmedPaid(taskID, releaseProof string) (models.Task, error) {
	task, err := s.requireStatus(taskID, models.StatusAnswered)
	if err != nil {
		return models.Task{}, err
	}
	task.Status = models.StatusConfirmedPaid
	task.ReleaseProof = releaseProof
	return s.commit(task)
}

// MarkRejectedRefunded rejects a legacy answer and records the refund proof.
func (s *Service) MarkRejectedRefunded(taskID, refundProof string) (models.Task, error) {
	task, err := s.requireStatus(taskID, models.StatusAnswered)
	if err != nil {
		return models.Task{}, err
	}
	task.Status = models.StatusRejectedRefunded
	task.RefundProof = refundProof
	return s.commit(task)
}

// Patch applies bookkeeping updates (payment proofs, settlement flags)
// without a status transition.
func (s *Service) Patch(taskID string, apply func(*models.Task)) (models.Task, error) {
	task, err := s.store.Get(taskID)
	if err != nil {
		return models.Task{}, err
	}
	apply(&task)
	return s.commit(task)
}

// Get returns the current snapshot of a task.
func (s *Service) Get(taskID string) (models.Task, error) {
	return s.store.Get(taskID)
}

// List returns tasks newest-first, optionally filtered by status.
func (s *Service) List(status models.TaskStatus) ([]models.Task, error) {
	if status == "" {
		return s.store.List(nil)
	}
	return s.store.List(func(t models.Task) bool { return t.Status == status })
}

func (s *Service) requireStatus(taskID string, want models.TaskStatus) (models.Task, error) {
	task, err := s.store.Get(taskID)
	if err != nil {
		return models.Task{}, err
	}
	if task.Status != want {
		return models.Task{}, types.NewTaskError(types.ErrInvalidTransition, taskID,
			"task is %s, want %s", task.Status, want)
	}
	return task, nil
}

func (s *Service) commit(task models.Task) (models.Task, error) {
	task.UpdatedAtMs = s.clock.NowMs()
	if err := s.store.Upsert(task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}
