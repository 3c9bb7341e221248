// Package orchestrator composes the lifecycle, trust, calibration and
// escrow subsystems on each externally triggered event. Trust gating,
// audit sampling and the payment-split policy all live here.
package orchestrator

import (
	"context"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/unblockhq/unblock/internal/calibration"
	"github.com/unblockhq/unblock/internal/clock"
	"github.com/unblockhq/unblock/internal/escrow"
	"github.com/unblockhq/unblock/internal/ledger"
	"github.com/unblockhq/unblock/internal/lifecycle"
	"github.com/unblockhq/unblock/internal/pubsub"
	"github.com/unblockhq/unblock/internal/registry"
	"github.com/unblockhq/unblock/internal/trust"
	"github.com/unblockhq/unblock/models"
	"github.com/unblockhq/unblock/types"
)

// Trust deltas. False approvals are penalized hardest: letting bad work
// reach a paid outcome costs more than being overly strict.
const (
	deltaTruePositive  = 3
	deltaTrueNegative  = 3
	deltaFalsePositive = -8
	deltaFalseNegative = -3

	deltaAutoApproveSupervisor = 3
	deltaAutoApproveSubscriber = 3
	deltaSubscriberVerified    = 5
	deltaSubscriberDisputed    = -10
	deltaCalibrationMatch      = 1
)

// Orchestrator routes every external event through capability checks, one
// lifecycle transition, and the payment/trust side effects that follow.
type Orchestrator struct {
	cfgMu        sync.RWMutex
	cfg          types.MarketConfig
	tasks        *lifecycle.Service
	trust        *trust.Store
	calibrations *calibration.Store
	escrow       escrow.Service
	registry     *registry.Registry
	broker       *pubsub.Broker
	ledger       ledger.Recorder
	clock        clock.Clock
	rand         func() float64
	log          logrus.FieldLogger
	taskLocks    *keyedMutex
}

// Options bundles the orchestrator's collaborators.
type Options struct {
	Config       types.MarketConfig
	Tasks        *lifecycle.Service
	Trust        *trust.Store
	Calibrations *calibration.Store
	Escrow       escrow.Service
	Registry     *registry.Registry
	Broker       *pubsub.Broker
	Ledger       ledger.Recorder
	Clock        clock.Clock
	// Rand is the audit-sampling source, returning uniform values in
	// [0,1). Injected so tests can force either branch.
	Rand func() float64
	Log  logrus.FieldLogger
}

// New creates an orchestrator. A nil Rand falls back to math/rand and a
// nil Ledger to a discarding recorder.
func New(opts Options) *Orchestrator {
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}
	if opts.Ledger == nil {
		opts.Ledger = ledger.Discard{}
	}
	return &Orchestrator{
		cfg:          opts.Config,
		tasks:        opts.Tasks,
		trust:        opts.Trust,
		calibrations: opts.Calibrations,
		escrow:       opts.Escrow,
		registry:     opts.Registry,
		broker:       opts.Broker,
		ledger:       opts.Ledger,
		clock:        opts.Clock,
		rand:         opts.Rand,
		log:          opts.Log,
		taskLocks:    newKeyedMutex(),
	}
}

// SetConfig swaps the policy knobs at runtime. In-flight operations keep
// the snapshot they started with.
func (o *Orchestrator) SetConfig(cfg types.MarketConfig) {
	o.cfgMu.Lock()
	o.cfg = cfg
	o.cfgMu.Unlock()
}

func (o *Orchestrator) config() types.MarketConfig {
	o.cfgMu.RLock()
	defer o.cfgMu.RUnlock()
	return o.cfg
}

// ScoreResult is the outcome of a score submission.
type ScoreResult struct {
	Task         models.Task
	AutoApproved bool
}

// VerifyResult is the outcome of a verification.
type VerifyResult struct {
	Task            models.Task
	NewTask         *models.Task // set when a dispute republished the task
	Outcome         models.ConfusionOutcome
	SupervisorDelta float64
}

// CalibrationResult is the outcome of scoring a practice task.
type CalibrationResult struct {
	Attempt models.CalibrationAttempt
	Tier    models.TierInfo
}

// CreateTask verifies the bounty lock proof (when present) and opens the
// task.
func (o *Orchestrator) CreateTask(ctx context.Context, req models.CreateTaskRequest) (models.Task, error) {
	if err := models.ValidateStruct(req); err != nil {
		return models.Task{}, &types.MarketError{Kind: types.ErrValidation, Message: err.Error()}
	}
	if req.LockProof != "" {
		if err := o.escrow.VerifyLockProof(ctx, req.LockProof, req.PayerPubkey, req.BountyAmount); err != nil {
			return models.Task{}, &types.MarketError{Kind: types.ErrEscrow, Message: "lock proof rejected: " + err.Error()}
		}
	}
	task, err := o.tasks.Create(req)
	if err != nil {
		return models.Task{}, err
	}
	o.broker.Publish("tasks/"+task.ID+"/created", map[string]any{"taskId": task.ID, "status": task.Status})
	return task, nil
}

// Claim gates the subscriber's trust and binds them to the task.
func (o *Orchestrator) Claim(ctx context.Context, taskID string, req models.ClaimTaskRequest) (models.Task, error) {
	if err := models.ValidateStruct(req); err != nil {
		return models.Task{}, &types.MarketError{Kind: types.ErrValidation, Message: err.Error()}
	}
	cfg := o.config()
	if !o.trust.MeetsThreshold(req.SubscriberAgentID, cfg.SubscriberMinClaimTrust) {
		return models.Task{}, types.NewAgentError(types.ErrCapabilityDenied, req.SubscriberAgentID,
			"subscriber trust below claim minimum %.0f", cfg.SubscriberMinClaimTrust)
	}

	unlock := o.taskLocks.lock(taskID)
	defer unlock()

	task, err := o.tasks.Claim(taskID, req.SubscriberAgentID)
	if err != nil {
		return models.Task{}, err
	}
	o.broker.Publish("tasks/"+taskID+"/claimed", map[string]any{"taskId": taskID, "subscriberAgentId": req.SubscriberAgentID})
	return task, nil
}

// Fulfill records the claimed subscriber's answer.
func (o *Orchestrator) Fulfill(ctx context.Context, taskID string, req models.SubmitFulfillmentRequest) (models.Task, error) {
	if err := models.ValidateStruct(req); err != nil {
		return models.Task{}, &types.MarketError{Kind: types.ErrValidation, Message: err.Error()}
	}

	unlock := o.taskLocks.lock(taskID)
	defer unlock()

	task, err := o.tasks.Fulfill(taskID, req)
	if err != nil {
		return models.Task{}, err
	}
	o.broker.Publish("tasks/"+taskID+"/fulfilled", map[string]any{"taskId": taskID, "fulfillmentId": task.Fulfillment.ID})
	return task, nil
}

// Score submits a supervisor score. A suspended supervisor is rejected
// outright; they rehabilitate through the calibration track. When the
// supervisor may auto-approve, the score passes threshold, the subscriber
// is trusted enough, and the audit draw spares the task, the verifier is
// bypassed entirely and the full bounty goes to the subscriber. Otherwise
// the task is routed to manual review.
//
// An escrow failure on the auto-approve payout does not revert the
// transition: the task carries SettlementPending and the error wraps
// types.ErrEscrow alongside the committed result.
func (o *Orchestrator) Score(ctx context.Context, taskID string, req models.SubmitScoreRequest) (ScoreResult, error) {
	if err := models.ValidateStruct(req); err != nil {
		return ScoreResult{}, &types.MarketError{Kind: types.ErrValidation, Message: err.Error()}
	}
	tier := o.trust.TierInfo(req.SupervisorAgentID)
	if !tier.CanScoreRealTasks {
		return ScoreResult{}, types.NewAgentError(types.ErrCapabilityDenied, req.SupervisorAgentID,
			"suspended supervisors cannot score real tasks; use the calibration track")
	}

	cfg := o.config()
	unlock := o.taskLocks.lock(taskID)
	defer unlock()

	task, err := o.tasks.SubmitScore(taskID, req, cfg.SupervisorScoreThreshold)
	if err != nil {
		return ScoreResult{}, err
	}
	score := task.SupervisorScore

	if tier.CanAutoApprove && score.PassesThreshold && task.SubscriberAgentID != "" {
		// Snapshot read; concurrent trust mutation between score
		// submission and this check is accepted.
		subscriberTrust := o.trust.GetOrCreate(task.SubscriberAgentID)
		if subscriberTrust.Score >= cfg.AutoApproveSubscriberMinTrust {
			if audited := o.rand() < cfg.AuditSampleRate; !audited {
				return o.autoApprove(ctx, taskID, req.SupervisorAgentID)
			}
			o.log.WithField("task", taskID).Info("auto-approval sampled for audit")
		}
	}

	task, err = o.tasks.AssignVerifier(taskID)
	if err != nil {
		return ScoreResult{}, err
	}
	o.broker.Publish("tasks/"+taskID+"/scored", map[string]any{"taskId": taskID, "score": req.Score})
	return ScoreResult{Task: task}, nil
}

func (o *Orchestrator) autoApprove(ctx context.Context, taskID, supervisorAgentID string) (ScoreResult, error) {
	task, err := o.tasks.AutoApprove(taskID)
	if err != nil {
		return ScoreResult{}, err
	}
	subscriberID := task.SubscriberAgentID

	var escrowErr error
	proof, err := o.escrow.ReleaseFull(ctx, task, o.registry.PubkeyFor(subscriberID))
	if err != nil {
		escrowErr = types.NewTaskError(types.ErrEscrow, taskID, "auto-approve release failed: %v", err)
		task, _ = o.tasks.Patch(taskID, func(t *models.Task) { t.SettlementPending = true })
	} else {
		task, _ = o.tasks.Patch(taskID, func(t *models.Task) { t.SubscriberPaymentProof = proof })
		o.record(ledger.Entry{TaskID: taskID, AgentID: subscriberID, Kind: ledger.KindPayout,
			Amount: task.BountyAmount, Reason: "auto-approved fulfillment", Proof: proof})
	}

	o.applyTrust(supervisorAgentID, deltaAutoApproveSupervisor, taskID, "auto-approve TP", proof)
	o.trust.RecordConfusionOutcome(supervisorAgentID, models.OutcomeTruePositive)
	o.applyTrust(subscriberID, deltaAutoApproveSubscriber, taskID, "auto-approved fulfillment", proof)

	o.broker.Publish("tasks/"+taskID+"/auto-approved", map[string]any{"taskId": taskID})
	return ScoreResult{Task: task, AutoApproved: true}, escrowErr
}

// Verify adjudicates a scored task. The supervisor's original call is
// classified against the verdict and their trust adjusted; a verified task
// pays out the configured split and seeds a calibration task, a disputed
// one penalizes the subscriber and republishes as a fresh attempt.
//
// On dispute the original bounty lock is left untouched; resolving it
// against the new attempt is the caller's responsibility.
func (o *Orchestrator) Verify(ctx context.Context, taskID string, req models.SubmitVerificationRequest) (VerifyResult, error) {
	if err := models.ValidateStruct(req); err != nil {
		return VerifyResult{}, &types.MarketError{Kind: types.ErrValidation, Message: err.Error()}
	}

	cfg := o.config()
	unlock := o.taskLocks.lock(taskID)
	defer unlock()

	task, err := o.tasks.SubmitVerification(taskID, req)
	if err != nil {
		return VerifyResult{}, err
	}

	score := task.SupervisorScore
	outcome, delta := classify(score.PassesThreshold, req.AgreesWithSupervisor)
	o.applyTrust(score.SupervisorAgentID, delta, taskID, "confusion:"+string(outcome), "")
	o.trust.RecordConfusionOutcome(score.SupervisorAgentID, outcome)

	result := VerifyResult{Task: task, Outcome: outcome, SupervisorDelta: delta}

	if task.Status == models.StatusVerifiedPaid {
		var escrowErr error
		split, err := o.escrow.ReleaseSplit(ctx, task,
			o.registry.PubkeyFor(task.SubscriberAgentID), req.VerifierPubkey, cfg.SubscriberPaymentShare)
		if err != nil {
			escrowErr = types.NewTaskError(types.ErrEscrow, taskID, "split release failed: %v", err)
			task, _ = o.tasks.Patch(taskID, func(t *models.Task) { t.SettlementPending = true })
		} else {
			task, _ = o.tasks.Patch(taskID, func(t *models.Task) {
				t.SubscriberPaymentProof = split.SubscriberProof
				t.VerifierPaymentProof = split.VerifierProof
			})
			o.record(ledger.Entry{TaskID: taskID, AgentID: task.SubscriberAgentID, Kind: ledger.KindPayout,
				Amount: split.SubscriberAmount, Reason: "verified fulfillment", Proof: split.SubscriberProof})
			o.record(ledger.Entry{TaskID: taskID, Kind: ledger.KindPayout,
				Amount: split.VerifierAmount, Reason: "verification reward", Proof: split.VerifierProof})
		}

		o.applyTrust(task.SubscriberAgentID, deltaSubscriberVerified, taskID, "fulfillment verified and paid", "")
		o.calibrations.CreateFromVerified(task, cfg.SupervisorScoreThreshold)

		o.broker.Publish("tasks/"+taskID+"/verified", map[string]any{"taskId": taskID, "status": task.Status})
		result.Task = task
		return result, escrowErr
	}

	// DISPUTED
	o.applyTrust(task.SubscriberAgentID, deltaSubscriberDisputed, taskID, "fulfillment disputed by verifier", "")

	newTask, err := o.tasks.Republish(taskID)
	if err != nil {
		return result, err
	}
	result.NewTask = &newTask

	o.broker.Publish("tasks/"+taskID+"/disputed", map[string]any{"taskId": taskID, "newTaskId": newTask.ID})
	o.broker.Publish("tasks/"+newTask.ID+"/created", map[string]any{"taskId": newTask.ID, "status": newTask.Status})
	return result, nil
}

// ScoreCalibration scores a practice task. A match on both the threshold
// side and the magnitude earns a small +1 climb; every attempt is recorded
// and a supervisor never sees the same calibration task twice.
func (o *Orchestrator) ScoreCalibration(ctx context.Context, calibrationTaskID string, req models.SubmitCalibrationScoreRequest) (CalibrationResult, error) {
	if err := models.ValidateStruct(req); err != nil {
		return CalibrationResult{}, &types.MarketError{Kind: types.ErrValidation, Message: err.Error()}
	}
	unlock := o.taskLocks.lock(calibrationTaskID)
	defer unlock()

	ct, err := o.calibrations.Get(calibrationTaskID)
	if err != nil {
		return CalibrationResult{}, err
	}
	if o.calibrations.Attempted(calibrationTaskID, req.SupervisorAgentID) {
		return CalibrationResult{}, &types.MarketError{
			Kind:    types.ErrInvalidTransition,
			Message: "calibration task already attempted",
			TaskID:  calibrationTaskID,
			AgentID: req.SupervisorAgentID,
		}
	}

	cfg := o.config()
	passes := req.Score >= cfg.SupervisorScoreThreshold
	matches := calibration.MatchesGroundTruth(ct, req.Score, cfg.SupervisorScoreThreshold, cfg.CalibrationScoreTolerance)

	var trustDelta float64
	if matches {
		trustDelta = deltaCalibrationMatch
		o.applyTrust(req.SupervisorAgentID, trustDelta, ct.SourceTaskID, "calibration: correct", "")
	}
	o.trust.RecordCalibrationAttempt(req.SupervisorAgentID, matches)

	attempt := models.CalibrationAttempt{
		ID:                 uuid.New().String(),
		CalibrationTaskID:  ct.ID,
		SupervisorAgentID:  req.SupervisorAgentID,
		Score:              req.Score,
		PassesThreshold:    passes,
		MatchesGroundTruth: matches,
		TrustDelta:         trustDelta,
		AttemptedAtMs:      o.clock.NowMs(),
	}
	o.calibrations.RecordAttempt(attempt)

	return CalibrationResult{Attempt: attempt, Tier: o.trust.TierInfo(req.SupervisorAgentID)}, nil
}

// Answer resolves an open task on the legacy single-resolver path.
func (o *Orchestrator) Answer(ctx context.Context, taskID string, req models.SubmitAnswerRequest) (models.Task, error) {
	if err := models.ValidateStruct(req); err != nil {
		return models.Task{}, &types.MarketError{Kind: types.ErrValidation, Message: err.Error()}
	}

	unlock := o.taskLocks.lock(taskID)
	defer unlock()

	task, err := o.tasks.SubmitAnswer(taskID, req)
	if err != nil {
		return models.Task{}, err
	}
	o.broker.Publish("tasks/"+taskID+"/answered", map[string]any{"taskId": taskID})
	return task, nil
}

// Confirm accepts a legacy answer and releases the full bounty to the
// resolver. The transition commits before the escrow call; a failed
// release leaves the task CONFIRMED_PAID with SettlementPending set.
func (o *Orchestrator) Confirm(ctx context.Context, taskID string) (models.Task, error) {
	unlock := o.taskLocks.lock(taskID)
	defer unlock()

	task, err := o.tasks.MarkConfirmedPaid(taskID, "")
	if err != nil {
		return models.Task{}, err
	}

	proof, err := o.escrow.ReleaseFull(ctx, task, task.ResolverPubkey)
	if err != nil {
		task, _ = o.tasks.Patch(taskID, func(t *models.Task) { t.SettlementPending = true })
		o.broker.Publish("tasks/"+taskID+"/confirmed", map[string]any{"taskId": taskID})
		return task, types.NewTaskError(types.ErrEscrow, taskID, "release failed: %v", err)
	}
	task, _ = o.tasks.Patch(taskID, func(t *models.Task) { t.ReleaseProof = proof })
	o.record(ledger.Entry{TaskID: taskID, Kind: ledger.KindPayout,
		Amount: task.BountyAmount, Reason: "answer confirmed", Proof: proof})
	o.broker.Publish("tasks/"+taskID+"/confirmed", map[string]any{"taskId": taskID})
	return task, nil
}

// Reject refuses a legacy answer and refunds the bounty lock to the payer.
func (o *Orchestrator) Reject(ctx context.Context, taskID string) (models.Task, error) {
	unlock := o.taskLocks.lock(taskID)
	defer unlock()

	task, err := o.tasks.MarkRejectedRefunded(taskID, "")
	if err != nil {
		return models.Task{}, err
	}

	proof, err := o.escrow.Refund(ctx, task)
	if err != nil {
		task, _ = o.tasks.Patch(taskID, func(t *models.Task) { t.SettlementPending = true })
		o.broker.Publish("tasks/"+taskID+"/rejected", map[string]any{"taskId": taskID})
		return task, types.NewTaskError(types.ErrEscrow, taskID, "refund failed: %v", err)
	}
	task, _ = o.tasks.Patch(taskID, func(t *models.Task) { t.RefundProof = proof })
	o.record(ledger.Entry{TaskID: taskID, Kind: ledger.KindRefund,
		Amount: task.BountyAmount, Reason: "answer rejected", Proof: proof})
	o.broker.Publish("tasks/"+taskID+"/rejected", map[string]any{"taskId": taskID})
	return task, nil
}

// classify maps the supervisor's pass/fail call and the verifier's verdict
// to a confusion outcome and trust delta.
func classify(passedThreshold, agrees bool) (models.ConfusionOutcome, float64) {
	switch {
	case passedThreshold && agrees:
		return models.OutcomeTruePositive, deltaTruePositive
	case !passedThreshold && agrees:
		return models.OutcomeTrueNegative, deltaTrueNegative
	case passedThreshold && !agrees:
		return models.OutcomeFalsePositive, deltaFalsePositive
	default:
		return models.OutcomeFalseNegative, deltaFalseNegative
	}
}

func (o *Orchestrator) applyTrust(agentID string, delta float64, taskID, reason, proof string) {
	o.trust.ApplyDelta(agentID, delta, taskID, reason, proof)
	o.record(ledger.Entry{TaskID: taskID, AgentID: agentID, Kind: ledger.KindTrust,
		TrustDelta: delta, Reason: reason, Proof: proof})
}

func (o *Orchestrator) record(entry ledger.Entry) {
	entry.TimestampMs = o.clock.NowMs()
	if err := o.ledger.Record(entry); err != nil {
		o.log.WithError(err).WithField("task", entry.TaskID).Warn("ledger record failed")
	}
}
