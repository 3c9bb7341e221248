package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/unblockhq/unblock/internal/calibration"
	"github.com/unblockhq/unblock/internal/escrow"
	"github.com/unblockhq/unblock/internal/ledger"
	"github.com/unblockhq/unblock/internal/lifecycle"
	"github.com/unblockhq/unblock/internal/logger"
	"github.com/unblockhq/unblock/internal/pubsub"
	"github.com/unblockhq/unblock/internal/registry"
	"github.com/unblockhq/unblock/internal/trust"
	"github.com/unblockhq/unblock/models"
	"github.com/unblockhq/unblock/store"
	"github.com/unblockhq/unblock/types"
)

type fakeClock struct{ now int64 }

func (c *fakeClock) NowMs() int64 {
	c.now++
	return c.now
}

// failingEscrow fails every call so settlement-failure paths can be
// exercised deterministically.
type failingEscrow struct{}

func (failingEscrow) VerifyLockProof(context.Context, string, string, int64) error {
	return errors.New("rail down")
}
func (failingEscrow) ReleaseFull(context.Context, models.Task, string) (string, error) {
	return "", errors.New("rail down")
}
func (failingEscrow) ReleaseSplit(context.Context, models.Task, string, string, float64) (escrow.SplitResult, error) {
	return escrow.SplitResult{}, errors.New("rail down")
}
func (failingEscrow) Refund(context.Context, models.Task) (string, error) {
	return "", errors.New("rail down")
}

// captureRecorder collects ledger entries in memory.
type captureRecorder struct{ entries []ledger.Entry }

func (c *captureRecorder) Record(e ledger.Entry) error {
	c.entries = append(c.entries, e)
	return nil
}

type harness struct {
	orch         *Orchestrator
	tasks        *lifecycle.Service
	trust        *trust.Store
	calibrations *calibration.Store
	registry     *registry.Registry
	broker       *pubsub.Broker
	ledger       *captureRecorder
}

type harnessOption func(*Options)

func withEscrow(svc escrow.Service) harnessOption {
	return func(o *Options) { o.Escrow = svc }
}

func withRand(f func() float64) harnessOption {
	return func(o *Options) { o.Rand = f }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	log := logger.Nop()
	clk := &fakeClock{now: 1000}
	h := &harness{
		tasks:        lifecycle.NewService(store.NewMemoryTaskStore(), clk),
		trust:        trust.NewStore(clk, log),
		calibrations: calibration.NewStore(clk, log),
		registry:     registry.New(clk, log),
		broker:       pubsub.NewBroker(clk, log),
		ledger:       &captureRecorder{},
	}
	options := Options{
		Config:       types.DefaultMarketConfig(),
		Tasks:        h.tasks,
		Trust:        h.trust,
		Calibrations: h.calibrations,
		Escrow:       escrow.NewMock(log),
		Registry:     h.registry,
		Broker:       h.broker,
		Ledger:       h.ledger,
		Clock:        clk,
		Rand:         func() float64 { return 0.99 }, // default: never audit
		Log:          log,
	}
	for _, opt := range opts {
		opt(&options)
	}
	h.orch = New(options)
	return h
}

func (h *harness) createTask(t *testing.T) models.Task {
	t.Helper()
	task, err := h.orch.CreateTask(context.Background(), models.CreateTaskRequest{
		Question:     "Is the food truck parked on 3rd today?",
		BountyAmount: 1000,
		PayerPubkey:  "PayerPubkey",
		LockProof:    "LOCK_1",
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	return task
}

// toFulfilled drives a fresh task to FULFILLED under the given subscriber.
func (h *harness) toFulfilled(t *testing.T, subscriber string) models.Task {
	t.Helper()
	ctx := context.Background()
	task := h.createTask(t)
	if _, err := h.orch.Claim(ctx, task.ID, models.ClaimTaskRequest{SubscriberAgentID: subscriber}); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	fulfilled, err := h.orch.Fulfill(ctx, task.ID, models.SubmitFulfillmentRequest{
		SubscriberAgentID: subscriber,
		FulfillmentText:   "Yes, parked by the fountain.",
	})
	if err != nil {
		t.Fatalf("Fulfill: %v", err)
	}
	return fulfilled
}

func TestClaimGateDeniesLowTrustSubscriber(t *testing.T) {
	h := newHarness(t)
	sub := uuid.NewString()
	// Drop the subscriber below the claim minimum of 10.
	h.trust.ApplyDelta(sub, -45, "past", "repeat disputes", "")

	task := h.createTask(t)
	_, err := h.orch.Claim(context.Background(), task.ID, models.ClaimTaskRequest{SubscriberAgentID: sub})
	if !errors.Is(err, types.ErrCapabilityDenied) {
		t.Fatalf("error = %v, want ErrCapabilityDenied", err)
	}

	current, _ := h.tasks.Get(task.ID)
	if current.Status != models.StatusOpen {
		t.Errorf("status = %s after denied claim, want OPEN", current.Status)
	}
}

func TestSuspendedSupervisorCannotScore(t *testing.T) {
	h := newHarness(t)
	sup := uuid.NewString()
	h.trust.ApplyDelta(sup, -40, "past", "false approvals", "") // 10, suspended

	task := h.toFulfilled(t, uuid.NewString())
	_, err := h.orch.Score(context.Background(), task.ID, models.SubmitScoreRequest{
		SupervisorAgentID: sup,
		Score:             80,
	})
	if !errors.Is(err, types.ErrCapabilityDenied) {
		t.Fatalf("error = %v, want ErrCapabilityDenied", err)
	}
}

func TestStandardSupervisorRoutesToReview(t *testing.T) {
	h := newHarness(t)
	task := h.toFulfilled(t, uuid.NewString())

	res, err := h.orch.Score(context.Background(), task.ID, models.SubmitScoreRequest{
		SupervisorAgentID: uuid.NewString(),
		Score:             85,
	})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if res.AutoApproved {
		t.Error("standard-tier supervisor must not auto-approve")
	}
	if res.Task.Status != models.StatusUnderReview {
		t.Errorf("status = %s, want UNDER_REVIEW", res.Task.Status)
	}
}

func TestAutonomousSupervisorAutoApproves(t *testing.T) {
	h := newHarness(t)
	sup := uuid.NewString()
	sub := uuid.NewString()
	h.trust.ApplyDelta(sup, 30, "past", "track record", "") // 80, autonomous

	task := h.toFulfilled(t, sub)
	res, err := h.orch.Score(context.Background(), task.ID, models.SubmitScoreRequest{
		SupervisorAgentID: sup,
		Score:             85,
	})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if !res.AutoApproved {
		t.Fatal("expected auto-approval")
	}
	if res.Task.Status != models.StatusVerifiedPaid {
		t.Errorf("status = %s, want VERIFIED_PAID", res.Task.Status)
	}
	if !res.Task.AutoApproved {
		t.Error("AutoApproved flag not set on task")
	}
	if !strings.HasPrefix(res.Task.SubscriberPaymentProof, "MOCK_RELEASE_") {
		t.Errorf("payment proof = %q", res.Task.SubscriberPaymentProof)
	}

	supRec, _ := h.trust.Get(sup)
	if supRec.Score != 83 {
		t.Errorf("supervisor score = %v, want 83", supRec.Score)
	}
	if supRec.ConfusionMatrix.TP != 1 {
		t.Errorf("supervisor TP = %d, want 1", supRec.ConfusionMatrix.TP)
	}
	subRec, _ := h.trust.Get(sub)
	if subRec.Score != 53 {
		t.Errorf("subscriber score = %v, want 53", subRec.Score)
	}
}

func TestAutoApprovalRequiresPassingScore(t *testing.T) {
	h := newHarness(t)
	sup := uuid.NewString()
	h.trust.ApplyDelta(sup, 30, "past", "track record", "")

	task := h.toFulfilled(t, uuid.NewString())
	res, err := h.orch.Score(context.Background(), task.ID, models.SubmitScoreRequest{
		SupervisorAgentID: sup,
		Score:             30, // below threshold
	})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if res.AutoApproved || res.Task.Status != models.StatusUnderReview {
		t.Errorf("failing score bypassed review: %+v", res)
	}
}

func TestAuditSampleForcesReview(t *testing.T) {
	h := newHarness(t, withRand(func() float64 { return 0.0 })) // always audit
	sup := uuid.NewString()
	h.trust.ApplyDelta(sup, 30, "past", "track record", "")

	task := h.toFulfilled(t, uuid.NewString())
	res, err := h.orch.Score(context.Background(), task.ID, models.SubmitScoreRequest{
		SupervisorAgentID: sup,
		Score:             85,
	})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if res.AutoApproved {
		t.Error("audited task must not auto-approve")
	}
	if res.Task.Status != models.StatusUnderReview {
		t.Errorf("status = %s, want UNDER_REVIEW", res.Task.Status)
	}
}

func TestLowTrustSubscriberBlocksAutoApproval(t *testing.T) {
	h := newHarness(t)
	sup := uuid.NewString()
	sub := uuid.NewString()
	h.trust.ApplyDelta(sup, 30, "past", "track record", "")
	h.trust.ApplyDelta(sub, -15, "past", "disputed work", "") // 35, below auto-approve min 40

	task := h.toFulfilled(t, sub)
	res, err := h.orch.Score(context.Background(), task.ID, models.SubmitScoreRequest{
		SupervisorAgentID: sup,
		Score:             85,
	})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if res.AutoApproved {
		t.Error("low-trust subscriber work must be reviewed")
	}
}

func verifyAgreeing(t *testing.T, h *harness, taskID string) VerifyResult {
	t.Helper()
	res, err := h.orch.Verify(context.Background(), taskID, models.SubmitVerificationRequest{
		VerifierPubkey:       "VerifierPubkey",
		GroundTruthScore:     90,
		AgreesWithSupervisor: true,
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	return res
}

func TestVerifyAgreementPaysSplitAndSeedsCalibration(t *testing.T) {
	h := newHarness(t)
	sup := uuid.NewString()
	sub := uuid.NewString()

	task := h.toFulfilled(t, sub)
	_, err := h.orch.Score(context.Background(), task.ID, models.SubmitScoreRequest{SupervisorAgentID: sup, Score: 85})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	res := verifyAgreeing(t, h, task.ID)
	if res.Task.Status != models.StatusVerifiedPaid {
		t.Fatalf("status = %s, want VERIFIED_PAID", res.Task.Status)
	}
	if res.Outcome != models.OutcomeTruePositive || res.SupervisorDelta != 3 {
		t.Errorf("outcome = %s delta = %v, want TP +3", res.Outcome, res.SupervisorDelta)
	}
	if !strings.HasPrefix(res.Task.SubscriberPaymentProof, "MOCK_SPLIT_SUB_") ||
		!strings.HasPrefix(res.Task.VerifierPaymentProof, "MOCK_SPLIT_VER_") {
		t.Errorf("split proofs = %q / %q", res.Task.SubscriberPaymentProof, res.Task.VerifierPaymentProof)
	}

	supRec, _ := h.trust.Get(sup)
	if supRec.Score != 53 || supRec.ConfusionMatrix.TP != 1 {
		t.Errorf("supervisor = %v TP=%d, want 53/1", supRec.Score, supRec.ConfusionMatrix.TP)
	}
	subRec, _ := h.trust.Get(sub)
	if subRec.Score != 55 {
		t.Errorf("subscriber = %v, want 55", subRec.Score)
	}

	// The verified task now backs exactly one calibration task.
	pool := h.calibrations.ListFor(uuid.NewString())
	if len(pool) != 1 || pool[0].SourceTaskID != task.ID {
		t.Errorf("calibration pool = %+v", pool)
	}
	if pool[0].GroundTruthScore != 90 || !pool[0].GroundTruthPasses {
		t.Errorf("ground truth = %+v", pool[0])
	}

	// Payout entries landed in the ledger.
	var payouts int
	for _, e := range h.ledger.entries {
		if e.Kind == ledger.KindPayout && e.TaskID == task.ID {
			payouts++
		}
	}
	if payouts != 2 {
		t.Errorf("payout entries = %d, want 2 (subscriber and verifier)", payouts)
	}
}

func TestVerifyDisputePenalizesAndRepublishes(t *testing.T) {
	h := newHarness(t)
	sup := uuid.NewString()
	sub := uuid.NewString()

	task := h.toFulfilled(t, sub)
	_, _ = h.orch.Score(context.Background(), task.ID, models.SubmitScoreRequest{SupervisorAgentID: sup, Score: 85})

	res, err := h.orch.Verify(context.Background(), task.ID, models.SubmitVerificationRequest{
		VerifierPubkey:       "VerifierPubkey",
		GroundTruthScore:     15,
		AgreesWithSupervisor: false,
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Task.Status != models.StatusDisputed {
		t.Fatalf("status = %s, want DISPUTED", res.Task.Status)
	}
	if res.Outcome != models.OutcomeFalsePositive || res.SupervisorDelta != -8 {
		t.Errorf("outcome = %s delta = %v, want FP -8", res.Outcome, res.SupervisorDelta)
	}
	if res.NewTask == nil {
		t.Fatal("dispute did not republish")
	}
	if res.NewTask.PreviousTaskID != task.ID || res.NewTask.AttemptNumber != 2 {
		t.Errorf("lineage = %q attempt %d", res.NewTask.PreviousTaskID, res.NewTask.AttemptNumber)
	}

	supRec, _ := h.trust.Get(sup)
	if supRec.Score != 42 || supRec.ConfusionMatrix.FP != 1 {
		t.Errorf("supervisor = %v FP=%d, want 42/1", supRec.Score, supRec.ConfusionMatrix.FP)
	}
	subRec, _ := h.trust.Get(sub)
	if subRec.Score != 40 {
		t.Errorf("subscriber = %v, want 40", subRec.Score)
	}

	// No payout for a disputed task, and no calibration task either.
	for _, e := range h.ledger.entries {
		if e.Kind == ledger.KindPayout {
			t.Errorf("unexpected payout entry: %+v", e)
		}
	}
	if n := len(h.calibrations.ListFor(uuid.NewString())); n != 0 {
		t.Errorf("calibration pool = %d, want 0", n)
	}
}

func TestVerifyFalseNegativeAndTrueNegative(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Supervisor fails the work; verifier agrees: TN +3.
	sup := uuid.NewString()
	task := h.toFulfilled(t, uuid.NewString())
	_, _ = h.orch.Score(ctx, task.ID, models.SubmitScoreRequest{SupervisorAgentID: sup, Score: 20})
	res, err := h.orch.Verify(ctx, task.ID, models.SubmitVerificationRequest{
		VerifierPubkey: "v", GroundTruthScore: 10, AgreesWithSupervisor: true,
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Outcome != models.OutcomeTrueNegative || res.SupervisorDelta != 3 {
		t.Errorf("outcome = %s delta = %v, want TN +3", res.Outcome, res.SupervisorDelta)
	}
	// Agreement with a failing score still pays out and seeds calibration
	// with a failing ground truth.
	if res.Task.Status != models.StatusVerifiedPaid {
		t.Errorf("status = %s, want VERIFIED_PAID", res.Task.Status)
	}

	// Supervisor fails the work; verifier overrules: FN -3.
	sup2 := uuid.NewString()
	task2 := h.toFulfilled(t, uuid.NewString())
	_, _ = h.orch.Score(ctx, task2.ID, models.SubmitScoreRequest{SupervisorAgentID: sup2, Score: 20})
	res2, err := h.orch.Verify(ctx, task2.ID, models.SubmitVerificationRequest{
		VerifierPubkey: "v", GroundTruthScore: 80, AgreesWithSupervisor: false,
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res2.Outcome != models.OutcomeFalseNegative || res2.SupervisorDelta != -3 {
		t.Errorf("outcome = %s delta = %v, want FN -3", res2.Outcome, res2.SupervisorDelta)
	}
	if res2.Task.Status != models.StatusDisputed {
		t.Errorf("status = %s, want DISPUTED", res2.Task.Status)
	}
}

func TestVerifyEscrowFailureKeepsDecision(t *testing.T) {
	h := newHarness(t, withEscrow(failingEscrow{}))
	sup := uuid.NewString()
	sub := uuid.NewString()

	// CreateTask with a lock proof would hit the failing rail, so omit it.
	ctx := context.Background()
	task, err := h.orch.CreateTask(ctx, models.CreateTaskRequest{
		Question: "q", BountyAmount: 1000, PayerPubkey: "p",
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	_, _ = h.orch.Claim(ctx, task.ID, models.ClaimTaskRequest{SubscriberAgentID: sub})
	_, _ = h.orch.Fulfill(ctx, task.ID, models.SubmitFulfillmentRequest{SubscriberAgentID: sub, FulfillmentText: "a"})
	_, _ = h.orch.Score(ctx, task.ID, models.SubmitScoreRequest{SupervisorAgentID: sup, Score: 85})

	res, err := h.orch.Verify(ctx, task.ID, models.SubmitVerificationRequest{
		VerifierPubkey: "v", GroundTruthScore: 90, AgreesWithSupervisor: true,
	})
	if !errors.Is(err, types.ErrEscrow) {
		t.Fatalf("error = %v, want ErrEscrow", err)
	}
	// The decision stands; only settlement is pending.
	if res.Task.Status != models.StatusVerifiedPaid {
		t.Errorf("status = %s, want VERIFIED_PAID", res.Task.Status)
	}
	if !res.Task.SettlementPending {
		t.Error("SettlementPending not set")
	}
	if res.Task.SubscriberPaymentProof != "" {
		t.Errorf("proof recorded despite failed release: %q", res.Task.SubscriberPaymentProof)
	}

	// Trust effects still applied.
	supRec, _ := h.trust.Get(sup)
	if supRec.Score != 53 {
		t.Errorf("supervisor = %v, want 53", supRec.Score)
	}
}

func TestCreateTaskRejectsBadLockProof(t *testing.T) {
	h := newHarness(t, withEscrow(failingEscrow{}))
	_, err := h.orch.CreateTask(context.Background(), models.CreateTaskRequest{
		Question: "q", BountyAmount: 100, PayerPubkey: "p", LockProof: "BAD",
	})
	if !errors.Is(err, types.ErrEscrow) {
		t.Fatalf("error = %v, want ErrEscrow", err)
	}
}

func TestCalibrationMatchEarnsOnePoint(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sup := uuid.NewString() // the supervisor doing calibration
	h.trust.ApplyDelta(sup, -40, "past", "suspended", "") // 10, suspended

	// Seed the pool from a real verified task scored by someone else.
	grader := uuid.NewString()
	task := h.toFulfilled(t, uuid.NewString())
	_, _ = h.orch.Score(ctx, task.ID, models.SubmitScoreRequest{SupervisorAgentID: grader, Score: 85})
	verifyAgreeing(t, h, task.ID)

	pool := h.calibrations.ListFor(sup)
	if len(pool) != 1 {
		t.Fatalf("pool = %d, want 1", len(pool))
	}
	ct := pool[0]

	res, err := h.orch.ScoreCalibration(ctx, ct.ID, models.SubmitCalibrationScoreRequest{
		SupervisorAgentID: sup,
		Score:             85, // ground truth 90, within tolerance, same side
	})
	if err != nil {
		t.Fatalf("ScoreCalibration: %v", err)
	}
	if !res.Attempt.MatchesGroundTruth || res.Attempt.TrustDelta != 1 {
		t.Errorf("attempt = %+v, want match +1", res.Attempt)
	}

	rec, _ := h.trust.Get(sup)
	if rec.Score != 11 {
		t.Errorf("score = %v, want 11", rec.Score)
	}
	if rec.CalibrationAttempts != 1 || rec.CalibrationSuccesses != 1 {
		t.Errorf("calibration counters = %d/%d", rec.CalibrationAttempts, rec.CalibrationSuccesses)
	}

	// The attempted task no longer shows up for this supervisor.
	if n := len(h.calibrations.ListFor(sup)); n != 0 {
		t.Errorf("pool after attempt = %d, want 0", n)
	}

	// Repeating the attempt is rejected and earns nothing.
	_, err = h.orch.ScoreCalibration(ctx, ct.ID, models.SubmitCalibrationScoreRequest{
		SupervisorAgentID: sup,
		Score:             85,
	})
	if !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("repeat error = %v, want ErrInvalidTransition", err)
	}
	rec, _ = h.trust.Get(sup)
	if rec.Score != 11 {
		t.Errorf("score after repeat = %v, want 11", rec.Score)
	}
}

func TestCalibrationConcurrentAttemptsRecordOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sup := uuid.NewString()
	h.trust.ApplyDelta(sup, -40, "past", "suspended", "") // 10, suspended

	grader := uuid.NewString()
	task := h.toFulfilled(t, uuid.NewString())
	_, _ = h.orch.Score(ctx, task.ID, models.SubmitScoreRequest{SupervisorAgentID: grader, Score: 85})
	verifyAgreeing(t, h, task.ID)

	pool := h.calibrations.ListFor(sup)
	if len(pool) != 1 {
		t.Fatalf("pool = %d, want 1", len(pool))
	}
	ct := pool[0]

	// Racing submissions for the same pair must collapse to one attempt.
	const workers = 16
	var (
		wg        sync.WaitGroup
		successes atomic.Int64
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := h.orch.ScoreCalibration(ctx, ct.ID, models.SubmitCalibrationScoreRequest{
				SupervisorAgentID: sup,
				Score:             85,
			})
			switch {
			case err == nil:
				successes.Add(1)
			case !errors.Is(err, types.ErrInvalidTransition):
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if n := successes.Load(); n != 1 {
		t.Fatalf("successful attempts = %d, want 1", n)
	}
	rec, _ := h.trust.Get(sup)
	if rec.Score != 11 {
		t.Errorf("score = %v, want 11", rec.Score)
	}
	if rec.CalibrationAttempts != 1 || rec.CalibrationSuccesses != 1 {
		t.Errorf("calibration counters = %d/%d, want 1/1", rec.CalibrationAttempts, rec.CalibrationSuccesses)
	}
	if n := len(h.calibrations.AttemptsFor(sup)); n != 1 {
		t.Errorf("recorded attempts = %d, want 1", n)
	}
}

func TestCalibrationMismatchEarnsNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sup := uuid.NewString()

	grader := uuid.NewString()
	task := h.toFulfilled(t, uuid.NewString())
	_, _ = h.orch.Score(ctx, task.ID, models.SubmitScoreRequest{SupervisorAgentID: grader, Score: 85})
	verifyAgreeing(t, h, task.ID) // ground truth 90

	ct := h.calibrations.ListFor(sup)[0]
	res, err := h.orch.ScoreCalibration(ctx, ct.ID, models.SubmitCalibrationScoreRequest{
		SupervisorAgentID: sup,
		Score:             62, // right side of threshold, magnitude off by 28
	})
	if err != nil {
		t.Fatalf("ScoreCalibration: %v", err)
	}
	if res.Attempt.MatchesGroundTruth || res.Attempt.TrustDelta != 0 {
		t.Errorf("attempt = %+v, want mismatch +0", res.Attempt)
	}

	rec, _ := h.trust.Get(sup)
	if rec.Score != 50 {
		t.Errorf("score = %v, want unchanged 50", rec.Score)
	}
	if rec.CalibrationAttempts != 1 || rec.CalibrationSuccesses != 0 {
		t.Errorf("calibration counters = %d/%d", rec.CalibrationAttempts, rec.CalibrationSuccesses)
	}
}

func TestCalibrationRehabilitationScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sup := uuid.NewString()
	h.trust.ApplyDelta(sup, -36, "past", "suspended at 14", "")

	// Real scoring is denied while suspended.
	blocked := h.toFulfilled(t, uuid.NewString())
	if _, err := h.orch.Score(ctx, blocked.ID, models.SubmitScoreRequest{SupervisorAgentID: sup, Score: 70}); !errors.Is(err, types.ErrCapabilityDenied) {
		t.Fatalf("suspended score error = %v, want ErrCapabilityDenied", err)
	}

	// Seed a calibration task and match it: 14 -> 15 crosses into probation.
	grader := uuid.NewString()
	task := h.toFulfilled(t, uuid.NewString())
	_, _ = h.orch.Score(ctx, task.ID, models.SubmitScoreRequest{SupervisorAgentID: grader, Score: 85})
	verifyAgreeing(t, h, task.ID)

	ct := h.calibrations.ListFor(sup)[0]
	res, err := h.orch.ScoreCalibration(ctx, ct.ID, models.SubmitCalibrationScoreRequest{SupervisorAgentID: sup, Score: 88})
	if err != nil {
		t.Fatalf("ScoreCalibration: %v", err)
	}
	if res.Tier.Tier != models.TierProbation {
		t.Fatalf("tier = %v, want probation", res.Tier.Tier)
	}

	// Back on probation, real scoring works again.
	retry := h.toFulfilled(t, uuid.NewString())
	if _, err := h.orch.Score(ctx, retry.ID, models.SubmitScoreRequest{SupervisorAgentID: sup, Score: 70}); err != nil {
		t.Fatalf("probation score: %v", err)
	}
}

func TestTrustClimbToAutonomous(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sup := uuid.NewString()

	// Ten agreeing verifications climb the supervisor from 50 to 80.
	for i := 0; i < 10; i++ {
		task := h.toFulfilled(t, uuid.NewString())
		if _, err := h.orch.Score(ctx, task.ID, models.SubmitScoreRequest{SupervisorAgentID: sup, Score: 85}); err != nil {
			t.Fatalf("Score %d: %v", i, err)
		}
		verifyAgreeing(t, h, task.ID)
	}

	rec, _ := h.trust.Get(sup)
	if rec.Score != 80 {
		t.Fatalf("score = %v, want 80", rec.Score)
	}
	if !h.trust.TierInfo(sup).CanAutoApprove {
		t.Error("supervisor at 80 cannot auto-approve")
	}

	// The next passing score from this supervisor auto-approves.
	task := h.toFulfilled(t, uuid.NewString())
	res, err := h.orch.Score(ctx, task.ID, models.SubmitScoreRequest{SupervisorAgentID: sup, Score: 85})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if !res.AutoApproved {
		t.Error("expected auto-approval after climbing to autonomous")
	}
}

func TestLegacyConfirmEscrowFailure(t *testing.T) {
	h := newHarness(t, withEscrow(failingEscrow{}))
	ctx := context.Background()
	task, err := h.orch.CreateTask(ctx, models.CreateTaskRequest{
		Question: "q", BountyAmount: 100, PayerPubkey: "p",
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if _, err := h.orch.Answer(ctx, task.ID, models.SubmitAnswerRequest{ResolverPubkey: "r", AnswerText: "a"}); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	confirmed, err := h.orch.Confirm(ctx, task.ID)
	if !errors.Is(err, types.ErrEscrow) {
		t.Fatalf("error = %v, want ErrEscrow", err)
	}
	if confirmed.Status != models.StatusConfirmedPaid {
		t.Errorf("status = %s, want CONFIRMED_PAID", confirmed.Status)
	}
	if !confirmed.SettlementPending {
		t.Error("SettlementPending not set")
	}
}

func TestLegacyRejectRefunds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	task, _ := h.orch.CreateTask(ctx, models.CreateTaskRequest{
		Question: "q", BountyAmount: 100, PayerPubkey: "p",
	})
	_, _ = h.orch.Answer(ctx, task.ID, models.SubmitAnswerRequest{ResolverPubkey: "r", AnswerText: "a"})

	rejected, err := h.orch.Reject(ctx, task.ID)
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != models.StatusRejectedRefunded {
		t.Errorf("status = %s, want REJECTED_REFUNDED", rejected.Status)
	}
	if rejected.RefundProof != fmt.Sprintf("MOCK_REFUND_%s", task.ID) {
		t.Errorf("refund proof = %q", rejected.RefundProof)
	}
}

func TestTrustLedgerEntriesRecorded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sup := uuid.NewString()

	task := h.toFulfilled(t, uuid.NewString())
	_, _ = h.orch.Score(ctx, task.ID, models.SubmitScoreRequest{SupervisorAgentID: sup, Score: 85})
	verifyAgreeing(t, h, task.ID)

	var trustEntries int
	for _, e := range h.ledger.entries {
		if e.Kind == ledger.KindTrust {
			trustEntries++
			if e.TimestampMs == 0 {
				t.Error("trust entry missing timestamp")
			}
		}
	}
	// Supervisor confusion delta plus subscriber verified bonus.
	if trustEntries != 2 {
		t.Errorf("trust entries = %d, want 2", trustEntries)
	}
}
