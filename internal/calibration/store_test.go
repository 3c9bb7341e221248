package calibration

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/unblockhq/unblock/internal/logger"
	"github.com/unblockhq/unblock/models"
	"github.com/unblockhq/unblock/types"
)

type fakeClock struct{ now int64 }

func (c *fakeClock) NowMs() int64 {
	c.now++
	return c.now
}

func newTestStore() *Store {
	return NewStore(&fakeClock{now: 1000}, logger.Nop())
}

func verifiedTask(groundTruth float64) models.Task {
	id := uuid.New().String()
	return models.Task{
		ID:       id,
		Question: "Is the gate open?",
		Context:  "north entrance",
		Status:   models.StatusVerifiedPaid,
		Fulfillment: &models.Fulfillment{
			ID:              uuid.New().String(),
			TaskID:          id,
			FulfillmentText: "Gate is open, photo attached.",
		},
		VerifierReview: &models.VerifierReview{
			ID:               uuid.New().String(),
			TaskID:           id,
			GroundTruthScore: groundTruth,
		},
	}
}

func TestCreateFromVerifiedSnapshots(t *testing.T) {
	s := newTestStore()
	src := verifiedTask(85)

	ct := s.CreateFromVerified(src, 60)
	if ct.SourceTaskID != src.ID {
		t.Errorf("source = %q, want %q", ct.SourceTaskID, src.ID)
	}
	if ct.Question != src.Question || ct.FulfillmentText != "Gate is open, photo attached." {
		t.Errorf("snapshot wrong: %+v", ct)
	}
	if ct.GroundTruthScore != 85 || !ct.GroundTruthPasses {
		t.Errorf("ground truth = %v passes=%v", ct.GroundTruthScore, ct.GroundTruthPasses)
	}
}

func TestCreateFromVerifiedFailingGroundTruth(t *testing.T) {
	s := newTestStore()
	ct := s.CreateFromVerified(verifiedTask(30), 60)
	if ct.GroundTruthPasses {
		t.Error("ground truth 30 against threshold 60 must not pass")
	}
}

func TestCreateFromVerifiedIdempotentPerSource(t *testing.T) {
	s := newTestStore()
	src := verifiedTask(85)

	first := s.CreateFromVerified(src, 60)
	second := s.CreateFromVerified(src, 60)
	if first.ID != second.ID {
		t.Error("same source task produced two calibration tasks")
	}
	if n := len(s.ListFor("fresh-supervisor")); n != 1 {
		t.Errorf("pool size = %d, want 1", n)
	}
}

func TestGetUnknown(t *testing.T) {
	s := newTestStore()
	if _, err := s.Get("nope"); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestListForOmitsAttempted(t *testing.T) {
	s := newTestStore()
	a := s.CreateFromVerified(verifiedTask(85), 60)
	b := s.CreateFromVerified(verifiedTask(40), 60)

	s.RecordAttempt(models.CalibrationAttempt{
		ID:                uuid.New().String(),
		CalibrationTaskID: a.ID,
		SupervisorAgentID: "sup-1",
		Score:             80,
	})

	remaining := s.ListFor("sup-1")
	if len(remaining) != 1 || remaining[0].ID != b.ID {
		t.Errorf("remaining = %+v, want just %s", remaining, b.ID)
	}

	// Other supervisors still see both.
	if n := len(s.ListFor("sup-2")); n != 2 {
		t.Errorf("other supervisor pool = %d, want 2", n)
	}

	if !s.Attempted(a.ID, "sup-1") {
		t.Error("Attempted did not record")
	}
	if s.Attempted(b.ID, "sup-1") {
		t.Error("Attempted reported a task never tried")
	}
}

func TestAttemptsForFiltersBySupervisor(t *testing.T) {
	s := newTestStore()
	ct := s.CreateFromVerified(verifiedTask(85), 60)
	s.RecordAttempt(models.CalibrationAttempt{ID: uuid.New().String(), CalibrationTaskID: ct.ID, SupervisorAgentID: "sup-1"})
	s.RecordAttempt(models.CalibrationAttempt{ID: uuid.New().String(), CalibrationTaskID: ct.ID, SupervisorAgentID: "sup-2"})

	if n := len(s.AttemptsFor("sup-1")); n != 1 {
		t.Errorf("attempts for sup-1 = %d, want 1", n)
	}
}

func TestMatchesGroundTruthRule(t *testing.T) {
	passing := models.CalibrationTask{GroundTruthScore: 80, GroundTruthPasses: true}
	nearPass := models.CalibrationTask{GroundTruthScore: 65, GroundTruthPasses: true}
	failing := models.CalibrationTask{GroundTruthScore: 30, GroundTruthPasses: false}

	cases := []struct {
		name  string
		ct    models.CalibrationTask
		score float64
		want  bool
	}{
		{"right side within tolerance", passing, 75, true},
		{"right side at tolerance edge", passing, 65, true},
		{"right side but too far off", passing, 100, false},
		{"wrong side even though close in magnitude", nearPass, 55, false},
		{"failing ground truth matched", failing, 25, true},
		{"failing ground truth wrong side", failing, 70, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MatchesGroundTruth(tc.ct, tc.score, 60, 15); got != tc.want {
				t.Errorf("MatchesGroundTruth(score=%v) = %v, want %v", tc.score, got, tc.want)
			}
		})
	}
}
