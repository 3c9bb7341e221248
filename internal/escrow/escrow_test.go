package escrow

import (
	"context"
	"fmt"
	"testing"

	"github.com/unblockhq/unblock/internal/logger"
	"github.com/unblockhq/unblock/models"
)

func TestSplitAmountsSumToBounty(t *testing.T) {
	cases := []struct {
		bounty  int64
		share   float64
		wantSub int64
		wantVer int64
	}{
		{1000, 0.7, 700, 300},
		{999, 0.7, 699, 300}, // verifier takes the rounding remainder
		{1, 0.7, 0, 1},
		{500, 1.0, 500, 0},
	}
	for _, tc := range cases {
		sub, ver := SplitAmounts(tc.bounty, tc.share)
		if sub != tc.wantSub || ver != tc.wantVer {
			t.Errorf("SplitAmounts(%d, %v) = %d/%d, want %d/%d", tc.bounty, tc.share, sub, ver, tc.wantSub, tc.wantVer)
		}
		if sub+ver != tc.bounty {
			t.Errorf("split of %d does not sum: %d + %d", tc.bounty, sub, ver)
		}
	}
}

func TestMockProofs(t *testing.T) {
	m := NewMock(logger.Nop())
	ctx := context.Background()
	task := models.Task{ID: "task-1", BountyAmount: 1000, PayerPubkey: "payer"}

	if err := m.VerifyLockProof(ctx, "LOCK_x", "payer", 1000); err != nil {
		t.Fatalf("VerifyLockProof: %v", err)
	}

	proof, err := m.ReleaseFull(ctx, task, "recipient")
	if err != nil {
		t.Fatalf("ReleaseFull: %v", err)
	}
	if proof != "MOCK_RELEASE_task-1" {
		t.Errorf("release proof = %q", proof)
	}

	split, err := m.ReleaseSplit(ctx, task, "sub", "ver", 0.7)
	if err != nil {
		t.Fatalf("ReleaseSplit: %v", err)
	}
	if split.SubscriberProof != "MOCK_SPLIT_SUB_task-1" || split.VerifierProof != "MOCK_SPLIT_VER_task-1" {
		t.Errorf("split proofs = %+v", split)
	}
	if split.SubscriberAmount != 700 || split.VerifierAmount != 300 {
		t.Errorf("split amounts = %d/%d", split.SubscriberAmount, split.VerifierAmount)
	}

	refund, err := m.Refund(ctx, task)
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if refund != fmt.Sprintf("MOCK_REFUND_%s", task.ID) {
		t.Errorf("refund proof = %q", refund)
	}
}
