// Package escrow abstracts the payment rail the marketplace settles
// bounties against. The core only decides outcomes; moving funds is this
// capability's job, and a failed call never reverts a decided outcome.
package escrow

import (
	"context"

	"github.com/unblockhq/unblock/models"
)

// SplitResult carries the two proofs of a verified split payout.
type SplitResult struct {
	SubscriberProof  string
	VerifierProof    string
	SubscriberAmount int64
	VerifierAmount   int64
}

// Service is the payment rail capability consumed by the orchestrator.
// All operations are fallible; errors surface as types.ErrEscrow wrapped
// by the caller. Escrow calls are the only operations in the core expected
// to block on external I/O, hence the contexts.
type Service interface {
	// VerifyLockProof checks that proof locks at least minAmount from the
	// payer into escrow.
	VerifyLockProof(ctx context.Context, proof, payerPubkey string, minAmount int64) error

	// ReleaseFull releases 100% of the task bounty to the recipient.
	ReleaseFull(ctx context.Context, task models.Task, recipientPubkey string) (string, error)

	// ReleaseSplit splits the bounty between subscriber and verifier.
	// subscriberShare is the subscriber's fraction; the verifier receives
	// the remainder.
	ReleaseSplit(ctx context.Context, task models.Task, subscriberPubkey, verifierPubkey string, subscriberShare float64) (SplitResult, error)

	// Refund returns the bounty lock to the payer.
	Refund(ctx context.Context, task models.Task) (string, error)
}

// SplitAmounts computes the integer split of a bounty. The verifier takes
// the rounding remainder so the two parts always sum to the bounty.
func SplitAmounts(bounty int64, subscriberShare float64) (subscriber, verifier int64) {
	subscriber = int64(float64(bounty) * subscriberShare)
	verifier = bounty - subscriber
	return subscriber, verifier
}
