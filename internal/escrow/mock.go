package escrow

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/unblockhq/unblock/models"
)

// Mock is an in-process rail that fabricates deterministic proof strings.
// It stands in for the real settlement backend in tests and demos.
type Mock struct {
	log logrus.FieldLogger
}

// NewMock creates a mock escrow service.
func NewMock(log logrus.FieldLogger) *Mock {
	return &Mock{log: log}
}

func (m *Mock) VerifyLockProof(_ context.Context, proof, payerPubkey string, minAmount int64) error {
	m.log.WithFields(logrus.Fields{
		"proof": proof,
		"payer": payerPubkey,
		"min":   minAmount,
	}).Debug("mock lock proof accepted")
	return nil
}

func (m *Mock) ReleaseFull(_ context.Context, task models.Task, recipientPubkey string) (string, error) {
	proof := fmt.Sprintf("MOCK_RELEASE_%s", task.ID)
	m.log.WithFields(logrus.Fields{
		"task":      task.ID,
		"recipient": recipientPubkey,
		"amount":    task.BountyAmount,
	}).Info("mock release")
	return proof, nil
}

func (m *Mock) ReleaseSplit(_ context.Context, task models.Task, subscriberPubkey, verifierPubkey string, subscriberShare float64) (SplitResult, error) {
	subAmount, verAmount := SplitAmounts(task.BountyAmount, subscriberShare)
	res := SplitResult{
		SubscriberProof:  fmt.Sprintf("MOCK_SPLIT_SUB_%s", task.ID),
		VerifierProof:    fmt.Sprintf("MOCK_SPLIT_VER_%s", task.ID),
		SubscriberAmount: subAmount,
		VerifierAmount:   verAmount,
	}
	m.log.WithFields(logrus.Fields{
		"task":       task.ID,
		"subscriber": subscriberPubkey,
		"verifier":   verifierPubkey,
		"subAmount":  subAmount,
		"verAmount":  verAmount,
	}).Info("mock split release")
	return res, nil
}

func (m *Mock) Refund(_ context.Context, task models.Task) (string, error) {
	proof := fmt.Sprintf("MOCK_REFUND_%s", task.ID)
	m.log.WithFields(logrus.Fields{
		"task":   task.ID,
		"payer":  task.PayerPubkey,
		"amount": task.BountyAmount,
	}).Info("mock refund")
	return proof, nil
}
