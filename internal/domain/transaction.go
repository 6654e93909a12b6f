package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the processing state of a transaction record.
type TransactionStatus string

const (
	// StatusProcessing is the sole initial state, entered once the engine
	// has committed to attempting the balance mutation.
	StatusProcessing TransactionStatus = "PROCESSING"
	// StatusCompleted is a terminal state.
	StatusCompleted TransactionStatus = "COMPLETED"
	// StatusFailed is a terminal state.
	StatusFailed TransactionStatus = "FAILED"
)

// Transaction is the audit record of a single transfer attempt.
//
// Account references are captured verbatim from the request, even when
// the named account does not exist. Once a record reaches a terminal
// state it never changes again.
type Transaction struct {
	ReferenceID           string
	SourceAccountRef      string
	DestinationAccountRef string
	Amount                decimal.Decimal
	Status                TransactionStatus
	ErrorMessage          *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// NewTransaction creates a transaction record in the PROCESSING state.
func NewTransaction(refID, sourceRef, destinationRef string, amount decimal.Decimal, now time.Time) *Transaction {
	return &Transaction{
		ReferenceID:           refID,
		SourceAccountRef:      sourceRef,
		DestinationAccountRef: destinationRef,
		Amount:                amount,
		Status:                StatusProcessing,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// Terminal reports whether the record has reached a terminal state.
func (t *Transaction) Terminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// MarkCompleted transitions the record to COMPLETED.
func (t *Transaction) MarkCompleted(now time.Time) error {
	if t.Terminal() {
		return ErrTerminalTransaction
	}

	t.Status = StatusCompleted
	t.ErrorMessage = nil
	t.UpdatedAt = now

	return nil
}

// MarkFailed transitions the record to FAILED with a reason.
func (t *Transaction) MarkFailed(reason string, now time.Time) error {
	if t.Terminal() {
		return ErrTerminalTransaction
	}

	t.Status = StatusFailed
	t.ErrorMessage = &reason
	t.UpdatedAt = now

	return nil
}
