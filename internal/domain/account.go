package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account represents a bank account holding a balance.
//
// ReferenceID is the caller-supplied identifier used everywhere outside
// the storage layer; ID is the storage-assigned key.
type Account struct {
	ID          string
	ReferenceID string
	Balance     decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ValidateDebit checks if the account can be debited by amount without
// going negative.
func (a *Account) ValidateDebit(amount decimal.Decimal) error {
	if a.Balance.LessThan(amount) {
		return &InsufficientBalanceError{Available: a.Balance, Required: amount}
	}
	return nil
}

// ApplyDebit returns the new balance after a debit.
func (a *Account) ApplyDebit(amount decimal.Decimal) decimal.Decimal {
	return a.Balance.Sub(amount)
}

// ApplyCredit returns the new balance after a credit.
func (a *Account) ApplyCredit(amount decimal.Decimal) decimal.Decimal {
	return a.Balance.Add(amount)
}
