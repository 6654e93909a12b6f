package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// Account errors
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
	ErrInvalidBalance  = errors.New("initial balance must be positive")

	// Transaction errors
	ErrInvalidTransaction  = errors.New("invalid transaction")
	ErrSameAccount         = errors.New("source and destination accounts are the same")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTerminalTransaction = errors.New("transaction already in terminal state")

	// ErrStorage wraps unexpected failures from the persistence layer.
	ErrStorage = errors.New("storage error")
)

// InsufficientBalanceError carries the balances involved in a rejected
// debit for diagnostics and audit messages.
type InsufficientBalanceError struct {
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %s, required %s", e.Available, e.Required)
}

// Is makes the error match ErrInsufficientBalance in errors.Is checks.
func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}
