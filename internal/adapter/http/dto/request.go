package dto

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/usecase"
)

// CreateAccountRequest represents a request to create an account.
type CreateAccountRequest struct {
	AccountID      string `json:"account_id"`
	InitialBalance string `json:"initial_balance"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateAccountRequest) ToUseCaseInput() (usecase.CreateAccountInput, error) {
	balance, err := decimal.NewFromString(r.InitialBalance)
	if err != nil {
		return usecase.CreateAccountInput{}, fmt.Errorf("invalid initial_balance %q: %w", r.InitialBalance, err)
	}

	return usecase.CreateAccountInput{
		ReferenceID:    r.AccountID,
		InitialBalance: balance,
	}, nil
}

// CreateTransactionRequest represents a request to submit a transfer.
// Amount stays a string here: an absent amount reaches the engine as nil
// and is recorded as a failed transaction, not rejected at the edge.
type CreateTransactionRequest struct {
	SourceAccountID      string `json:"source_account_id"`
	DestinationAccountID string `json:"destination_account_id"`
	Amount               string `json:"amount"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateTransactionRequest) ToUseCaseInput() (usecase.ProcessTransactionInput, error) {
	input := usecase.ProcessTransactionInput{
		SourceAccountRef:      r.SourceAccountID,
		DestinationAccountRef: r.DestinationAccountID,
	}

	if r.Amount == "" {
		return input, nil
	}

	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return usecase.ProcessTransactionInput{}, fmt.Errorf("invalid amount %q: %w", r.Amount, err)
	}
	input.Amount = &amount

	return input, nil
}

// PaginationRequest represents pagination parameters.
type PaginationRequest struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
