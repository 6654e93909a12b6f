package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/infrastructure/metrics"
)

// AccountUseCase handles account business logic.
type AccountUseCase struct {
	accountRepo AccountRepository
	idGen       IDGenerator
	metrics     *metrics.Metrics
}

// NewAccountUseCase creates a new AccountUseCase.
func NewAccountUseCase(accountRepo AccountRepository, idGen IDGenerator, m *metrics.Metrics) *AccountUseCase {
	return &AccountUseCase{
		accountRepo: accountRepo,
		idGen:       idGen,
		metrics:     m,
	}
}

// CreateAccountInput represents input for creating an account.
type CreateAccountInput struct {
	ReferenceID    string
	InitialBalance decimal.Decimal
}

// CreateAccount creates a new account.
//
// The initial balance must be strictly positive: zero-balance accounts
// are rejected the same way negative ones are.
func (uc *AccountUseCase) CreateAccount(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	if input.InitialBalance.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidBalance
	}

	if _, err := uc.accountRepo.GetByRef(ctx, input.ReferenceID); err == nil {
		return nil, domain.ErrAccountExists
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}

	now := time.Now().UTC()

	account := &domain.Account{
		ID:          uc.idGen.Generate(),
		ReferenceID: input.ReferenceID,
		Balance:     input.InitialBalance,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// The unique constraint on reference_id closes the race between the
	// existence check and the insert; the repository maps the violation
	// back to ErrAccountExists.
	if err := uc.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.AccountsCreated.Inc()
	}

	return account, nil
}

// GetAccount retrieves an account by reference ID.
func (uc *AccountUseCase) GetAccount(ctx context.Context, ref string) (*domain.Account, error) {
	return uc.accountRepo.GetByRef(ctx, ref)
}

// ListAccountsInput represents input for listing accounts.
type ListAccountsInput struct {
	Limit  int
	Offset int
}

// ListAccounts lists accounts with pagination.
func (uc *AccountUseCase) ListAccounts(ctx context.Context, input ListAccountsInput) ([]*domain.Account, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}
	if input.Limit > 100 {
		input.Limit = 100
	}
	return uc.accountRepo.List(ctx, input.Limit, input.Offset)
}
