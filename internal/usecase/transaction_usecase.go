package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/infrastructure/metrics"
)

const transactionCacheTTL = 24 * time.Hour

// TransactionUseCase is the transaction-processing engine. It validates a
// transfer request, mutates balances atomically, and records the outcome
// as an immutable audit record. Failed transfers are business outcomes:
// they come back as FAILED records, not as errors.
type TransactionUseCase struct {
	txManager       TxManager
	accountRepo     AccountRepository
	transactionRepo TransactionRepository
	refGen          IDGenerator
	retrier         Retrier
	cache           Cache
	metrics         *metrics.Metrics
	logger          zerolog.Logger
}

// NewTransactionUseCase creates a new TransactionUseCase. retrier, cache
// and metrics are optional.
func NewTransactionUseCase(
	txManager TxManager,
	accountRepo AccountRepository,
	transactionRepo TransactionRepository,
	refGen IDGenerator,
	retrier Retrier,
	cache Cache,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *TransactionUseCase {
	return &TransactionUseCase{
		txManager:       txManager,
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		refGen:          refGen,
		retrier:         retrier,
		cache:           cache,
		metrics:         m,
		logger:          logger,
	}
}

// ProcessTransactionInput represents a transfer request. Amount is a
// pointer so an absent amount can be told apart from zero; both are
// rejected, with different reasons.
type ProcessTransactionInput struct {
	SourceAccountRef      string
	DestinationAccountRef string
	Amount                *decimal.Decimal
}

// ProcessTransaction runs the full transfer pipeline and always returns a
// transaction record with a terminal status. The reference ID is fixed at
// the start and survives every outcome.
func (uc *TransactionUseCase) ProcessTransaction(ctx context.Context, input ProcessTransactionInput) (*domain.Transaction, error) {
	refID := uc.refGen.Generate()
	now := time.Now().UTC()

	logger := uc.logger.With().Str("transaction_ref", refID).Logger()
	logger.Info().
		Str("source", input.SourceAccountRef).
		Str("destination", input.DestinationAccountRef).
		Msg("processing transaction")

	if err := validateRequest(input); err != nil {
		logger.Warn().Err(err).Msg("transaction rejected before account lookup")
		return uc.recordFailure(ctx, refID, input, err, now), nil
	}

	txn, err := uc.execute(ctx, refID, input.SourceAccountRef, input.DestinationAccountRef, *input.Amount, now)
	if err != nil {
		reason := err
		if !isBusinessError(err) {
			// Unexpected storage failure mid-transfer. The database
			// transaction rolled back, so balances are untouched; record
			// the attempt and surface the reason through the record.
			reason = fmt.Errorf("transaction processing error: %v", err)
		}

		logger.Warn().Err(err).Msg("transaction failed")

		return uc.recordFailure(ctx, refID, input, reason, now), nil
	}

	logger.Info().Msg("transaction completed")

	if uc.metrics != nil {
		uc.metrics.TransactionsCompleted.Inc()
		amt, _ := txn.Amount.Float64()
		uc.metrics.TransactionAmount.Observe(amt)
	}

	return txn, nil
}

// execute runs the locked transfer attempt, retrying on transient
// storage failures such as deadlocks. The reference ID does not change
// across retries.
func (uc *TransactionUseCase) execute(ctx context.Context, refID, sourceRef, destinationRef string, amount decimal.Decimal, now time.Time) (*domain.Transaction, error) {
	var result *domain.Transaction

	op := func() error {
		txn, err := uc.attempt(ctx, refID, sourceRef, destinationRef, amount, now)
		if err != nil {
			return err
		}

		result = txn

		return nil
	}

	var err error
	if uc.retrier != nil {
		err = uc.retrier.Retry(ctx, op)
	} else {
		err = op()
	}

	return result, err
}

func (uc *TransactionUseCase) attempt(ctx context.Context, refID, sourceRef, destinationRef string, amount decimal.Decimal, now time.Time) (*domain.Transaction, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Lock in sorted order to avoid lock-order deadlocks between
	// concurrent opposite-direction transfers.
	refs := []string{sourceRef, destinationRef}
	if sourceRef == destinationRef {
		refs = refs[:1]
	}
	sort.Strings(refs)

	accounts, err := uc.accountRepo.GetByRefsForUpdate(ctx, tx, refs)
	if err != nil {
		return nil, err
	}

	byRef := make(map[string]*domain.Account, len(accounts))
	for _, a := range accounts {
		byRef[a.ReferenceID] = a
	}

	// Source is resolved before destination so error messages are
	// deterministic when both are missing.
	source, ok := byRef[sourceRef]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, sourceRef)
	}

	destination, ok := byRef[destinationRef]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, destinationRef)
	}

	// Identity of the resolved rows, not string equality of the refs.
	if source.ID == destination.ID {
		return nil, domain.ErrSameAccount
	}

	if err := source.ValidateDebit(amount); err != nil {
		return nil, err
	}

	txn := domain.NewTransaction(refID, sourceRef, destinationRef, amount, now)
	if err := uc.transactionRepo.CreateTx(ctx, tx, txn); err != nil {
		return nil, err
	}

	if err := uc.accountRepo.UpdateBalance(ctx, tx, source.ID, source.ApplyDebit(amount), now); err != nil {
		return nil, err
	}

	if err := uc.accountRepo.UpdateBalance(ctx, tx, destination.ID, destination.ApplyCredit(amount), now); err != nil {
		return nil, err
	}

	if err := txn.MarkCompleted(now); err != nil {
		return nil, err
	}

	if err := uc.transactionRepo.UpdateStatusTx(ctx, tx, refID, txn.Status, nil, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return txn, nil
}

// recordFailure persists a FAILED record best-effort and returns it. An
// error while saving the record is logged and swallowed so the original
// failure reason is what reaches the caller.
func (uc *TransactionUseCase) recordFailure(ctx context.Context, refID string, input ProcessTransactionInput, reason error, now time.Time) *domain.Transaction {
	amount := decimal.Zero
	if input.Amount != nil {
		amount = *input.Amount
	}

	msg := reason.Error()

	txn := &domain.Transaction{
		ReferenceID:           refID,
		SourceAccountRef:      input.SourceAccountRef,
		DestinationAccountRef: input.DestinationAccountRef,
		Amount:                amount,
		Status:                domain.StatusFailed,
		ErrorMessage:          &msg,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := uc.transactionRepo.Create(ctx, txn); err != nil {
		uc.logger.Error().
			Err(err).
			Str("transaction_ref", refID).
			Msg("could not persist failed transaction record")
	}

	if uc.metrics != nil {
		uc.metrics.TransactionsFailed.WithLabelValues(failureLabel(reason)).Inc()
	}

	return txn
}

// GetTransaction retrieves a transaction record by reference ID. Terminal
// records never change, so they are served through the cache when one is
// configured.
func (uc *TransactionUseCase) GetTransaction(ctx context.Context, refID string) (*domain.Transaction, error) {
	cacheKey := "tx:" + refID

	if uc.cache != nil {
		if raw, err := uc.cache.Get(ctx, cacheKey); err == nil && raw != nil {
			var txn domain.Transaction
			if err := json.Unmarshal(raw, &txn); err == nil {
				return &txn, nil
			}
		}
	}

	txn, err := uc.transactionRepo.GetByRef(ctx, refID)
	if err != nil {
		return nil, err
	}

	if uc.cache != nil && txn.Terminal() {
		if raw, err := json.Marshal(txn); err == nil {
			_ = uc.cache.Set(ctx, cacheKey, raw, transactionCacheTTL)
		}
	}

	return txn, nil
}

// ListTransactionsByAccountInput represents input for listing the audit
// trail of an account.
type ListTransactionsByAccountInput struct {
	AccountRef string
	Limit      int
	Offset     int
}

// ListTransactionsByAccount lists transaction records naming the account
// as source or destination.
func (uc *TransactionUseCase) ListTransactionsByAccount(ctx context.Context, input ListTransactionsByAccountInput) ([]*domain.Transaction, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}
	if input.Limit > 100 {
		input.Limit = 100
	}
	return uc.transactionRepo.ListByAccountRef(ctx, input.AccountRef, input.Limit, input.Offset)
}

// validateRequest applies the structural checks that run before any
// account lookup, in a fixed order.
func validateRequest(input ProcessTransactionInput) error {
	if input.Amount == nil {
		return fmt.Errorf("%w: amount cannot be null", domain.ErrInvalidTransaction)
	}

	if input.SourceAccountRef == "" {
		return fmt.Errorf("%w: source account id cannot be empty", domain.ErrAccountNotFound)
	}

	if input.DestinationAccountRef == "" {
		return fmt.Errorf("%w: destination account id cannot be empty", domain.ErrAccountNotFound)
	}

	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: amount must be positive, got %s", domain.ErrInvalidTransaction, input.Amount)
	}

	return nil
}

func isBusinessError(err error) bool {
	return errors.Is(err, domain.ErrAccountNotFound) ||
		errors.Is(err, domain.ErrSameAccount) ||
		errors.Is(err, domain.ErrInvalidTransaction) ||
		errors.Is(err, domain.ErrInsufficientBalance)
}

func failureLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, domain.ErrSameAccount):
		return "same_account"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, domain.ErrInvalidTransaction):
		return "invalid_transaction"
	default:
		return "storage"
	}
}
