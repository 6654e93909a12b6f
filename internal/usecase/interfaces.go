package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/domain"
)

// AccountRepository defines data access for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByRef(ctx context.Context, ref string) (*domain.Account, error)
	// GetByRefsForUpdate locks the named accounts with row-level locks.
	// Callers must pass refs in sorted order to avoid lock-order deadlocks.
	GetByRefsForUpdate(ctx context.Context, tx Tx, refs []string) ([]*domain.Account, error)
	UpdateBalance(ctx context.Context, tx Tx, id string, balance decimal.Decimal, updatedAt time.Time) error
	List(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

// TransactionRepository defines data access for transaction records.
type TransactionRepository interface {
	// Create persists a record outside any caller-managed transaction.
	// Used for FAILED records, which must survive the rollback of the
	// transfer they describe.
	Create(ctx context.Context, txn *domain.Transaction) error
	CreateTx(ctx context.Context, tx Tx, txn *domain.Transaction) error
	UpdateStatusTx(ctx context.Context, tx Tx, refID string, status domain.TransactionStatus, errorMessage *string, updatedAt time.Time) error
	GetByRef(ctx context.Context, refID string) (*domain.Transaction, error)
	ListByAccountRef(ctx context.Context, accountRef string, limit, offset int) ([]*domain.Transaction, error)
}

// Tx represents a database transaction.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxManager handles database transaction lifecycle.
type TxManager interface {
	Begin(ctx context.Context) (Tx, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Retrier re-runs an operation on transient storage failures.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}
