package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

// TransactionRepository implements usecase.TransactionRepository.
//
// Account references are stored as plain strings with no foreign keys:
// FAILED records may name accounts that never existed, and they still
// belong in the audit trail.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

const insertTransaction = `
	INSERT INTO transactions (
		reference_id, source_account_ref, destination_account_ref,
		amount, status, error_message, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

// Create persists a record on its own connection, outside any
// caller-managed transaction.
func (r *TransactionRepository) Create(ctx context.Context, txn *domain.Transaction) error {
	_, err := r.pool.Exec(ctx, insertTransaction, insertArgs(txn)...)
	if err != nil {
		return fmt.Errorf("%w: create transaction: %w", domain.ErrStorage, err)
	}

	return nil
}

// CreateTx persists a record inside the given transaction.
func (r *TransactionRepository) CreateTx(ctx context.Context, tx usecase.Tx, txn *domain.Transaction) error {
	pgxTx := tx.(*Tx).PgxTx()

	_, err := pgxTx.Exec(ctx, insertTransaction, insertArgs(txn)...)
	if err != nil {
		return fmt.Errorf("%w: create transaction: %w", domain.ErrStorage, err)
	}

	return nil
}

// UpdateStatusTx transitions a record's status inside the given
// transaction. Rows already in a terminal state are never touched.
func (r *TransactionRepository) UpdateStatusTx(ctx context.Context, tx usecase.Tx, refID string, status domain.TransactionStatus, errorMessage *string, updatedAt time.Time) error {
	pgxTx := tx.(*Tx).PgxTx()

	query := `
		UPDATE transactions
		SET status = $2, error_message = $3, updated_at = $4
		WHERE reference_id = $1 AND status = 'PROCESSING'
	`

	tag, err := pgxTx.Exec(ctx, query, refID, string(status), errorMessage, timeToPgTimestamptz(updatedAt))
	if err != nil {
		return fmt.Errorf("%w: update transaction status: %w", domain.ErrStorage, err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrTerminalTransaction
	}

	return nil
}

// GetByRef retrieves a transaction record by reference ID.
func (r *TransactionRepository) GetByRef(ctx context.Context, refID string) (*domain.Transaction, error) {
	query := `
		SELECT reference_id, source_account_ref, destination_account_ref,
		       amount, status, error_message, created_at, updated_at
		FROM transactions
		WHERE reference_id = $1
	`

	txn, err := scanTransaction(r.pool.QueryRow(ctx, query, refID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}

		return nil, fmt.Errorf("%w: get transaction: %w", domain.ErrStorage, err)
	}

	return txn, nil
}

// ListByAccountRef lists records naming the account as source or
// destination, newest first.
func (r *TransactionRepository) ListByAccountRef(ctx context.Context, accountRef string, limit, offset int) ([]*domain.Transaction, error) {
	query := `
		SELECT reference_id, source_account_ref, destination_account_ref,
		       amount, status, error_message, created_at, updated_at
		FROM transactions
		WHERE source_account_ref = $1 OR destination_account_ref = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, accountRef, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions: %w", domain.ErrStorage, err)
	}
	defer rows.Close()

	var txns []*domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan transaction: %w", domain.ErrStorage, err)
		}

		txns = append(txns, txn)
	}

	return txns, rows.Err()
}

func insertArgs(txn *domain.Transaction) []any {
	return []any{
		txn.ReferenceID,
		txn.SourceAccountRef,
		txn.DestinationAccountRef,
		decimalToNumeric(txn.Amount),
		string(txn.Status),
		txn.ErrorMessage,
		timeToPgTimestamptz(txn.CreatedAt),
		timeToPgTimestamptz(txn.UpdatedAt),
	}
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		txn       domain.Transaction
		amount    pgtype.Numeric
		status    string
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)

	err := row.Scan(
		&txn.ReferenceID,
		&txn.SourceAccountRef,
		&txn.DestinationAccountRef,
		&amount,
		&status,
		&txn.ErrorMessage,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.Amount = numericToDecimal(amount)
	txn.Status = domain.TransactionStatus(status)
	txn.CreatedAt = createdAt.Time
	txn.UpdatedAt = updatedAt.Time

	return &txn, nil
}
