package integration

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/adapter/repository/postgres"
	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
	"github.com/iho/bankledger/tests/testutil"
)

func TestConcurrentTransfers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()

	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()

	pool := testDB.Pool
	accountRepo := postgres.NewAccountRepository(pool)
	transactionRepo := postgres.NewTransactionRepository(pool)
	txManager := postgres.NewTxManager(pool)

	transactionUC := usecase.NewTransactionUseCase(
		txManager,
		accountRepo,
		transactionRepo,
		postgres.NewUUIDGenerator(),
		postgres.NewRetrier(zerolog.Nop()),
		nil,
		nil,
		zerolog.Nop(),
	)

	process := func(source, dest string, amount decimal.Decimal) (*domain.Transaction, error) {
		return transactionUC.ProcessTransaction(ctx, usecase.ProcessTransactionInput{
			SourceAccountRef:      source,
			DestinationAccountRef: dest,
			Amount:                &amount,
		})
	}

	t.Run("concurrent debits cannot overdraw the source", func(t *testing.T) {
		testDB.TruncateAll(ctx)
		testDB.CreateTestAccount(ctx, "ACC-SRC", decimal.RequireFromString("100.00"))
		testDB.CreateTestAccount(ctx, "ACC-DST", decimal.RequireFromString("500.00"))

		// 20 transfers of 10.00 against a balance of 100.00: only 10 can complete.
		numTransfers := 20
		amount := decimal.RequireFromString("10.00")

		var (
			wg        sync.WaitGroup
			completed atomic.Int32
			failed    atomic.Int32
		)

		wg.Add(numTransfers)

		for range numTransfers {
			go func() {
				defer wg.Done()

				txn, err := process("ACC-SRC", "ACC-DST", amount)
				if err != nil {
					t.Errorf("unexpected processing error: %v", err)
					return
				}
				switch txn.Status {
				case domain.StatusCompleted:
					completed.Add(1)
				case domain.StatusFailed:
					failed.Add(1)
				}
			}()
		}

		wg.Wait()

		if completed.Load() != 10 {
			t.Errorf("expected exactly 10 completed transfers, got %d", completed.Load())
		}
		if failed.Load() != 10 {
			t.Errorf("expected 10 failed transfers, got %d", failed.Load())
		}

		if got := testDB.AccountBalance(ctx, "ACC-SRC"); !got.Equal(decimal.Zero) {
			t.Errorf("expected source balance 0, got %s", got)
		}
		if got := testDB.AccountBalance(ctx, "ACC-DST"); !got.Equal(decimal.RequireFromString("600.00")) {
			t.Errorf("expected destination balance 600.00, got %s", got)
		}

		// Every attempt left an audit record, failures included.
		records, err := transactionUC.ListTransactionsByAccount(ctx, usecase.ListTransactionsByAccountInput{
			AccountRef: "ACC-SRC",
			Limit:      100,
		})
		if err != nil {
			t.Fatalf("failed to list transactions: %v", err)
		}
		if len(records) != numTransfers {
			t.Errorf("expected %d audit records, got %d", numTransfers, len(records))
		}
	})

	t.Run("bidirectional transfers do not deadlock", func(t *testing.T) {
		testDB.TruncateAll(ctx)
		testDB.CreateTestAccount(ctx, "ACC-A", decimal.RequireFromString("1000.00"))
		testDB.CreateTestAccount(ctx, "ACC-B", decimal.RequireFromString("1000.00"))

		numPairs := 50
		amount := decimal.RequireFromString("10.00")

		var (
			wg        sync.WaitGroup
			completed atomic.Int32
		)

		wg.Add(numPairs * 2)

		for range numPairs {
			go func() {
				defer wg.Done()

				txn, err := process("ACC-A", "ACC-B", amount)
				if err == nil && txn.Status == domain.StatusCompleted {
					completed.Add(1)
				}
			}()
			go func() {
				defer wg.Done()

				txn, err := process("ACC-B", "ACC-A", amount)
				if err == nil && txn.Status == domain.StatusCompleted {
					completed.Add(1)
				}
			}()
		}

		wg.Wait()

		if completed.Load() != int32(numPairs*2) {
			t.Errorf("expected %d completed transfers, got %d", numPairs*2, completed.Load())
		}

		// Equal opposite transfers cancel out.
		if got := testDB.AccountBalance(ctx, "ACC-A"); !got.Equal(decimal.RequireFromString("1000.00")) {
			t.Errorf("expected ACC-A balance 1000.00, got %s", got)
		}
		if got := testDB.AccountBalance(ctx, "ACC-B"); !got.Equal(decimal.RequireFromString("1000.00")) {
			t.Errorf("expected ACC-B balance 1000.00, got %s", got)
		}
	})
}
