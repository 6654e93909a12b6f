package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
	"github.com/iho/bankledger/internal/usecase/mocks"
)

// accountRepoStub keeps accounts in memory, keyed by reference ID, and
// mutates balances through UpdateBalance like the real repository.
type accountRepoStub struct {
	accounts map[string]*domain.Account

	getByRefsForUpdateFn func(ctx context.Context, tx usecase.Tx, refs []string) ([]*domain.Account, error)
	updateBalanceFn      func(ctx context.Context, tx usecase.Tx, id string, balance decimal.Decimal, updatedAt time.Time) error
}

func newAccountRepoStub(accounts ...*domain.Account) *accountRepoStub {
	s := &accountRepoStub{accounts: make(map[string]*domain.Account)}
	for _, a := range accounts {
		s.accounts[a.ReferenceID] = a
	}
	return s
}

func (s *accountRepoStub) Create(ctx context.Context, account *domain.Account) error {
	s.accounts[account.ReferenceID] = account
	return nil
}

func (s *accountRepoStub) GetByRef(ctx context.Context, ref string) (*domain.Account, error) {
	if a, ok := s.accounts[ref]; ok {
		return a, nil
	}
	return nil, domain.ErrAccountNotFound
}

func (s *accountRepoStub) GetByRefsForUpdate(ctx context.Context, tx usecase.Tx, refs []string) ([]*domain.Account, error) {
	if s.getByRefsForUpdateFn != nil {
		return s.getByRefsForUpdateFn(ctx, tx, refs)
	}
	var result []*domain.Account
	for _, ref := range refs {
		if a, ok := s.accounts[ref]; ok {
			result = append(result, a)
		}
	}
	return result, nil
}

func (s *accountRepoStub) UpdateBalance(ctx context.Context, tx usecase.Tx, id string, balance decimal.Decimal, updatedAt time.Time) error {
	if s.updateBalanceFn != nil {
		return s.updateBalanceFn(ctx, tx, id, balance, updatedAt)
	}
	for _, a := range s.accounts {
		if a.ID == id {
			a.Balance = balance
			a.UpdatedAt = updatedAt
			return nil
		}
	}
	return domain.ErrAccountNotFound
}

func (s *accountRepoStub) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	var result []*domain.Account
	for _, a := range s.accounts {
		result = append(result, a)
	}
	return result, nil
}

func (s *accountRepoStub) balance(ref string) decimal.Decimal {
	return s.accounts[ref].Balance
}

func amountPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func newEngine(accounts *accountRepoStub, txns *mocks.MockTransactionRepository) (*usecase.TransactionUseCase, *mocks.MockTxManager) {
	txMgr := mocks.NewMockTxManager()
	idGen := mocks.NewMockIDGenerator()
	idGen.GenerateFunc = func() string { return "tx-ref-1" }

	uc := usecase.NewTransactionUseCase(
		txMgr, accounts, txns, idGen,
		mocks.NewMockRetrier(), nil, nil, zerolog.Nop(),
	)

	return uc, txMgr
}

func TestTransactionUseCase_ProcessTransaction_Completed(t *testing.T) {
	accounts := newAccountRepoStub(
		&domain.Account{ID: "1", ReferenceID: "A", Balance: decimal.RequireFromString("1000.00")},
		&domain.Account{ID: "2", ReferenceID: "B", Balance: decimal.RequireFromString("500.00")},
	)
	txns := mocks.NewMockTransactionRepository()
	uc, txMgr := newEngine(accounts, txns)

	before := accounts.balance("A").Add(accounts.balance("B"))

	txn, err := uc.ProcessTransaction(context.Background(), usecase.ProcessTransactionInput{
		SourceAccountRef:      "A",
		DestinationAccountRef: "B",
		Amount:                amountPtr("300.00"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if txn.Status != domain.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s (%v)", txn.Status, txn.ErrorMessage)
	}
	if txn.ReferenceID != "tx-ref-1" {
		t.Errorf("expected fixed reference ID, got %s", txn.ReferenceID)
	}
	if txn.ErrorMessage != nil {
		t.Errorf("expected nil error message, got %q", *txn.ErrorMessage)
	}

	if got := accounts.balance("A"); !got.Equal(decimal.RequireFromString("700.00")) {
		t.Errorf("expected source balance 700.00, got %s", got)
	}
	if got := accounts.balance("B"); !got.Equal(decimal.RequireFromString("800.00")) {
		t.Errorf("expected destination balance 800.00, got %s", got)
	}

	// Conservation: the transfer moves money, it does not create it.
	after := accounts.balance("A").Add(accounts.balance("B"))
	if !after.Equal(before) {
		t.Errorf("balance sum changed: before %s, after %s", before, after)
	}

	if txMgr.LastTx == nil || !txMgr.LastTx.Committed {
		t.Error("expected database transaction to be committed")
	}

	stored := txns.Stored("tx-ref-1")
	if stored == nil || stored.Status != domain.StatusCompleted {
		t.Errorf("expected stored COMPLETED record, got %+v", stored)
	}
}

func TestTransactionUseCase_ProcessTransaction_Failures(t *testing.T) {
	tests := []struct {
		name        string
		input       usecase.ProcessTransactionInput
		wantMessage []string
	}{
		{
			name: "insufficient balance",
			input: usecase.ProcessTransactionInput{
				SourceAccountRef:      "A",
				DestinationAccountRef: "B",
				Amount:                amountPtr("1500.00"),
			},
			wantMessage: []string{"insufficient balance", "1000", "1500"},
		},
		{
			name: "same account",
			input: usecase.ProcessTransactionInput{
				SourceAccountRef:      "A",
				DestinationAccountRef: "A",
				Amount:                amountPtr("100.00"),
			},
			wantMessage: []string{"same"},
		},
		{
			name: "source account not found",
			input: usecase.ProcessTransactionInput{
				SourceAccountRef:      "X",
				DestinationAccountRef: "B",
				Amount:                amountPtr("100.00"),
			},
			wantMessage: []string{"account not found", "X"},
		},
		{
			name: "destination account not found",
			input: usecase.ProcessTransactionInput{
				SourceAccountRef:      "A",
				DestinationAccountRef: "Y",
				Amount:                amountPtr("100.00"),
			},
			wantMessage: []string{"account not found", "Y"},
		},
		{
			name: "both missing reports source first",
			input: usecase.ProcessTransactionInput{
				SourceAccountRef:      "X",
				DestinationAccountRef: "Y",
				Amount:                amountPtr("100.00"),
			},
			wantMessage: []string{"account not found", "X"},
		},
		{
			name: "null amount",
			input: usecase.ProcessTransactionInput{
				SourceAccountRef:      "A",
				DestinationAccountRef: "B",
			},
			wantMessage: []string{"amount cannot be null"},
		},
		{
			name: "zero amount",
			input: usecase.ProcessTransactionInput{
				SourceAccountRef:      "A",
				DestinationAccountRef: "B",
				Amount:                amountPtr("0"),
			},
			wantMessage: []string{"amount must be positive"},
		},
		{
			name: "negative amount",
			input: usecase.ProcessTransactionInput{
				SourceAccountRef:      "A",
				DestinationAccountRef: "B",
				Amount:                amountPtr("-5.00"),
			},
			wantMessage: []string{"amount must be positive"},
		},
		{
			name: "empty source ref",
			input: usecase.ProcessTransactionInput{
				SourceAccountRef:      "",
				DestinationAccountRef: "B",
				Amount:                amountPtr("100.00"),
			},
			wantMessage: []string{"source account id cannot be empty"},
		},
		{
			name: "empty destination ref",
			input: usecase.ProcessTransactionInput{
				SourceAccountRef:      "A",
				DestinationAccountRef: "",
				Amount:                amountPtr("100.00"),
			},
			wantMessage: []string{"destination account id cannot be empty"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts := newAccountRepoStub(
				&domain.Account{ID: "1", ReferenceID: "A", Balance: decimal.RequireFromString("1000.00")},
				&domain.Account{ID: "2", ReferenceID: "B", Balance: decimal.RequireFromString("500.00")},
			)
			txns := mocks.NewMockTransactionRepository()
			uc, _ := newEngine(accounts, txns)

			txn, err := uc.ProcessTransaction(context.Background(), tt.input)
			if err != nil {
				t.Fatalf("processing failures must not surface as errors, got %v", err)
			}

			if txn.Status != domain.StatusFailed {
				t.Fatalf("expected FAILED, got %s", txn.Status)
			}
			if txn.ReferenceID != "tx-ref-1" {
				t.Errorf("expected fixed reference ID, got %s", txn.ReferenceID)
			}
			if txn.ErrorMessage == nil {
				t.Fatal("expected error message on FAILED record")
			}
			for _, want := range tt.wantMessage {
				if !strings.Contains(*txn.ErrorMessage, want) {
					t.Errorf("expected message to contain %q, got %q", want, *txn.ErrorMessage)
				}
			}

			// Requested fields are captured verbatim, even when invalid.
			if txn.SourceAccountRef != tt.input.SourceAccountRef {
				t.Errorf("source ref not captured verbatim: %q", txn.SourceAccountRef)
			}
			if txn.DestinationAccountRef != tt.input.DestinationAccountRef {
				t.Errorf("destination ref not captured verbatim: %q", txn.DestinationAccountRef)
			}

			// No-op on failure: balances are untouched.
			if got := accounts.balance("A"); !got.Equal(decimal.RequireFromString("1000.00")) {
				t.Errorf("source balance changed on failure: %s", got)
			}
			if got := accounts.balance("B"); !got.Equal(decimal.RequireFromString("500.00")) {
				t.Errorf("destination balance changed on failure: %s", got)
			}

			// The failure is part of the audit trail.
			stored := txns.Stored("tx-ref-1")
			if stored == nil || stored.Status != domain.StatusFailed {
				t.Errorf("expected stored FAILED record, got %+v", stored)
			}
		})
	}
}

func TestTransactionUseCase_ProcessTransaction_StorageErrorMidTransfer(t *testing.T) {
	accounts := newAccountRepoStub(
		&domain.Account{ID: "1", ReferenceID: "A", Balance: decimal.RequireFromString("1000.00")},
		&domain.Account{ID: "2", ReferenceID: "B", Balance: decimal.RequireFromString("500.00")},
	)
	accounts.updateBalanceFn = func(ctx context.Context, tx usecase.Tx, id string, balance decimal.Decimal, updatedAt time.Time) error {
		return errors.New("connection reset")
	}

	txns := mocks.NewMockTransactionRepository()
	uc, txMgr := newEngine(accounts, txns)

	txn, err := uc.ProcessTransaction(context.Background(), usecase.ProcessTransactionInput{
		SourceAccountRef:      "A",
		DestinationAccountRef: "B",
		Amount:                amountPtr("300.00"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if txn.Status != domain.StatusFailed {
		t.Fatalf("expected FAILED, got %s", txn.Status)
	}
	if txn.ErrorMessage == nil || !strings.Contains(*txn.ErrorMessage, "transaction processing error") {
		t.Errorf("expected processing-error message, got %v", txn.ErrorMessage)
	}

	if txMgr.LastTx == nil || !txMgr.LastTx.RolledBack {
		t.Error("expected database transaction to be rolled back")
	}

	if got := accounts.balance("A"); !got.Equal(decimal.RequireFromString("1000.00")) {
		t.Errorf("source balance changed on storage failure: %s", got)
	}
}

func TestTransactionUseCase_ProcessTransaction_FailedRecordSaveSwallowed(t *testing.T) {
	accounts := newAccountRepoStub(
		&domain.Account{ID: "1", ReferenceID: "A", Balance: decimal.RequireFromString("100.00")},
		&domain.Account{ID: "2", ReferenceID: "B", Balance: decimal.RequireFromString("500.00")},
	)
	txns := mocks.NewMockTransactionRepository()
	txns.CreateFunc = func(ctx context.Context, txn *domain.Transaction) error {
		return errors.New("database down")
	}

	uc, _ := newEngine(accounts, txns)

	txn, err := uc.ProcessTransaction(context.Background(), usecase.ProcessTransactionInput{
		SourceAccountRef:      "A",
		DestinationAccountRef: "B",
		Amount:                amountPtr("500.00"),
	})
	if err != nil {
		t.Fatalf("save failure must be swallowed, got %v", err)
	}

	if txn.Status != domain.StatusFailed {
		t.Fatalf("expected FAILED, got %s", txn.Status)
	}
	if txn.ErrorMessage == nil || !strings.Contains(*txn.ErrorMessage, "insufficient balance") {
		t.Errorf("original failure reason must survive, got %v", txn.ErrorMessage)
	}
}

func TestTransactionUseCase_GetTransaction(t *testing.T) {
	txns := mocks.NewMockTransactionRepository()
	completed := domain.NewTransaction("tx-1", "A", "B", decimal.NewFromInt(100), time.Now().UTC())
	_ = completed.MarkCompleted(time.Now().UTC())
	_ = txns.Create(context.Background(), completed)

	cache := mocks.NewMockCache()
	uc := usecase.NewTransactionUseCase(
		mocks.NewMockTxManager(), newAccountRepoStub(), txns,
		mocks.NewMockIDGenerator(), mocks.NewMockRetrier(), cache, nil, zerolog.Nop(),
	)

	t.Run("get existing transaction", func(t *testing.T) {
		txn, err := uc.GetTransaction(context.Background(), "tx-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if txn.ReferenceID != "tx-1" || txn.Status != domain.StatusCompleted {
			t.Errorf("unexpected record: %+v", txn)
		}
	})

	t.Run("terminal records are cached", func(t *testing.T) {
		raw, _ := cache.Get(context.Background(), "tx:tx-1")
		if raw == nil {
			t.Fatal("expected terminal record in cache")
		}

		// Repeated lookups return the identical record even if the
		// repository stops answering.
		txns.GetByRefFunc = func(ctx context.Context, refID string) (*domain.Transaction, error) {
			return nil, errors.New("unreachable")
		}

		txn, err := uc.GetTransaction(context.Background(), "tx-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if txn.Status != domain.StatusCompleted {
			t.Errorf("expected cached COMPLETED record, got %s", txn.Status)
		}
	})

	t.Run("missing transaction", func(t *testing.T) {
		txns.GetByRefFunc = nil
		_, err := uc.GetTransaction(context.Background(), "nope")
		if !errors.Is(err, domain.ErrTransactionNotFound) {
			t.Errorf("expected ErrTransactionNotFound, got %v", err)
		}
	})
}

func TestTransactionUseCase_ListTransactionsByAccount(t *testing.T) {
	txns := mocks.NewMockTransactionRepository()
	_ = txns.Create(context.Background(), domain.NewTransaction("tx-1", "A", "B", decimal.NewFromInt(10), time.Now().UTC()))
	_ = txns.Create(context.Background(), domain.NewTransaction("tx-2", "C", "A", decimal.NewFromInt(20), time.Now().UTC()))
	_ = txns.Create(context.Background(), domain.NewTransaction("tx-3", "C", "D", decimal.NewFromInt(30), time.Now().UTC()))

	uc := usecase.NewTransactionUseCase(
		mocks.NewMockTxManager(), newAccountRepoStub(), txns,
		mocks.NewMockIDGenerator(), mocks.NewMockRetrier(), nil, nil, zerolog.Nop(),
	)

	result, err := uc.ListTransactionsByAccount(context.Background(), usecase.ListTransactionsByAccountInput{
		AccountRef: "A",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 2 {
		t.Errorf("expected 2 records for account A, got %d", len(result))
	}
}
