package mocks

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

// MockTransactionRepository is an in-memory mock of TransactionRepository.
type MockTransactionRepository struct {
	mu           sync.RWMutex
	transactions map[string]*domain.Transaction

	CreateFunc         func(ctx context.Context, txn *domain.Transaction) error
	CreateTxFunc       func(ctx context.Context, tx usecase.Tx, txn *domain.Transaction) error
	UpdateStatusTxFunc func(ctx context.Context, tx usecase.Tx, refID string, status domain.TransactionStatus, errorMessage *string, updatedAt time.Time) error
	GetByRefFunc       func(ctx context.Context, refID string) (*domain.Transaction, error)
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{
		transactions: make(map[string]*domain.Transaction),
	}
}

func (m *MockTransactionRepository) Create(ctx context.Context, txn *domain.Transaction) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, txn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *txn
	m.transactions[txn.ReferenceID] = &cp
	return nil
}

func (m *MockTransactionRepository) CreateTx(ctx context.Context, tx usecase.Tx, txn *domain.Transaction) error {
	if m.CreateTxFunc != nil {
		return m.CreateTxFunc(ctx, tx, txn)
	}
	return m.Create(ctx, txn)
}

func (m *MockTransactionRepository) UpdateStatusTx(ctx context.Context, tx usecase.Tx, refID string, status domain.TransactionStatus, errorMessage *string, updatedAt time.Time) error {
	if m.UpdateStatusTxFunc != nil {
		return m.UpdateStatusTxFunc(ctx, tx, refID, status, errorMessage, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.transactions[refID]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	if txn.Terminal() {
		return domain.ErrTerminalTransaction
	}
	txn.Status = status
	txn.ErrorMessage = errorMessage
	txn.UpdatedAt = updatedAt
	return nil
}

func (m *MockTransactionRepository) GetByRef(ctx context.Context, refID string) (*domain.Transaction, error) {
	if m.GetByRefFunc != nil {
		return m.GetByRefFunc(ctx, refID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if txn, ok := m.transactions[refID]; ok {
		cp := *txn
		return &cp, nil
	}
	return nil, domain.ErrTransactionNotFound
}

func (m *MockTransactionRepository) ListByAccountRef(ctx context.Context, accountRef string, limit, offset int) ([]*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Transaction
	for _, txn := range m.transactions {
		if txn.SourceAccountRef == accountRef || txn.DestinationAccountRef == accountRef {
			cp := *txn
			result = append(result, &cp)
		}
	}
	return result, nil
}

// Stored returns a snapshot of a stored record, or nil.
func (m *MockTransactionRepository) Stored(refID string) *domain.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if txn, ok := m.transactions[refID]; ok {
		cp := *txn
		return &cp
	}
	return nil
}

// MockTxManager is a mock of TxManager.
type MockTxManager struct {
	BeginFunc func(ctx context.Context) (usecase.Tx, error)

	LastTx *MockTx
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

func (m *MockTxManager) Begin(ctx context.Context) (usecase.Tx, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	m.LastTx = &MockTx{}
	return m.LastTx, nil
}

// MockTx is a mock database transaction.
type MockTx struct {
	Committed  bool
	RolledBack bool

	CommitFunc func(ctx context.Context) error
}

func (t *MockTx) Commit(ctx context.Context) error {
	if t.CommitFunc != nil {
		return t.CommitFunc(ctx)
	}
	t.Committed = true
	return nil
}

func (t *MockTx) Rollback(ctx context.Context) error {
	if !t.Committed {
		t.RolledBack = true
	}
	return nil
}

// MockIDGenerator is a mock of IDGenerator.
type MockIDGenerator struct {
	GenerateFunc func() string

	mu      sync.Mutex
	counter int
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return "id-" + strconv.Itoa(m.counter)
}

// MockCache is an in-memory mock of Cache.
type MockCache struct {
	mu     sync.RWMutex
	values map[string][]byte

	GetFunc func(ctx context.Context, key string) ([]byte, error)
	SetFunc func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func NewMockCache() *MockCache {
	return &MockCache{values: make(map[string][]byte)}
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key], nil
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// MockRetrier runs the operation once without retrying.
type MockRetrier struct{}

func NewMockRetrier() *MockRetrier {
	return &MockRetrier{}
}

func (m *MockRetrier) Retry(ctx context.Context, operation func() error) error {
	return operation()
}
