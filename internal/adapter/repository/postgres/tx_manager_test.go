package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
)

type beginErrorPool struct {
	err error
}

func (p *beginErrorPool) Begin(context.Context) (pgx.Tx, error) {
	return nil, p.err
}

func TestTxManagerBeginError(t *testing.T) {
	mockErr := errors.New("begin failed")
	manager := newTxManagerWithPool(&beginErrorPool{err: mockErr})

	tx, err := manager.Begin(context.Background())
	if err == nil || !errors.Is(err, mockErr) {
		t.Fatalf("expected begin error, got err=%v tx=%v", err, tx)
	}
	if tx != nil {
		t.Fatalf("expected nil tx on error, got %v", tx)
	}
}
