package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"orderdesk/internal/domain"
	"orderdesk/internal/repository"
	"orderdesk/internal/repository/memory"
)

var fixedNow = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

func newTestService(store repository.Store, sink ReceiptSink, opts ...func(*Options)) *Service {
	o := Options{
		MaxAttempts:          5,
		TxTimeout:            time.Second,
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     5 * time.Millisecond,
		MaterialCategoryIDs:  []string{"materials", "toppings"},
		Now:                  func() time.Time { return fixedNow },
	}
	for _, fn := range opts {
		fn(&o)
	}
	return New(store, sink, o)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func put(t *testing.T, store repository.Store, p domain.Product) domain.Product {
	t.Helper()
	if p.ID == "" {
		p.ID = gofakeit.UUID()
	}
	if p.Name == "" {
		p.Name = gofakeit.ProductName()
	}
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.SaveProduct(ctx, &p)
	})
	require.NoError(t, err)
	return p
}

func putCustomer(t *testing.T, store repository.Store) domain.Customer {
	t.Helper()
	c := domain.Customer{ID: gofakeit.UUID(), Name: gofakeit.Name(), Phone: gofakeit.Phone()}
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.SaveCustomer(ctx, &c)
	})
	require.NoError(t, err)
	return c
}

func stockOf(t *testing.T, store repository.Store, productID, variant string) int {
	t.Helper()
	p, err := store.ProductByID(context.Background(), productID)
	require.NoError(t, err)
	v, ok := p.Variant(variant)
	require.True(t, ok)
	return v.QuantityOnHand
}

var errLostCommit = errors.New("commit lost")

// flakyStore runs the first failures attempts to completion and then reports
// failWith (a conflict when unset) instead of committing them.
type flakyStore struct {
	repository.Store
	failWith error
	failures atomic.Int32
	calls    atomic.Int32
}

func (f *flakyStore) RunInTx(ctx context.Context, fn repository.TxFunc) error {
	f.calls.Add(1)
	if f.failures.Add(-1) >= 0 {
		err := f.Store.RunInTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			if err := fn(ctx, tx); err != nil {
				return err
			}
			return errLostCommit
		})
		if !errors.Is(err, errLostCommit) {
			return err
		}
		if f.failWith != nil {
			return fmt.Errorf("flaky: %w", f.failWith)
		}
		return fmt.Errorf("flaky: %w", domain.ErrConflict)
	}
	return f.Store.RunInTx(ctx, fn)
}

type receiptSinkMock struct {
	mock.Mock
}

func (m *receiptSinkMock) SendReceipt(ctx context.Context, order domain.Order, orderID string) error {
	args := m.Called(ctx, order, orderID)
	return args.Error(0)
}

func newMemoryStore() *memory.Store { return memory.New() }
