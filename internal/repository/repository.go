package repository

import (
	"context"
	"time"

	"orderdesk/internal/domain"
)

// TxFunc is one transaction attempt. All reads must be issued before the
// first write; backends may reject a read that follows a write.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is the stock ledger: a transactional document store for products,
// customers, categories, orders and stock logs.
type Store interface {
	// RunInTx runs fn once inside a serializable transaction and commits it.
	// Optimistic check failures surface as domain.ErrConflict and expired
	// deadlines as domain.ErrTimeout; retrying is the caller's decision.
	RunInTx(ctx context.Context, fn TxFunc) error

	ProductByID(ctx context.Context, id string) (domain.Product, error)
	ListProducts(ctx context.Context, categoryID string) ([]domain.Product, error)
	CustomerByID(ctx context.Context, id string) (domain.Customer, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	OrderByID(ctx context.Context, id string) (domain.Order, error)
	// OrdersBetween returns orders with start <= createdAt <= end, oldest first.
	OrdersBetween(ctx context.Context, start, end time.Time) ([]domain.Order, error)
	// StockLogs returns entries newest first.
	StockLogs(ctx context.Context, filter StockLogFilter) ([]domain.StockLogEntry, error)

	Close(ctx context.Context) error
}

// Tx is the view of the store inside one transaction attempt.
//
// Save methods insert when the document Version is zero and otherwise update
// conditionally on the version that was read. On success the document's
// Version is set to the value it will have after commit.
type Tx interface {
	Product(ctx context.Context, id string) (domain.Product, error)
	Customer(ctx context.Context, id string) (domain.Customer, error)
	Category(ctx context.Context, id string) (domain.Category, error)
	Categories(ctx context.Context) ([]domain.Category, error)

	SaveProduct(ctx context.Context, p *domain.Product) error
	SaveCustomer(ctx context.Context, c *domain.Customer) error
	SaveCategory(ctx context.Context, c *domain.Category) error
	CreateOrder(ctx context.Context, o domain.Order) error
	AppendStockLog(ctx context.Context, e domain.StockLogEntry) error
}

type StockLogFilter struct {
	ProductID string
	Limit     int
	Offset    int
}

func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return 200
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func NormalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
