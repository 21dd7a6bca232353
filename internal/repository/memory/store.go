package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"orderdesk/internal/domain"
	"orderdesk/internal/repository"
)

// Store keeps versioned documents in process memory. Transactions buffer
// their writes and validate every version they read when committing, so two
// attempts that touched the same document cannot both succeed.
type Store struct {
	mu sync.RWMutex

	products   map[string]domain.Product
	customers  map[string]domain.Customer
	categories map[string]domain.Category
	orders     map[string]domain.Order
	stockLogs  []domain.StockLogEntry

	// bumped on every category insert; guards full-list reads against phantoms
	categorySetVersion int64
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		products:   make(map[string]domain.Product),
		customers:  make(map[string]domain.Customer),
		categories: make(map[string]domain.Category),
		orders:     make(map[string]domain.Order),
	}
}

func (s *Store) RunInTx(ctx context.Context, fn repository.TxFunc) error {
	const op = "memory.RunInTx"

	if err := ctxErr(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	t := newTx(s)
	if err := fn(ctx, t); err != nil {
		if cerr := ctxErr(ctx); cerr != nil && !domain.HasKind(err) {
			return fmt.Errorf("%s: %w", op, cerr)
		}
		return err
	}

	if err := t.commit(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) ProductByID(ctx context.Context, id string) (domain.Product, error) {
	if err := ctxErr(ctx); err != nil {
		return domain.Product{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %q: %w", id, domain.ErrNotFound)
	}
	return p.Clone(), nil
}

func (s *Store) ListProducts(ctx context.Context, categoryID string) ([]domain.Product, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if categoryID != "" && p.CategoryID != categoryID {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CustomerByID(ctx context.Context, id string) (domain.Customer, error) {
	if err := ctxErr(ctx); err != nil {
		return domain.Customer{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return domain.Customer{}, fmt.Errorf("customer %q: %w", id, domain.ErrNotFound)
	}
	return c, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedCategories(), nil
}

func (s *Store) sortedCategories() []domain.Category {
	out := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sortCategories(out)
	return out
}

func (s *Store) OrderByID(ctx context.Context, id string) (domain.Order, error) {
	if err := ctxErr(ctx); err != nil {
		return domain.Order{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("order %q: %w", id, domain.ErrNotFound)
	}
	return o.Clone(), nil
}

func (s *Store) OrdersBetween(ctx context.Context, start, end time.Time) ([]domain.Order, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Order, 0)
	for _, o := range s.orders {
		if o.CreatedAt.Before(start) || o.CreatedAt.After(end) {
			continue
		}
		out = append(out, o.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) StockLogs(ctx context.Context, filter repository.StockLogFilter) ([]domain.StockLogEntry, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	limit := repository.NormalizeLimit(filter.Limit)
	offset := repository.NormalizeOffset(filter.Offset)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.StockLogEntry, 0)
	for i := len(s.stockLogs) - 1; i >= 0; i-- {
		e := s.stockLogs[i]
		if filter.ProductID != "" && e.ProductID != filter.ProductID {
			continue
		}
		out = append(out, e)
	}
	if offset >= len(out) {
		return []domain.StockLogEntry{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return slices.Clone(out), nil
}

func (s *Store) Close(context.Context) error { return nil }

func sortCategories(cs []domain.Category) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Position != cs[j].Position {
			return cs[i].Position < cs[j].Position
		}
		return cs[i].ID < cs[j].ID
	})
}

func ctxErr(ctx context.Context) error {
	err := ctx.Err()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrInternal, err)
	}
}
