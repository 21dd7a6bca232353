package memory

import (
	"context"
	"fmt"

	"orderdesk/internal/domain"
)

type docKind uint8

const (
	kindProduct docKind = iota
	kindCustomer
	kindCategory
	kindCategorySet
)

type docKey struct {
	kind docKind
	id   string
}

// staged is a buffered write. expected is the version the document must
// still have at commit; zero means it must not exist yet.
type staged[T any] struct {
	doc      T
	expected int64
}

type tx struct {
	s *Store

	reads map[docKey]int64
	wrote bool

	products   map[string]staged[domain.Product]
	customers  map[string]staged[domain.Customer]
	categories map[string]staged[domain.Category]
	orders     []domain.Order
	logs       []domain.StockLogEntry
}

func newTx(s *Store) *tx {
	return &tx{
		s:          s,
		reads:      make(map[docKey]int64),
		products:   make(map[string]staged[domain.Product]),
		customers:  make(map[string]staged[domain.Customer]),
		categories: make(map[string]staged[domain.Category]),
	}
}

func (t *tx) beforeRead(ctx context.Context) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if t.wrote {
		return fmt.Errorf("%w: read issued after a write in the same transaction", domain.ErrInternal)
	}
	return nil
}

func (t *tx) beforeWrite(ctx context.Context) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	t.wrote = true
	return nil
}

func (t *tx) Product(ctx context.Context, id string) (domain.Product, error) {
	if err := t.beforeRead(ctx); err != nil {
		return domain.Product{}, err
	}
	t.s.mu.RLock()
	p, ok := t.s.products[id]
	t.s.mu.RUnlock()

	t.reads[docKey{kindProduct, id}] = p.Version
	if !ok {
		return domain.Product{}, fmt.Errorf("product %q: %w", id, domain.ErrNotFound)
	}
	return p.Clone(), nil
}

func (t *tx) Customer(ctx context.Context, id string) (domain.Customer, error) {
	if err := t.beforeRead(ctx); err != nil {
		return domain.Customer{}, err
	}
	t.s.mu.RLock()
	c, ok := t.s.customers[id]
	t.s.mu.RUnlock()

	t.reads[docKey{kindCustomer, id}] = c.Version
	if !ok {
		return domain.Customer{}, fmt.Errorf("customer %q: %w", id, domain.ErrNotFound)
	}
	return c, nil
}

func (t *tx) Category(ctx context.Context, id string) (domain.Category, error) {
	if err := t.beforeRead(ctx); err != nil {
		return domain.Category{}, err
	}
	t.s.mu.RLock()
	c, ok := t.s.categories[id]
	t.s.mu.RUnlock()

	t.reads[docKey{kindCategory, id}] = c.Version
	if !ok {
		return domain.Category{}, fmt.Errorf("category %q: %w", id, domain.ErrNotFound)
	}
	return c, nil
}

func (t *tx) Categories(ctx context.Context) ([]domain.Category, error) {
	if err := t.beforeRead(ctx); err != nil {
		return nil, err
	}
	t.s.mu.RLock()
	out := t.s.sortedCategories()
	setVersion := t.s.categorySetVersion
	t.s.mu.RUnlock()

	t.reads[docKey{kind: kindCategorySet}] = setVersion
	for _, c := range out {
		t.reads[docKey{kindCategory, c.ID}] = c.Version
	}
	return out, nil
}

func (t *tx) SaveProduct(ctx context.Context, p *domain.Product) error {
	if err := t.beforeWrite(ctx); err != nil {
		return err
	}
	expected := p.Version
	p.Version++
	t.products[p.ID] = staged[domain.Product]{doc: p.Clone(), expected: expected}
	return nil
}

func (t *tx) SaveCustomer(ctx context.Context, c *domain.Customer) error {
	if err := t.beforeWrite(ctx); err != nil {
		return err
	}
	expected := c.Version
	c.Version++
	t.customers[c.ID] = staged[domain.Customer]{doc: *c, expected: expected}
	return nil
}

func (t *tx) SaveCategory(ctx context.Context, c *domain.Category) error {
	if err := t.beforeWrite(ctx); err != nil {
		return err
	}
	expected := c.Version
	c.Version++
	t.categories[c.ID] = staged[domain.Category]{doc: *c, expected: expected}
	return nil
}

func (t *tx) CreateOrder(ctx context.Context, o domain.Order) error {
	if err := t.beforeWrite(ctx); err != nil {
		return err
	}
	t.orders = append(t.orders, o.Clone())
	return nil
}

func (t *tx) AppendStockLog(ctx context.Context, e domain.StockLogEntry) error {
	if err := t.beforeWrite(ctx); err != nil {
		return err
	}
	t.logs = append(t.logs, e)
	return nil
}

func (t *tx) commit(ctx context.Context) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := t.validate(); err != nil {
		return err
	}

	for id, w := range t.products {
		s.products[id] = w.doc
	}
	for id, w := range t.customers {
		s.customers[id] = w.doc
	}
	for id, w := range t.categories {
		if w.expected == 0 {
			s.categorySetVersion++
		}
		s.categories[id] = w.doc
	}
	for _, o := range t.orders {
		s.orders[o.ID] = o
	}
	s.stockLogs = append(s.stockLogs, t.logs...)
	return nil
}

// validate must be called with s.mu held.
func (t *tx) validate() error {
	s := t.s
	for key, seen := range t.reads {
		var current int64
		switch key.kind {
		case kindProduct:
			current = s.products[key.id].Version
		case kindCustomer:
			current = s.customers[key.id].Version
		case kindCategory:
			current = s.categories[key.id].Version
		case kindCategorySet:
			current = s.categorySetVersion
		}
		if current != seen {
			return fmt.Errorf("%w: document changed since it was read", domain.ErrConflict)
		}
	}

	for id, w := range t.products {
		if s.products[id].Version != w.expected {
			return fmt.Errorf("%w: product %q version mismatch", domain.ErrConflict, id)
		}
	}
	for id, w := range t.customers {
		if s.customers[id].Version != w.expected {
			return fmt.Errorf("%w: customer %q version mismatch", domain.ErrConflict, id)
		}
	}
	for id, w := range t.categories {
		if s.categories[id].Version != w.expected {
			return fmt.Errorf("%w: category %q version mismatch", domain.ErrConflict, id)
		}
	}
	for _, o := range t.orders {
		if _, exists := s.orders[o.ID]; exists {
			return fmt.Errorf("%w: order %q already exists", domain.ErrConflict, o.ID)
		}
	}
	return nil
}
