package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"orderdesk/internal/domain"
)

type tx struct {
	q querier
}

func (t *tx) Product(ctx context.Context, id string) (domain.Product, error) {
	return getProduct(ctx, t.q, id)
}

func (t *tx) Customer(ctx context.Context, id string) (domain.Customer, error) {
	return getCustomer(ctx, t.q, id)
}

func (t *tx) Category(ctx context.Context, id string) (domain.Category, error) {
	var (
		version  int64
		position int
		raw      []byte
	)
	err := t.q.QueryRow(ctx, `SELECT version, position, doc FROM categories WHERE id = $1`, id).
		Scan(&version, &position, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Category{}, fmt.Errorf("category %q: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Category{}, err
	}

	var c domain.Category
	if err := json.Unmarshal(raw, &c); err != nil {
		return domain.Category{}, fmt.Errorf("decode category: %w: %w", domain.ErrInternal, err)
	}
	c.Version, c.Position = version, position
	return c, nil
}

func (t *tx) Categories(ctx context.Context) ([]domain.Category, error) {
	return listCategories(ctx, t.q)
}

func (t *tx) SaveProduct(ctx context.Context, p *domain.Product) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode product: %w: %w", domain.ErrInternal, err)
	}

	if p.Version == 0 {
		query, args, err := psql.Insert("products").
			Columns("id", "name", "category_id", "version", "doc", "created_at", "updated_at").
			Values(p.ID, p.Name, p.CategoryID, 1, doc, p.CreatedAt, p.UpdatedAt).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := t.q.Exec(ctx, query, args...); err != nil {
			return err
		}
		p.Version = 1
		return nil
	}

	query, args, err := psql.Update("products").
		Set("name", p.Name).
		Set("category_id", p.CategoryID).
		Set("version", p.Version+1).
		Set("doc", doc).
		Set("updated_at", p.UpdatedAt).
		Where("id = ? AND version = ?", p.ID, p.Version).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if err := t.execVersioned(ctx, "product", p.ID, query, args); err != nil {
		return err
	}
	p.Version++
	return nil
}

func (t *tx) SaveCustomer(ctx context.Context, c *domain.Customer) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode customer: %w: %w", domain.ErrInternal, err)
	}

	if c.Version == 0 {
		query, args, err := psql.Insert("customers").
			Columns("id", "version", "doc", "created_at").
			Values(c.ID, 1, doc, c.CreatedAt).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := t.q.Exec(ctx, query, args...); err != nil {
			return err
		}
		c.Version = 1
		return nil
	}

	query, args, err := psql.Update("customers").
		Set("version", c.Version+1).
		Set("doc", doc).
		Where("id = ? AND version = ?", c.ID, c.Version).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if err := t.execVersioned(ctx, "customer", c.ID, query, args); err != nil {
		return err
	}
	c.Version++
	return nil
}

func (t *tx) SaveCategory(ctx context.Context, c *domain.Category) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode category: %w: %w", domain.ErrInternal, err)
	}

	if c.Version == 0 {
		query, args, err := psql.Insert("categories").
			Columns("id", "position", "version", "doc").
			Values(c.ID, c.Position, 1, doc).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := t.q.Exec(ctx, query, args...); err != nil {
			return err
		}
		c.Version = 1
		return nil
	}

	query, args, err := psql.Update("categories").
		Set("position", c.Position).
		Set("version", c.Version+1).
		Set("doc", doc).
		Where("id = ? AND version = ?", c.ID, c.Version).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if err := t.execVersioned(ctx, "category", c.ID, query, args); err != nil {
		return err
	}
	c.Version++
	return nil
}

func (t *tx) CreateOrder(ctx context.Context, o domain.Order) error {
	doc, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode order: %w: %w", domain.ErrInternal, err)
	}

	var customerID *string
	if o.CustomerID != "" {
		customerID = &o.CustomerID
	}
	query, args, err := psql.Insert("orders").
		Columns("id", "customer_id", "doc", "created_at").
		Values(o.ID, customerID, doc, o.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	_, err = t.q.Exec(ctx, query, args...)
	return err
}

func (t *tx) AppendStockLog(ctx context.Context, e domain.StockLogEntry) error {
	doc, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode stock log: %w: %w", domain.ErrInternal, err)
	}

	var orderID *string
	if e.OrderID != "" {
		orderID = &e.OrderID
	}
	query, args, err := psql.Insert("stock_logs").
		Columns("id", "product_id", "order_id", "doc", "created_at").
		Values(e.ID, e.ProductID, orderID, doc, e.Timestamp).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	_, err = t.q.Exec(ctx, query, args...)
	return err
}

func (t *tx) execVersioned(ctx context.Context, kind, id, query string, args []any) error {
	tag, err := t.q.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s %q changed since it was read", domain.ErrConflict, kind, id)
	}
	return nil
}

func getProduct(ctx context.Context, q querier, id string) (domain.Product, error) {
	row := q.QueryRow(ctx, `SELECT version, doc FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("product %q: %w", id, domain.ErrNotFound)
	}
	return p, err
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var (
		version int64
		raw     []byte
	)
	if err := row.Scan(&version, &raw); err != nil {
		return domain.Product{}, err
	}
	var p domain.Product
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.Product{}, fmt.Errorf("decode product: %w: %w", domain.ErrInternal, err)
	}
	p.Version = version
	return p, nil
}

func getCustomer(ctx context.Context, q querier, id string) (domain.Customer, error) {
	var (
		version int64
		raw     []byte
	)
	err := q.QueryRow(ctx, `SELECT version, doc FROM customers WHERE id = $1`, id).Scan(&version, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Customer{}, fmt.Errorf("customer %q: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Customer{}, err
	}
	var c domain.Customer
	if err := json.Unmarshal(raw, &c); err != nil {
		return domain.Customer{}, fmt.Errorf("decode customer: %w: %w", domain.ErrInternal, err)
	}
	c.Version = version
	return c, nil
}

func listCategories(ctx context.Context, q querier) ([]domain.Category, error) {
	rows, err := q.Query(ctx, `SELECT version, position, doc FROM categories ORDER BY position, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Category, 0)
	for rows.Next() {
		var (
			version  int64
			position int
			raw      []byte
		)
		if err := rows.Scan(&version, &position, &raw); err != nil {
			return nil, err
		}
		var c domain.Category
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decode category: %w: %w", domain.ErrInternal, err)
		}
		c.Version, c.Position = version, position
		out = append(out, c)
	}
	return out, rows.Err()
}
