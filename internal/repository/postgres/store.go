package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"orderdesk/internal/domain"
	"orderdesk/internal/repository"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// querier is the subset shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store keeps every document as JSONB next to a version column. Transactions
// run at SERIALIZABLE and updates are conditional on the version read.
type Store struct {
	pool *pgxpool.Pool
}

var _ repository.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) RunInTx(ctx context.Context, fn repository.TxFunc) error {
	const op = "postgres.RunInTx"

	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, classify(ctx, err))
	}
	defer func() { _ = pgTx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(ctx, &tx{q: pgTx}); err != nil {
		return fmt.Errorf("%s: %w", op, classify(ctx, err))
	}
	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: commit: %w", op, classify(ctx, err))
	}
	return nil
}

func (s *Store) ProductByID(ctx context.Context, id string) (domain.Product, error) {
	p, err := getProduct(ctx, s.pool, id)
	if err != nil {
		return domain.Product{}, classify(ctx, err)
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, categoryID string) ([]domain.Product, error) {
	const op = "postgres.ListProducts"

	qb := psql.Select("version", "doc").From("products").OrderBy("lower(name)", "id")
	if categoryID != "" {
		qb = qb.Where(sq.Eq{"category_id": categoryID})
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: build query: %w", op, err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(ctx, err))
	}
	defer rows.Close()

	out := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(ctx, err))
	}
	return out, nil
}

func (s *Store) CustomerByID(ctx context.Context, id string) (domain.Customer, error) {
	c, err := getCustomer(ctx, s.pool, id)
	if err != nil {
		return domain.Customer{}, classify(ctx, err)
	}
	return c, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	cs, err := listCategories(ctx, s.pool)
	if err != nil {
		return nil, classify(ctx, err)
	}
	return cs, nil
}

func (s *Store) OrderByID(ctx context.Context, id string) (domain.Order, error) {
	const op = "postgres.OrderByID"

	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM orders WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("order %q: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("%s: %w", op, classify(ctx, err))
	}

	var o domain.Order
	if err := json.Unmarshal(raw, &o); err != nil {
		return domain.Order{}, fmt.Errorf("%s: decode: %w: %w", op, domain.ErrInternal, err)
	}
	return o, nil
}

func (s *Store) OrdersBetween(ctx context.Context, start, end time.Time) ([]domain.Order, error) {
	const op = "postgres.OrdersBetween"

	query, args, err := psql.Select("doc").
		From("orders").
		Where(sq.GtOrEq{"created_at": start}).
		Where(sq.LtOrEq{"created_at": end}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: build query: %w", op, err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(ctx, err))
	}
	defer rows.Close()

	out := make([]domain.Order, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, classify(ctx, err))
		}
		var o domain.Order
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, fmt.Errorf("%s: decode: %w: %w", op, domain.ErrInternal, err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(ctx, err))
	}
	return out, nil
}

func (s *Store) StockLogs(ctx context.Context, filter repository.StockLogFilter) ([]domain.StockLogEntry, error) {
	const op = "postgres.StockLogs"

	qb := psql.Select("doc").
		From("stock_logs").
		OrderBy("seq DESC").
		Limit(uint64(repository.NormalizeLimit(filter.Limit))).
		Offset(uint64(repository.NormalizeOffset(filter.Offset)))
	if filter.ProductID != "" {
		qb = qb.Where(sq.Eq{"product_id": filter.ProductID})
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: build query: %w", op, err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(ctx, err))
	}
	defer rows.Close()

	out := make([]domain.StockLogEntry, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, classify(ctx, err))
		}
		var e domain.StockLogEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("%s: decode: %w: %w", op, domain.ErrInternal, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(ctx, err))
	}
	return out, nil
}

func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}
