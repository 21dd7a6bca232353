package service

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"orderdesk/internal/domain"
	"orderdesk/internal/logger"
	"orderdesk/internal/repository"
)

// CreateCategory appends a category at position = current number of categories.
func (s *Service) CreateCategory(ctx context.Context, in domain.CategoryInput) (domain.Category, error) {
	const op = "service.CreateCategory"

	if err := in.Validate(); err != nil {
		return domain.Category{}, fmt.Errorf("%s: %w", op, err)
	}

	id := s.newID()
	var created domain.Category
	err := s.runTx(ctx, op, func(ctx context.Context, tx repository.Tx) error {
		all, err := tx.Categories(ctx)
		if err != nil {
			return err
		}
		c := domain.Category{
			ID:       id,
			Name:     strings.TrimSpace(in.Name),
			Image:    strings.TrimSpace(in.Image),
			Position: len(all),
		}
		if err := tx.SaveCategory(ctx, &c); err != nil {
			return err
		}
		created = c
		return nil
	})
	if err != nil {
		return domain.Category{}, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	const op = "service.ListCategories"

	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	return categories, nil
}

// ReorderCategories writes the given positions in one transaction. Every
// category missing from assignments is moved to position len(assignments),
// so several of them may share that position.
func (s *Service) ReorderCategories(ctx context.Context, assignments []domain.CategoryPosition) (err error) {
	const op = "service.ReorderCategories"

	ctx, span := tracer.Start(ctx, op)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int("categories.assigned", len(assignments)))

	if err := domain.ValidatePositions(assignments); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	positions := make(map[string]int, len(assignments))
	for _, a := range assignments {
		positions[a.ID] = a.Position
	}
	fallback := len(assignments)

	err = s.runTx(ctx, op, func(ctx context.Context, tx repository.Tx) error {
		for _, a := range assignments {
			if _, err := tx.Category(ctx, a.ID); err != nil {
				return err
			}
		}
		all, err := tx.Categories(ctx)
		if err != nil {
			return err
		}

		for i := range all {
			c := &all[i]
			want, ok := positions[c.ID]
			if !ok {
				want = fallback
			}
			if c.Position == want {
				continue
			}
			c.Position = want
			if err := tx.SaveCategory(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info(ctx, "categories reordered", logger.Int("assigned", len(assignments)))
	return nil
}
