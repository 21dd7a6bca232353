package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"orderdesk/internal/domain"
	"orderdesk/internal/logger"
	"orderdesk/internal/repository"
)

func (s *Service) CreateProduct(ctx context.Context, in domain.ProductInput) (p domain.Product, err error) {
	const op = "service.CreateProduct"

	ctx, span := tracer.Start(ctx, op)
	defer func() { endSpan(span, err) }()

	if err := s.validateProductInput(in); err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	id := s.newID()
	var created domain.Product
	err = s.runTx(ctx, op, func(ctx context.Context, tx repository.Tx) error {
		materials, err := loadMaterials(ctx, tx, in, "", nil)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		product := domain.Product{
			ID:         id,
			Name:       strings.TrimSpace(in.Name),
			CategoryID: in.CategoryID,
			Variants:   buildVariants(in.Variants, materials),
			Images:     in.Images,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.SaveProduct(ctx, &product); err != nil {
			return err
		}
		created = product
		return nil
	})
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info(ctx, "product created", logger.String("product_id", created.ID), logger.String("name", created.Name))
	return created, nil
}

// UpdateProduct replaces the editable fields of a product. Stock history and
// creation time are kept; material snapshots are taken again from the input.
func (s *Service) UpdateProduct(ctx context.Context, id string, in domain.ProductInput) (p domain.Product, err error) {
	const op = "service.UpdateProduct"

	ctx, span := tracer.Start(ctx, op)
	defer func() { endSpan(span, err) }()

	if err := s.validateProductInput(in); err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	var updated domain.Product
	err = s.runTx(ctx, op, func(ctx context.Context, tx repository.Tx) error {
		current, err := tx.Product(ctx, id)
		if err != nil {
			return err
		}
		materials, err := loadMaterials(ctx, tx, in, id, &current)
		if err != nil {
			return err
		}

		current.Name = strings.TrimSpace(in.Name)
		current.CategoryID = in.CategoryID
		current.Images = in.Images
		current.Variants = buildVariants(in.Variants, materials)
		current.UpdatedAt = s.now().UTC()
		if err := tx.SaveProduct(ctx, &current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	const op = "service.GetProduct"

	p, err := s.store.ProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, classify(err))
	}
	return p, nil
}

func (s *Service) ListProducts(ctx context.Context, categoryID string) ([]domain.Product, error) {
	const op = "service.ListProducts"

	products, err := s.store.ListProducts(ctx, strings.TrimSpace(categoryID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	return products, nil
}

func (s *Service) validateProductInput(in domain.ProductInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	if !s.isMaterialCategory(in.CategoryID) {
		return nil
	}
	for _, v := range in.Variants {
		if len(v.Materials) > 0 {
			return fmt.Errorf("%w: products in category %q cannot have materials", domain.ErrValidation, in.CategoryID)
		}
	}
	return nil
}

// loadMaterials reads every distinct material product referenced by the
// input. A reference to the product being edited resolves to self.
func loadMaterials(ctx context.Context, tx repository.Tx, in domain.ProductInput, selfID string, self *domain.Product) (map[string]domain.Product, error) {
	ids := lo.Uniq(lo.FlatMap(in.Variants, func(v domain.VariantInput, _ int) []string {
		return lo.Map(v.Materials, func(m domain.MaterialInput, _ int) string { return m.ID })
	}))

	out := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if id == selfID && self != nil {
			out[id] = *self
			continue
		}
		p, err := tx.Product(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: material product %q does not exist", domain.ErrValidation, id)
		}
		if err != nil {
			return nil, err
		}
		out[id] = p
	}
	return out, nil
}

func buildVariants(inputs []domain.VariantInput, materials map[string]domain.Product) []domain.StockVariant {
	variants := make([]domain.StockVariant, 0, len(inputs))
	for _, in := range inputs {
		v := domain.StockVariant{
			Name:           strings.TrimSpace(in.Name),
			UnitPrice:      in.UnitPrice,
			QuantityOnHand: in.QuantityOnHand,
			Materials: lo.Map(in.Materials, func(m domain.MaterialInput, _ int) domain.Material {
				name := strings.TrimSpace(m.Name)
				if name == "" {
					name = materials[m.ID].Name
				}
				return domain.Material{
					ID:             m.ID,
					Name:           name,
					UnitCost:       m.UnitCost,
					QuantityPerUse: m.QuantityPerUse,
				}
			}),
		}
		v.ApplyCost()
		variants = append(variants, v)
	}
	return variants
}
