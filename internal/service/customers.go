package service

import (
	"context"
	"fmt"
	"strings"

	"orderdesk/internal/domain"
	"orderdesk/internal/repository"
)

func (s *Service) CreateCustomer(ctx context.Context, in domain.CustomerInput) (domain.Customer, error) {
	const op = "service.CreateCustomer"

	if err := in.Validate(); err != nil {
		return domain.Customer{}, fmt.Errorf("%s: %w", op, err)
	}

	c := domain.Customer{
		ID:        s.newID(),
		Name:      strings.TrimSpace(in.Name),
		Phone:     strings.TrimSpace(in.Phone),
		Email:     strings.TrimSpace(in.Email),
		Address:   strings.TrimSpace(in.Address),
		CreatedAt: s.now().UTC(),
	}
	err := s.runTx(ctx, op, func(ctx context.Context, tx repository.Tx) error {
		doc := c
		if err := tx.SaveCustomer(ctx, &doc); err != nil {
			return err
		}
		c.Version = doc.Version
		return nil
	})
	if err != nil {
		return domain.Customer{}, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	const op = "service.GetCustomer"

	c, err := s.store.CustomerByID(ctx, id)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("%s: %w", op, classify(err))
	}
	return c, nil
}
