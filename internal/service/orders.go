package service

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"orderdesk/internal/domain"
	"orderdesk/internal/logger"
	"orderdesk/internal/repository"
)

// PlaceOrder deducts stock for every item and the raw materials its variant
// consumes, records the order and bumps the customer's order count, all in
// one transaction. The order id is fixed before the first attempt so retries
// never produce a second order.
func (s *Service) PlaceOrder(ctx context.Context, in domain.PlaceOrderInput) (res domain.PlaceOrderResult, err error) {
	const op = "service.PlaceOrder"

	ctx, span := tracer.Start(ctx, op)
	defer func() { endSpan(span, err) }()

	if err := in.Validate(); err != nil {
		return domain.PlaceOrderResult{}, fmt.Errorf("%s: %w", op, err)
	}

	orderID := s.newID()
	span.SetAttributes(attribute.String("order.id", orderID), attribute.Int("order.items", len(in.Items)))

	var order domain.Order
	err = s.runTx(ctx, op, func(ctx context.Context, tx repository.Tx) error {
		o, err := s.placeOrderAttempt(ctx, tx, orderID, in)
		if err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		s.log.Info(ctx, "order rejected",
			logger.String("order_id", orderID),
			logger.String("kind", domain.KindOf(err)),
			logger.ErrorF(err),
		)
		return domain.PlaceOrderResult{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info(ctx, "order placed",
		logger.String("order_id", order.ID),
		logger.String("production_cost", order.ProductionCost.String()),
	)
	s.dispatchReceipt(ctx, order)

	return domain.PlaceOrderResult{
		OrderID:        order.ID,
		ProductionCost: order.ProductionCost,
		Order:          order,
	}, nil
}

func (s *Service) placeOrderAttempt(ctx context.Context, tx repository.Tx, orderID string, in domain.PlaceOrderInput) (domain.Order, error) {
	now := s.now().UTC()

	var customer *domain.Customer
	if in.CustomerID != "" {
		c, err := tx.Customer(ctx, in.CustomerID)
		if err != nil {
			return domain.Order{}, err
		}
		customer = &c
	}

	// One copy per product id, so a product that is both sold and consumed
	// as a material accumulates every decrement.
	staged := make(map[string]*domain.Product)
	load := func(id string) (*domain.Product, error) {
		if p, ok := staged[id]; ok {
			return p, nil
		}
		p, err := tx.Product(ctx, id)
		if err != nil {
			return nil, err
		}
		staged[id] = &p
		return &p, nil
	}

	items := make([]domain.OrderItem, 0, len(in.Items))
	logs := make([]domain.StockLogEntry, 0)
	productionCost := decimal.Zero

	for _, it := range in.Items {
		p, err := load(it.ProductID)
		if err != nil {
			return domain.Order{}, err
		}
		v, ok := p.Variant(it.VariantName)
		if !ok {
			return domain.Order{}, fmt.Errorf("variant %q of product %q: %w", it.VariantName, p.ID, domain.ErrNotFound)
		}
		if v.QuantityOnHand < it.Quantity {
			return domain.Order{}, fmt.Errorf("%w: %s/%s has %d, ordered %d",
				domain.ErrInsufficientStock, p.Name, v.Name, v.QuantityOnHand, it.Quantity)
		}
		v.QuantityOnHand -= it.Quantity

		unitPrice := it.UnitPrice
		if unitPrice.IsZero() {
			unitPrice = v.UnitPrice
		}
		snapshot := slices.Clone(v.Materials)
		qty := decimal.NewFromInt(int64(it.Quantity))

		items = append(items, domain.OrderItem{
			ProductID:         p.ID,
			ProductName:       p.Name,
			VariantName:       v.Name,
			UnitPrice:         unitPrice,
			Quantity:          it.Quantity,
			Subtotal:          unitPrice.Mul(qty),
			MaterialsSnapshot: snapshot,
		})
		productionCost = productionCost.Add(domain.UnitProductionCost(snapshot).Mul(qty))

		for _, m := range snapshot {
			entry, err := consumeMaterial(load, m, it.Quantity)
			if err != nil {
				return domain.Order{}, err
			}
			if entry == nil {
				continue
			}
			entry.ID = s.newID()
			entry.OrderID = orderID
			entry.Notes = "order " + orderID
			entry.Timestamp = now
			logs = append(logs, *entry)
		}
	}

	order := domain.Order{
		ID:             orderID,
		Items:          items,
		PaymentMethod:  in.PaymentMethod,
		Total:          in.Total,
		ProductionCost: productionCost,
		CustomerID:     in.CustomerID,
		CreatedAt:      now,
	}

	if err := tx.CreateOrder(ctx, order); err != nil {
		return domain.Order{}, err
	}

	ids := make([]string, 0, len(staged))
	for id := range staged {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := staged[id]
		p.UpdatedAt = now
		if err := tx.SaveProduct(ctx, p); err != nil {
			return domain.Order{}, err
		}
	}

	for _, e := range logs {
		if err := tx.AppendStockLog(ctx, e); err != nil {
			return domain.Order{}, err
		}
	}

	if customer != nil {
		customer.OrdersCount++
		if err := tx.SaveCustomer(ctx, customer); err != nil {
			return domain.Order{}, err
		}
	}

	return order, nil
}

// consumeMaterial deducts quantityPerUse*qty from the first variant of the
// material product. A zero deduction returns no log entry.
func consumeMaterial(load func(string) (*domain.Product, error), m domain.Material, qty int) (*domain.StockLogEntry, error) {
	mp, err := load(m.Ref().ProductID)
	if err != nil {
		return nil, fmt.Errorf("material %q: %w", m.ID, err)
	}
	if len(mp.Variants) == 0 {
		return nil, fmt.Errorf("material %q has no stock variant: %w", m.ID, domain.ErrNotFound)
	}

	mv := &mp.Variants[0]
	if m.QuantityPerUse <= 0 {
		return nil, nil
	}
	before := mv.QuantityOnHand
	if qty > math.MaxInt/m.QuantityPerUse {
		return nil, fmt.Errorf("%w: material %s/%s has %d, needs %d x %d",
			domain.ErrInsufficientStock, mp.Name, mv.Name, before, m.QuantityPerUse, qty)
	}
	need := m.QuantityPerUse * qty
	after := before - need
	if after < 0 {
		return nil, fmt.Errorf("%w: material %s/%s has %d, needs %d",
			domain.ErrInsufficientStock, mp.Name, mv.Name, before, need)
	}
	mv.QuantityOnHand = after

	return &domain.StockLogEntry{
		ProductID:   mp.ID,
		ProductName: mp.Name,
		VariantName: mv.Name,
		StockBefore: before,
		StockAfter:  after,
		Delta:       -need,
	}, nil
}

func (s *Service) dispatchReceipt(ctx context.Context, order domain.Order) {
	if s.receipts == nil {
		return
	}

	s.receiptsWG.Add(1)
	go func() {
		defer s.receiptsWG.Done()

		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.receiptTimeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				s.log.Error(rctx, "receipt sink panicked", logger.String("order_id", order.ID), logger.Any("panic", r))
			}
		}()

		if err := s.receipts.SendReceipt(rctx, order, order.ID); err != nil {
			s.log.Error(rctx, "receipt dispatch failed", logger.String("order_id", order.ID), logger.ErrorF(err))
		}
	}()
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	const op = "service.GetOrder"

	o, err := s.store.OrderByID(ctx, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%s: %w", op, classify(err))
	}
	return o, nil
}

// ListOrders returns orders created in [start, end], both ends inclusive.
func (s *Service) ListOrders(ctx context.Context, start, end time.Time) ([]domain.Order, error) {
	const op = "service.ListOrders"

	if end.Before(start) {
		return nil, fmt.Errorf("%s: %w: end is before start", op, domain.ErrValidation)
	}
	orders, err := s.store.OrdersBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	return orders, nil
}
