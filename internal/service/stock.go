package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"orderdesk/internal/domain"
	"orderdesk/internal/logger"
	"orderdesk/internal/repository"
)

const (
	RowApplied = "applied"
	RowFailed  = "failed"
)

// AdjustStock applies a manual delta to one variant and appends a stock log
// entry. A result below zero fails with InvalidState (which also matches
// InsufficientStock) and writes nothing.
func (s *Service) AdjustStock(ctx context.Context, in domain.AdjustStockInput) (res domain.AdjustStockResult, err error) {
	const op = "service.AdjustStock"

	ctx, span := tracer.Start(ctx, op)
	defer func() { endSpan(span, err) }()
	span.SetAttributes(
		attribute.String("product.id", in.ProductID),
		attribute.String("variant.name", in.VariantName),
		attribute.Int("stock.delta", in.QuantityDelta),
	)

	if err := in.Validate(); err != nil {
		return domain.AdjustStockResult{}, fmt.Errorf("%s: %w", op, err)
	}

	logID := s.newID()
	var result domain.AdjustStockResult
	err = s.runTx(ctx, op, func(ctx context.Context, tx repository.Tx) error {
		p, err := tx.Product(ctx, in.ProductID)
		if err != nil {
			return err
		}
		v, ok := p.Variant(in.VariantName)
		if !ok {
			return fmt.Errorf("variant %q of product %q: %w", in.VariantName, p.ID, domain.ErrNotFound)
		}

		before := v.QuantityOnHand
		after := before + in.QuantityDelta
		if after < 0 {
			return fmt.Errorf("%w: %w: %s/%s would go to %d", domain.ErrInvalidState, domain.ErrInsufficientStock, p.Name, v.Name, after)
		}
		v.QuantityOnHand = after
		v.ProductionCost, v.Profit = domain.AdjustmentCost(*v)

		now := s.now().UTC()
		entry := domain.StockLogEntry{
			ID:          logID,
			ProductID:   p.ID,
			ProductName: p.Name,
			VariantName: v.Name,
			StockBefore: before,
			StockAfter:  after,
			Delta:       in.QuantityDelta,
			Notes:       in.Notes,
			Timestamp:   now,
		}
		variant := v.Clone()

		p.RecordStockChange(entry)
		p.UpdatedAt = now
		if err := tx.SaveProduct(ctx, &p); err != nil {
			return err
		}
		if err := tx.AppendStockLog(ctx, entry); err != nil {
			return err
		}

		result = domain.AdjustStockResult{Variant: variant, LogEntry: entry}
		return nil
	})
	if err != nil {
		return domain.AdjustStockResult{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info(ctx, "stock adjusted",
		logger.String("product_id", in.ProductID),
		logger.String("variant", in.VariantName),
		logger.Int("before", result.LogEntry.StockBefore),
		logger.Int("after", result.LogEntry.StockAfter),
	)
	return result, nil
}

// ImportAdjustments applies each row as its own adjustment. A failing row
// does not stop the rest.
func (s *Service) ImportAdjustments(ctx context.Context, rows []domain.StockAdjustmentRow) ([]domain.StockAdjustmentRowResult, error) {
	const op = "service.ImportAdjustments"

	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w: import file has no data rows", op, domain.ErrValidation)
	}

	results := make([]domain.StockAdjustmentRowResult, 0, len(rows))
	for _, row := range rows {
		r := domain.StockAdjustmentRowResult{
			RowNumber: row.RowNumber,
			ProductID: row.ProductID,
			Variant:   row.VariantName,
			Delta:     row.QuantityDelta,
		}
		adj, err := s.AdjustStock(ctx, domain.AdjustStockInput{
			ProductID:     row.ProductID,
			VariantName:   row.VariantName,
			QuantityDelta: row.QuantityDelta,
			Notes:         row.Notes,
		})
		if err != nil {
			r.Status = RowFailed
			r.Message = fmt.Sprintf("%s: %v", domain.KindOf(err), err)
		} else {
			r.Status = RowApplied
			r.Stock = &adj.Variant
		}
		results = append(results, r)
	}
	return results, nil
}

func (s *Service) StockLogs(ctx context.Context, filter repository.StockLogFilter) ([]domain.StockLogEntry, error) {
	const op = "service.StockLogs"

	logs, err := s.store.StockLogs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	return logs, nil
}
