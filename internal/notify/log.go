package notify

import (
	"context"

	"orderdesk/internal/domain"
	"orderdesk/internal/logger"
)

// LogReceiptSink writes the formatted receipt to the process log. It is used
// when no broker is configured.
type LogReceiptSink struct{}

func (LogReceiptSink) SendReceipt(ctx context.Context, order domain.Order, orderID string) error {
	logger.Info(ctx, "receipt",
		logger.String("order_id", orderID),
		logger.Any("lines", FormatReceipt(order, orderID)),
	)
	return nil
}

func (LogReceiptSink) Close() error { return nil }
