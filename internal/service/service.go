package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"orderdesk/internal/domain"
	"orderdesk/internal/logger"
	"orderdesk/internal/repository"
)

var tracer = otel.Tracer("orderdesk/internal/service")

// ReceiptSink receives committed orders. Failures are logged by the service
// and never reach the caller that placed the order.
type ReceiptSink interface {
	SendReceipt(ctx context.Context, order domain.Order, orderID string) error
}

type Options struct {
	MaxAttempts          int
	TxTimeout            time.Duration
	ReceiptTimeout       time.Duration
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	MaterialCategoryIDs  []string

	Now   func() time.Time
	NewID func() string
}

type Service struct {
	store    repository.Store
	receipts ReceiptSink
	log      *logger.Logger

	maxAttempts          int
	txTimeout            time.Duration
	receiptTimeout       time.Duration
	retryInitialInterval time.Duration
	retryMaxInterval     time.Duration
	materialCategories   map[string]struct{}

	now   func() time.Time
	newID func() string

	receiptsWG sync.WaitGroup
}

func New(store repository.Store, receipts ReceiptSink, opts Options) *Service {
	s := &Service{
		store:                store,
		receipts:             receipts,
		log:                  logger.With(logger.String("component", "service")),
		maxAttempts:          max(opts.MaxAttempts, 1),
		txTimeout:            opts.TxTimeout,
		receiptTimeout:       lo.Ternary(opts.ReceiptTimeout > 0, opts.ReceiptTimeout, 10*time.Second),
		retryInitialInterval: lo.Ternary(opts.RetryInitialInterval > 0, opts.RetryInitialInterval, 10*time.Millisecond),
		retryMaxInterval:     lo.Ternary(opts.RetryMaxInterval > 0, opts.RetryMaxInterval, 200*time.Millisecond),
		materialCategories:   lo.SliceToMap(opts.MaterialCategoryIDs, func(id string) (string, struct{}) { return id, struct{}{} }),
		now:                  opts.Now,
		newID:                opts.NewID,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// WaitReceipts blocks until in-flight receipt dispatches finish or ctx ends.
func (s *Service) WaitReceipts(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.receiptsWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) isMaterialCategory(id string) bool {
	_, ok := s.materialCategories[id]
	return ok
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, domain.KindOf(err))
	}
	span.End()
}
