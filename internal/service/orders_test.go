package service

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"orderdesk/internal/domain"
	"orderdesk/internal/logger"
	"orderdesk/internal/repository"
)

type orderFixture struct {
	latte    domain.Product
	milk     domain.Product
	cup      domain.Product
	bare     domain.Product
	customer domain.Customer
}

func seedOrderFixture(t *testing.T, store repository.Store) orderFixture {
	t.Helper()
	milk := put(t, store, domain.Product{
		Name:       "Milk",
		CategoryID: "materials",
		Variants:   []domain.StockVariant{{Name: "ml", QuantityOnHand: 100}},
	})
	cup := put(t, store, domain.Product{
		Name:       "Cup",
		CategoryID: "materials",
		Variants:   []domain.StockVariant{{Name: "pc", QuantityOnHand: 50}},
	})
	bare := put(t, store, domain.Product{Name: "Placeholder", CategoryID: "materials"})
	latte := put(t, store, domain.Product{
		Name:       "Latte",
		CategoryID: "drinks",
		Variants: []domain.StockVariant{{
			Name:           "M",
			UnitPrice:      dec("4.50"),
			QuantityOnHand: 10,
			Materials: []domain.Material{
				{ID: milk.ID, Name: "Milk", UnitCost: dec("0.5"), QuantityPerUse: 2},
				{ID: cup.ID, Name: "Cup", UnitCost: dec("0.1"), QuantityPerUse: 0},
			},
		}},
	})
	return orderFixture{latte: latte, milk: milk, cup: cup, bare: bare, customer: putCustomer(t, store)}
}

func TestService_PlaceOrder_Table(t *testing.T) {
	logger.SetNopLogger()

	tests := []struct {
		name    string
		input   func(f orderFixture) domain.PlaceOrderInput
		setup   func(t *testing.T, store repository.Store, f orderFixture)
		wantErr error
		assert  func(t *testing.T, store repository.Store, f orderFixture, res domain.PlaceOrderResult)
	}{
		{
			name: "deducts finished good and materials",
			input: func(f orderFixture) domain.PlaceOrderInput {
				return domain.PlaceOrderInput{
					Items:         []domain.OrderItemInput{{ProductID: f.latte.ID, VariantName: "M", Quantity: 3}},
					PaymentMethod: "cash",
					Total:         dec("13.50"),
					CustomerID:    f.customer.ID,
				}
			},
			assert: func(t *testing.T, store repository.Store, f orderFixture, res domain.PlaceOrderResult) {
				assert.Equal(t, 7, stockOf(t, store, f.latte.ID, "M"))
				assert.Equal(t, 94, stockOf(t, store, f.milk.ID, "ml"))
				assert.Equal(t, 50, stockOf(t, store, f.cup.ID, "pc"))
				assert.True(t, res.ProductionCost.Equal(dec("3.3")), "production cost %s", res.ProductionCost)

				order, err := store.OrderByID(context.Background(), res.OrderID)
				require.NoError(t, err)
				require.Len(t, order.Items, 1)
				assert.True(t, order.Items[0].UnitPrice.Equal(dec("4.50")))
				assert.True(t, order.Items[0].Subtotal.Equal(dec("13.50")))
				assert.Len(t, order.Items[0].MaterialsSnapshot, 2)
				assert.Equal(t, fixedNow, order.CreatedAt)

				logs, err := store.StockLogs(context.Background(), repository.StockLogFilter{})
				require.NoError(t, err)
				require.Len(t, logs, 1)
				assert.Equal(t, f.milk.ID, logs[0].ProductID)
				assert.Equal(t, 100, logs[0].StockBefore)
				assert.Equal(t, 94, logs[0].StockAfter)
				assert.Equal(t, -6, logs[0].Delta)
				assert.Equal(t, res.OrderID, logs[0].OrderID)

				c, err := store.CustomerByID(context.Background(), f.customer.ID)
				require.NoError(t, err)
				assert.Equal(t, 1, c.OrdersCount)
			},
		},
		{
			name: "insufficient finished good",
			input: func(f orderFixture) domain.PlaceOrderInput {
				return domain.PlaceOrderInput{
					Items:         []domain.OrderItemInput{{ProductID: f.latte.ID, VariantName: "M", Quantity: 11}},
					PaymentMethod: "card",
				}
			},
			wantErr: domain.ErrInsufficientStock,
		},
		{
			name: "insufficient material",
			setup: func(t *testing.T, store repository.Store, f orderFixture) {
				p := f.milk
				p.Variants[0].QuantityOnHand = 5
				require.NoError(t, store.RunInTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
					return tx.SaveProduct(ctx, &p)
				}))
			},
			input: func(f orderFixture) domain.PlaceOrderInput {
				return domain.PlaceOrderInput{
					Items:         []domain.OrderItemInput{{ProductID: f.latte.ID, VariantName: "M", Quantity: 3}},
					PaymentMethod: "cash",
				}
			},
			wantErr: domain.ErrInsufficientStock,
		},
		{
			name: "material need beyond int range",
			setup: func(t *testing.T, store repository.Store, f orderFixture) {
				p := f.latte
				p.Variants[0].QuantityOnHand = math.MaxInt
				require.NoError(t, store.RunInTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
					return tx.SaveProduct(ctx, &p)
				}))
			},
			input: func(f orderFixture) domain.PlaceOrderInput {
				return domain.PlaceOrderInput{
					Items:         []domain.OrderItemInput{{ProductID: f.latte.ID, VariantName: "M", Quantity: 1 << 62}},
					PaymentMethod: "cash",
				}
			},
			wantErr: domain.ErrInsufficientStock,
		},
		{
			name: "unknown product",
			input: func(f orderFixture) domain.PlaceOrderInput {
				return domain.PlaceOrderInput{
					Items:         []domain.OrderItemInput{{ProductID: "nope", VariantName: "M", Quantity: 1}},
					PaymentMethod: "cash",
				}
			},
			wantErr: domain.ErrNotFound,
		},
		{
			name: "unknown variant",
			input: func(f orderFixture) domain.PlaceOrderInput {
				return domain.PlaceOrderInput{
					Items:         []domain.OrderItemInput{{ProductID: f.latte.ID, VariantName: "XL", Quantity: 1}},
					PaymentMethod: "cash",
				}
			},
			wantErr: domain.ErrNotFound,
		},
		{
			name: "unknown customer",
			input: func(f orderFixture) domain.PlaceOrderInput {
				return domain.PlaceOrderInput{
					Items:         []domain.OrderItemInput{{ProductID: f.latte.ID, VariantName: "M", Quantity: 1}},
					PaymentMethod: "cash",
					CustomerID:    "ghost",
				}
			},
			wantErr: domain.ErrNotFound,
		},
		{
			name: "material without variants",
			setup: func(t *testing.T, store repository.Store, f orderFixture) {
				p := f.latte
				p.Variants[0].Materials = append(p.Variants[0].Materials, domain.Material{ID: f.bare.ID, QuantityPerUse: 1})
				require.NoError(t, store.RunInTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
					return tx.SaveProduct(ctx, &p)
				}))
			},
			input: func(f orderFixture) domain.PlaceOrderInput {
				return domain.PlaceOrderInput{
					Items:         []domain.OrderItemInput{{ProductID: f.latte.ID, VariantName: "M", Quantity: 1}},
					PaymentMethod: "cash",
				}
			},
			wantErr: domain.ErrNotFound,
		},
		{
			name: "empty items",
			input: func(f orderFixture) domain.PlaceOrderInput {
				return domain.PlaceOrderInput{PaymentMethod: "cash"}
			},
			wantErr: domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore()
			f := seedOrderFixture(t, store)
			if tt.setup != nil {
				tt.setup(t, store, f)
			}
			before := map[string]int{
				f.latte.ID: stockOf(t, store, f.latte.ID, "M"),
				f.milk.ID:  stockOf(t, store, f.milk.ID, "ml"),
			}

			svc := newTestService(store, nil)
			res, err := svc.PlaceOrder(context.Background(), tt.input(f))

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				// nothing from the failed attempt is visible
				assert.Equal(t, before[f.latte.ID], stockOf(t, store, f.latte.ID, "M"))
				assert.Equal(t, before[f.milk.ID], stockOf(t, store, f.milk.ID, "ml"))
				logs, lerr := store.StockLogs(context.Background(), repository.StockLogFilter{})
				require.NoError(t, lerr)
				assert.Empty(t, logs)
				c, cerr := store.CustomerByID(context.Background(), f.customer.ID)
				require.NoError(t, cerr)
				assert.Zero(t, c.OrdersCount)
				orders, oerr := store.OrdersBetween(context.Background(), fixedNow.AddDate(-1, 0, 0), fixedNow.AddDate(1, 0, 0))
				require.NoError(t, oerr)
				assert.Empty(t, orders)
				return
			}

			require.NoError(t, err)
			tt.assert(t, store, f, res)
		})
	}
}

func TestService_PlaceOrder_ProductUsedAsOwnMaterial(t *testing.T) {
	logger.SetNopLogger()
	store := newMemoryStore()

	syrup := put(t, store, domain.Product{
		Name:     "Syrup",
		Variants: []domain.StockVariant{{Name: "shot", UnitPrice: dec("1"), QuantityOnHand: 10}},
	})
	mocha := put(t, store, domain.Product{
		Name: "Mocha",
		Variants: []domain.StockVariant{{
			Name:           "M",
			QuantityOnHand: 10,
			Materials:      []domain.Material{{ID: syrup.ID, UnitCost: dec("0.2"), QuantityPerUse: 1}},
		}},
	})

	svc := newTestService(store, nil)
	_, err := svc.PlaceOrder(context.Background(), domain.PlaceOrderInput{
		Items: []domain.OrderItemInput{
			{ProductID: syrup.ID, VariantName: "shot", Quantity: 2},
			{ProductID: mocha.ID, VariantName: "M", Quantity: 3},
		},
		PaymentMethod: "cash",
	})
	require.NoError(t, err)

	assert.Equal(t, 5, stockOf(t, store, syrup.ID, "shot"))
	assert.Equal(t, 7, stockOf(t, store, mocha.ID, "M"))
}

func TestService_PlaceOrder_ConcurrentSingleUnitOrders(t *testing.T) {
	logger.SetNopLogger()

	const (
		orders = 20
		stock  = 7
	)
	store := newMemoryStore()
	p := put(t, store, domain.Product{
		Name:     "Cookie",
		Variants: []domain.StockVariant{{Name: "one", UnitPrice: dec("2"), QuantityOnHand: stock}},
	})
	svc := newTestService(store, nil, func(o *Options) { o.MaxAttempts = orders + 1 })

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failures  []error
	)
	for i := 0; i < orders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PlaceOrder(context.Background(), domain.PlaceOrderInput{
				Items:         []domain.OrderItemInput{{ProductID: p.ID, VariantName: "one", Quantity: 1}},
				PaymentMethod: "cash",
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			succeeded++
		}()
	}
	wg.Wait()

	assert.Equal(t, min(orders, stock), succeeded)
	for _, err := range failures {
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	}
	assert.Equal(t, stock-min(orders, stock), stockOf(t, store, p.ID, "one"))

	all, err := store.OrdersBetween(context.Background(), fixedNow, fixedNow)
	require.NoError(t, err)
	assert.Len(t, all, succeeded)
}

func TestService_PlaceOrder_RetryDeductsOnce(t *testing.T) {
	logger.SetNopLogger()

	tests := []struct {
		name     string
		failWith error
	}{
		{name: "after conflict", failWith: domain.ErrConflict},
		{name: "after timeout", failWith: domain.ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := newMemoryStore()
			f := seedOrderFixture(t, mem)
			store := &flakyStore{Store: mem, failWith: tt.failWith}
			store.failures.Store(2)

			svc := newTestService(store, nil)
			res, err := svc.PlaceOrder(context.Background(), domain.PlaceOrderInput{
				Items:         []domain.OrderItemInput{{ProductID: f.latte.ID, VariantName: "M", Quantity: 2}},
				PaymentMethod: "cash",
				CustomerID:    f.customer.ID,
			})
			require.NoError(t, err)

			assert.Equal(t, int32(3), store.calls.Load())
			assert.Equal(t, 8, stockOf(t, mem, f.latte.ID, "M"))
			assert.Equal(t, 96, stockOf(t, mem, f.milk.ID, "ml"))

			logs, err := mem.StockLogs(context.Background(), repository.StockLogFilter{})
			require.NoError(t, err)
			assert.Len(t, logs, 1)

			c, err := mem.CustomerByID(context.Background(), f.customer.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, c.OrdersCount)

			_, err = mem.OrderByID(context.Background(), res.OrderID)
			assert.NoError(t, err)
		})
	}
}

func TestService_PlaceOrder_GivesUpAfterMaxAttempts(t *testing.T) {
	logger.SetNopLogger()

	mem := newMemoryStore()
	f := seedOrderFixture(t, mem)
	store := &flakyStore{Store: mem}
	store.failures.Store(100)

	svc := newTestService(store, nil, func(o *Options) { o.MaxAttempts = 3 })
	_, err := svc.PlaceOrder(context.Background(), domain.PlaceOrderInput{
		Items:         []domain.OrderItemInput{{ProductID: f.latte.ID, VariantName: "M", Quantity: 1}},
		PaymentMethod: "cash",
	})
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
	assert.Equal(t, int32(3), store.calls.Load())
	assert.Equal(t, 10, stockOf(t, mem, f.latte.ID, "M"))
}

func TestService_PlaceOrder_TerminalErrorNotRetried(t *testing.T) {
	logger.SetNopLogger()

	mem := newMemoryStore()
	f := seedOrderFixture(t, mem)
	store := &flakyStore{Store: mem}

	svc := newTestService(store, nil)
	_, err := svc.PlaceOrder(context.Background(), domain.PlaceOrderInput{
		Items:         []domain.OrderItemInput{{ProductID: f.latte.ID, VariantName: "M", Quantity: 99}},
		PaymentMethod: "cash",
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, int32(1), store.calls.Load())
}

func TestService_PlaceOrder_ReceiptFailureIsSwallowed(t *testing.T) {
	logger.SetNopLogger()

	store := newMemoryStore()
	f := seedOrderFixture(t, store)

	sink := &receiptSinkMock{}
	sink.On("SendReceipt", mock.Anything, mock.AnythingOfType("domain.Order"), mock.AnythingOfType("string")).
		Return(assert.AnError).Once()

	svc := newTestService(store, sink)
	res, err := svc.PlaceOrder(context.Background(), domain.PlaceOrderInput{
		Items:         []domain.OrderItemInput{{ProductID: f.latte.ID, VariantName: "M", Quantity: 1}},
		PaymentMethod: "cash",
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.OrderID)
	require.NoError(t, svc.WaitReceipts(context.Background()))

	sink.AssertExpectations(t)
	sink.AssertCalled(t, "SendReceipt", mock.Anything, mock.MatchedBy(func(o domain.Order) bool {
		return o.ID == res.OrderID
	}), res.OrderID)
}

func TestService_ListOrders_RejectsInvertedRange(t *testing.T) {
	svc := newTestService(newMemoryStore(), nil)
	_, err := svc.ListOrders(context.Background(), fixedNow, fixedNow.Add(-1))
	assert.ErrorIs(t, err, domain.ErrValidation)
}
