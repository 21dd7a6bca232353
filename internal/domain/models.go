package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// MaterialRef points at the Product that stocks a raw material.
type MaterialRef struct {
	ProductID string `json:"productId"`
}

// Material is a snapshot of a raw input attached to a variant. It is copied
// when attached and never follows later edits of the material product.
type Material struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	UnitCost       decimal.Decimal `json:"unitCost"`
	QuantityPerUse int             `json:"quantityPerUse"`
}

func (m Material) Ref() MaterialRef {
	return MaterialRef{ProductID: m.ID}
}

type StockVariant struct {
	Name           string          `json:"name"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	QuantityOnHand int             `json:"quantityOnHand"`
	Materials      []Material      `json:"materials"`
	ProductionCost decimal.Decimal `json:"productionCost"`
	Profit         decimal.Decimal `json:"profit"`
}

type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	CategoryID   string          `json:"categoryId"`
	Variants     []StockVariant  `json:"variants"`
	Images       []string        `json:"images,omitempty"`
	StockHistory []StockLogEntry `json:"stockHistory,omitempty"`
	Version      int64           `json:"-"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Variant returns a pointer into p.Variants so callers can stage changes in place.
func (p *Product) Variant(name string) (*StockVariant, bool) {
	for i := range p.Variants {
		if p.Variants[i].Name == name {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

// StockHistoryLimit caps the per-product copy of recent stock log entries.
const StockHistoryLimit = 50

// RecordStockChange appends e to the product's embedded history, dropping the oldest entries past the limit.
func (p *Product) RecordStockChange(e StockLogEntry) {
	p.StockHistory = append(p.StockHistory, e)
	if over := len(p.StockHistory) - StockHistoryLimit; over > 0 {
		p.StockHistory = slices.Clone(p.StockHistory[over:])
	}
}

type Order struct {
	ID             string          `json:"id"`
	Items          []OrderItem     `json:"items"`
	PaymentMethod  string          `json:"paymentMethod"`
	Total          decimal.Decimal `json:"total"`
	ProductionCost decimal.Decimal `json:"productionCost"`
	CustomerID     string          `json:"customerId,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type OrderItem struct {
	ProductID         string          `json:"productId"`
	ProductName       string          `json:"productName"`
	VariantName       string          `json:"variantName"`
	UnitPrice         decimal.Decimal `json:"unitPrice"`
	Quantity          int             `json:"quantity"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	MaterialsSnapshot []Material      `json:"materialsSnapshot"`
}

type StockLogEntry struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"productId"`
	ProductName string    `json:"productName"`
	VariantName string    `json:"variantName"`
	StockBefore int       `json:"stockBefore"`
	StockAfter  int       `json:"stockAfter"`
	Delta       int       `json:"delta"`
	Notes       string    `json:"notes,omitempty"`
	OrderID     string    `json:"orderId,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type Customer struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone,omitempty"`
	Email       string    `json:"email,omitempty"`
	Address     string    `json:"address,omitempty"`
	OrdersCount int       `json:"ordersCount"`
	Version     int64     `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Category struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Image    string `json:"image,omitempty"`
	Position int    `json:"position"`
	Version  int64  `json:"-"`
}

type OrderItemInput struct {
	ProductID   string          `json:"productId"`
	VariantName string          `json:"variantName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

type PlaceOrderInput struct {
	Items         []OrderItemInput `json:"items"`
	PaymentMethod string           `json:"paymentMethod"`
	Total         decimal.Decimal  `json:"total"`
	CustomerID    string           `json:"customerId,omitempty"`
}

type PlaceOrderResult struct {
	OrderID        string          `json:"orderId"`
	ProductionCost decimal.Decimal `json:"productionCost"`
	Order          Order           `json:"-"`
}

type AdjustStockInput struct {
	ProductID     string `json:"productId"`
	VariantName   string `json:"variantName"`
	QuantityDelta int    `json:"quantityDelta"`
	Notes         string `json:"notes,omitempty"`
}

type AdjustStockResult struct {
	Variant  StockVariant  `json:"variant"`
	LogEntry StockLogEntry `json:"logEntry"`
}

type CategoryPosition struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}

type MaterialInput struct {
	ID             string          `json:"id"`
	Name           string          `json:"name,omitempty"`
	UnitCost       decimal.Decimal `json:"unitCost"`
	QuantityPerUse int             `json:"quantityPerUse"`
}

type VariantInput struct {
	Name           string          `json:"name"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	QuantityOnHand int             `json:"quantityOnHand"`
	Materials      []MaterialInput `json:"materials"`
}

type ProductInput struct {
	Name       string         `json:"name"`
	CategoryID string         `json:"categoryId"`
	Variants   []VariantInput `json:"variants"`
	Images     []string       `json:"images,omitempty"`
}

type CustomerInput struct {
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

type CategoryInput struct {
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// StockAdjustmentRowResult reports one row of a bulk adjustment import.
type StockAdjustmentRowResult struct {
	RowNumber int           `json:"rowNumber"`
	ProductID string        `json:"productId"`
	Variant   string        `json:"variantName"`
	Delta     int           `json:"quantityDelta"`
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Stock     *StockVariant `json:"variant,omitempty"`
}

type StockAdjustmentRow struct {
	RowNumber     int
	ProductID     string
	VariantName   string
	QuantityDelta int
	Notes         string
}
