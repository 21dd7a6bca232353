package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	collProducts   = "products"
	collCustomers  = "customers"
	collCategories = "categories"
	collOrders     = "orders"
	collStockLogs  = "stock_logs"
)

type MaterialEntity struct {
	ID             string          `bson:"id"`
	Name           string          `bson:"name"`
	UnitCost       bson.Decimal128 `bson:"unit_cost"`
	QuantityPerUse int             `bson:"quantity_per_use"`
}

type VariantEntity struct {
	Name           string           `bson:"name"`
	UnitPrice      bson.Decimal128  `bson:"unit_price"`
	QuantityOnHand int              `bson:"quantity_on_hand"`
	Materials      []MaterialEntity `bson:"materials,omitempty"`
	ProductionCost bson.Decimal128  `bson:"production_cost"`
	Profit         bson.Decimal128  `bson:"profit"`
}

type StockLogEntity struct {
	ID          string    `bson:"_id"`
	ProductID   string    `bson:"product_id"`
	ProductName string    `bson:"product_name"`
	VariantName string    `bson:"variant_name"`
	StockBefore int       `bson:"stock_before"`
	StockAfter  int       `bson:"stock_after"`
	Delta       int       `bson:"delta"`
	Notes       string    `bson:"notes,omitempty"`
	OrderID     string    `bson:"order_id,omitempty"`
	Timestamp   time.Time `bson:"timestamp"`
}

type ProductEntity struct {
	ID           string           `bson:"_id"`
	Name         string           `bson:"name"`
	CategoryID   string           `bson:"category_id"`
	Variants     []VariantEntity  `bson:"variants"`
	Images       []string         `bson:"images,omitempty"`
	StockHistory []StockLogEntity `bson:"stock_history,omitempty"`
	Version      int64            `bson:"version"`
	CreatedAt    time.Time        `bson:"created_at"`
	UpdatedAt    time.Time        `bson:"updated_at"`
}

type OrderItemEntity struct {
	ProductID         string           `bson:"product_id"`
	ProductName       string           `bson:"product_name"`
	VariantName       string           `bson:"variant_name"`
	UnitPrice         bson.Decimal128  `bson:"unit_price"`
	Quantity          int              `bson:"quantity"`
	Subtotal          bson.Decimal128  `bson:"subtotal"`
	MaterialsSnapshot []MaterialEntity `bson:"materials_snapshot,omitempty"`
}

type OrderEntity struct {
	ID             string            `bson:"_id"`
	Items          []OrderItemEntity `bson:"items"`
	PaymentMethod  string            `bson:"payment_method"`
	Total          bson.Decimal128   `bson:"total"`
	ProductionCost bson.Decimal128   `bson:"production_cost"`
	CustomerID     string            `bson:"customer_id,omitempty"`
	CreatedAt      time.Time         `bson:"created_at"`
}

type CustomerEntity struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	Phone       string    `bson:"phone,omitempty"`
	Email       string    `bson:"email,omitempty"`
	Address     string    `bson:"address,omitempty"`
	OrdersCount int       `bson:"orders_count"`
	Version     int64     `bson:"version"`
	CreatedAt   time.Time `bson:"created_at"`
}

type CategoryEntity struct {
	ID       string `bson:"_id"`
	Name     string `bson:"name"`
	Image    string `bson:"image,omitempty"`
	Position int    `bson:"position"`
	Version  int64  `bson:"version"`
}
