package mongo

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"

	"orderdesk/internal/domain"
)

func toDecimal128(d decimal.Decimal) bson.Decimal128 {
	v, err := bson.ParseDecimal128(d.String())
	if err != nil {
		// more digits than Decimal128 holds
		v, _ = bson.ParseDecimal128(d.Round(12).String())
	}
	return v
}

func fromDecimal128(v bson.Decimal128) decimal.Decimal {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

func materialsToEntity(ms []domain.Material) []MaterialEntity {
	return lo.Map(ms, func(m domain.Material, _ int) MaterialEntity {
		return MaterialEntity{
			ID:             m.ID,
			Name:           m.Name,
			UnitCost:       toDecimal128(m.UnitCost),
			QuantityPerUse: m.QuantityPerUse,
		}
	})
}

func materialsToModel(es []MaterialEntity) []domain.Material {
	return lo.Map(es, func(e MaterialEntity, _ int) domain.Material {
		return domain.Material{
			ID:             e.ID,
			Name:           e.Name,
			UnitCost:       fromDecimal128(e.UnitCost),
			QuantityPerUse: e.QuantityPerUse,
		}
	})
}

func StockLogToEntity(e domain.StockLogEntry) StockLogEntity {
	return StockLogEntity{
		ID:          e.ID,
		ProductID:   e.ProductID,
		ProductName: e.ProductName,
		VariantName: e.VariantName,
		StockBefore: e.StockBefore,
		StockAfter:  e.StockAfter,
		Delta:       e.Delta,
		Notes:       e.Notes,
		OrderID:     e.OrderID,
		Timestamp:   e.Timestamp,
	}
}

func StockLogToModel(e StockLogEntity) domain.StockLogEntry {
	return domain.StockLogEntry{
		ID:          e.ID,
		ProductID:   e.ProductID,
		ProductName: e.ProductName,
		VariantName: e.VariantName,
		StockBefore: e.StockBefore,
		StockAfter:  e.StockAfter,
		Delta:       e.Delta,
		Notes:       e.Notes,
		OrderID:     e.OrderID,
		Timestamp:   e.Timestamp,
	}
}

func ProductToEntity(p domain.Product) ProductEntity {
	return ProductEntity{
		ID:         p.ID,
		Name:       p.Name,
		CategoryID: p.CategoryID,
		Variants: lo.Map(p.Variants, func(v domain.StockVariant, _ int) VariantEntity {
			return VariantEntity{
				Name:           v.Name,
				UnitPrice:      toDecimal128(v.UnitPrice),
				QuantityOnHand: v.QuantityOnHand,
				Materials:      materialsToEntity(v.Materials),
				ProductionCost: toDecimal128(v.ProductionCost),
				Profit:         toDecimal128(v.Profit),
			}
		}),
		Images:       p.Images,
		StockHistory: lo.Map(p.StockHistory, func(e domain.StockLogEntry, _ int) StockLogEntity { return StockLogToEntity(e) }),
		Version:      p.Version,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func ProductToModel(e ProductEntity) domain.Product {
	p := domain.Product{
		ID:         e.ID,
		Name:       e.Name,
		CategoryID: e.CategoryID,
		Variants: lo.Map(e.Variants, func(v VariantEntity, _ int) domain.StockVariant {
			return domain.StockVariant{
				Name:           v.Name,
				UnitPrice:      fromDecimal128(v.UnitPrice),
				QuantityOnHand: v.QuantityOnHand,
				Materials:      materialsToModel(v.Materials),
				ProductionCost: fromDecimal128(v.ProductionCost),
				Profit:         fromDecimal128(v.Profit),
			}
		}),
		Images:    e.Images,
		Version:   e.Version,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
	if len(e.StockHistory) > 0 {
		p.StockHistory = lo.Map(e.StockHistory, func(s StockLogEntity, _ int) domain.StockLogEntry { return StockLogToModel(s) })
	}
	return p
}

func OrderToEntity(o domain.Order) OrderEntity {
	return OrderEntity{
		ID: o.ID,
		Items: lo.Map(o.Items, func(it domain.OrderItem, _ int) OrderItemEntity {
			return OrderItemEntity{
				ProductID:         it.ProductID,
				ProductName:       it.ProductName,
				VariantName:       it.VariantName,
				UnitPrice:         toDecimal128(it.UnitPrice),
				Quantity:          it.Quantity,
				Subtotal:          toDecimal128(it.Subtotal),
				MaterialsSnapshot: materialsToEntity(it.MaterialsSnapshot),
			}
		}),
		PaymentMethod:  o.PaymentMethod,
		Total:          toDecimal128(o.Total),
		ProductionCost: toDecimal128(o.ProductionCost),
		CustomerID:     o.CustomerID,
		CreatedAt:      o.CreatedAt,
	}
}

func OrderToModel(e OrderEntity) domain.Order {
	return domain.Order{
		ID: e.ID,
		Items: lo.Map(e.Items, func(it OrderItemEntity, _ int) domain.OrderItem {
			return domain.OrderItem{
				ProductID:         it.ProductID,
				ProductName:       it.ProductName,
				VariantName:       it.VariantName,
				UnitPrice:         fromDecimal128(it.UnitPrice),
				Quantity:          it.Quantity,
				Subtotal:          fromDecimal128(it.Subtotal),
				MaterialsSnapshot: materialsToModel(it.MaterialsSnapshot),
			}
		}),
		PaymentMethod:  e.PaymentMethod,
		Total:          fromDecimal128(e.Total),
		ProductionCost: fromDecimal128(e.ProductionCost),
		CustomerID:     e.CustomerID,
		CreatedAt:      e.CreatedAt,
	}
}

func CustomerToEntity(c domain.Customer) CustomerEntity {
	return CustomerEntity{
		ID:          c.ID,
		Name:        c.Name,
		Phone:       c.Phone,
		Email:       c.Email,
		Address:     c.Address,
		OrdersCount: c.OrdersCount,
		Version:     c.Version,
		CreatedAt:   c.CreatedAt,
	}
}

func CustomerToModel(e CustomerEntity) domain.Customer {
	return domain.Customer{
		ID:          e.ID,
		Name:        e.Name,
		Phone:       e.Phone,
		Email:       e.Email,
		Address:     e.Address,
		OrdersCount: e.OrdersCount,
		Version:     e.Version,
		CreatedAt:   e.CreatedAt,
	}
}

func CategoryToEntity(c domain.Category) CategoryEntity {
	return CategoryEntity{ID: c.ID, Name: c.Name, Image: c.Image, Position: c.Position, Version: c.Version}
}

func CategoryToModel(e CategoryEntity) domain.Category {
	return domain.Category{ID: e.ID, Name: e.Name, Image: e.Image, Position: e.Position, Version: e.Version}
}
