package domain

import "github.com/shopspring/decimal"

// ComputeCost returns the per-unit production cost and profit of a variant.
// A non-positive quantityPerUse counts as one unit of the material.
func ComputeCost(v StockVariant) (productionCost, profit decimal.Decimal) {
	productionCost = UnitProductionCost(v.Materials)
	return productionCost, v.UnitPrice.Sub(productionCost)
}

// UnitProductionCost sums unitCost * max(quantityPerUse, 1) over materials.
func UnitProductionCost(materials []Material) decimal.Decimal {
	total := decimal.Zero
	for _, m := range materials {
		total = total.Add(m.UnitCost.Mul(decimal.NewFromInt(int64(max(m.QuantityPerUse, 1)))))
	}
	return total
}

// AdjustmentCost is the formula applied on manual stock adjustment. Unlike
// ComputeCost it multiplies by quantityPerUse as stored, so zero contributes nothing.
func AdjustmentCost(v StockVariant) (productionCost, profit decimal.Decimal) {
	productionCost = decimal.Zero
	for _, m := range v.Materials {
		productionCost = productionCost.Add(m.UnitCost.Mul(decimal.NewFromInt(int64(m.QuantityPerUse))))
	}
	return productionCost, v.UnitPrice.Sub(productionCost)
}

// ApplyCost stores ComputeCost results on the variant.
func (v *StockVariant) ApplyCost() {
	v.ProductionCost, v.Profit = ComputeCost(*v)
}
