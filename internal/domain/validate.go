package domain

import (
	"fmt"
	"strings"
)

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func (in PlaceOrderInput) Validate() error {
	if len(in.Items) == 0 {
		return validationErr("items must not be empty")
	}
	if strings.TrimSpace(in.PaymentMethod) == "" {
		return validationErr("paymentMethod is required")
	}
	if in.Total.IsNegative() {
		return validationErr("total cannot be negative")
	}
	for i, it := range in.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return validationErr("items[%d].productId is required", i)
		}
		if strings.TrimSpace(it.VariantName) == "" {
			return validationErr("items[%d].variantName is required", i)
		}
		if it.Quantity <= 0 {
			return validationErr("items[%d].quantity must be positive", i)
		}
		if it.UnitPrice.IsNegative() {
			return validationErr("items[%d].unitPrice cannot be negative", i)
		}
	}
	return nil
}

func (in AdjustStockInput) Validate() error {
	if strings.TrimSpace(in.ProductID) == "" {
		return validationErr("productId is required")
	}
	if strings.TrimSpace(in.VariantName) == "" {
		return validationErr("variantName is required")
	}
	return nil
}

func (in ProductInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return validationErr("name is required")
	}
	if strings.TrimSpace(in.CategoryID) == "" {
		return validationErr("categoryId is required")
	}
	if len(in.Variants) == 0 {
		return validationErr("at least one variant is required")
	}
	seen := make(map[string]struct{}, len(in.Variants))
	for i, v := range in.Variants {
		name := strings.TrimSpace(v.Name)
		if name == "" {
			return validationErr("variants[%d].name is required", i)
		}
		if _, dup := seen[name]; dup {
			return validationErr("duplicate variant name %q", name)
		}
		seen[name] = struct{}{}
		if v.UnitPrice.IsNegative() {
			return validationErr("variants[%d].unitPrice cannot be negative", i)
		}
		if v.QuantityOnHand < 0 {
			return validationErr("variants[%d].quantityOnHand cannot be negative", i)
		}
		for j, m := range v.Materials {
			if strings.TrimSpace(m.ID) == "" {
				return validationErr("variants[%d].materials[%d].id is required", i, j)
			}
			if m.QuantityPerUse < 0 {
				return validationErr("variants[%d].materials[%d].quantityPerUse cannot be negative", i, j)
			}
			if m.UnitCost.IsNegative() {
				return validationErr("variants[%d].materials[%d].unitCost cannot be negative", i, j)
			}
		}
	}
	return nil
}

func (in CustomerInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return validationErr("name is required")
	}
	return nil
}

func (in CategoryInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return validationErr("name is required")
	}
	return nil
}

// ValidatePositions rejects empty ids, duplicate ids and negative positions.
func ValidatePositions(assignments []CategoryPosition) error {
	seen := make(map[string]struct{}, len(assignments))
	for i, a := range assignments {
		if strings.TrimSpace(a.ID) == "" {
			return validationErr("assignments[%d].id is required", i)
		}
		if a.Position < 0 {
			return validationErr("assignments[%d].position cannot be negative", i)
		}
		if _, dup := seen[a.ID]; dup {
			return validationErr("duplicate category id %q", a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	return nil
}
