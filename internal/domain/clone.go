package domain

import "slices"

func (v StockVariant) Clone() StockVariant {
	v.Materials = slices.Clone(v.Materials)
	return v
}

func (p Product) Clone() Product {
	if p.Variants != nil {
		variants := make([]StockVariant, len(p.Variants))
		for i := range p.Variants {
			variants[i] = p.Variants[i].Clone()
		}
		p.Variants = variants
	}
	p.Images = slices.Clone(p.Images)
	p.StockHistory = slices.Clone(p.StockHistory)
	return p
}

func (o Order) Clone() Order {
	if o.Items != nil {
		items := make([]OrderItem, len(o.Items))
		for i, it := range o.Items {
			it.MaterialsSnapshot = slices.Clone(it.MaterialsSnapshot)
			items[i] = it
		}
		o.Items = items
	}
	return o
}
