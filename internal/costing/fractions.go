package costing

import (
	"orderfinance/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FractionPrecision is the number of decimal places stored for fractional quantities.
// The stored quantity is for display; CostOfGoods divides by the classified count instead.
const FractionPrecision = 6

// FractionFor returns the share of one unit each of n classified sub-selections carries.
func FractionFor(n int) decimal.Decimal {
	if n <= 1 {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(1).DivRound(decimal.NewFromInt(int64(n)), FractionPrecision)
}

// AllocateFractions recomputes the quantity of every fractional add-on mapping of one item so
// that each of the N classified add-ons carries 1/N of the unit. Whole-item mappings and
// non-fractional mappings are left alone. The slice is updated in place; the returned ids are
// the mappings whose quantity changed, so a repeated call with no new classification returns none.
func AllocateFractions(mappings []model.ItemMapping) []uuid.UUID {
	classified := make(map[int]bool)
	for _, m := range mappings {
		if m.IsFraction && m.AddOnIndex != model.WholeItem {
			classified[m.AddOnIndex] = true
		}
	}
	share := FractionFor(len(classified))

	var changed []uuid.UUID
	for i := range mappings {
		m := &mappings[i]
		if !m.IsFraction || m.AddOnIndex == model.WholeItem {
			continue
		}
		if m.Quantity.Equal(share) {
			continue
		}
		m.Quantity = share
		changed = append(changed, m.ID)
	}
	return changed
}

// CostOfGoods sums item quantity × mapping quantity × multiplier × unit cost over all mapped
// items. Fractional add-on mappings of an item are summed first and divided once by the number
// of classified add-ons, so three thirds of one product cost exactly one unit of it.
// Mappings whose product is unknown contribute nothing.
func CostOfGoods(items []model.OrderItem, products map[uuid.UUID]model.Product) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		fractional := decimal.Zero
		classified := make(map[int]bool)
		for _, m := range item.Mappings {
			fraction := m.IsFraction && m.AddOnIndex != model.WholeItem
			if fraction {
				classified[m.AddOnIndex] = true
			}
			product, ok := products[m.ProductID]
			if !ok {
				continue
			}
			multiplier := m.Multiplier
			if multiplier.IsZero() {
				multiplier = decimal.NewFromInt(1)
			}
			if fraction {
				fractional = fractional.Add(multiplier.Mul(product.UnitCost))
				continue
			}
			total = total.Add(item.Quantity.Mul(m.Quantity).Mul(multiplier).Mul(product.UnitCost))
		}
		if len(classified) > 0 {
			total = total.Add(item.Quantity.Mul(fractional).Div(decimal.NewFromInt(int64(len(classified)))))
		}
	}
	return total
}
