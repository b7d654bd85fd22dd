package model

// CostLine is one applied rule inside a CostBreakdown. The JSON shape is read back by
// dashboards and the DRE view, so field names must not change.
type CostLine struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Type            string  `json:"type"` // percentage, fixed
	Value           float64 `json:"value"`
	CalculatedValue float64 `json:"calculated_value"`
	Category        string  `json:"category"`
	PaymentMethod   string  `json:"payment_method,omitempty"`
	IsLinked        *bool   `json:"is_linked,omitempty"`
}

// CostBreakdown is the persisted calculated_costs blob of an order.
type CostBreakdown struct {
	Costs               []CostLine `json:"costs"`
	Commissions         []CostLine `json:"commissions"`
	Taxes               []CostLine `json:"taxes"`
	PaymentMethods      []CostLine `json:"payment_methods"`
	TotalCosts          float64    `json:"total_costs"`
	TotalCommissions    float64    `json:"total_commissions"`
	TotalTaxes          float64    `json:"total_taxes"`
	TotalPaymentMethods float64    `json:"total_payment_methods"`
	NetRevenue          float64    `json:"net_revenue"`
	BaseValue           float64    `json:"base_value"`
}
