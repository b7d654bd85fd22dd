package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Provider constants
const (
	ProviderIFood   = "ifood"
	ProviderAnotaAI = "anotaai"
	Provider99Food  = "99food"
	ProviderKeeta   = "keeta"
	ProviderManual  = "manual"
)

// Order is an ingested channel order. Monetary fields and Raw are immutable once placed;
// the cost summary fields are rewritten together on every (re)computation.
type Order struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"tenant_id"`
	StoreID       *uuid.UUID      `gorm:"type:uuid;index" json:"store_id"`
	Provider      string          `gorm:"type:varchar(30);not null;index" json:"provider"` // ifood, anotaai, 99food, keeta, manual
	Origin        string          `gorm:"type:varchar(30);index" json:"origin"`            // sub-channel, e.g. ifood through anotaai
	ExternalID    string          `gorm:"type:varchar(100);index" json:"external_id"`
	GrossTotal    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"gross_total"`
	DiscountTotal decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"discount_total"`
	DeliveryFee   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"delivery_fee"`
	NetTotal      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"net_total"`
	Raw           datatypes.JSON  `gorm:"type:jsonb" json:"raw"`

	// Cost computation results
	CalculatedCosts   datatypes.JSON  `gorm:"type:jsonb" json:"calculated_costs"`
	TotalCosts        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"total_costs"`
	TotalCommissions  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"total_commissions"`
	NetRevenue        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"net_revenue"`
	CostsCalculatedAt *time.Time      `gorm:"index" json:"costs_calculated_at"`
	PaymentFeeLinks   datatypes.JSON  `gorm:"type:jsonb" json:"payment_fee_links"` // canonical method -> fee rule id

	Items     []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
	PlacedAt  time.Time   `gorm:"index" json:"placed_at"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// FeeLinks decodes the persisted payment-fee links. Malformed or empty values yield an empty map.
func (o *Order) FeeLinks() map[string]uuid.UUID {
	links := make(map[string]uuid.UUID)
	if len(o.PaymentFeeLinks) == 0 {
		return links
	}
	var raw map[string]string
	if err := json.Unmarshal(o.PaymentFeeLinks, &raw); err != nil {
		return links
	}
	for method, id := range raw {
		parsed, err := uuid.Parse(id)
		if err != nil {
			continue
		}
		links[method] = parsed
	}
	return links
}

// EncodeFeeLinks serializes links for the payment_fee_links column. encoding/json sorts map keys,
// so equal maps always encode to the same bytes.
func EncodeFeeLinks(links map[string]uuid.UUID) datatypes.JSON {
	raw := make(map[string]string, len(links))
	for method, id := range links {
		raw[method] = id.String()
	}
	b, _ := json.Marshal(raw)
	return datatypes.JSON(b)
}

// Breakdown decodes the persisted calculated_costs blob. Returns nil when nothing was computed yet.
func (o *Order) Breakdown() *CostBreakdown {
	if len(o.CalculatedCosts) == 0 || string(o.CalculatedCosts) == "null" {
		return nil
	}
	var b CostBreakdown
	if err := json.Unmarshal(o.CalculatedCosts, &b); err != nil {
		return nil
	}
	return &b
}

// OrderItem is a line item; AddOns holds the nested selections (e.g. pizza flavors) as JSON.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	SKU       string          `gorm:"type:varchar(100)" json:"sku"`
	Name      string          `gorm:"type:varchar(255)" json:"name"`
	Quantity  decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"unit_price"`
	ProductID *uuid.UUID      `gorm:"type:uuid;index" json:"product_id"` // internal product for CMV
	AddOns    datatypes.JSON  `gorm:"type:jsonb" json:"add_ons"`
	Mappings  []ItemMapping   `gorm:"foreignKey:OrderItemID" json:"mappings,omitempty"`
}

// AddOn is one nested selection of an item.
type AddOn struct {
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// DecodeAddOns returns the item's add-ons; malformed JSON yields none.
func (i *OrderItem) DecodeAddOns() []AddOn {
	if len(i.AddOns) == 0 {
		return nil
	}
	var addOns []AddOn
	if err := json.Unmarshal(i.AddOns, &addOns); err != nil {
		return nil
	}
	return addOns
}
