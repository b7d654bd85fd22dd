package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Rule category constants
const (
	RuleCategoryCost          = "cost"
	RuleCategoryCommission    = "commission"
	RuleCategoryTax           = "tax"
	RuleCategoryPaymentMethod = "payment_method"
)

// Value type constants
const (
	ValueTypePercentage = "percentage"
	ValueTypeFixed      = "fixed"
)

// AppliesTo constants
const (
	AppliesToPaymentMethod = "payment_method"
	AppliesToOrderType     = "order_type"
	AppliesToDeliveryOnly  = "delivery_only"
	AppliesToStore         = "store"
	AppliesToAllOrders     = "all_orders"
)

// Payment type constants
const (
	PaymentTypeOnline  = "online"
	PaymentTypeOffline = "offline"
	PaymentTypeAll     = "all"
)

// Delivery scope constants (who fulfils the delivery)
const (
	DeliveryScopeStore       = "store"
	DeliveryScopeMarketplace = "marketplace"
	DeliveryScopeAny         = "any"
)

// FeeRule is a tenant-configured cost, commission, tax or payment-method fee.
// Provider is empty (every channel), an exact provider ("ifood") or a provider+origin composite ("anotaai:ifood").
type FeeRule struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Name            string          `gorm:"type:varchar(255);not null" json:"name"`
	Category        string          `gorm:"type:varchar(20);not null;index" json:"category"`
	ValueType       string          `gorm:"type:varchar(20);not null" json:"value_type"`
	Value           decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"value"` // 2.5 = 2.5% when percentage
	AppliesTo       string          `gorm:"type:varchar(30)" json:"applies_to"`
	ConditionValue  string          `gorm:"type:varchar(100)" json:"condition_value"`
	ConditionValues pq.StringArray  `gorm:"type:text[]" json:"condition_values"`
	Provider        string          `gorm:"type:varchar(60);index" json:"provider"`
	PaymentType     string          `gorm:"type:varchar(10)" json:"payment_type"`
	DeliveryScope   string          `gorm:"type:varchar(20)" json:"delivery_scope"`

	AffectsRevenueBase bool `gorm:"default:false" json:"affects_revenue_base"`
	ReducesRevenueBase bool `gorm:"default:false" json:"reduces_revenue_base"`
	EntersTaxBase      bool `gorm:"default:false" json:"enters_tax_base"`

	IsActive  bool           `gorm:"default:true;index" json:"is_active"`
	Position  int            `gorm:"not null;default:0" json:"position"` // evaluation order within a category
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// ChangesRevenueBase reports whether applying the rule decrements the revenue base for later rules.
func (r *FeeRule) ChangesRevenueBase() bool {
	return r.ReducesRevenueBase || r.AffectsRevenueBase
}
