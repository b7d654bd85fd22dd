package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is an internal product whose unit cost feeds cost-of-goods (CMV).
type Product struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"tenant_id"`
	SKU       string          `gorm:"type:varchar(100);index" json:"sku"`
	Name      string          `gorm:"type:varchar(255);not null" json:"name"`
	UnitCost  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"unit_cost"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	DeletedAt gorm.DeletedAt  `gorm:"index" json:"-"`
}

// ItemMapping links an order item, or one of its add-ons, to an internal product.
// Fractional mappings split one physical unit across the classified add-ons of the item.
type ItemMapping struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"tenant_id"`
	OrderItemID uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:ux_item_mapping_addon" json:"order_item_id"`
	AddOnIndex  int             `gorm:"not null;default:-1;uniqueIndex:ux_item_mapping_addon" json:"add_on_index"` // -1 = whole item
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	Quantity    decimal.Decimal `gorm:"type:decimal(12,6);not null;default:1" json:"quantity"`
	Multiplier  decimal.Decimal `gorm:"type:decimal(12,4);not null;default:1" json:"multiplier"`
	IsFraction  bool            `gorm:"default:false" json:"is_fraction"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// WholeItem marks a mapping that targets the item itself rather than an add-on.
const WholeItem = -1
