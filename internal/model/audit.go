package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ActionCreateFeeRule       = "CREATE_FEE_RULE"
	ActionUpdateFeeRule       = "UPDATE_FEE_RULE"
	ActionDeleteFeeRule       = "DELETE_FEE_RULE"
	ActionCalculateOrderCosts = "CALCULATE_ORDER_COSTS"
	ActionAutoLinkPayments    = "AUTO_LINK_PAYMENTS"
	ActionLinkPaymentFee      = "LINK_PAYMENT_FEE"
	ActionUnlinkPaymentFee    = "UNLINK_PAYMENT_FEE"
	ActionBulkRelink          = "BULK_RELINK_PAYMENT_FEE"
	ActionClassifyAddOn       = "CLASSIFY_ADD_ON"
	ActionUnclassifyAddOn     = "UNCLASSIFY_ADD_ON"
)

// AuditLog tracks Who, What, and When for cost computations and rule/link changes
type AuditLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TenantID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	UserID     *uuid.UUID     `gorm:"type:uuid;index" json:"user_id"` // nil for automated passes
	Action     string         `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string         `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string         `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    datatypes.JSON `gorm:"type:jsonb" json:"details"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}
