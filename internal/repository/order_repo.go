package repository

import (
	"context"
	"time"

	"orderfinance/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CostResult is everything one cost computation writes back to an order.
type CostResult struct {
	CalculatedCosts  datatypes.JSON
	TotalCosts       decimal.Decimal
	TotalCommissions decimal.Decimal
	NetRevenue       decimal.Decimal
	CalculatedAt     time.Time
	PaymentFeeLinks  datatypes.JSON
}

type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Order, error)
	List(ctx context.Context, tenantID uuid.UUID, page, limit int) ([]model.Order, int64, error)
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
	EachByTenant(ctx context.Context, tenantID uuid.UUID, batchSize int, fn func(orders []model.Order) error) error
	UpdateCostResult(ctx context.Context, tenantID, id uuid.UUID, result CostResult) error
	ResetPaymentFeeLinks(ctx context.Context, tenantID, id uuid.UUID, links datatypes.JSON) error
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	return GetDB(ctx, r.db).Create(order).Error
}

func (r *orderRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	if err := GetDB(ctx, r.db).
		Preload("Items").
		Preload("Items.Mappings").
		Where("tenant_id = ?", tenantID).
		First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) List(ctx context.Context, tenantID uuid.UUID, page, limit int) ([]model.Order, int64, error) {
	var orders []model.Order
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Order{}).Where("tenant_id = ?", tenantID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("placed_at DESC").Offset(offset).Limit(limit).Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *orderRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var total int64
	err := GetDB(ctx, r.db).Model(&model.Order{}).Where("tenant_id = ?", tenantID).Count(&total).Error
	return total, err
}

// EachByTenant walks the tenant's orders in primary-key batches. Items are not preloaded;
// cost computation only needs the order row.
func (r *orderRepository) EachByTenant(ctx context.Context, tenantID uuid.UUID, batchSize int, fn func(orders []model.Order) error) error {
	var batch []model.Order
	return GetDB(ctx, r.db).
		Where("tenant_id = ?", tenantID).
		FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
			return fn(batch)
		}).Error
}

// UpdateCostResult writes the breakdown, the summary fields and the links in a single UPDATE
// so readers never observe a breakdown paired with stale links.
func (r *orderRepository) UpdateCostResult(ctx context.Context, tenantID, id uuid.UUID, result CostResult) error {
	res := GetDB(ctx, r.db).Model(&model.Order{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Updates(map[string]interface{}{
			"calculated_costs":    result.CalculatedCosts,
			"total_costs":         result.TotalCosts,
			"total_commissions":   result.TotalCommissions,
			"net_revenue":         result.NetRevenue,
			"costs_calculated_at": result.CalculatedAt,
			"payment_fee_links":   result.PaymentFeeLinks,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ResetPaymentFeeLinks replaces the links and clears costs_calculated_at in the same UPDATE,
// so the stored breakdown is never served again as if it matched the new links.
func (r *orderRepository) ResetPaymentFeeLinks(ctx context.Context, tenantID, id uuid.UUID, links datatypes.JSON) error {
	res := GetDB(ctx, r.db).Model(&model.Order{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Updates(map[string]interface{}{
			"payment_fee_links":   links,
			"costs_calculated_at": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
