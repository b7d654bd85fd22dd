package repository

import (
	"context"

	"orderfinance/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ItemMappingRepository interface {
	FindItem(ctx context.Context, tenantID, itemID uuid.UUID) (*model.OrderItem, error)
	ListByItemForUpdate(ctx context.Context, itemID uuid.UUID) ([]model.ItemMapping, error)
	Upsert(ctx context.Context, mapping *model.ItemMapping) error
	Delete(ctx context.Context, itemID uuid.UUID, addOnIndex int) error
	UpdateQuantity(ctx context.Context, id uuid.UUID, quantity decimal.Decimal) error
}

type itemMappingRepository struct {
	db *gorm.DB
}

func NewItemMappingRepository(db *gorm.DB) ItemMappingRepository {
	return &itemMappingRepository{db: db}
}

// FindItem loads an order item scoped to the tenant through its order.
func (r *itemMappingRepository) FindItem(ctx context.Context, tenantID, itemID uuid.UUID) (*model.OrderItem, error) {
	var item model.OrderItem
	if err := GetDB(ctx, r.db).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.tenant_id = ?", tenantID).
		First(&item, "order_items.id = ?", itemID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// ListByItemForUpdate locks the item's mappings so concurrent classifications of the same
// item recompute fractions one at a time.
func (r *itemMappingRepository) ListByItemForUpdate(ctx context.Context, itemID uuid.UUID) ([]model.ItemMapping, error) {
	if !inTx(ctx) {
		return nil, ErrNoTransaction
	}
	var mappings []model.ItemMapping
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_item_id = ?", itemID).
		Order("add_on_index ASC").
		Find(&mappings).Error; err != nil {
		return nil, err
	}
	return mappings, nil
}

// Upsert inserts the mapping or replaces the product of an existing (item, add-on) mapping.
func (r *itemMappingRepository) Upsert(ctx context.Context, mapping *model.ItemMapping) error {
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_item_id"}, {Name: "add_on_index"}},
		DoUpdates: clause.AssignmentColumns([]string{"product_id", "multiplier", "is_fraction", "updated_at"}),
	}).Create(mapping).Error
}

func (r *itemMappingRepository) Delete(ctx context.Context, itemID uuid.UUID, addOnIndex int) error {
	res := GetDB(ctx, r.db).
		Where("order_item_id = ? AND add_on_index = ?", itemID, addOnIndex).
		Delete(&model.ItemMapping{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *itemMappingRepository) UpdateQuantity(ctx context.Context, id uuid.UUID, quantity decimal.Decimal) error {
	return GetDB(ctx, r.db).Model(&model.ItemMapping{}).Where("id = ?", id).Update("quantity", quantity).Error
}
