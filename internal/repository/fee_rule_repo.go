package repository

import (
	"context"

	"orderfinance/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ruleOrder is the stable evaluation order of a rule snapshot.
const ruleOrder = "position ASC, created_at ASC, id ASC"

// FeeRuleFilter narrows rule listings; empty fields match everything.
type FeeRuleFilter struct {
	Category   string
	Provider   string
	ActiveOnly bool
}

type FeeRuleRepository interface {
	Create(ctx context.Context, rule *model.FeeRule) error
	Update(ctx context.Context, rule *model.FeeRule) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.FeeRule, error)
	List(ctx context.Context, tenantID uuid.UUID, filter FeeRuleFilter, page, limit int) ([]model.FeeRule, int64, error)
	ListActive(ctx context.Context, tenantID uuid.UUID) ([]model.FeeRule, error)
	NextPosition(ctx context.Context, tenantID uuid.UUID, category string) (int, error)
}

type feeRuleRepository struct {
	db *gorm.DB
}

func NewFeeRuleRepository(db *gorm.DB) FeeRuleRepository {
	return &feeRuleRepository{db: db}
}

func (r *feeRuleRepository) Create(ctx context.Context, rule *model.FeeRule) error {
	return GetDB(ctx, r.db).Create(rule).Error
}

func (r *feeRuleRepository) Update(ctx context.Context, rule *model.FeeRule) error {
	return GetDB(ctx, r.db).Save(rule).Error
}

func (r *feeRuleRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	res := GetDB(ctx, r.db).Where("id = ? AND tenant_id = ?", id, tenantID).Delete(&model.FeeRule{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *feeRuleRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.FeeRule, error) {
	var rule model.FeeRule
	if err := GetDB(ctx, r.db).Where("tenant_id = ?", tenantID).First(&rule, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *feeRuleRepository) List(ctx context.Context, tenantID uuid.UUID, filter FeeRuleFilter, page, limit int) ([]model.FeeRule, int64, error) {
	var rules []model.FeeRule
	var total int64

	db := GetDB(ctx, r.db).Model(&model.FeeRule{}).Where("tenant_id = ?", tenantID)
	if filter.Category != "" {
		db = db.Where("category = ?", filter.Category)
	}
	if filter.Provider != "" {
		db = db.Where("provider = ?", filter.Provider)
	}
	if filter.ActiveOnly {
		db = db.Where("is_active = ?", true)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order(ruleOrder).Offset(offset).Limit(limit).Find(&rules).Error; err != nil {
		return nil, 0, err
	}

	return rules, total, nil
}

// ListActive loads the tenant's active rules in evaluation order. One call is one snapshot.
func (r *feeRuleRepository) ListActive(ctx context.Context, tenantID uuid.UUID) ([]model.FeeRule, error) {
	var rules []model.FeeRule
	if err := GetDB(ctx, r.db).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Order(ruleOrder).
		Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *feeRuleRepository) NextPosition(ctx context.Context, tenantID uuid.UUID, category string) (int, error) {
	var maxPos int
	if err := GetDB(ctx, r.db).Model(&model.FeeRule{}).
		Where("tenant_id = ? AND category = ?", tenantID, category).
		Select("COALESCE(MAX(position), -1)").
		Scan(&maxPos).Error; err != nil {
		return 0, err
	}
	return maxPos + 1, nil
}
