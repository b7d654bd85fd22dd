package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"orderfinance/internal/costing"
	"orderfinance/internal/model"
	"orderfinance/internal/repository"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- DTOs ---

type FeeRuleRequest struct {
	Name               string   `json:"name" binding:"required"`
	Category           string   `json:"category" binding:"required,oneof=cost commission tax payment_method"`
	ValueType          string   `json:"value_type" binding:"required,oneof=percentage fixed"`
	Value              string   `json:"value" binding:"required"` // Decimal string, "2.5" = 2.5% when percentage
	AppliesTo          string   `json:"applies_to" binding:"omitempty,oneof=payment_method order_type delivery_only store all_orders"`
	ConditionValue     string   `json:"condition_value"`
	ConditionValues    []string `json:"condition_values"`
	Provider           string   `json:"provider"` // "", "ifood" or "anotaai:ifood"
	PaymentType        string   `json:"payment_type" binding:"omitempty,oneof=online offline all"`
	DeliveryScope      string   `json:"delivery_scope" binding:"omitempty,oneof=store marketplace any"`
	AffectsRevenueBase bool     `json:"affects_revenue_base"`
	ReducesRevenueBase bool     `json:"reduces_revenue_base"`
	EntersTaxBase      bool     `json:"enters_tax_base"`
	IsActive           *bool    `json:"is_active"`
	Position           *int     `json:"position"`
}

type FeeRuleResponse struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Category           string   `json:"category"`
	ValueType          string   `json:"value_type"`
	Value              string   `json:"value"`
	AppliesTo          string   `json:"applies_to"`
	ConditionValue     string   `json:"condition_value"`
	ConditionValues    []string `json:"condition_values"`
	Provider           string   `json:"provider"`
	PaymentType        string   `json:"payment_type"`
	DeliveryScope      string   `json:"delivery_scope"`
	AffectsRevenueBase bool     `json:"affects_revenue_base"`
	ReducesRevenueBase bool     `json:"reduces_revenue_base"`
	EntersTaxBase      bool     `json:"enters_tax_base"`
	IsActive           bool     `json:"is_active"`
	Position           int      `json:"position"`
	CreatedAt          string   `json:"created_at"`
}

type FeeRuleFilter struct {
	Category   string
	Provider   string
	ActiveOnly bool
}

// --- Interface ---

type FeeRuleService interface {
	GetFeeRules(ctx context.Context, tenantID uuid.UUID, filter FeeRuleFilter, page, limit int) ([]FeeRuleResponse, int64, error)
	GetFeeRule(ctx context.Context, tenantID uuid.UUID, id string) (FeeRuleResponse, error)
	CreateFeeRule(ctx context.Context, tenantID uuid.UUID, req FeeRuleRequest, userID string) (FeeRuleResponse, error)
	UpdateFeeRule(ctx context.Context, tenantID uuid.UUID, id string, req FeeRuleRequest, userID string) (FeeRuleResponse, error)
	DeleteFeeRule(ctx context.Context, tenantID uuid.UUID, id string, userID string) error
}

type feeRuleService struct {
	repo   repository.FeeRuleRepository
	audit  AuditService
	logger *zap.Logger
}

func NewFeeRuleService(repo repository.FeeRuleRepository, audit AuditService, logger *zap.Logger) FeeRuleService {
	return &feeRuleService{repo: repo, audit: audit, logger: logger}
}

// --- Implementation ---

func (s *feeRuleService) GetFeeRules(ctx context.Context, tenantID uuid.UUID, filter FeeRuleFilter, page, limit int) ([]FeeRuleResponse, int64, error) {
	rules, total, err := s.repo.List(ctx, tenantID, repository.FeeRuleFilter{
		Category:   filter.Category,
		Provider:   normalizeProvider(filter.Provider),
		ActiveOnly: filter.ActiveOnly,
	}, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch fee rules: %w", err)
	}

	res := make([]FeeRuleResponse, 0, len(rules))
	for _, r := range rules {
		res = append(res, toFeeRuleResponse(r))
	}
	return res, total, nil
}

func (s *feeRuleService) GetFeeRule(ctx context.Context, tenantID uuid.UUID, id string) (FeeRuleResponse, error) {
	rule, err := s.findRule(ctx, tenantID, id)
	if err != nil {
		return FeeRuleResponse{}, err
	}
	return toFeeRuleResponse(*rule), nil
}

func (s *feeRuleService) CreateFeeRule(ctx context.Context, tenantID uuid.UUID, req FeeRuleRequest, userID string) (FeeRuleResponse, error) {
	rule := model.FeeRule{TenantID: tenantID, IsActive: true}
	if err := applyFeeRuleRequest(&rule, req); err != nil {
		return FeeRuleResponse{}, err
	}

	if req.Position == nil {
		pos, err := s.repo.NextPosition(ctx, tenantID, rule.Category)
		if err != nil {
			return FeeRuleResponse{}, fmt.Errorf("failed to resolve rule position: %w", err)
		}
		rule.Position = pos
	}

	if err := s.repo.Create(ctx, &rule); err != nil {
		return FeeRuleResponse{}, fmt.Errorf("failed to create fee rule: %w", err)
	}

	s.audit.Record(ctx, tenantID, userID, model.ActionCreateFeeRule, rule.ID.String(), rule.Name, req)
	s.logger.Info("fee rule created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("rule_id", rule.ID.String()),
		zap.String("category", rule.Category))

	return toFeeRuleResponse(rule), nil
}

func (s *feeRuleService) UpdateFeeRule(ctx context.Context, tenantID uuid.UUID, id string, req FeeRuleRequest, userID string) (FeeRuleResponse, error) {
	rule, err := s.findRule(ctx, tenantID, id)
	if err != nil {
		return FeeRuleResponse{}, err
	}

	previousCategory := rule.Category
	if err := applyFeeRuleRequest(rule, req); err != nil {
		return FeeRuleResponse{}, err
	}
	if req.Position == nil && rule.Category != previousCategory {
		pos, err := s.repo.NextPosition(ctx, tenantID, rule.Category)
		if err != nil {
			return FeeRuleResponse{}, fmt.Errorf("failed to resolve rule position: %w", err)
		}
		rule.Position = pos
	}

	if err := s.repo.Update(ctx, rule); err != nil {
		return FeeRuleResponse{}, fmt.Errorf("failed to update fee rule: %w", err)
	}

	s.audit.Record(ctx, tenantID, userID, model.ActionUpdateFeeRule, rule.ID.String(), rule.Name, req)

	return toFeeRuleResponse(*rule), nil
}

// DeleteFeeRule soft-deletes the rule. Orders still linking it fall back to heuristic matching
// on their next computation.
func (s *feeRuleService) DeleteFeeRule(ctx context.Context, tenantID uuid.UUID, id string, userID string) error {
	rule, err := s.findRule(ctx, tenantID, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, tenantID, rule.ID); err != nil {
		return notFound(err, ErrRuleNotFound, "delete fee rule")
	}

	s.audit.Record(ctx, tenantID, userID, model.ActionDeleteFeeRule, rule.ID.String(), rule.Name, map[string]string{"deleted_id": id})

	return nil
}

func (s *feeRuleService) findRule(ctx context.Context, tenantID uuid.UUID, id string) (*model.FeeRule, error) {
	ruleID, err := uuid.Parse(id)
	if err != nil {
		return nil, invalid("invalid fee rule id %q", id)
	}
	rule, err := s.repo.FindByID(ctx, tenantID, ruleID)
	if err != nil {
		return nil, notFound(err, ErrRuleNotFound, "fetch fee rule")
	}
	return rule, nil
}

// --- Helpers ---

// applyFeeRuleRequest validates req and copies it onto rule with canonicalized conditions.
func applyFeeRuleRequest(rule *model.FeeRule, req FeeRuleRequest) error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return invalid("name is required")
	}

	category := strings.ToLower(strings.TrimSpace(req.Category))
	switch category {
	case model.RuleCategoryCost, model.RuleCategoryCommission, model.RuleCategoryTax, model.RuleCategoryPaymentMethod:
	default:
		return invalid("unknown category %q", req.Category)
	}

	valueType := strings.ToLower(strings.TrimSpace(req.ValueType))
	switch valueType {
	case model.ValueTypePercentage, model.ValueTypeFixed:
	default:
		return invalid("unknown value type %q", req.ValueType)
	}

	value, err := decimal.NewFromString(strings.TrimSpace(req.Value))
	if err != nil {
		return invalid("invalid value %q", req.Value)
	}
	if value.IsNegative() {
		return invalid("value must not be negative")
	}

	appliesTo := strings.ToLower(strings.TrimSpace(req.AppliesTo))
	switch appliesTo {
	case "", model.AppliesToPaymentMethod, model.AppliesToOrderType, model.AppliesToDeliveryOnly,
		model.AppliesToStore, model.AppliesToAllOrders:
	default:
		return invalid("unknown applies_to %q", req.AppliesTo)
	}

	paymentType := strings.ToLower(strings.TrimSpace(req.PaymentType))
	switch paymentType {
	case "", model.PaymentTypeOnline, model.PaymentTypeOffline, model.PaymentTypeAll:
	default:
		return invalid("unknown payment type %q", req.PaymentType)
	}

	deliveryScope := strings.ToLower(strings.TrimSpace(req.DeliveryScope))
	switch deliveryScope {
	case "", model.DeliveryScopeStore, model.DeliveryScopeMarketplace, model.DeliveryScopeAny:
	default:
		return invalid("unknown delivery scope %q", req.DeliveryScope)
	}

	rule.Name = name
	rule.Category = category
	rule.ValueType = valueType
	rule.Value = value
	rule.AppliesTo = appliesTo
	rule.Provider = normalizeProvider(req.Provider)
	rule.PaymentType = paymentType
	rule.DeliveryScope = deliveryScope
	rule.AffectsRevenueBase = req.AffectsRevenueBase
	rule.ReducesRevenueBase = req.ReducesRevenueBase
	rule.EntersTaxBase = req.EntersTaxBase
	rule.ConditionValue, rule.ConditionValues = canonicalConditions(appliesTo, category, req.ConditionValue, req.ConditionValues)
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if req.Position != nil {
		rule.Position = *req.Position
	}
	return nil
}

// canonicalConditions normalizes condition values the way they are matched: payment-method
// tokens upper-cased, order types mapped to DELIVERY/INDOOR/TAKEOUT, store ids kept verbatim.
func canonicalConditions(appliesTo, category, single string, values []string) (string, pq.StringArray) {
	canon := func(v string) string {
		switch {
		case appliesTo == model.AppliesToOrderType:
			return costing.NormalizeOrderType(v)
		case appliesTo == model.AppliesToStore:
			return strings.TrimSpace(v)
		case appliesTo == model.AppliesToPaymentMethod || category == model.RuleCategoryPaymentMethod:
			return costing.CanonicalToken(v)
		default:
			return strings.TrimSpace(v)
		}
	}

	out := pq.StringArray{}
	seen := make(map[string]bool)
	for _, v := range values {
		c := canon(v)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return canon(single), out
}

// normalizeProvider lower-cases a provider scope and trims both halves of a composite.
func normalizeProvider(p string) string {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(p)), ":")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return strings.Trim(strings.Join(parts, ":"), ":")
}

func toFeeRuleResponse(r model.FeeRule) FeeRuleResponse {
	values := []string(r.ConditionValues)
	if values == nil {
		values = []string{}
	}
	return FeeRuleResponse{
		ID:                 r.ID.String(),
		Name:               r.Name,
		Category:           r.Category,
		ValueType:          r.ValueType,
		Value:              r.Value.StringFixed(4),
		AppliesTo:          r.AppliesTo,
		ConditionValue:     r.ConditionValue,
		ConditionValues:    values,
		Provider:           r.Provider,
		PaymentType:        r.PaymentType,
		DeliveryScope:      r.DeliveryScope,
		AffectsRevenueBase: r.AffectsRevenueBase,
		ReducesRevenueBase: r.ReducesRevenueBase,
		EntersTaxBase:      r.EntersTaxBase,
		IsActive:           r.IsActive,
		Position:           r.Position,
		CreatedAt:          r.CreatedAt.Format(time.RFC3339),
	}
}
