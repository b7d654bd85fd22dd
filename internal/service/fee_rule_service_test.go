package service

import (
	"context"
	"testing"

	"orderfinance/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeeRuleService_CreateCanonicalizes(t *testing.T) {
	f := newFixture(t)
	svc := NewFeeRuleService(f.rules, f.audit, f.logger)
	ctx := context.Background()

	f.addRule(cardFee("1", "PIX"))

	res, err := svc.CreateFeeRule(ctx, f.tenant, FeeRuleRequest{
		Name:            " Cards ",
		Category:        "payment_method",
		ValueType:       "percentage",
		Value:           "2.99",
		AppliesTo:       "payment_method",
		ConditionValues: []string{" credit_card", "debit", "CREDIT_CARD", ""},
		Provider:        " AnotaAI : iFood ",
		PaymentType:     "offline",
	}, uuid.NewString())
	require.NoError(t, err)

	assert.Equal(t, "Cards", res.Name)
	assert.Equal(t, []string{"CREDIT_CARD", "DEBIT"}, res.ConditionValues)
	assert.Equal(t, "anotaai:ifood", res.Provider)
	assert.Equal(t, "2.9900", res.Value)
	assert.Equal(t, 1, res.Position)
	assert.True(t, res.IsActive)
	assert.Contains(t, f.audits.actions(), model.ActionCreateFeeRule)

	got, err := svc.GetFeeRule(ctx, f.tenant, res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.ID, got.ID)
}

func TestFeeRuleService_OrderTypeConditionsAreNormalized(t *testing.T) {
	f := newFixture(t)
	svc := NewFeeRuleService(f.rules, f.audit, f.logger)

	res, err := svc.CreateFeeRule(context.Background(), f.tenant, FeeRuleRequest{
		Name:           "Delivery packaging",
		Category:       "cost",
		ValueType:      "fixed",
		Value:          "1.5",
		AppliesTo:      "order_type",
		ConditionValue: "entrega",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "DELIVERY", res.ConditionValue)
	assert.Equal(t, 0, res.Position)
	assert.Empty(t, res.ConditionValues)
}

func TestFeeRuleService_Validation(t *testing.T) {
	f := newFixture(t)
	svc := NewFeeRuleService(f.rules, f.audit, f.logger)

	valid := FeeRuleRequest{Name: "Tax", Category: "tax", ValueType: "percentage", Value: "6"}

	tests := []struct {
		name   string
		mutate func(r *FeeRuleRequest)
	}{
		{"blank name", func(r *FeeRuleRequest) { r.Name = "  " }},
		{"unknown category", func(r *FeeRuleRequest) { r.Category = "discount" }},
		{"unknown value type", func(r *FeeRuleRequest) { r.ValueType = "ratio" }},
		{"malformed value", func(r *FeeRuleRequest) { r.Value = "six" }},
		{"negative value", func(r *FeeRuleRequest) { r.Value = "-1" }},
		{"unknown applies_to", func(r *FeeRuleRequest) { r.AppliesTo = "weekends" }},
		{"unknown payment type", func(r *FeeRuleRequest) { r.PaymentType = "crypto" }},
		{"unknown delivery scope", func(r *FeeRuleRequest) { r.DeliveryScope = "drone" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			_, err := svc.CreateFeeRule(context.Background(), f.tenant, req, "")
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.Empty(t, f.rules.rules)
}

func TestFeeRuleService_UpdateAndDeleteAreTenantScoped(t *testing.T) {
	f := newFixture(t)
	svc := NewFeeRuleService(f.rules, f.audit, f.logger)
	ctx := context.Background()

	existing := f.addRule(rule("Commission", model.RuleCategoryCommission, model.ValueTypePercentage, "12", model.AppliesToAllOrders))
	inactive := false

	res, err := svc.UpdateFeeRule(ctx, f.tenant, existing.ID.String(), FeeRuleRequest{
		Name:               "Commission",
		Category:           "commission",
		ValueType:          "percentage",
		Value:              "11",
		AppliesTo:          "all_orders",
		ReducesRevenueBase: true,
		IsActive:           &inactive,
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "11.0000", res.Value)
	assert.False(t, res.IsActive)
	assert.True(t, res.ReducesRevenueBase)

	_, err = svc.UpdateFeeRule(ctx, uuid.New(), existing.ID.String(), FeeRuleRequest{Name: "x", Category: "tax", ValueType: "fixed", Value: "1"}, "")
	assert.ErrorIs(t, err, ErrRuleNotFound)

	assert.ErrorIs(t, svc.DeleteFeeRule(ctx, uuid.New(), existing.ID.String(), ""), ErrRuleNotFound)
	require.NoError(t, svc.DeleteFeeRule(ctx, f.tenant, existing.ID.String(), ""))

	_, err = svc.GetFeeRule(ctx, f.tenant, existing.ID.String())
	assert.ErrorIs(t, err, ErrRuleNotFound)
	_, err = svc.GetFeeRule(ctx, f.tenant, "bogus")
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Equal(t, []string{model.ActionUpdateFeeRule, model.ActionDeleteFeeRule}, f.audits.actions())
}

func TestFeeRuleService_List(t *testing.T) {
	f := newFixture(t)
	svc := NewFeeRuleService(f.rules, f.audit, f.logger)

	f.addRule(rule("Commission", model.RuleCategoryCommission, model.ValueTypePercentage, "12", ""))
	f.addRule(cardFee("1", "PIX"))

	rules, total, err := svc.GetFeeRules(context.Background(), f.tenant, FeeRuleFilter{Category: model.RuleCategoryPaymentMethod}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, rules, 1)
	assert.Equal(t, []string{"PIX"}, rules[0].ConditionValues)
}
