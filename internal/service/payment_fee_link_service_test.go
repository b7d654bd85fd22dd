package service

import (
	"context"
	"errors"
	"testing"

	"orderfinance/internal/costing"
	"orderfinance/internal/model"
	"orderfinance/internal/progress"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const creditOrder = `{
	"total": 50,
	"payments": [
		{"code": "credit", "name": "Visa Crédito", "keyword": "credit", "value": 30},
		{"code": "credit", "name": "Master Crédito", "keyword": "credit", "value": 20}
	]
}`

func TestLinkService_LinkManuallyIgnoresCompatibility(t *testing.T) {
	f := newFixture(t)
	svc := f.linkService()

	order := f.addOrder(model.ProviderAnotaAI, creditOrder)
	fee := cardFee("2", "CREDIT")
	fee.Provider = model.ProviderKeeta
	fee = f.addRule(fee)

	res, err := svc.LinkManually(context.Background(), f.tenant, order.ID.String(),
		ManualLinkRequest{Method: "credit_card", FeeRuleID: fee.ID.String()}, "")
	require.NoError(t, err)

	assert.True(t, res.Linked)
	assert.Equal(t, costing.MethodCreditCard, res.Method)
	require.NotNil(t, res.Compatibility)
	assert.False(t, res.Compatibility.ProviderMatch)
	assert.False(t, res.Compatibility.Recommended)

	stored := f.orders.get(order.ID)
	assert.Equal(t, fee.ID, stored.FeeLinks()[costing.MethodCreditCard])
	b := stored.Breakdown()
	require.NotNil(t, b)
	require.Len(t, b.PaymentMethods, 2)
	assert.Equal(t, 2.0, b.TotalPaymentMethods)
	assert.Equal(t, 48.0, b.NetRevenue)
	assert.Contains(t, f.audits.actions(), model.ActionLinkPaymentFee)
}

func TestLinkService_LinkManuallyStoresCanonicalMethod(t *testing.T) {
	f := newFixture(t)
	svc := f.linkService()
	ctx := context.Background()

	order := f.addOrder(model.ProviderAnotaAI, creditOrder)
	first := f.addRule(cardFee("1", "CREDIT"))
	second := f.addRule(cardFee("3", "CREDIT"))

	res, err := svc.LinkManually(ctx, f.tenant, order.ID.String(), ManualLinkRequest{Method: "credit", FeeRuleID: first.ID.String()}, "")
	require.NoError(t, err)
	require.True(t, res.Linked)
	assert.Equal(t, costing.MethodCreditCard, res.Method)

	res, err = svc.LinkManually(ctx, f.tenant, order.ID.String(), ManualLinkRequest{Method: " Credit_Card ", FeeRuleID: second.ID.String()}, "")
	require.NoError(t, err)
	require.True(t, res.Linked)

	links := f.orders.get(order.ID).FeeLinks()
	require.Len(t, links, 1)
	assert.Equal(t, second.ID, links[costing.MethodCreditCard])
}

func TestLinkService_LinkManuallyRejectsForeignAndInactiveRules(t *testing.T) {
	f := newFixture(t)
	svc := f.linkService()
	ctx := context.Background()

	order := f.addOrder(model.ProviderAnotaAI, pixOrder)

	foreign := cardFee("1", "PIX")
	foreign.TenantID = uuid.New()
	foreign = f.addRule(foreign)

	inactive := cardFee("1", "PIX")
	inactive.IsActive = false
	inactive = f.addRule(inactive)

	commission := f.addRule(rule("Commission", model.RuleCategoryCommission, model.ValueTypePercentage, "10", ""))

	for name, id := range map[string]string{
		"foreign":   foreign.ID.String(),
		"inactive":  inactive.ID.String(),
		"category":  commission.ID.String(),
		"unknown":   uuid.NewString(),
		"malformed": "nope",
	} {
		t.Run(name, func(t *testing.T) {
			res, err := svc.LinkManually(ctx, f.tenant, order.ID.String(), ManualLinkRequest{Method: "PIX", FeeRuleID: id}, "")
			require.NoError(t, err)
			assert.False(t, res.Linked)
			assert.NotEmpty(t, res.Reason)
		})
	}

	assert.Equal(t, 0, f.orders.updates)
	assert.Empty(t, f.orders.get(order.ID).FeeLinks())

	_, err := svc.LinkManually(ctx, f.tenant, order.ID.String(), ManualLinkRequest{Method: "  ", FeeRuleID: foreign.ID.String()}, "")
	assert.ErrorIs(t, err, ErrInvalidMethod)
}

func TestLinkService_UnlinkMarksBreakdownStale(t *testing.T) {
	f := newFixture(t)
	svc := f.linkService()
	costs := f.costService()
	ctx := context.Background()

	order := f.addOrder(model.ProviderAnotaAI, pixOrder)
	fee := f.addRule(cardFee("1", "PIX"))

	linked, err := svc.AutoLink(ctx, f.tenant, order.ID.String(), "")
	require.NoError(t, err)
	assert.Equal(t, fee.ID.String(), linked[costing.MethodPix])

	require.NoError(t, svc.Unlink(ctx, f.tenant, order.ID.String(), "pix", ""))
	stored := f.orders.get(order.ID)
	assert.Empty(t, stored.FeeLinks())
	assert.Nil(t, stored.CostsCalculatedAt)

	links, err := svc.GetLinks(ctx, f.tenant, order.ID.String())
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, costing.MethodPix, links[0].Method)
	assert.Nil(t, links[0].FeeRuleID)

	// a non-forced calculation recomputes instead of serving the unlinked breakdown
	updates := f.orders.updates
	res, err := costs.CalculateOrderCosts(ctx, f.tenant, order.ID.String(), false, "")
	require.NoError(t, err)
	assert.Equal(t, updates+1, f.orders.updates)
	assert.Equal(t, fee.ID, f.orders.get(order.ID).FeeLinks()[costing.MethodPix])
	assert.Equal(t, fee.ID.String(), res.PaymentFeeLinks[costing.MethodPix])

	require.NoError(t, svc.UnlinkAll(ctx, f.tenant, order.ID.String(), ""))
	assert.Empty(t, f.orders.get(order.ID).FeeLinks())
	assert.Nil(t, f.orders.get(order.ID).CostsCalculatedAt)
	assert.Contains(t, f.audits.actions(), model.ActionUnlinkPaymentFee)
}

func TestLinkService_GetLinksReportsRuleNames(t *testing.T) {
	f := newFixture(t)
	svc := f.linkService()
	ctx := context.Background()

	order := f.addOrder(model.ProviderAnotaAI, pixOrder)
	f.addRule(cardFee("1", "PIX"))
	_, err := svc.AutoLink(ctx, f.tenant, order.ID.String(), "")
	require.NoError(t, err)

	links, err := svc.GetLinks(ctx, f.tenant, order.ID.String())
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.NotNil(t, links[0].FeeRuleID)
	assert.Equal(t, "Card fee", links[0].RuleName)
}

func TestLinkService_ListLinkableRulesBestFirst(t *testing.T) {
	f := newFixture(t)
	svc := f.linkService()
	ctx := context.Background()

	order := f.addOrder(model.ProviderAnotaAI, pixOrder)
	generic := cardFee("3")
	generic.Name = "Any online or offline"
	generic.Position = 0
	f.addRule(generic)
	pix := cardFee("1", "PIX")
	pix.Name = "Pix"
	pix.Position = 1
	pix = f.addRule(pix)
	f.addRule(rule("Commission", model.RuleCategoryCommission, model.ValueTypePercentage, "10", ""))

	rules, err := svc.ListLinkableRules(ctx, f.tenant, order.ID.String(), "pix")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, pix.ID.String(), rules[0].ID)
	assert.Equal(t, 1.0, rules[0].Compatibility.Score)
	assert.True(t, rules[0].Compatibility.Recommended)
	assert.Equal(t, costing.MethodGeneric, rules[1].Compatibility.MethodMatch)
	assert.Less(t, rules[1].Compatibility.Score, rules[0].Compatibility.Score)

	compat, err := svc.Compatibility(ctx, f.tenant, order.ID.String(), "PIX", pix.ID.String())
	require.NoError(t, err)
	assert.Equal(t, costing.MethodSpecific, compat.MethodMatch)

	_, err = svc.Compatibility(ctx, f.tenant, order.ID.String(), "PIX", uuid.NewString())
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestLinkService_BulkRelinkCountsOnlySuccesses(t *testing.T) {
	f := newFixture(t)
	notifier := &recordingNotifier{}
	f.tracker = progress.NewTracker(f.store, notifier, f.logger)
	svc := f.linkService()
	ctx := context.Background()

	fee := f.addRule(cardFee("1", "PIX"))
	relinked := f.addOrder(model.ProviderAnotaAI, pixOrder)
	broken := f.addOrder(model.ProviderAnotaAI, pixOrder)
	cash := f.addOrder(model.ProviderAnotaAI, `{"total": 20, "payments": [{"keyword": "money", "name": "Dinheiro", "value": 20}]}`)
	f.orders.failUpdate[broken.ID] = errors.New("statement timeout")

	req := BulkRelinkRequest{Method: "pix", FeeRuleID: fee.ID.String()}
	count, err := svc.BulkRelink(ctx, f.tenant, req, "")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Equal(t, fee.ID, f.orders.get(relinked.ID).FeeLinks()[costing.MethodPix])
	assert.Nil(t, f.orders.get(cash.ID).CostsCalculatedAt)
	assert.Empty(t, f.orders.get(broken.ID).FeeLinks())

	key := progress.Key{TenantID: f.tenant, Kind: progress.KindBulkRelink, ReferenceID: "pix:" + fee.ID.String()}
	p, err := f.tracker.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, progress.StatusCompleted, p.Status)
	assert.Equal(t, 3, p.Processed)
	assert.Equal(t, 1, p.Failed)
	assert.NotEmpty(t, notifier.updates)
	assert.Contains(t, f.audits.actions(), model.ActionBulkRelink)
}

func TestLinkService_BulkRelinkValidatesTarget(t *testing.T) {
	f := newFixture(t)
	svc := f.linkService()
	ctx := context.Background()

	commission := f.addRule(rule("Commission", model.RuleCategoryCommission, model.ValueTypePercentage, "10", ""))

	_, err := svc.BulkRelink(ctx, f.tenant, BulkRelinkRequest{Method: "PIX", FeeRuleID: commission.ID.String()}, "")
	assert.ErrorIs(t, err, ErrRuleNotFound)

	_, err = svc.BulkRelink(ctx, f.tenant, BulkRelinkRequest{Method: "PIX", FeeRuleID: uuid.NewString()}, "")
	assert.ErrorIs(t, err, ErrRuleNotFound)

	_, err = svc.StartBulkRelink(ctx, f.tenant, BulkRelinkRequest{Method: "", FeeRuleID: commission.ID.String()}, "")
	assert.ErrorIs(t, err, ErrInvalidMethod)
}
