package costing

import (
	"testing"

	"orderfinance/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const linkingPayload = `{"total": 80, "payments": [
	{"keyword": "credit", "name": "Visa", "value": 50, "prepaid": true},
	{"keyword": "pix", "name": "Pix", "value": 30}
]}`

func TestAutoLink_PrefersSpecificRule(t *testing.T) {
	engine := NewEngine(Config{})
	order := newOrder(model.ProviderAnotaAI, "", linkingPayload)

	generic := paymentRule("All online", "4", model.PaymentTypeOnline)
	specific := paymentRule("Online credit", "3", model.PaymentTypeOnline, "CREDIT")
	pix := paymentRule("Pix", "1", model.PaymentTypeAll, "PIX")
	wrongType := paymentRule("Offline credit", "2", model.PaymentTypeOffline, "CREDIT_CARD")

	links, changed := engine.AutoLink(order, []model.FeeRule{generic, wrongType, specific, pix}, nil)

	assert.True(t, changed)
	assert.Equal(t, map[string]uuid.UUID{
		MethodCreditCard: specific.ID,
		MethodPix:        pix.ID,
	}, links)
}

func TestAutoLink_ProviderSpecificityBreaksTies(t *testing.T) {
	engine := NewEngine(Config{})
	order := newOrder(model.ProviderAnotaAI, model.ProviderIFood, linkingPayload)

	shared := paymentRule("Shared credit", "3", model.PaymentTypeAll, "CREDIT_CARD")
	host := paymentRule("Host credit", "3", model.PaymentTypeAll, "CREDIT_CARD")
	host.Provider = model.ProviderAnotaAI
	composite := paymentRule("Sub-channel credit", "3", model.PaymentTypeAll, "CREDIT_CARD")
	composite.Provider = "anotaai:ifood"
	foreign := paymentRule("Keeta credit", "3", model.PaymentTypeAll, "CREDIT_CARD")
	foreign.Provider = model.ProviderKeeta

	links, _ := engine.AutoLink(order, []model.FeeRule{shared, foreign, host, composite}, nil)

	assert.Equal(t, composite.ID, links[MethodCreditCard])
	_, ok := links[MethodPix]
	assert.False(t, ok)
}

func TestAutoLink_KeepsExistingLinks(t *testing.T) {
	engine := NewEngine(Config{})
	order := newOrder(model.ProviderAnotaAI, "", linkingPayload)
	manual := uuid.New()
	credit := paymentRule("Credit", "3", model.PaymentTypeAll, "CREDIT_CARD")
	inactive := paymentRule("Pix", "1", model.PaymentTypeAll, "PIX")
	inactive.IsActive = false

	existing := map[string]uuid.UUID{"CREDIT": manual}
	links, changed := engine.AutoLink(order, []model.FeeRule{credit, inactive}, existing)

	assert.False(t, changed)
	assert.Equal(t, existing, links)
	links["PIX"] = uuid.New()
	assert.Len(t, existing, 1)
}

func TestAutoLink_OriginScopeBeatsAgnosticRule(t *testing.T) {
	engine := NewEngine(Config{})
	order := newOrder(model.ProviderAnotaAI, model.ProviderIFood, linkingPayload)

	shared := paymentRule("Shared credit", "3", model.PaymentTypeAll, "CREDIT_CARD")
	origin := paymentRule("iFood credit", "3", model.PaymentTypeAll, "CREDIT_CARD")
	origin.Provider = model.ProviderIFood

	links, _ := engine.AutoLink(order, []model.FeeRule{shared, origin}, nil)
	assert.Equal(t, origin.ID, links[MethodCreditCard])

	c := engine.Compatibility(order, &origin, MethodCreditCard)
	assert.True(t, c.ProviderMatch)
	assert.True(t, c.Recommended)
}

func TestCalculate_LegacyLinkKeysResolveDeterministically(t *testing.T) {
	engine := NewEngine(Config{})
	order := newOrder(model.ProviderAnotaAI, "", `{"total": 40, "payments": [{"keyword": "money", "name": "Dinheiro", "value": 40}]}`)
	low := paymentRule("Cash low", "1", model.PaymentTypeAll, "CASH")
	high := paymentRule("Cash high", "3", model.PaymentTypeAll, "CASH")
	links := map[string]uuid.UUID{"MONEY": low.ID, "DINHEIRO": high.ID}

	totals := make(map[float64]bool)
	for i := 0; i < 50; i++ {
		b := engine.Calculate(order, []model.FeeRule{low, high}, links).Breakdown
		totals[b.TotalPaymentMethods] = true
	}
	// "DINHEIRO" sorts before "MONEY"
	assert.Equal(t, map[float64]bool{1.2: true}, totals)
}

func TestSetLink_ReplacesLegacyAliases(t *testing.T) {
	old, replacement := uuid.New(), uuid.New()
	links := map[string]uuid.UUID{"MONEY": old, "DINHEIRO": old, MethodPix: old}

	SetLink(links, " dinheiro ", replacement)

	assert.Equal(t, map[string]uuid.UUID{MethodCash: replacement, MethodPix: old}, links)
	assert.Equal(t, MethodCreditCard, CanonicalMethod("credit"))
	assert.Equal(t, MethodDebitCard, CanonicalMethod(" Debit "))
	assert.Equal(t, MethodPix, CanonicalMethod("pix"))
	assert.Equal(t, "VALE", CanonicalMethod("vale"))
}

func TestCompatibility(t *testing.T) {
	engine := NewEngine(Config{})
	order := newOrder(model.ProviderAnotaAI, "", linkingPayload)

	specific := paymentRule("Online credit", "3", model.PaymentTypeOnline, "CREDIT")
	specific.Provider = model.ProviderAnotaAI
	c := engine.Compatibility(order, &specific, MethodCreditCard)
	assert.Equal(t, 1.0, c.Score)
	assert.True(t, c.Recommended)
	assert.Equal(t, MethodSpecific, c.MethodMatch)

	generic := paymentRule("Keeta offline", "3", model.PaymentTypeOffline)
	generic.Provider = model.ProviderKeeta
	c = engine.Compatibility(order, &generic, MethodPix)
	assert.False(t, c.ProviderMatch)
	assert.True(t, c.PaymentTypeMatch)
	assert.Equal(t, MethodGeneric, c.MethodMatch)
	assert.Equal(t, 0.45, c.Score)
	assert.False(t, c.Recommended)

	mismatch := paymentRule("Debit", "3", model.PaymentTypeOnline, "DEBIT_CARD")
	c = engine.Compatibility(order, &mismatch, MethodPix)
	assert.Equal(t, 0.4, c.Score)
	assert.Equal(t, MethodNone, c.MethodMatch)
}

func TestPaymentMethods(t *testing.T) {
	engine := NewEngine(Config{})
	order := newOrder(model.ProviderAnotaAI, "", `{"total": 10, "payments": [
		{"keyword": "pix", "value": 5},
		{"keyword": "subsidy", "value": 2},
		{"keyword": "pix", "value": 3},
		{"keyword": "money", "value": 2}
	]}`)

	assert.Equal(t, []string{MethodPix, MethodCash}, engine.PaymentMethods(order))
	assert.True(t, engine.HasMethod(order, "DINHEIRO"))
	assert.False(t, engine.HasMethod(order, MethodCreditCard))
}

func TestFractions_AllocationFollowsClassifiedCount(t *testing.T) {
	item := uuid.New()
	mapping := func(index int) model.ItemMapping {
		return model.ItemMapping{ID: uuid.New(), OrderItemID: item, AddOnIndex: index, IsFraction: true}
	}

	mappings := []model.ItemMapping{mapping(0), mapping(2)}
	changed := AllocateFractions(mappings)
	require.Len(t, changed, 2)
	for _, m := range mappings {
		assert.Equal(t, "0.5", m.Quantity.String())
	}

	assert.Empty(t, AllocateFractions(mappings))

	mappings = append(mappings, mapping(1))
	changed = AllocateFractions(mappings)
	assert.Len(t, changed, 3)
	for _, m := range mappings {
		assert.Equal(t, "0.333333", m.Quantity.String())
	}
}

func TestCostOfGoods_ThirdsAddUpToWholeUnit(t *testing.T) {
	product := model.Product{ID: uuid.New(), UnitCost: decimal.RequireFromString("12.50")}
	products := map[uuid.UUID]model.Product{product.ID: product}

	mappings := make([]model.ItemMapping, 3)
	for i := range mappings {
		mappings[i] = model.ItemMapping{ID: uuid.New(), ProductID: product.ID, AddOnIndex: i, IsFraction: true}
	}
	AllocateFractions(mappings)
	require.Equal(t, "0.333333", mappings[0].Quantity.String())

	items := []model.OrderItem{{Quantity: decimal.NewFromInt(4), Mappings: mappings}}
	assert.Equal(t, "50", CostOfGoods(items, products).String())

	// whole-item mappings still use their stored quantity
	whole := model.ItemMapping{ProductID: product.ID, AddOnIndex: model.WholeItem, Quantity: decimal.RequireFromString("0.5")}
	items[0].Mappings = append(items[0].Mappings, whole)
	assert.Equal(t, "75", CostOfGoods(items, products).String())
}

func TestFractions_SingleAndWholeItem(t *testing.T) {
	whole := model.ItemMapping{ID: uuid.New(), AddOnIndex: model.WholeItem, Quantity: FractionFor(4)}
	only := model.ItemMapping{ID: uuid.New(), AddOnIndex: 0, IsFraction: true}
	mappings := []model.ItemMapping{whole, only}

	AllocateFractions(mappings)

	assert.Equal(t, "1", mappings[1].Quantity.String())
	assert.Equal(t, "0.25", mappings[0].Quantity.String())
}
