package service

import (
	"context"
	"testing"

	"orderfinance/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type pizzaFixture struct {
	*fixture
	svc      ItemMappingService
	mappings *fakeMappingRepo
	tx       *fakeTxManager
	item     uuid.UUID
	flavors  []uuid.UUID
}

func newPizzaFixture(t *testing.T) *pizzaFixture {
	f := newFixture(t)
	mappings := newFakeMappingRepo()
	tx := &fakeTxManager{}

	item := model.OrderItem{
		ID:       uuid.New(),
		OrderID:  uuid.New(),
		Name:     "Pizza grande 3 sabores",
		Quantity: decimal.NewFromInt(1),
		AddOns:   datatypes.JSON(`[{"name": "Calabresa"}, {"name": "Mussarela"}, {"name": "Portuguesa"}]`),
	}
	mappings.items[item.ID] = item
	mappings.tenants[item.ID] = f.tenant

	var flavors []uuid.UUID
	for _, name := range []string{"Calabresa", "Mussarela", "Portuguesa"} {
		p := model.Product{ID: uuid.New(), TenantID: f.tenant, Name: name, UnitCost: decimal.NewFromInt(12)}
		f.products.products[p.ID] = p
		flavors = append(flavors, p.ID)
	}

	return &pizzaFixture{
		fixture:  f,
		svc:      NewItemMappingService(tx, mappings, f.products, f.audit, f.logger),
		mappings: mappings,
		tx:       tx,
		item:     item.ID,
		flavors:  flavors,
	}
}

func (p *pizzaFixture) classify(t *testing.T, index int) []ItemMappingResponse {
	t.Helper()
	res, err := p.svc.ClassifyAddOn(context.Background(), p.tenant, p.item.String(), index,
		ClassifyAddOnRequest{ProductID: p.flavors[index].String()}, "")
	require.NoError(t, err)
	return res
}

func quantities(mappings []ItemMappingResponse) []string {
	out := make([]string, 0, len(mappings))
	for _, m := range mappings {
		out = append(out, m.Quantity)
	}
	return out
}

func TestItemMappingService_FractionsFollowClassifiedFlavors(t *testing.T) {
	p := newPizzaFixture(t)

	assert.Equal(t, []string{"1.000000"}, quantities(p.classify(t, 0)))
	assert.Equal(t, []string{"0.500000", "0.500000"}, quantities(p.classify(t, 1)))
	assert.Equal(t, []string{"0.333333", "0.333333", "0.333333"}, quantities(p.classify(t, 2)))

	// reclassifying an add-on with another product keeps the split
	res, err := p.svc.ClassifyAddOn(context.Background(), p.tenant, p.item.String(), 2,
		ClassifyAddOnRequest{ProductID: p.flavors[0].String(), Multiplier: "2"}, "")
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, p.flavors[0].String(), res[2].ProductID)
	assert.Equal(t, "2.0000", res[2].Multiplier)
	assert.Equal(t, "0.333333", res[2].Quantity)

	res, err = p.svc.UnclassifyAddOn(context.Background(), p.tenant, p.item.String(), 1, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"0.500000", "0.500000"}, quantities(res))
	assert.Equal(t, []int{0, 2}, []int{res[0].AddOnIndex, res[1].AddOnIndex})

	assert.Equal(t, 5, p.tx.calls)
	assert.Contains(t, p.audits.actions(), model.ActionClassifyAddOn)
	assert.Contains(t, p.audits.actions(), model.ActionUnclassifyAddOn)
}

func TestItemMappingService_Errors(t *testing.T) {
	p := newPizzaFixture(t)
	ctx := context.Background()
	product := p.flavors[0].String()

	_, err := p.svc.ClassifyAddOn(ctx, p.tenant, p.item.String(), 3, ClassifyAddOnRequest{ProductID: product}, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = p.svc.ClassifyAddOn(ctx, p.tenant, p.item.String(), 0, ClassifyAddOnRequest{ProductID: product, Multiplier: "0"}, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = p.svc.ClassifyAddOn(ctx, uuid.New(), p.item.String(), 0, ClassifyAddOnRequest{ProductID: product}, "")
	assert.ErrorIs(t, err, ErrItemNotFound)

	foreign := model.Product{ID: uuid.New(), TenantID: uuid.New(), Name: "Atum"}
	p.products.products[foreign.ID] = foreign
	_, err = p.svc.ClassifyAddOn(ctx, p.tenant, p.item.String(), 0, ClassifyAddOnRequest{ProductID: foreign.ID.String()}, "")
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = p.svc.UnclassifyAddOn(ctx, p.tenant, p.item.String(), 1, "")
	assert.ErrorIs(t, err, ErrMappingNotFound)

	assert.Empty(t, p.mappings.mappings[p.item])
}
