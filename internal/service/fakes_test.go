package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"orderfinance/internal/costing"
	"orderfinance/internal/model"
	"orderfinance/internal/progress"
	"orderfinance/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// --- orders ---

type fakeOrderRepo struct {
	mu         sync.Mutex
	orders     map[uuid.UUID]*model.Order
	failUpdate map[uuid.UUID]error
	updates    int
}

func newFakeOrderRepo(orders ...*model.Order) *fakeOrderRepo {
	r := &fakeOrderRepo{orders: make(map[uuid.UUID]*model.Order), failUpdate: make(map[uuid.UUID]error)}
	for _, o := range orders {
		r.orders[o.ID] = o
	}
	return r
}

func (r *fakeOrderRepo) Create(_ context.Context, order *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	r.orders[order.ID] = order
	return nil
}

func (r *fakeOrderRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.TenantID != tenantID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrderRepo) sorted(tenantID uuid.UUID) []model.Order {
	var out []model.Order
	for _, o := range r.orders {
		if o.TenantID == tenantID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

func (r *fakeOrderRepo) List(_ context.Context, tenantID uuid.UUID, page, limit int) ([]model.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.sorted(tenantID)
	return all, int64(len(all)), nil
}

func (r *fakeOrderRepo) CountByTenant(_ context.Context, tenantID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.sorted(tenantID))), nil
}

func (r *fakeOrderRepo) EachByTenant(_ context.Context, tenantID uuid.UUID, batchSize int, fn func(orders []model.Order) error) error {
	r.mu.Lock()
	all := r.sorted(tenantID)
	r.mu.Unlock()
	for start := 0; start < len(all); start += batchSize {
		end := start + batchSize
		if end > len(all) {
			end = len(all)
		}
		if err := fn(all[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeOrderRepo) UpdateCostResult(_ context.Context, tenantID, id uuid.UUID, result repository.CostResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failUpdate[id]; err != nil {
		return err
	}
	o, ok := r.orders[id]
	if !ok || o.TenantID != tenantID {
		return gorm.ErrRecordNotFound
	}
	r.updates++
	at := result.CalculatedAt
	o.CalculatedCosts = result.CalculatedCosts
	o.TotalCosts = result.TotalCosts
	o.TotalCommissions = result.TotalCommissions
	o.NetRevenue = result.NetRevenue
	o.CostsCalculatedAt = &at
	o.PaymentFeeLinks = result.PaymentFeeLinks
	return nil
}

func (r *fakeOrderRepo) ResetPaymentFeeLinks(_ context.Context, tenantID, id uuid.UUID, links datatypes.JSON) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.TenantID != tenantID {
		return gorm.ErrRecordNotFound
	}
	o.PaymentFeeLinks = links
	o.CostsCalculatedAt = nil
	return nil
}

func (r *fakeOrderRepo) get(id uuid.UUID) *model.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *r.orders[id]
	return &cp
}

// --- fee rules ---

type fakeRuleRepo struct {
	mu      sync.Mutex
	rules   []model.FeeRule
	listErr error
}

func newFakeRuleRepo(rules ...model.FeeRule) *fakeRuleRepo {
	return &fakeRuleRepo{rules: rules}
}

func (r *fakeRuleRepo) Create(_ context.Context, rule *model.FeeRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule.ID = uuid.New()
	rule.CreatedAt = time.Now()
	r.rules = append(r.rules, *rule)
	return nil
}

func (r *fakeRuleRepo) Update(_ context.Context, rule *model.FeeRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rules {
		if r.rules[i].ID == rule.ID {
			r.rules[i] = *rule
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeRuleRepo) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rules {
		if r.rules[i].ID == id && r.rules[i].TenantID == tenantID {
			r.rules = append(r.rules[:i], r.rules[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeRuleRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*model.FeeRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rule := range r.rules {
		if rule.ID == id && rule.TenantID == tenantID {
			cp := rule
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRuleRepo) List(_ context.Context, tenantID uuid.UUID, filter repository.FeeRuleFilter, page, limit int) ([]model.FeeRule, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.FeeRule
	for _, rule := range r.rules {
		if rule.TenantID != tenantID {
			continue
		}
		if filter.Category != "" && rule.Category != filter.Category {
			continue
		}
		if filter.ActiveOnly && !rule.IsActive {
			continue
		}
		out = append(out, rule)
	}
	return out, int64(len(out)), nil
}

func (r *fakeRuleRepo) ListActive(_ context.Context, tenantID uuid.UUID) ([]model.FeeRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []model.FeeRule
	for _, rule := range r.rules {
		if rule.TenantID == tenantID && rule.IsActive {
			out = append(out, rule)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *fakeRuleRepo) NextPosition(_ context.Context, tenantID uuid.UUID, category string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := 0
	for _, rule := range r.rules {
		if rule.TenantID == tenantID && rule.Category == category && rule.Position >= next {
			next = rule.Position + 1
		}
	}
	return next, nil
}

// --- audit ---

type fakeAuditRepo struct {
	mu   sync.Mutex
	logs []model.AuditLog
	err  error
}

func (r *fakeAuditRepo) Log(_ context.Context, entry *model.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.logs = append(r.logs, *entry)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, tenantID uuid.UUID, filter repository.AuditFilter, page, limit int) ([]model.AuditLog, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.AuditLog
	for _, l := range r.logs {
		if l.TenantID == tenantID && (filter.Action == "" || l.Action == filter.Action) {
			out = append(out, l)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeAuditRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.logs))
	for _, l := range r.logs {
		out = append(out, l.Action)
	}
	return out
}

// --- products & mappings ---

type fakeProductRepo struct {
	products map[uuid.UUID]model.Product
}

func (r *fakeProductRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*model.Product, error) {
	p, ok := r.products[id]
	if !ok || p.TenantID != tenantID {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r *fakeProductRepo) FindByIDs(_ context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]model.Product, error) {
	var out []model.Product
	for _, id := range ids {
		if p, ok := r.products[id]; ok && p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeMappingRepo struct {
	mu       sync.Mutex
	tenants  map[uuid.UUID]uuid.UUID // item -> tenant
	items    map[uuid.UUID]model.OrderItem
	mappings map[uuid.UUID][]model.ItemMapping
	locks    int
}

func newFakeMappingRepo() *fakeMappingRepo {
	return &fakeMappingRepo{
		tenants:  make(map[uuid.UUID]uuid.UUID),
		items:    make(map[uuid.UUID]model.OrderItem),
		mappings: make(map[uuid.UUID][]model.ItemMapping),
	}
}

func (r *fakeMappingRepo) FindItem(_ context.Context, tenantID, itemID uuid.UUID) (*model.OrderItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[itemID]
	if !ok || r.tenants[itemID] != tenantID {
		return nil, gorm.ErrRecordNotFound
	}
	return &item, nil
}

func (r *fakeMappingRepo) ListByItemForUpdate(_ context.Context, itemID uuid.UUID) ([]model.ItemMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locks++
	out := append([]model.ItemMapping(nil), r.mappings[itemID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].AddOnIndex < out[j].AddOnIndex })
	return out, nil
}

func (r *fakeMappingRepo) Upsert(_ context.Context, mapping *model.ItemMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.mappings[mapping.OrderItemID]
	for i := range list {
		if list[i].AddOnIndex == mapping.AddOnIndex {
			list[i].ProductID = mapping.ProductID
			list[i].Multiplier = mapping.Multiplier
			list[i].IsFraction = mapping.IsFraction
			mapping.ID = list[i].ID
			return nil
		}
	}
	mapping.ID = uuid.New()
	r.mappings[mapping.OrderItemID] = append(list, *mapping)
	return nil
}

func (r *fakeMappingRepo) Delete(_ context.Context, itemID uuid.UUID, addOnIndex int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.mappings[itemID]
	for i := range list {
		if list[i].AddOnIndex == addOnIndex {
			r.mappings[itemID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeMappingRepo) UpdateQuantity(_ context.Context, id uuid.UUID, quantity decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for item, list := range r.mappings {
		for i := range list {
			if list[i].ID == id {
				r.mappings[item][i].Quantity = quantity
				return nil
			}
		}
	}
	return gorm.ErrRecordNotFound
}

type fakeTxManager struct{ calls int }

func (m *fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

// --- fixtures ---

type recordingNotifier struct {
	mu      sync.Mutex
	updates []progress.Progress
}

func (n *recordingNotifier) Notify(p progress.Progress) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, p)
}

type fixture struct {
	tenant   uuid.UUID
	engine   *costing.Engine
	orders   *fakeOrderRepo
	rules    *fakeRuleRepo
	products *fakeProductRepo
	audits   *fakeAuditRepo
	audit    AuditService
	store    *progress.MemoryStore
	tracker  *progress.Tracker
	logger   *zap.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	audits := &fakeAuditRepo{}
	store := progress.NewMemoryStore(10 * time.Minute)
	return &fixture{
		tenant:   uuid.New(),
		engine:   costing.NewEngine(costing.DefaultConfig()),
		orders:   newFakeOrderRepo(),
		rules:    newFakeRuleRepo(),
		products: &fakeProductRepo{products: make(map[uuid.UUID]model.Product)},
		audits:   audits,
		audit:    NewAuditService(audits, logger),
		store:    store,
		tracker:  progress.NewTracker(store, nil, logger),
		logger:   logger,
	}
}

func (f *fixture) costService() CostService {
	return NewCostService(f.engine, f.orders, f.rules, f.products, f.tracker, f.audit, f.logger)
}

func (f *fixture) linkService() PaymentFeeLinkService {
	return NewPaymentFeeLinkService(f.engine, f.orders, f.rules, f.tracker, f.audit, f.logger)
}

func (f *fixture) addOrder(provider, raw string) *model.Order {
	o := &model.Order{
		ID:       uuid.New(),
		TenantID: f.tenant,
		Provider: provider,
		Raw:      datatypes.JSON(raw),
		PlacedAt: time.Now(),
	}
	f.orders.orders[o.ID] = o
	return o
}

func (f *fixture) addRule(r model.FeeRule) model.FeeRule {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.TenantID == uuid.Nil {
		r.TenantID = f.tenant
	}
	f.rules.rules = append(f.rules.rules, r)
	return r
}

func rule(name, category, valueType, value, appliesTo string) model.FeeRule {
	return model.FeeRule{
		Name:      name,
		Category:  category,
		ValueType: valueType,
		Value:     decimal.RequireFromString(value),
		AppliesTo: appliesTo,
		IsActive:  true,
	}
}

func cardFee(value string, methods ...string) model.FeeRule {
	r := rule("Card fee", model.RuleCategoryPaymentMethod, model.ValueTypePercentage, value, model.AppliesToPaymentMethod)
	r.PaymentType = model.PaymentTypeAll
	r.ConditionValues = methods
	return r
}
