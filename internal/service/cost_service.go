package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"orderfinance/internal/costing"
	"orderfinance/internal/model"
	"orderfinance/internal/progress"
	"orderfinance/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// recalculationBatchSize is the number of orders loaded per page during tenant-wide passes.
const recalculationBatchSize = 200

// --- DTOs ---

type OrderCostsResponse struct {
	OrderID         string              `json:"order_id"`
	Breakdown       model.CostBreakdown `json:"breakdown"`
	PaymentFeeLinks map[string]string   `json:"payment_fee_links"`
	CostOfGoods     string              `json:"cost_of_goods"`
	CalculatedAt    *string             `json:"costs_calculated_at"`
	Persisted       bool                `json:"persisted"`
}

// --- Interface ---

type CostService interface {
	GetOrderCosts(ctx context.Context, tenantID uuid.UUID, orderID string) (*OrderCostsResponse, error)
	CalculateOrderCosts(ctx context.Context, tenantID uuid.UUID, orderID string, force bool, userID string) (*OrderCostsResponse, error)
	PreviewOrderCosts(ctx context.Context, tenantID uuid.UUID, orderID string) (*OrderCostsResponse, error)
	RecalculateTenant(ctx context.Context, tenantID uuid.UUID, referenceID string) (int, error)
	StartTenantRecalculation(ctx context.Context, tenantID uuid.UUID, userID string) progress.Progress
}

type costService struct {
	writer   *costWriter
	rules    repository.FeeRuleRepository
	products repository.ProductRepository
	tracker  *progress.Tracker
	audit    AuditService
	logger   *zap.Logger
}

func NewCostService(
	engine *costing.Engine,
	orders repository.OrderRepository,
	rules repository.FeeRuleRepository,
	products repository.ProductRepository,
	tracker *progress.Tracker,
	audit AuditService,
	logger *zap.Logger,
) CostService {
	return &costService{
		writer:   newCostWriter(engine, orders, audit, logger),
		rules:    rules,
		products: products,
		tracker:  tracker,
		audit:    audit,
		logger:   logger,
	}
}

// --- Implementation ---

// GetOrderCosts returns the persisted breakdown without recomputing it.
func (s *costService) GetOrderCosts(ctx context.Context, tenantID uuid.UUID, orderID string) (*OrderCostsResponse, error) {
	order, err := s.writer.loadOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	cmv, err := s.costOfGoods(ctx, tenantID, order)
	if err != nil {
		return nil, err
	}
	res := persistedResponse(order)
	res.CostOfGoods = cmv.StringFixed(2)
	return res, nil
}

func (s *costService) CalculateOrderCosts(ctx context.Context, tenantID uuid.UUID, orderID string, force bool, userID string) (*OrderCostsResponse, error) {
	order, err := s.writer.loadOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}

	cmv, err := s.costOfGoods(ctx, tenantID, order)
	if err != nil {
		return nil, err
	}

	if !force && order.CostsCalculatedAt != nil {
		if res := persistedResponse(order); res.Persisted {
			res.CostOfGoods = cmv.StringFixed(2)
			return res, nil
		}
	}

	rules, err := s.rules.ListActive(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load fee rules: %w", err)
	}

	if _, err := s.writer.apply(ctx, order, rules, order.FeeLinks(), userID); err != nil {
		return nil, err
	}

	res := persistedResponse(order)
	res.CostOfGoods = cmv.StringFixed(2)
	return res, nil
}

// PreviewOrderCosts evaluates the current rule set without auto-linking or persisting anything.
func (s *costService) PreviewOrderCosts(ctx context.Context, tenantID uuid.UUID, orderID string) (*OrderCostsResponse, error) {
	order, err := s.writer.loadOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}

	rules, err := s.rules.ListActive(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load fee rules: %w", err)
	}

	cmv, err := s.costOfGoods(ctx, tenantID, order)
	if err != nil {
		return nil, err
	}

	links, _ := s.writer.engine.AutoLink(order, rules, order.FeeLinks())
	eval := s.writer.engine.Calculate(order, rules, links)

	return &OrderCostsResponse{
		OrderID:         order.ID.String(),
		Breakdown:       eval.Breakdown,
		PaymentFeeLinks: linksToStrings(links),
		CostOfGoods:     cmv.StringFixed(2),
		Persisted:       false,
	}, nil
}

// RecalculateTenant recomputes every order of the tenant against one rule snapshot.
// A failing order is logged and counted; the pass continues. It returns the number of orders persisted.
func (s *costService) RecalculateTenant(ctx context.Context, tenantID uuid.UUID, referenceID string) (int, error) {
	key := progress.Key{TenantID: tenantID, Kind: progress.KindTenantRecalculation, ReferenceID: referenceID}
	log := s.logger.With(zap.String("tenant_id", tenantID.String()), zap.String("reference_id", referenceID))

	total, err := s.writer.orders.CountByTenant(ctx, tenantID)
	if err != nil {
		s.tracker.Complete(ctx, key)
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}

	rules, err := s.rules.ListActive(ctx, tenantID)
	if err != nil {
		s.tracker.Complete(ctx, key)
		return 0, fmt.Errorf("failed to load fee rules: %w", err)
	}

	s.tracker.Start(ctx, key, int(total))
	defer s.tracker.Complete(ctx, key)

	succeeded := 0
	err = s.writer.orders.EachByTenant(ctx, tenantID, recalculationBatchSize, func(orders []model.Order) error {
		for i := range orders {
			if err := ctx.Err(); err != nil {
				return err
			}
			order := &orders[i]
			if _, err := s.writer.apply(ctx, order, rules, order.FeeLinks(), ""); err != nil {
				log.Error("failed to recalculate order costs",
					zap.String("order_id", order.ID.String()),
					zap.Error(err))
				s.tracker.Advance(ctx, key, true)
				continue
			}
			succeeded++
			s.tracker.Advance(ctx, key, false)
		}
		return nil
	})
	if err != nil {
		return succeeded, fmt.Errorf("failed to iterate orders: %w", err)
	}

	log.Info("tenant recalculation finished", zap.Int("succeeded", succeeded), zap.Int64("total", total))
	return succeeded, nil
}

// StartTenantRecalculation registers a pending job and runs it in the background.
// The job outlives the request that started it.
func (s *costService) StartTenantRecalculation(ctx context.Context, tenantID uuid.UUID, userID string) progress.Progress {
	key := progress.Key{TenantID: tenantID, Kind: progress.KindTenantRecalculation, ReferenceID: uuid.NewString()}
	p := s.tracker.Pending(ctx, key)

	jobCtx := context.WithoutCancel(ctx)
	go func() {
		count, err := s.RecalculateTenant(jobCtx, tenantID, key.ReferenceID)
		if err != nil {
			s.logger.Error("tenant recalculation aborted",
				zap.String("tenant_id", tenantID.String()),
				zap.String("reference_id", key.ReferenceID),
				zap.Error(err))
		}
		s.audit.Record(jobCtx, tenantID, userID, model.ActionCalculateOrderCosts, key.ReferenceID, "tenant recalculation",
			map[string]interface{}{"recalculated": count})
	}()

	return p
}

func (s *costService) costOfGoods(ctx context.Context, tenantID uuid.UUID, order *model.Order) (decimal.Decimal, error) {
	var ids []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for _, item := range order.Items {
		for _, m := range item.Mappings {
			if !seen[m.ProductID] {
				seen[m.ProductID] = true
				ids = append(ids, m.ProductID)
			}
		}
	}
	if len(ids) == 0 {
		return decimal.Zero, nil
	}

	products, err := s.products.FindByIDs(ctx, tenantID, ids)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load products: %w", err)
	}
	byID := make(map[uuid.UUID]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return costing.CostOfGoods(order.Items, byID), nil
}

// costWriter runs one computation and persists its result. It is shared by every
// operation that rewrites an order's breakdown so links and costs are always written together.
type costWriter struct {
	engine *costing.Engine
	orders repository.OrderRepository
	audit  AuditService
	logger *zap.Logger
	now    func() time.Time
}

func newCostWriter(engine *costing.Engine, orders repository.OrderRepository, audit AuditService, logger *zap.Logger) *costWriter {
	return &costWriter{engine: engine, orders: orders, audit: audit, logger: logger, now: time.Now}
}

func (w *costWriter) loadOrder(ctx context.Context, tenantID uuid.UUID, orderID string) (*model.Order, error) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, invalid("invalid order id %q", orderID)
	}
	order, err := w.orders.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, notFound(err, ErrOrderNotFound, "fetch order")
	}
	return order, nil
}

// apply auto-links any unlinked method, evaluates the rule snapshot and writes the breakdown,
// summary fields and links in one update. Persistence errors are returned to the caller.
// On success the order value is updated to reflect what was written.
func (w *costWriter) apply(ctx context.Context, order *model.Order, rules []model.FeeRule, links map[string]uuid.UUID, userID string) (costing.Evaluation, error) {
	merged, autoLinked := w.engine.AutoLink(order, rules, links)
	eval := w.engine.Calculate(order, rules, merged)

	costs, err := json.Marshal(eval.Breakdown)
	if err != nil {
		return eval, fmt.Errorf("failed to encode cost breakdown: %w", err)
	}

	b := eval.Breakdown
	now := w.now()
	result := repository.CostResult{
		CalculatedCosts:  datatypes.JSON(costs),
		TotalCosts:       decimal.NewFromFloat(b.TotalCosts).Add(decimal.NewFromFloat(b.TotalTaxes)).Add(decimal.NewFromFloat(b.TotalPaymentMethods)),
		TotalCommissions: decimal.NewFromFloat(b.TotalCommissions),
		NetRevenue:       decimal.NewFromFloat(b.NetRevenue),
		CalculatedAt:     now,
		PaymentFeeLinks:  model.EncodeFeeLinks(merged),
	}

	if err := w.orders.UpdateCostResult(ctx, order.TenantID, order.ID, result); err != nil {
		return eval, fmt.Errorf("failed to persist order costs: %w", err)
	}

	order.CalculatedCosts = result.CalculatedCosts
	order.TotalCosts = result.TotalCosts
	order.TotalCommissions = result.TotalCommissions
	order.NetRevenue = result.NetRevenue
	order.CostsCalculatedAt = &now
	order.PaymentFeeLinks = result.PaymentFeeLinks

	if autoLinked {
		w.audit.Record(ctx, order.TenantID, userID, model.ActionAutoLinkPayments, order.ID.String(), order.ExternalID,
			linksToStrings(merged))
	}
	w.audit.Record(ctx, order.TenantID, userID, model.ActionCalculateOrderCosts, order.ID.String(), order.ExternalID,
		map[string]interface{}{
			"net_revenue": b.NetRevenue,
			"base_value":  b.BaseValue,
			"trace":       eval.Trace,
		})

	w.logger.Debug("order costs calculated",
		zap.String("tenant_id", order.TenantID.String()),
		zap.String("order_id", order.ID.String()),
		zap.Float64("net_revenue", b.NetRevenue),
		zap.Bool("auto_linked", autoLinked))

	return eval, nil
}

func persistedResponse(order *model.Order) *OrderCostsResponse {
	res := &OrderCostsResponse{
		OrderID:         order.ID.String(),
		PaymentFeeLinks: linksToStrings(order.FeeLinks()),
	}
	if b := order.Breakdown(); b != nil {
		res.Breakdown = *b
		res.Persisted = true
	}
	if order.CostsCalculatedAt != nil {
		formatted := order.CostsCalculatedAt.Format(time.RFC3339)
		res.CalculatedAt = &formatted
	}
	return res
}

func linksToStrings(links map[string]uuid.UUID) map[string]string {
	out := make(map[string]string, len(links))
	for method, id := range links {
		out[method] = id.String()
	}
	return out
}
