package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"orderfinance/internal/costing"
	"orderfinance/internal/model"
	"orderfinance/internal/progress"
	"orderfinance/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- DTOs ---

type ManualLinkRequest struct {
	Method    string `json:"method" binding:"required"`
	FeeRuleID string `json:"fee_rule_id" binding:"required"`
}

type BulkRelinkRequest struct {
	Method    string `json:"method" binding:"required"`
	FeeRuleID string `json:"fee_rule_id" binding:"required"`
}

type LinkResult struct {
	Linked        bool                   `json:"linked"`
	Method        string                 `json:"method"`
	FeeRuleID     string                 `json:"fee_rule_id"`
	Reason        string                 `json:"reason,omitempty"`
	Compatibility *costing.Compatibility `json:"compatibility,omitempty"`
}

type PaymentLinkResponse struct {
	Method    string  `json:"method"`
	FeeRuleID *string `json:"fee_rule_id"`
	RuleName  string  `json:"rule_name,omitempty"`
}

type LinkableRuleResponse struct {
	FeeRuleResponse
	Compatibility costing.Compatibility `json:"compatibility"`
}

// --- Interface ---

type PaymentFeeLinkService interface {
	GetLinks(ctx context.Context, tenantID uuid.UUID, orderID string) ([]PaymentLinkResponse, error)
	AutoLink(ctx context.Context, tenantID uuid.UUID, orderID, userID string) (map[string]string, error)
	LinkManually(ctx context.Context, tenantID uuid.UUID, orderID string, req ManualLinkRequest, userID string) (*LinkResult, error)
	Compatibility(ctx context.Context, tenantID uuid.UUID, orderID, method, ruleID string) (*costing.Compatibility, error)
	ListLinkableRules(ctx context.Context, tenantID uuid.UUID, orderID, method string) ([]LinkableRuleResponse, error)
	BulkRelink(ctx context.Context, tenantID uuid.UUID, req BulkRelinkRequest, userID string) (int, error)
	StartBulkRelink(ctx context.Context, tenantID uuid.UUID, req BulkRelinkRequest, userID string) (progress.Progress, error)
	Unlink(ctx context.Context, tenantID uuid.UUID, orderID, method, userID string) error
	UnlinkAll(ctx context.Context, tenantID uuid.UUID, orderID, userID string) error
}

type paymentFeeLinkService struct {
	writer  *costWriter
	rules   repository.FeeRuleRepository
	tracker *progress.Tracker
	audit   AuditService
	logger  *zap.Logger
}

func NewPaymentFeeLinkService(
	engine *costing.Engine,
	orders repository.OrderRepository,
	rules repository.FeeRuleRepository,
	tracker *progress.Tracker,
	audit AuditService,
	logger *zap.Logger,
) PaymentFeeLinkService {
	return &paymentFeeLinkService{
		writer:  newCostWriter(engine, orders, audit, logger),
		rules:   rules,
		tracker: tracker,
		audit:   audit,
		logger:  logger,
	}
}

// --- Implementation ---

// GetLinks lists every canonical method on the order with its linked rule, if any.
func (s *paymentFeeLinkService) GetLinks(ctx context.Context, tenantID uuid.UUID, orderID string) ([]PaymentLinkResponse, error) {
	order, err := s.writer.loadOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}

	links := order.FeeLinks()
	res := make([]PaymentLinkResponse, 0, len(links))
	seen := make(map[string]bool)
	for _, method := range s.writer.engine.PaymentMethods(order) {
		seen[method] = true
		res = append(res, s.linkResponse(ctx, tenantID, method, links))
	}
	// links to methods no longer present on the order are still reported
	for method := range links {
		if !seen[method] {
			res = append(res, s.linkResponse(ctx, tenantID, method, links))
		}
	}
	return res, nil
}

func (s *paymentFeeLinkService) linkResponse(ctx context.Context, tenantID uuid.UUID, method string, links map[string]uuid.UUID) PaymentLinkResponse {
	item := PaymentLinkResponse{Method: method}
	id, ok := links[method]
	if !ok {
		return item
	}
	idStr := id.String()
	item.FeeRuleID = &idStr
	if rule, err := s.rules.FindByID(ctx, tenantID, id); err == nil {
		item.RuleName = rule.Name
	}
	return item
}

// AutoLink links every unlinked method and recomputes the order.
func (s *paymentFeeLinkService) AutoLink(ctx context.Context, tenantID uuid.UUID, orderID, userID string) (map[string]string, error) {
	order, err := s.writer.loadOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	rules, err := s.rules.ListActive(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load fee rules: %w", err)
	}
	if _, err := s.writer.apply(ctx, order, rules, order.FeeLinks(), userID); err != nil {
		return nil, err
	}
	return linksToStrings(order.FeeLinks()), nil
}

// LinkManually attaches any active payment-method rule of the tenant to a method of the order,
// regardless of its compatibility score, and recomputes the order. Unknown, foreign, inactive or
// non payment-method rules yield a not-linked result rather than an error.
func (s *paymentFeeLinkService) LinkManually(ctx context.Context, tenantID uuid.UUID, orderID string, req ManualLinkRequest, userID string) (*LinkResult, error) {
	method := costing.CanonicalMethod(req.Method)
	if method == "" {
		return nil, ErrInvalidMethod
	}

	order, err := s.writer.loadOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}

	result := &LinkResult{Method: method, FeeRuleID: req.FeeRuleID}
	ruleID, err := uuid.Parse(req.FeeRuleID)
	if err != nil {
		result.Reason = "invalid fee rule id"
		return result, nil
	}
	rule, err := s.rules.FindByID(ctx, tenantID, ruleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			result.Reason = "fee rule not found"
			return result, nil
		}
		return nil, fmt.Errorf("failed to fetch fee rule: %w", err)
	}
	if !rule.IsActive || rule.Category != model.RuleCategoryPaymentMethod {
		result.Reason = "fee rule is not an active payment method rule"
		return result, nil
	}

	compat := s.writer.engine.Compatibility(order, rule, method)
	result.Compatibility = &compat

	rules, err := s.rules.ListActive(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load fee rules: %w", err)
	}

	links := order.FeeLinks()
	costing.SetLink(links, method, rule.ID)
	if _, err := s.writer.apply(ctx, order, rules, links, userID); err != nil {
		return nil, err
	}
	result.Linked = true

	s.audit.Record(ctx, tenantID, userID, model.ActionLinkPaymentFee, order.ID.String(), order.ExternalID,
		map[string]interface{}{"method": method, "fee_rule_id": rule.ID.String(), "score": compat.Score})

	return result, nil
}

// Compatibility scores one rule of the tenant against a method of the order. It is advisory only.
func (s *paymentFeeLinkService) Compatibility(ctx context.Context, tenantID uuid.UUID, orderID, method, ruleID string) (*costing.Compatibility, error) {
	method = costing.CanonicalMethod(method)
	if method == "" {
		return nil, ErrInvalidMethod
	}
	order, err := s.writer.loadOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(ruleID)
	if err != nil {
		return nil, invalid("invalid fee rule id %q", ruleID)
	}
	rule, err := s.rules.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, notFound(err, ErrRuleNotFound, "fetch fee rule")
	}
	compat := s.writer.engine.Compatibility(order, rule, method)
	return &compat, nil
}

// ListLinkableRules returns the tenant's active payment-method rules scored against one method, best first.
func (s *paymentFeeLinkService) ListLinkableRules(ctx context.Context, tenantID uuid.UUID, orderID, method string) ([]LinkableRuleResponse, error) {
	method = costing.CanonicalMethod(method)
	if method == "" {
		return nil, ErrInvalidMethod
	}
	order, err := s.writer.loadOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	rules, err := s.rules.ListActive(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load fee rules: %w", err)
	}

	res := make([]LinkableRuleResponse, 0)
	for i := range rules {
		rule := &rules[i]
		if rule.Category != model.RuleCategoryPaymentMethod {
			continue
		}
		res = append(res, LinkableRuleResponse{
			FeeRuleResponse: toFeeRuleResponse(*rule),
			Compatibility:   s.writer.engine.Compatibility(order, rule, method),
		})
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].Compatibility.Score > res[j].Compatibility.Score
	})
	return res, nil
}

// BulkRelink links method to the rule on every tenant order carrying that method and recomputes
// each of them. A failing order is logged and counted; the pass continues. It returns the number
// of orders relinked.
func (s *paymentFeeLinkService) BulkRelink(ctx context.Context, tenantID uuid.UUID, req BulkRelinkRequest, userID string) (int, error) {
	return s.bulkRelink(ctx, tenantID, req, userID, req.Method+":"+req.FeeRuleID)
}

// StartBulkRelink validates the request, registers a pending job and runs the relink in the background.
func (s *paymentFeeLinkService) StartBulkRelink(ctx context.Context, tenantID uuid.UUID, req BulkRelinkRequest, userID string) (progress.Progress, error) {
	if _, _, err := s.relinkTarget(ctx, tenantID, req); err != nil {
		return progress.Progress{}, err
	}
	ref := uuid.NewString()
	key := progress.Key{TenantID: tenantID, Kind: progress.KindBulkRelink, ReferenceID: ref}
	p := s.tracker.Pending(ctx, key)

	jobCtx := context.WithoutCancel(ctx)
	go func() {
		if _, err := s.bulkRelink(jobCtx, tenantID, req, userID, ref); err != nil {
			s.logger.Error("bulk relink aborted",
				zap.String("tenant_id", tenantID.String()),
				zap.String("reference_id", ref),
				zap.Error(err))
		}
	}()
	return p, nil
}

func (s *paymentFeeLinkService) relinkTarget(ctx context.Context, tenantID uuid.UUID, req BulkRelinkRequest) (string, *model.FeeRule, error) {
	method := costing.CanonicalMethod(req.Method)
	if method == "" {
		return "", nil, ErrInvalidMethod
	}
	ruleID, err := uuid.Parse(req.FeeRuleID)
	if err != nil {
		return "", nil, invalid("invalid fee rule id %q", req.FeeRuleID)
	}
	rule, err := s.rules.FindByID(ctx, tenantID, ruleID)
	if err != nil {
		return "", nil, notFound(err, ErrRuleNotFound, "fetch fee rule")
	}
	if !rule.IsActive || rule.Category != model.RuleCategoryPaymentMethod {
		return "", nil, ErrRuleNotFound
	}
	return method, rule, nil
}

func (s *paymentFeeLinkService) bulkRelink(ctx context.Context, tenantID uuid.UUID, req BulkRelinkRequest, userID, referenceID string) (int, error) {
	key := progress.Key{TenantID: tenantID, Kind: progress.KindBulkRelink, ReferenceID: referenceID}

	method, rule, err := s.relinkTarget(ctx, tenantID, req)
	if err != nil {
		s.tracker.Complete(ctx, key)
		return 0, err
	}

	log := s.logger.With(
		zap.String("tenant_id", tenantID.String()),
		zap.String("method", method),
		zap.String("rule_id", rule.ID.String()))

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

	relinked, failed := 0, 0
	err = s.writer.orders.EachByTenant(ctx, tenantID, recalculationBatchSize, func(orders []model.Order) error {
		for i := range orders {
			if err := ctx.Err(); err != nil {
				return err
			}
			order := &orders[i]
			if !s.writer.engine.HasMethod(order, method) {
				s.tracker.Advance(ctx, key, false)
				continue
			}
			links := order.FeeLinks()
			costing.SetLink(links, method, rule.ID)
			if _, err := s.writer.apply(ctx, order, rules, links, userID); err != nil {
				log.Error("failed to relink order",
					zap.String("order_id", order.ID.String()),
					zap.Error(err))
				failed++
				s.tracker.Advance(ctx, key, true)
				continue
			}
			relinked++
			s.tracker.Advance(ctx, key, false)
		}
		return nil
	})
	if err != nil {
		return relinked, fmt.Errorf("failed to iterate orders: %w", err)
	}

	s.audit.Record(ctx, tenantID, userID, model.ActionBulkRelink, rule.ID.String(), rule.Name,
		map[string]interface{}{"method": method, "relinked": relinked, "failed": failed})
	log.Info("bulk relink finished", zap.Int("relinked", relinked), zap.Int("failed", failed))

	return relinked, nil
}

// Unlink removes one method's link and marks the stored breakdown stale, so the next
// calculation recomputes it instead of serving fees priced by the removed rule.
func (s *paymentFeeLinkService) Unlink(ctx context.Context, tenantID uuid.UUID, orderID, method, userID string) error {
	method = costing.CanonicalMethod(method)
	if method == "" {
		return ErrInvalidMethod
	}
	order, err := s.writer.loadOrder(ctx, tenantID, orderID)
	if err != nil {
		return err
	}

	links := order.FeeLinks()
	removed := ""
	for m := range links {
		if costing.MethodsMatch(m, method) {
			removed = links[m].String()
			delete(links, m)
		}
	}
	if err := s.writer.orders.ResetPaymentFeeLinks(ctx, tenantID, order.ID, model.EncodeFeeLinks(links)); err != nil {
		return notFound(err, ErrOrderNotFound, "update payment fee links")
	}

	s.audit.Record(ctx, tenantID, userID, model.ActionUnlinkPaymentFee, order.ID.String(), order.ExternalID,
		map[string]string{"method": method, "fee_rule_id": removed})
	return nil
}

// UnlinkAll clears every link of the order and marks the stored breakdown stale.
func (s *paymentFeeLinkService) UnlinkAll(ctx context.Context, tenantID uuid.UUID, orderID, userID string) error {
	order, err := s.writer.loadOrder(ctx, tenantID, orderID)
	if err != nil {
		return err
	}
	if err := s.writer.orders.ResetPaymentFeeLinks(ctx, tenantID, order.ID, model.EncodeFeeLinks(nil)); err != nil {
		return notFound(err, ErrOrderNotFound, "clear payment fee links")
	}

	s.audit.Record(ctx, tenantID, userID, model.ActionUnlinkPaymentFee, order.ID.String(), order.ExternalID,
		linksToStrings(order.FeeLinks()))
	return nil
}
