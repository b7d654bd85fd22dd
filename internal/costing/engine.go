package costing

import (
	"strings"

	"orderfinance/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HostedFeeLineID identifies the fixed handling-fee commission line in a breakdown.
const HostedFeeLineID = "hosted_fixed_fee"

// HostedChannel describes a sub-channel routed through a host provider that pays the
// delivery fee outside the revenue pool and charges a fixed handling fee per order.
type HostedChannel struct {
	HostProvider     string
	Origin           string
	SalesChannelTags []string
	FixedFee         decimal.Decimal
	FixedFeeName     string
}

// Config holds engine-wide settings.
type Config struct {
	HostedChannels []HostedChannel
}

// DefaultConfig returns the hosted-channel table used in production.
func DefaultConfig() Config {
	return Config{
		HostedChannels: []HostedChannel{
			{
				HostProvider:     model.ProviderAnotaAI,
				Origin:           model.ProviderIFood,
				SalesChannelTags: []string{"IFOOD"},
				FixedFee:         decimal.NewFromInt(1),
				FixedFeeName:     "iFood fixed fee",
			},
		},
	}
}

// Engine computes cost breakdowns. It holds no per-order state and is safe for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine creates an engine. An empty hosted-channel table disables the delivery-fee exclusion.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// hostedChannel returns the hosted-channel entry matching the order, if any. Either the
// explicit origin or the raw sales-channel tag is enough to trigger a match.
func (e *Engine) hostedChannel(provider, origin, salesChannel string) *HostedChannel {
	for i := range e.cfg.HostedChannels {
		hc := &e.cfg.HostedChannels[i]
		if !strings.EqualFold(strings.TrimSpace(provider), hc.HostProvider) {
			continue
		}
		if hc.Origin != "" && strings.EqualFold(strings.TrimSpace(origin), hc.Origin) {
			return hc
		}
		tag := strings.TrimSpace(salesChannel)
		if tag == "" {
			continue
		}
		for _, t := range hc.SalesChannelTags {
			if strings.EqualFold(t, tag) {
				return hc
			}
		}
	}
	return nil
}

// Evaluation is the result of one computation pass.
type Evaluation struct {
	Breakdown  model.CostBreakdown
	Normalized NormalizedOrder
	Payments   []ResolvedPayment
	Trace      []TraceStep
}

// facts resolves everything applicability predicates need for the order.
func (e *Engine) facts(order *model.Order, n NormalizedOrder) orderFacts {
	f := orderFacts{
		provider: strings.ToLower(strings.TrimSpace(order.Provider)),
		origin:   strings.ToLower(strings.TrimSpace(order.Origin)),
		detected: DetectProviders(n.Payments),
		normal:   n,
		payments: Resolve(n.Payments),
	}
	if order.StoreID != nil {
		f.storeID = order.StoreID.String()
	}
	return f
}

// taxBase is the subtotal without the delivery fee. Hosted orders already had it removed.
func taxBase(n NormalizedOrder) decimal.Decimal {
	base := n.Subtotal
	if n.Hosted == nil {
		base = base.Sub(n.DeliveryFee)
	}
	if base.IsNegative() {
		return decimal.Zero
	}
	return base
}

// Calculate evaluates the rule snapshot against the order. rules must be the tenant's rule set
// in stable evaluation order; links maps canonical methods to linked rule ids. Neither the
// order nor the rules are mutated, so repeated calls with the same inputs yield equal output.
func (e *Engine) Calculate(order *model.Order, rules []model.FeeRule, links map[string]uuid.UUID) Evaluation {
	n := e.Normalize(order)
	f := e.facts(order, n)
	candidates := candidateRules(rules, f)

	acc := RevenueBase{Revenue: n.Subtotal, Tax: taxBase(n)}
	b := newBreakdownBuilder()
	var trace []TraceStep

	for _, rule := range orderedNonPayment(candidates) {
		step := TraceStep{
			RuleID:     rule.ID.String(),
			RuleName:   rule.Name,
			Category:   rule.Category,
			BaseBefore: acc.Revenue.String(),
		}
		if !applies(rule, f) {
			step.Reason = "not applicable"
			step.BaseAfter = acc.Revenue.String()
			step.Amount = decimal.Zero.String()
			trace = append(trace, step)
			continue
		}
		var result RuleResult
		result, acc = EvaluateRule(rule, acc)
		step.Applied = result.Applied
		step.Amount = result.Amount.String()
		step.BaseAfter = acc.Revenue.String()
		if !result.Applied {
			step.Reason = "non-positive value"
		}
		trace = append(trace, step)
		if result.Applied {
			b.add(rule.Category, lineFor(rule, result.Amount), result.Amount)
		}
	}

	if n.Hosted != nil && n.Hosted.FixedFee.IsPositive() {
		b.add(model.RuleCategoryCommission, hostedFeeLine(n.Hosted), n.Hosted.FixedFee)
	}

	byID := make(map[uuid.UUID]*model.FeeRule, len(rules))
	for i := range rules {
		byID[rules[i].ID] = &rules[i]
	}
	for _, pf := range paymentFees(f, candidates, byID, links, acc.Tax) {
		b.add(model.RuleCategoryPaymentMethod, pf.line, pf.amount)
		trace = append(trace, pf.step)
	}

	return Evaluation{
		Breakdown:  b.build(n.Subtotal),
		Normalized: n,
		Payments:   f.payments,
		Trace:      trace,
	}
}

func hostedFeeLine(hc *HostedChannel) model.CostLine {
	return model.CostLine{
		ID:              HostedFeeLineID,
		Name:            hc.FixedFeeName,
		Type:            model.ValueTypeFixed,
		Value:           hc.FixedFee.InexactFloat64(),
		CalculatedValue: hc.FixedFee.Round(2).InexactFloat64(),
		Category:        model.RuleCategoryCommission,
	}
}

// breakdownBuilder sums unrounded amounts per bucket; rounding happens once in build.
type breakdownBuilder struct {
	out                                 model.CostBreakdown
	costs, commissions, taxes, payments decimal.Decimal
}

func newBreakdownBuilder() *breakdownBuilder {
	return &breakdownBuilder{
		out: model.CostBreakdown{
			Costs:          []model.CostLine{},
			Commissions:    []model.CostLine{},
			Taxes:          []model.CostLine{},
			PaymentMethods: []model.CostLine{},
		},
	}
}

func (b *breakdownBuilder) add(category string, line model.CostLine, amount decimal.Decimal) {
	switch category {
	case model.RuleCategoryCost:
		b.out.Costs = append(b.out.Costs, line)
		b.costs = b.costs.Add(amount)
	case model.RuleCategoryCommission:
		b.out.Commissions = append(b.out.Commissions, line)
		b.commissions = b.commissions.Add(amount)
	case model.RuleCategoryTax:
		b.out.Taxes = append(b.out.Taxes, line)
		b.taxes = b.taxes.Add(amount)
	case model.RuleCategoryPaymentMethod:
		b.out.PaymentMethods = append(b.out.PaymentMethods, line)
		b.payments = b.payments.Add(amount)
	}
}

// build applies the net revenue formula and rounds the totals to cents.
func (b *breakdownBuilder) build(subtotal decimal.Decimal) model.CostBreakdown {
	net := subtotal.Sub(b.costs).Sub(b.commissions).Sub(b.taxes).Sub(b.payments)
	out := b.out
	out.TotalCosts = b.costs.Round(2).InexactFloat64()
	out.TotalCommissions = b.commissions.Round(2).InexactFloat64()
	out.TotalTaxes = b.taxes.Round(2).InexactFloat64()
	out.TotalPaymentMethods = b.payments.Round(2).InexactFloat64()
	out.NetRevenue = net.Round(2).InexactFloat64()
	out.BaseValue = subtotal.Round(2).InexactFloat64()
	return out
}
