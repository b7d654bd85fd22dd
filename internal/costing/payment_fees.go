package costing

import (
	"sort"
	"strings"

	"orderfinance/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// paymentFee is one payment-method output line with its unrounded amount.
type paymentFee struct {
	line   model.CostLine
	amount decimal.Decimal
	step   TraceStep
}

// linkFor returns the rule linked to method, matching legacy tokens when no exact key exists.
// Legacy keys are walked in sorted order so two aliases of one method always resolve the same way.
func linkFor(links map[string]uuid.UUID, method string) (uuid.UUID, bool) {
	if id, ok := links[method]; ok {
		return id, true
	}
	keys := make([]string, 0, len(links))
	for key := range links {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if MethodsMatch(key, method) {
			return links[key], true
		}
	}
	return uuid.Nil, false
}

// usableLink reports whether a linked rule can still be applied to the order.
func usableLink(rule *model.FeeRule) bool {
	return rule != nil && rule.IsActive && rule.Category == model.RuleCategoryPaymentMethod
}

// distinctMethods returns the canonical methods on the order in first-seen order.
func distinctMethods(payments []ResolvedPayment) []string {
	var methods []string
	seen := make(map[string]bool)
	for _, p := range payments {
		if p.CanonicalMethod == "" || seen[p.CanonicalMethod] {
			continue
		}
		seen[p.CanonicalMethod] = true
		methods = append(methods, p.CanonicalMethod)
	}
	return methods
}

// paymentFees evaluates payment-method fees. Linked methods fan out to every payment line
// of that method, priced on the subtotal and emitted even at zero. Payments of unlinked methods
// fall back to heuristic matching, where only the first matching payment is charged.
func paymentFees(f orderFacts, candidates []*model.FeeRule, byID map[uuid.UUID]*model.FeeRule, links map[string]uuid.UUID, taxBase decimal.Decimal) []paymentFee {
	var fees []paymentFee
	linked := make(map[string]bool)

	for _, method := range distinctMethods(f.payments) {
		id, ok := linkFor(links, method)
		if !ok {
			continue
		}
		rule := byID[id]
		if !usableLink(rule) {
			continue
		}
		linked[method] = true
		for _, p := range f.payments {
			if p.CanonicalMethod != method {
				continue
			}
			amount := ComputeValue(rule, f.normal.Subtotal)
			fees = append(fees, paymentFee{
				line:   paymentLine(rule, p, amount, true),
				amount: amount,
				step:   paymentStep(rule, p, f.normal.Subtotal, amount),
			})
		}
	}

	pool := make([]*model.FeeRule, 0, len(candidates))
	for _, r := range candidates {
		if r.Category == model.RuleCategoryPaymentMethod {
			pool = append(pool, r)
		}
	}
	if len(pool) == 0 {
		return fees
	}

	for _, p := range f.payments {
		if linked[p.CanonicalMethod] {
			continue
		}
		rule := firstMatching(pool, p)
		if rule == nil {
			continue
		}
		base := f.normal.Subtotal
		if rule.EntersTaxBase {
			base = taxBase
		}
		amount := ComputeValue(rule, base)
		if amount.IsPositive() {
			fees = append(fees, paymentFee{
				line:   paymentLine(rule, p, amount, false),
				amount: amount,
				step:   paymentStep(rule, p, base, amount),
			})
		}
		break
	}
	return fees
}

func firstMatching(pool []*model.FeeRule, p ResolvedPayment) *model.FeeRule {
	for _, r := range pool {
		if paymentMatchesRule(r, p) {
			return r
		}
	}
	return nil
}

func paymentLine(rule *model.FeeRule, p ResolvedPayment, amount decimal.Decimal, isLinked bool) model.CostLine {
	line := lineFor(rule, amount)
	line.Category = model.RuleCategoryPaymentMethod
	line.PaymentMethod = p.CanonicalMethod
	if isLinked && strings.TrimSpace(p.Name) != "" {
		line.Name = p.Name
	}
	line.IsLinked = &isLinked
	return line
}

func paymentStep(rule *model.FeeRule, p ResolvedPayment, base, amount decimal.Decimal) TraceStep {
	return TraceStep{
		RuleID:      rule.ID.String(),
		RuleName:    rule.Name,
		Category:    model.RuleCategoryPaymentMethod,
		Applied:     true,
		BaseBefore:  base.String(),
		BaseAfter:   base.String(),
		Amount:      amount.String(),
		PaymentName: p.Name,
	}
}
