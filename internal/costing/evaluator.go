package costing

import (
	"sort"
	"strings"

	"orderfinance/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RevenueBase is the accumulator threaded through non-payment rule evaluation. Revenue starts
// at the subtotal and is decremented by every base-changing rule; Tax stays fixed for the pass.
type RevenueBase struct {
	Revenue decimal.Decimal
	Tax     decimal.Decimal
}

// RuleResult is the outcome of evaluating one rule against a base.
type RuleResult struct {
	Amount  decimal.Decimal
	Base    decimal.Decimal
	Applied bool
}

// TraceStep records one rule decision of a pass for the audit trail.
type TraceStep struct {
	RuleID      string `json:"rule_id"`
	RuleName    string `json:"rule_name"`
	Category    string `json:"category"`
	Applied     bool   `json:"applied"`
	Reason      string `json:"reason,omitempty"`
	BaseBefore  string `json:"base_before"`
	BaseAfter   string `json:"base_after"`
	Amount      string `json:"amount"`
	PaymentName string `json:"payment_name,omitempty"`
}

// ComputeValue prices a rule against a base: percentage rules take value% of the base,
// fixed rules return the configured value verbatim.
func ComputeValue(rule *model.FeeRule, base decimal.Decimal) decimal.Decimal {
	if strings.EqualFold(rule.ValueType, model.ValueTypeFixed) {
		return rule.Value
	}
	return base.Mul(rule.Value).Div(hundred)
}

// EvaluateRule computes a non-payment rule against the current accumulator and returns the
// accumulator for the next rule. Values <= 0 are not applied and leave the base untouched.
func EvaluateRule(rule *model.FeeRule, acc RevenueBase) (RuleResult, RevenueBase) {
	base := acc.Revenue
	if rule.EntersTaxBase {
		base = acc.Tax
	}
	amount := ComputeValue(rule, base)
	if !amount.IsPositive() {
		return RuleResult{Amount: amount, Base: base}, acc
	}
	next := acc
	if rule.ChangesRevenueBase() {
		next.Revenue = acc.Revenue.Sub(amount)
	}
	return RuleResult{Amount: amount, Base: base, Applied: true}, next
}

var categoryRank = map[string]int{
	model.RuleCategoryCost:       0,
	model.RuleCategoryCommission: 1,
	model.RuleCategoryTax:        2,
}

// orderedNonPayment returns cost, commission and tax rules grouped by category in that order,
// keeping the snapshot order within each category.
func orderedNonPayment(rules []*model.FeeRule) []*model.FeeRule {
	out := make([]*model.FeeRule, 0, len(rules))
	for _, r := range rules {
		if _, ok := categoryRank[r.Category]; ok {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return categoryRank[out[i].Category] < categoryRank[out[j].Category]
	})
	return out
}

// scopeKeys lists the provider scopes a rule may carry to be a candidate for the order.
func scopeKeys(f orderFacts) map[string]bool {
	keys := map[string]bool{"": true}
	provider := strings.ToLower(f.provider)
	origin := strings.ToLower(f.origin)
	keys[provider] = true
	if origin != "" && origin != provider {
		keys[provider+":"+origin] = true
		keys[origin] = true
	}
	for _, d := range f.detected {
		keys[strings.ToLower(d)] = true
	}
	return keys
}

// candidateRules gathers active rules scoped to the order's provider, its composite and origin,
// and any provider detected from payment keywords, deduplicated by rule id.
func candidateRules(rules []model.FeeRule, f orderFacts) []*model.FeeRule {
	keys := scopeKeys(f)
	seen := make(map[uuid.UUID]bool, len(rules))
	out := make([]*model.FeeRule, 0, len(rules))
	for i := range rules {
		r := &rules[i]
		if !r.IsActive || seen[r.ID] {
			continue
		}
		if !keys[strings.ToLower(strings.TrimSpace(r.Provider))] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out
}

func lineFor(rule *model.FeeRule, amount decimal.Decimal) model.CostLine {
	return model.CostLine{
		ID:              rule.ID.String(),
		Name:            rule.Name,
		Type:            strings.ToLower(rule.ValueType),
		Value:           rule.Value.InexactFloat64(),
		CalculatedValue: amount.Round(2).InexactFloat64(),
		Category:        rule.Category,
	}
}
