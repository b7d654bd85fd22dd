package costing

import (
	"math"
	"strings"

	"orderfinance/internal/model"

	"github.com/google/uuid"
)

// Compatibility score weights
const (
	weightProvider      = 0.4
	weightPaymentType   = 0.3
	weightMethodSpecial = 0.3
	weightMethodGeneric = 0.15

	// RecommendedScore is the minimum score reported as recommended.
	RecommendedScore = 0.7
)

// Method specificity of a rule relative to one canonical method
const (
	MethodSpecific = "specific"
	MethodGeneric  = "generic"
	MethodNone     = "none"
)

// Compatibility is an advisory score of a payment-method rule for one method of an order.
// It never blocks manual linking.
type Compatibility struct {
	Score            float64 `json:"score"`
	ProviderMatch    bool    `json:"provider_match"`
	PaymentTypeMatch bool    `json:"payment_type_match"`
	MethodMatch      string  `json:"method_match"`
	Recommended      bool    `json:"recommended"`
}

// PaymentMethods returns the distinct canonical payment methods of an order, subsidies excluded.
func (e *Engine) PaymentMethods(order *model.Order) []string {
	return distinctMethods(Resolve(e.Normalize(order).Payments))
}

// HasMethod reports whether the order carries a payment resolving to method.
func (e *Engine) HasMethod(order *model.Order, method string) bool {
	for _, m := range e.PaymentMethods(order) {
		if MethodsMatch(m, method) {
			return true
		}
	}
	return false
}

// providerSpecificity ranks how narrowly a rule's provider scope targets the order:
// 2 for the provider+origin composite, 1 for the provider or the origin alone, 0 for
// channel-agnostic rules and -1 when the rule targets another channel.
func providerSpecificity(rule *model.FeeRule, provider, origin string) int {
	scope := strings.ToLower(strings.TrimSpace(rule.Provider))
	switch {
	case scope == "":
		return 0
	case origin != "" && scope == provider+":"+origin:
		return 2
	case scope == provider, origin != "" && scope == origin:
		return 1
	default:
		return -1
	}
}

// methodSpecificity classifies how a rule's condition values cover method.
func methodSpecificity(rule *model.FeeRule, method string) string {
	values := conditionValues(rule)
	if single := CanonicalToken(rule.ConditionValue); single != "" {
		values = append(values, single)
	}
	if len(values) == 0 {
		if hasPaymentType(rule) {
			return MethodGeneric
		}
		return MethodNone
	}
	if MethodsInclude(values, method) {
		return MethodSpecific
	}
	return MethodNone
}

// paymentTypeOf returns the payment type of the first payment resolving to method.
func paymentTypeOf(payments []ResolvedPayment, method string) string {
	for _, p := range payments {
		if MethodsMatch(p.CanonicalMethod, method) {
			return p.PaymentType
		}
	}
	return ""
}

// AutoLink fills a link for every canonical method on the order that has none. A rule naming
// the method beats a generic rule of the payment type; ties go to the narrower provider scope,
// then to rule order. It returns the merged links and whether anything was added.
func (e *Engine) AutoLink(order *model.Order, rules []model.FeeRule, links map[string]uuid.UUID) (map[string]uuid.UUID, bool) {
	merged := make(map[string]uuid.UUID, len(links))
	for k, v := range links {
		merged[k] = v
	}
	provider := strings.ToLower(strings.TrimSpace(order.Provider))
	origin := strings.ToLower(strings.TrimSpace(order.Origin))
	payments := Resolve(e.Normalize(order).Payments)

	changed := false
	for _, method := range distinctMethods(payments) {
		if _, ok := linkFor(merged, method); ok {
			continue
		}
		paymentType := paymentTypeOf(payments, method)
		var best *model.FeeRule
		bestRank := -1
		for i := range rules {
			r := &rules[i]
			if !r.IsActive || r.Category != model.RuleCategoryPaymentMethod {
				continue
			}
			spec := providerSpecificity(r, provider, origin)
			if spec < 0 || !PaymentTypeMatches(r.PaymentType, paymentType) {
				continue
			}
			var rank int
			switch methodSpecificity(r, method) {
			case MethodSpecific:
				rank = 10 + spec
			case MethodGeneric:
				rank = spec
			default:
				continue
			}
			if rank > bestRank {
				best, bestRank = r, rank
			}
		}
		if best != nil {
			merged[method] = best.ID
			changed = true
		}
	}
	return merged, changed
}

// Compatibility scores a rule against one canonical method of the order.
func (e *Engine) Compatibility(order *model.Order, rule *model.FeeRule, method string) Compatibility {
	provider := strings.ToLower(strings.TrimSpace(order.Provider))
	origin := strings.ToLower(strings.TrimSpace(order.Origin))
	payments := Resolve(e.Normalize(order).Payments)

	c := Compatibility{
		ProviderMatch:    providerSpecificity(rule, provider, origin) >= 0,
		PaymentTypeMatch: PaymentTypeMatches(rule.PaymentType, paymentTypeOf(payments, method)),
		MethodMatch:      methodSpecificity(rule, method),
	}
	score := 0.0
	if c.ProviderMatch {
		score += weightProvider
	}
	if c.PaymentTypeMatch {
		score += weightPaymentType
	}
	switch c.MethodMatch {
	case MethodSpecific:
		score += weightMethodSpecial
	case MethodGeneric:
		score += weightMethodGeneric
	}
	c.Score = math.Round(score*100) / 100
	c.Recommended = c.Score >= RecommendedScore
	return c
}
