package costing

import (
	"strings"

	"orderfinance/internal/model"
)

// orderFacts is everything applicability predicates look at for one order.
type orderFacts struct {
	storeID  string
	provider string
	origin   string
	detected []string
	normal   NormalizedOrder
	payments []ResolvedPayment
}

func (f orderFacts) isDelivery() bool {
	return f.normal.OrderType == OrderTypeDelivery
}

// conditionValues returns the rule's condition set, canonicalized and without blanks.
func conditionValues(rule *model.FeeRule) []string {
	values := make([]string, 0, len(rule.ConditionValues))
	for _, v := range rule.ConditionValues {
		if token := CanonicalToken(v); token != "" {
			values = append(values, token)
		}
	}
	return values
}

// hasPaymentType reports whether the rule uses the payment-type aware form of payment matching.
func hasPaymentType(rule *model.FeeRule) bool {
	return strings.TrimSpace(rule.PaymentType) != ""
}

// paymentMatchesRule applies a rule's payment-method scope to a single resolved payment.
// A legacy rule (no payment type) matches its single condition value; a rule with neither
// payment type nor condition value matches nothing.
func paymentMatchesRule(rule *model.FeeRule, p ResolvedPayment) bool {
	if hasPaymentType(rule) {
		if !PaymentTypeMatches(rule.PaymentType, p.PaymentType) {
			return false
		}
		values := conditionValues(rule)
		if len(values) == 0 {
			if single := CanonicalToken(rule.ConditionValue); single != "" {
				return MethodsMatch(single, p.CanonicalMethod)
			}
			return true
		}
		return MethodsInclude(values, p.CanonicalMethod)
	}
	single := CanonicalToken(rule.ConditionValue)
	if single == "" {
		if values := conditionValues(rule); len(values) > 0 {
			return MethodsInclude(values, p.CanonicalMethod)
		}
		return false
	}
	return MethodsMatch(single, p.CanonicalMethod)
}

// applies evaluates the applicability predicate table top-down.
func applies(rule *model.FeeRule, f orderFacts) bool {
	switch strings.ToLower(strings.TrimSpace(rule.AppliesTo)) {
	case model.AppliesToPaymentMethod:
		for _, p := range f.payments {
			if paymentMatchesRule(rule, p) {
				return true
			}
		}
		return false
	case model.AppliesToOrderType:
		return f.normal.OrderType != "" && NormalizeOrderType(rule.ConditionValue) == f.normal.OrderType
	case model.AppliesToDeliveryOnly:
		if !f.isDelivery() {
			return false
		}
		return deliveryScopeMatches(rule.DeliveryScope, f.normal.DeliveredBy)
	case model.AppliesToStore:
		return f.storeID != "" && strings.EqualFold(strings.TrimSpace(rule.ConditionValue), f.storeID)
	case model.AppliesToAllOrders:
		return true
	default:
		return strings.TrimSpace(rule.ConditionValue) == "" && len(conditionValues(rule)) == 0
	}
}

// deliveryScopeMatches checks who fulfilled the delivery: "store" accepts the self-delivery
// marker or an empty value, "marketplace" requires any other non-empty value.
func deliveryScopeMatches(scope, deliveredBy string) bool {
	switch strings.ToLower(strings.TrimSpace(scope)) {
	case model.DeliveryScopeStore:
		return deliveredBy == "" || deliveredBy == SelfDeliveryMarker
	case model.DeliveryScopeMarketplace:
		return deliveredBy != "" && deliveredBy != SelfDeliveryMarker
	default:
		return true
	}
}
