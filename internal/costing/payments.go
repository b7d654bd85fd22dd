package costing

import (
	"strings"
	"unicode"

	"orderfinance/internal/model"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Canonical payment method codes
const (
	MethodPix        = "PIX"
	MethodCreditCard = "CREDIT_CARD"
	MethodDebitCard  = "DEBIT_CARD"
	MethodCash       = "CASH"
	MethodVoucher    = "VOUCHER"
	MethodCashback   = "CASHBACK"
)

// ResolvedPayment is a payment line with its canonical method and online/offline type.
type ResolvedPayment struct {
	Payment
	CanonicalMethod string
	PaymentType     string // model.PaymentTypeOnline or model.PaymentTypeOffline
}

// pattern maps a lower-case, accent-free substring to a canonical code.
type pattern struct {
	match string
	code  string
}

// keywordMethods resolves exact payment keywords.
var keywordMethods = map[string]string{
	"pix":           MethodPix,
	"club":          MethodCashback,
	"clube":         MethodCashback,
	"cashback":      MethodCashback,
	"money":         MethodCash,
	"cash":          MethodCash,
	"dinheiro":      MethodCash,
	"credit":        MethodCreditCard,
	"credit_card":   MethodCreditCard,
	"credito":       MethodCreditCard,
	"debit":         MethodDebitCard,
	"debit_card":    MethodDebitCard,
	"debito":        MethodDebitCard,
	"voucher":       MethodVoucher,
	"meal_voucher":  MethodVoucher,
	"food_voucher":  MethodVoucher,
	"vale_refeicao": MethodVoucher,
}

// genericKeywords are catch-all buckets that force resolution by payment name.
var genericKeywords = map[string]bool{
	"":       true,
	"other":  true,
	"others": true,
	"outros": true,
	"outro":  true,
}

// namePatterns resolves human-readable payment names, first match wins.
var namePatterns = []pattern{
	{"debit", MethodDebitCard},
	{"debito", MethodDebitCard},
	{"credit", MethodCreditCard},
	{"credito", MethodCreditCard},
	{"pix", MethodPix},
	{"voucher", MethodVoucher},
	{"vale refeicao", MethodVoucher},
	{"vale alimentacao", MethodVoucher},
	{"alelo", MethodVoucher},
	{"sodexo", MethodVoucher},
	{"pluxee", MethodVoucher},
	{"ticket", MethodVoucher},
	{"vr beneficios", MethodVoucher},
	{"ben visa", MethodVoucher},
	{"cashback", MethodCashback},
	{"dinheiro", MethodCash},
	{"especie", MethodCash},
	{"cash", MethodCash},
	{"money", MethodCash},
}

// onlineMarkers classify a payment as captured online.
var onlineMarkers = []string{"online", "marketplace", "digital"}

// subsidyMarkers identify subsidy/coupon/discount instruments.
var subsidyMarkers = []string{"subsidy", "subsidio", "coupon", "cupom", "discount", "desconto"}

// providerHints detect a third-party platform referenced inside a payment keyword or name.
var providerHints = []pattern{
	{"ifood", model.ProviderIFood},
	{"99food", model.Provider99Food},
	{"99 food", model.Provider99Food},
	{"keeta", model.ProviderKeeta},
}

// legacyGroups lists method tokens treated as equivalent when matching rule conditions.
var legacyGroups = [][]string{
	{MethodCreditCard, "CREDIT"},
	{MethodDebitCard, "DEBIT"},
	{MethodCash, "MONEY", "DINHEIRO"},
}

var legacyIndex = func() map[string]int {
	idx := make(map[string]int)
	for i, group := range legacyGroups {
		for _, token := range group {
			idx[token] = i
		}
	}
	return idx
}()

var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldAccents strips diacritics so "Crédito" and "Credito" compare equal.
func foldAccents(s string) string {
	out, _, err := transform.String(accentFolder, s)
	if err != nil {
		return s
	}
	return out
}

func normalizeText(s string) string {
	return strings.ToLower(foldAccents(strings.TrimSpace(s)))
}

// CanonicalToken upper-cases and trims a configured method token.
func CanonicalToken(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// CanonicalMethod is CanonicalToken with legacy aliases folded onto their method code,
// so "money" and "DINHEIRO" both become CASH. Link keys are always stored in this form.
func CanonicalMethod(s string) string {
	token := CanonicalToken(s)
	if i, ok := legacyIndex[token]; ok {
		return legacyGroups[i][0]
	}
	return token
}

// SetLink links method to id, replacing any key that names the same method under a legacy alias.
func SetLink(links map[string]uuid.UUID, method string, id uuid.UUID) {
	method = CanonicalMethod(method)
	for key := range links {
		if key != method && MethodsMatch(key, method) {
			delete(links, key)
		}
	}
	links[method] = id
}

// ResolveMethod maps one payment line to a canonical method code. Resolution order:
// exact keyword, then the payment name for generic keywords, then the upper-cased keyword.
func ResolveMethod(p Payment) string {
	keyword := normalizeText(p.Keyword)
	if keyword == "" {
		keyword = normalizeText(p.Method)
	}
	if code, ok := keywordMethods[keyword]; ok {
		return code
	}
	if genericKeywords[keyword] {
		name := normalizeText(p.Name)
		for _, pat := range namePatterns {
			if strings.Contains(name, pat.match) {
				return pat.code
			}
		}
	}
	if keyword == "" {
		return CanonicalToken(p.Name)
	}
	return CanonicalToken(keyword)
}

// ResolveType classifies a payment as online only when its method, name, keyword or channel
// carries an explicit online marker; in-person capture is the default.
func ResolveType(p Payment) string {
	haystack := normalizeText(strings.Join([]string{p.Method, p.Name, p.Keyword, p.Channel}, " "))
	for _, marker := range onlineMarkers {
		if strings.Contains(haystack, marker) {
			return model.PaymentTypeOnline
		}
	}
	return model.PaymentTypeOffline
}

// Resolve classifies every payment line.
func Resolve(payments []Payment) []ResolvedPayment {
	resolved := make([]ResolvedPayment, 0, len(payments))
	for _, p := range payments {
		resolved = append(resolved, ResolvedPayment{
			Payment:         p,
			CanonicalMethod: ResolveMethod(p),
			PaymentType:     ResolveType(p),
		})
	}
	return resolved
}

// IsSubsidy reports whether the payment is a subsidy, coupon or discount instrument.
func IsSubsidy(p Payment) bool {
	haystack := normalizeText(p.Name + " " + p.Keyword + " " + p.Method)
	for _, marker := range subsidyMarkers {
		if strings.Contains(haystack, marker) {
			return true
		}
	}
	return false
}

// DetectProviders returns providers referenced by payment keywords or names, in first-seen order.
func DetectProviders(payments []Payment) []string {
	var found []string
	seen := make(map[string]bool)
	for _, p := range payments {
		haystack := normalizeText(p.Keyword + " " + p.Name)
		for _, hint := range providerHints {
			if strings.Contains(haystack, hint.match) && !seen[hint.code] {
				seen[hint.code] = true
				found = append(found, hint.code)
			}
		}
	}
	return found
}

// MethodsMatch compares two method tokens with legacy compatibility: CREDIT/CREDIT_CARD,
// DEBIT/DEBIT_CARD and MONEY/CASH/DINHEIRO are equivalent. The relation is symmetric.
func MethodsMatch(a, b string) bool {
	a, b = CanonicalToken(a), CanonicalToken(b)
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	ga, okA := legacyIndex[a]
	gb, okB := legacyIndex[b]
	return okA && okB && ga == gb
}

// MethodsInclude reports whether method matches any configured condition value.
func MethodsInclude(conditions []string, method string) bool {
	for _, c := range conditions {
		if MethodsMatch(c, method) {
			return true
		}
	}
	return false
}

// PaymentTypeMatches applies a rule's payment-type filter; empty or "all" accepts both types.
func PaymentTypeMatches(filter, paymentType string) bool {
	filter = strings.ToLower(strings.TrimSpace(filter))
	return filter == "" || filter == model.PaymentTypeAll || filter == paymentType
}
