package costing

import (
	"testing"

	"orderfinance/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestResolveMethod(t *testing.T) {
	tests := []struct {
		name    string
		payment Payment
		want    string
	}{
		{"pix keyword", Payment{Keyword: "pix"}, MethodPix},
		{"club keyword", Payment{Keyword: "CLUB", Name: "Clube de vantagens"}, MethodCashback},
		{"cash keyword", Payment{Keyword: "money"}, MethodCash},
		{"method used when keyword missing", Payment{Method: "Dinheiro"}, MethodCash},
		{"generic credit by name", Payment{Keyword: "other", Name: "Cartão de Crédito"}, MethodCreditCard},
		{"generic debit by name", Payment{Keyword: "outros", Name: "Débito Elo"}, MethodDebitCard},
		{"voucher brand", Payment{Keyword: "other", Name: "Sodexo Refeição"}, MethodVoucher},
		{"cash term", Payment{Keyword: "other", Name: "Pagamento em espécie"}, MethodCash},
		{"keyword beats name", Payment{Keyword: "pix", Name: "Crédito"}, MethodPix},
		{"unknown generic name", Payment{Keyword: "other", Name: "Bitcoin"}, "OTHER"},
		{"unknown keyword passthrough", Payment{Keyword: "apple_pay"}, "APPLE_PAY"},
		{"empty keyword uses name", Payment{Name: "Picpay"}, "PICPAY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveMethod(tt.payment))
		})
	}
}

func TestResolveType(t *testing.T) {
	assert.Equal(t, model.PaymentTypeOffline, ResolveType(Payment{Keyword: "credit", Name: "Visa"}))
	assert.Equal(t, model.PaymentTypeOnline, ResolveType(Payment{Keyword: "credit", Channel: "ONLINE"}))
	assert.Equal(t, model.PaymentTypeOnline, ResolveType(Payment{Name: "Pago no Marketplace"}))
	assert.Equal(t, model.PaymentTypeOnline, ResolveType(Payment{Method: "DIGITAL_WALLET"}))
	assert.Equal(t, model.PaymentTypeOffline, ResolveType(Payment{Keyword: "pix", Channel: "OFFLINE"}))
}

func TestMethodsMatch_LegacyCompatibility(t *testing.T) {
	pairs := [][2]string{
		{"CREDIT", MethodCreditCard},
		{"debit", MethodDebitCard},
		{"MONEY", MethodCash},
		{"dinheiro", "MONEY"},
		{MethodPix, "pix"},
	}
	for _, p := range pairs {
		assert.True(t, MethodsMatch(p[0], p[1]), "%s ~ %s", p[0], p[1])
		assert.True(t, MethodsMatch(p[1], p[0]), "%s ~ %s", p[1], p[0])
	}

	assert.False(t, MethodsMatch("CREDIT", MethodDebitCard))
	assert.False(t, MethodsMatch(MethodPix, MethodCash))
	assert.False(t, MethodsMatch("", ""))
}

func TestIsSubsidy(t *testing.T) {
	assert.True(t, IsSubsidy(Payment{Keyword: "subsidy"}))
	assert.True(t, IsSubsidy(Payment{Name: "Cupom de desconto"}))
	assert.True(t, IsSubsidy(Payment{Name: "Subsídio da loja"}))
	assert.True(t, IsSubsidy(Payment{Method: "DISCOUNT"}))
	assert.False(t, IsSubsidy(Payment{Keyword: "credit", Name: "Visa"}))
}

func TestDetectProviders(t *testing.T) {
	got := DetectProviders([]Payment{
		{Keyword: "ifood_online"},
		{Name: "Pago via 99 Food"},
		{Keyword: "IFOOD"},
		{Keyword: "pix"},
	})
	assert.Equal(t, []string{model.ProviderIFood, model.Provider99Food}, got)
}

func TestPaymentTypeMatches(t *testing.T) {
	assert.True(t, PaymentTypeMatches("", model.PaymentTypeOnline))
	assert.True(t, PaymentTypeMatches("ALL", model.PaymentTypeOffline))
	assert.True(t, PaymentTypeMatches("Online", model.PaymentTypeOnline))
	assert.False(t, PaymentTypeMatches(model.PaymentTypeOnline, model.PaymentTypeOffline))
}
