package costing

import (
	"strings"

	"orderfinance/internal/model"

	"github.com/shopspring/decimal"
)

// Order type tags after per-provider normalization
const (
	OrderTypeDelivery = "DELIVERY"
	OrderTypeIndoor   = "INDOOR"
	OrderTypeTakeout  = "TAKEOUT"
)

// SelfDeliveryMarker is the canonical delivered-by value for store-fulfilled deliveries.
const SelfDeliveryMarker = "MERCHANT"

// Payment is one payment line as recorded by the channel.
type Payment struct {
	Method  string          `json:"method"`
	Name    string          `json:"name"`
	Keyword string          `json:"keyword"`
	Channel string          `json:"channel,omitempty"` // e.g. ONLINE/OFFLINE tag of the channel
	Value   decimal.Decimal `json:"value"`
}

// NormalizedOrder is the provider-agnostic view every later stage works on.
type NormalizedOrder struct {
	Subtotal     decimal.Decimal
	DeliveryFee  decimal.Decimal
	Payments     []Payment // subsidy/coupon instruments removed
	OrderType    string
	DeliveredBy  string
	SalesChannel string
	Hosted       *HostedChannel // non-nil when routed through a delivery-fee-excluding host
}

// rawTotals collects the totals fields a provider payload may carry, each optional.
type rawTotals struct {
	Discount           *decimal.Decimal
	OldTotal           *decimal.Decimal
	TotalAfterDelivery *decimal.Decimal
	TotalPrice         *decimal.Decimal
	OrderAmount        *decimal.Decimal
	DeliveryFee        *decimal.Decimal
}

// parsedPayload is what a provider parser extracts before subtotal resolution.
type parsedPayload struct {
	totals       rawTotals
	payments     []Payment
	orderType    string
	deliveredBy  string
	salesChannel string
}

// payloadParser turns one provider's raw tree into a parsedPayload.
type payloadParser func(doc rawDoc) parsedPayload

var parsers = map[string]payloadParser{
	model.ProviderIFood:   parseIFood,
	model.ProviderAnotaAI: parseHub,
	model.Provider99Food:  parsePriceBlock,
	model.ProviderKeeta:   parsePriceBlock,
	model.ProviderManual:  parseHub,
}

func parserFor(provider string) payloadParser {
	if p, ok := parsers[strings.ToLower(provider)]; ok {
		return p
	}
	return parseHub
}

func optNum(doc rawDoc, key string) *decimal.Decimal {
	if v, ok := doc.num(key); ok {
		return &v
	}
	return nil
}

// parseHub reads the order-hub shape (snake_case, flat totals).
func parseHub(doc rawDoc) parsedPayload {
	p := parsedPayload{
		totals: rawTotals{
			Discount:           optNum(doc, "discount"),
			OldTotal:           optNum(doc, "old_total"),
			TotalAfterDelivery: optNum(doc, "total_after_delivery"),
			TotalPrice:         optNum(doc, "total"),
			OrderAmount:        optNum(doc, "order_amount"),
			DeliveryFee:        optNum(doc, "delivery_fee"),
		},
		orderType:    doc.str("type"),
		deliveredBy:  doc.str("delivered_by"),
		salesChannel: doc.str("sales_channel"),
	}
	for _, pay := range doc.list("payments") {
		value, _ := pay.num("value")
		channel := ""
		if pay.flag("prepaid") {
			channel = "online"
		}
		p.payments = append(p.payments, Payment{
			Method:  pay.str("code"),
			Name:    pay.str("name"),
			Keyword: pay.str("keyword"),
			Channel: channel,
			Value:   value,
		})
	}
	return p
}

// parseIFood reads the marketplace-native shape (camelCase, nested total and payments blocks).
func parseIFood(doc rawDoc) parsedPayload {
	total := doc.obj("total")
	p := parsedPayload{
		totals: rawTotals{
			Discount:    optNum(total, "benefits"),
			OrderAmount: optNum(total, "orderAmount"),
			DeliveryFee: optNum(total, "deliveryFee"),
		},
		orderType:    doc.str("orderType"),
		deliveredBy:  doc.obj("delivery").str("deliveredBy"),
		salesChannel: doc.str("salesChannel"),
	}
	for _, m := range doc.obj("payments").list("methods") {
		value, _ := m.num("value")
		method := m.str("method")
		name := m.obj("card").str("brand")
		if wallet := m.obj("wallet").str("name"); wallet != "" {
			name = wallet
		}
		if name == "" {
			name = method
		}
		p.payments = append(p.payments, Payment{
			Method:  method,
			Name:    name,
			Keyword: strings.ToLower(method),
			Channel: m.str("type"),
			Value:   value,
		})
	}
	return p
}

// parsePriceBlock reads the shape shared by 99Food and Keeta (price block, flat payments).
func parsePriceBlock(doc rawDoc) parsedPayload {
	price := doc.obj("price")
	p := parsedPayload{
		totals: rawTotals{
			Discount:    optNum(price, "discountPrice"),
			OldTotal:    optNum(price, "originalPrice"),
			TotalPrice:  optNum(price, "totalPrice"),
			OrderAmount: optNum(price, "orderPrice"),
			DeliveryFee: optNum(price, "deliveryPrice"),
		},
		orderType:    doc.str("orderType"),
		deliveredBy:  doc.str("deliveryBy"),
		salesChannel: doc.str("channel"),
	}
	for _, pay := range doc.list("payments") {
		value, _ := pay.num("amount")
		p.payments = append(p.payments, Payment{
			Method:  pay.str("payChannel"),
			Name:    pay.str("payName"),
			Keyword: strings.ToLower(pay.str("payChannel")),
			Channel: pay.str("payType"),
			Value:   value,
		})
	}
	return p
}

// Normalize extracts the canonical view of an order. It never fails: absent data falls
// through the precedence chains to zero values.
func (e *Engine) Normalize(order *model.Order) NormalizedOrder {
	payload := parserFor(order.Provider)(parseRawDoc(order.Raw))

	deliveryFee := order.DeliveryFee
	if payload.totals.DeliveryFee != nil {
		deliveryFee = *payload.totals.DeliveryFee
	}

	payments := make([]Payment, 0, len(payload.payments))
	for _, pay := range payload.payments {
		if IsSubsidy(pay) {
			continue
		}
		payments = append(payments, pay)
	}

	n := NormalizedOrder{
		DeliveryFee:  deliveryFee,
		Payments:     payments,
		OrderType:    NormalizeOrderType(payload.orderType),
		DeliveredBy:  normalizeDeliveredBy(payload.deliveredBy),
		SalesChannel: strings.ToUpper(payload.salesChannel),
		Hosted:       e.hostedChannel(order.Provider, order.Origin, payload.salesChannel),
	}

	subtotal := resolveSubtotal(payload.totals, payments, order)
	if n.Hosted != nil {
		subtotal = subtotal.Sub(deliveryFee)
	}
	if subtotal.IsNegative() {
		subtotal = decimal.Zero
	}
	n.Subtotal = subtotal
	return n
}

// resolveSubtotal applies the subtotal precedence: subsidized orders prefer the sum of
// actual payments, then the generic totals fields, then the marketplace order amount,
// then net total plus delivery fee.
func resolveSubtotal(t rawTotals, payments []Payment, order *model.Order) decimal.Decimal {
	subtotal := func() decimal.Decimal {
		if t.Discount != nil && !t.Discount.IsZero() {
			paid := decimal.Zero
			for _, p := range payments {
				paid = paid.Add(p.Value)
			}
			if !paid.IsZero() {
				return paid
			}
			if t.OldTotal != nil {
				return *t.OldTotal
			}
		}
		for _, candidate := range []*decimal.Decimal{t.TotalAfterDelivery, t.TotalPrice, t.OldTotal, t.OrderAmount} {
			if candidate != nil {
				return *candidate
			}
		}
		return order.NetTotal.Add(order.DeliveryFee)
	}()
	if subtotal.IsNegative() {
		return decimal.Zero
	}
	return subtotal
}

var orderTypeAliases = map[string]string{
	"delivery": OrderTypeDelivery,
	"entrega":  OrderTypeDelivery,
	"indoor":   OrderTypeIndoor,
	"dine_in":  OrderTypeIndoor,
	"local":    OrderTypeIndoor,
	"mesa":     OrderTypeIndoor,
	"table":    OrderTypeIndoor,
	"takeout":  OrderTypeTakeout,
	"take":     OrderTypeTakeout,
	"takeaway": OrderTypeTakeout,
	"pickup":   OrderTypeTakeout,
	"retirada": OrderTypeTakeout,
	"balcao":   OrderTypeTakeout,
	"to_go":    OrderTypeTakeout,
}

// NormalizeOrderType maps a channel-specific order type tag onto DELIVERY, INDOOR or TAKEOUT.
// Unknown tags are upper-cased and passed through.
func NormalizeOrderType(tag string) string {
	key := strings.ToLower(foldAccents(strings.TrimSpace(tag)))
	if key == "" {
		return ""
	}
	if canonical, ok := orderTypeAliases[key]; ok {
		return canonical
	}
	return strings.ToUpper(key)
}

var selfDeliveryAliases = map[string]bool{
	"merchant": true,
	"store":    true,
	"self":     true,
	"loja":     true,
	"own":      true,
}

func normalizeDeliveredBy(v string) string {
	key := strings.ToLower(strings.TrimSpace(v))
	if key == "" {
		return ""
	}
	if selfDeliveryAliases[key] {
		return SelfDeliveryMarker
	}
	return strings.ToUpper(key)
}
