package costing

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// rawDoc is one JSON object of a provider payload. Every accessor treats missing or
// malformed sections as absent; nothing here returns an error.
type rawDoc map[string]json.RawMessage

func parseRawDoc(data []byte) rawDoc {
	if len(data) == 0 {
		return rawDoc{}
	}
	var doc rawDoc
	if err := json.Unmarshal(data, &doc); err != nil || doc == nil {
		return rawDoc{}
	}
	return doc
}

// obj returns the nested object at key, or an empty doc.
func (d rawDoc) obj(key string) rawDoc {
	msg, ok := d[key]
	if !ok {
		return rawDoc{}
	}
	return parseRawDoc(msg)
}

// list returns the nested array of objects at key; non-object entries are skipped.
func (d rawDoc) list(key string) []rawDoc {
	msg, ok := d[key]
	if !ok {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(msg, &items); err != nil {
		return nil
	}
	docs := make([]rawDoc, 0, len(items))
	for _, item := range items {
		var doc rawDoc
		if err := json.Unmarshal(item, &doc); err != nil || doc == nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

// str returns the string at key. Numbers and booleans are returned in their JSON text form.
func (d rawDoc) str(key string) string {
	msg, ok := d[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return strings.TrimSpace(s)
	}
	text := strings.TrimSpace(string(msg))
	if text == "null" || strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[") {
		return ""
	}
	return text
}

// num returns the decimal at key; numbers may be encoded as JSON numbers or numeric strings.
func (d rawDoc) num(key string) (decimal.Decimal, bool) {
	msg, ok := d[key]
	if !ok {
		return decimal.Zero, false
	}
	var n decimal.NullDecimal
	if err := json.Unmarshal(msg, &n); err != nil || !n.Valid {
		return decimal.Zero, false
	}
	return n.Decimal, true
}

// flag returns the boolean at key, false when absent or malformed.
func (d rawDoc) flag(key string) bool {
	msg, ok := d[key]
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(msg, &b); err != nil {
		return false
	}
	return b
}
