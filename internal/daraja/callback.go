package daraja

import "encoding/json"

// CallbackEnvelope is the webhook body the gateway posts after an STK push
// reaches a terminal state.
type CallbackEnvelope struct {
	Body struct {
		STKCallback *STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata"`
}

type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

type MetadataItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value"`
}

// StringValue looks up an item by name and renders its value as a string.
// Items are matched by name, never by position; the gateway does not promise
// a stable item order. Numeric values come back without quotes.
func (m *CallbackMetadata) StringValue(name string) (string, bool) {
	raw, ok := m.lookup(name)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

// Int64Value looks up an item by name and renders its value as an int64.
// Values with a fractional part are rejected rather than truncated.
func (m *CallbackMetadata) Int64Value(name string) (int64, bool) {
	raw, ok := m.lookup(name)
	if !ok {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		// Some sandbox payloads quote numeric fields.
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		n = json.Number(s)
	}
	if v, err := n.Int64(); err == nil {
		return v, true
	}
	// The gateway reports whole-shilling amounts as floats, e.g. 10.0.
	f, err := n.Float64()
	if err != nil || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}

func (m *CallbackMetadata) lookup(name string) (json.RawMessage, bool) {
	if m == nil {
		return nil, false
	}
	for _, item := range m.Item {
		if item.Name == name {
			return item.Value, true
		}
	}
	return nil, false
}
