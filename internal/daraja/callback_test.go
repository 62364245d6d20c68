package daraja

import (
	"encoding/json"
	"testing"
)

func parseEnvelope(t *testing.T, body string) *CallbackEnvelope {
	t.Helper()
	var env CallbackEnvelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		t.Fatalf("failed to parse callback envelope: %v", err)
	}
	return &env
}

func TestCallbackMetadata_LookupByNameNotPosition(t *testing.T) {
	// Items deliberately out of the usual order.
	env := parseEnvelope(t, `{
		"Body": {"stkCallback": {
			"MerchantRequestID": "mr-1",
			"CheckoutRequestID": "ws_CO_1",
			"ResultCode": 0,
			"ResultDesc": "The service request is processed successfully.",
			"CallbackMetadata": {"Item": [
				{"Name": "PhoneNumber", "Value": 254712345678},
				{"Name": "TransactionDate", "Value": 20250829143015},
				{"Name": "Amount", "Value": 10.0},
				{"Name": "MpesaReceiptNumber", "Value": "QGH7SK61SU"}
			]}
		}}
	}`)

	meta := env.Body.STKCallback.CallbackMetadata

	if phone, ok := meta.StringValue("PhoneNumber"); !ok || phone != "254712345678" {
		t.Errorf("expected phone 254712345678, got %q ok=%v", phone, ok)
	}
	if amount, ok := meta.Int64Value("Amount"); !ok || amount != 10 {
		t.Errorf("expected whole-shilling amount 10, got %d ok=%v", amount, ok)
	}
	if receipt, ok := meta.StringValue("MpesaReceiptNumber"); !ok || receipt != "QGH7SK61SU" {
		t.Errorf("expected receipt QGH7SK61SU, got %q ok=%v", receipt, ok)
	}
	if date, ok := meta.Int64Value("TransactionDate"); !ok || date != 20250829143015 {
		t.Errorf("expected transaction date 20250829143015, got %d ok=%v", date, ok)
	}
}

func TestCallbackMetadata_MissingItem(t *testing.T) {
	meta := &CallbackMetadata{Item: []MetadataItem{
		{Name: "Amount", Value: json.RawMessage(`10`)},
	}}

	if _, ok := meta.StringValue("PhoneNumber"); ok {
		t.Error("expected missing PhoneNumber lookup to report !ok")
	}
	if _, ok := meta.Int64Value("Balance"); ok {
		t.Error("expected missing Balance lookup to report !ok")
	}
}

func TestCallbackMetadata_NilReceiver(t *testing.T) {
	// Failure callbacks often have no CallbackMetadata at all.
	var meta *CallbackMetadata
	if _, ok := meta.StringValue("PhoneNumber"); ok {
		t.Error("expected nil metadata lookup to report !ok")
	}
}

func TestCallbackMetadata_QuotedNumber(t *testing.T) {
	meta := &CallbackMetadata{Item: []MetadataItem{
		{Name: "Amount", Value: json.RawMessage(`"15"`)},
	}}
	if amount, ok := meta.Int64Value("Amount"); !ok || amount != 15 {
		t.Errorf("expected quoted amount 15 to parse, got %d ok=%v", amount, ok)
	}
}

func TestCallbackEnvelope_MissingSTKCallback(t *testing.T) {
	env := parseEnvelope(t, `{"Body": {}}`)
	if env.Body.STKCallback != nil {
		t.Error("expected nil STKCallback for envelope without one")
	}
}
