package payments

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"mpesapay/internal/daraja"
	"mpesapay/internal/domain"
	"mpesapay/internal/repository/status_repo/memory"
)

type fakeGateway struct {
	calls int
	resp  *daraja.STKPushResponse
	err   error
}

func (f *fakeGateway) InitiateSTKPush(ctx context.Context, phoneNumber string, amount int64) (*daraja.STKPushResponse, error) {
	f.calls++
	return f.resp, f.err
}

func newTestService(gw *fakeGateway) (PaymentService, *memory.StatusRepository) {
	repo := memory.NewStatusRepository()
	return NewPaymentService(gw, repo, nil, zap.NewNop()), repo
}

func TestInitiatePayment_RejectsBadPhoneNumbers(t *testing.T) {
	badPhones := []string{
		"",
		"0712345678",      // local format
		"254812345678",    // not a 1/7 prefix
		"25471234567",     // too short
		"2547123456789",   // too long
		"2547123456ab",    // non-digits
		"+254712345678",   // leading plus
		" 254712345678",   // leading space
		"255712345678",    // wrong country code
	}

	for _, phone := range badPhones {
		gw := &fakeGateway{}
		s, _ := newTestService(gw)

		_, err := s.InitiatePayment(context.Background(), phone, 10)
		if !errors.Is(err, domain.ErrInvalidPhoneNumber) {
			t.Errorf("phone %q: expected ErrInvalidPhoneNumber, got %v", phone, err)
		}
		if gw.calls != 0 {
			t.Errorf("phone %q: invalid input must never reach the gateway", phone)
		}
	}
}

func TestInitiatePayment_RejectsNonPositiveAmounts(t *testing.T) {
	for _, amount := range []int64{0, -1, -100} {
		gw := &fakeGateway{}
		s, _ := newTestService(gw)

		_, err := s.InitiatePayment(context.Background(), "254712345678", amount)
		if !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
		if gw.calls != 0 {
			t.Errorf("amount %d: invalid input must never reach the gateway", amount)
		}
	}
}

func TestInitiatePayment_ForwardsGatewayResponse(t *testing.T) {
	gw := &fakeGateway{resp: &daraja.STKPushResponse{CheckoutRequestID: "ws_CO_42"}}
	s, _ := newTestService(gw)

	resp, err := s.InitiatePayment(context.Background(), "254112345678", 15)
	if err != nil {
		t.Fatalf("InitiatePayment failed: %v", err)
	}
	if resp.CheckoutRequestID != "ws_CO_42" {
		t.Errorf("expected gateway response passed through, got %+v", resp)
	}
	if gw.calls != 1 {
		t.Errorf("expected exactly one gateway call, got %d", gw.calls)
	}
}

func successCallback() *daraja.STKCallback {
	return &daraja.STKCallback{
		MerchantRequestID: "mr-1",
		CheckoutRequestID: "ws_CO_1",
		ResultCode:        0,
		ResultDesc:        "The service request is processed successfully.",
		CallbackMetadata: &daraja.CallbackMetadata{Item: []daraja.MetadataItem{
			{Name: "Amount", Value: json.RawMessage(`10.0`)},
			{Name: "MpesaReceiptNumber", Value: json.RawMessage(`"QGH7SK61SU"`)},
			{Name: "TransactionDate", Value: json.RawMessage(`20250829143015`)},
			{Name: "PhoneNumber", Value: json.RawMessage(`254712345678`)},
		}},
	}
}

func TestRecordCallback_SuccessRoundTrips(t *testing.T) {
	s, _ := newTestService(&fakeGateway{})
	ctx := context.Background()

	if err := s.RecordCallback(ctx, successCallback()); err != nil {
		t.Fatalf("RecordCallback failed: %v", err)
	}

	record, err := s.GetPaymentStatus(ctx, "254712345678")
	if err != nil {
		t.Fatalf("GetPaymentStatus failed: %v", err)
	}
	if record.Status != domain.PaymentStatusSuccess {
		t.Fatalf("expected success status, got %s", record.Status)
	}
	if record.Amount == nil || *record.Amount != 10 {
		t.Errorf("amount did not round-trip: %v", record.Amount)
	}
	if record.MpesaReceiptNumber == nil || *record.MpesaReceiptNumber != "QGH7SK61SU" {
		t.Errorf("receipt did not round-trip: %v", record.MpesaReceiptNumber)
	}
	if record.TransactionDate == nil || *record.TransactionDate != 20250829143015 {
		t.Errorf("transaction date did not round-trip: %v", record.TransactionDate)
	}
	if record.CheckoutRequestID == nil || *record.CheckoutRequestID != "ws_CO_1" {
		t.Errorf("checkout request id not recorded: %v", record.CheckoutRequestID)
	}
	if record.Timestamp.IsZero() {
		t.Error("expected a record timestamp")
	}
}

func TestRecordCallback_SuccessWithoutMetadataIsStructuralError(t *testing.T) {
	s, _ := newTestService(&fakeGateway{})

	cb := successCallback()
	cb.CallbackMetadata = nil

	err := s.RecordCallback(context.Background(), cb)
	if !errors.Is(err, domain.ErrMissingMetadata) {
		t.Errorf("expected ErrMissingMetadata, got %v", err)
	}
}

func TestRecordCallback_SuccessWithoutPhoneIsAcknowledged(t *testing.T) {
	s, _ := newTestService(&fakeGateway{})

	cb := successCallback()
	cb.CallbackMetadata = &daraja.CallbackMetadata{Item: []daraja.MetadataItem{
		{Name: "Amount", Value: json.RawMessage(`10`)},
	}}

	if err := s.RecordCallback(context.Background(), cb); err != nil {
		t.Errorf("callback without phone must still be acknowledged, got %v", err)
	}
}

func TestRecordCallback_FailureStoresReason(t *testing.T) {
	s, _ := newTestService(&fakeGateway{})
	ctx := context.Background()

	cb := &daraja.STKCallback{
		CheckoutRequestID: "ws_CO_2",
		ResultCode:        1032,
		ResultDesc:        "Request cancelled by user",
		CallbackMetadata: &daraja.CallbackMetadata{Item: []daraja.MetadataItem{
			{Name: "PhoneNumber", Value: json.RawMessage(`254712345678`)},
		}},
	}
	if err := s.RecordCallback(ctx, cb); err != nil {
		t.Fatalf("RecordCallback failed: %v", err)
	}

	record, err := s.GetPaymentStatus(ctx, "254712345678")
	if err != nil {
		t.Fatalf("GetPaymentStatus failed: %v", err)
	}
	if record.Status != domain.PaymentStatusFailed {
		t.Fatalf("expected failed status, got %s", record.Status)
	}
	if record.Reason == nil || *record.Reason != "Request cancelled by user" {
		t.Errorf("failure reason not preserved: %v", record.Reason)
	}
}

func TestRecordCallback_FailureWithoutMetadataIsAcknowledged(t *testing.T) {
	s, repo := newTestService(&fakeGateway{})

	cb := &daraja.STKCallback{
		ResultCode: 1037,
		ResultDesc: "DS timeout user cannot be reached",
	}
	if err := s.RecordCallback(context.Background(), cb); err != nil {
		t.Errorf("failure callback without metadata must be acknowledged, got %v", err)
	}

	// Nothing to key on, so nothing recorded.
	if _, err := repo.GetByPhone(context.Background(), ""); !errors.Is(err, domain.ErrStatusNotFound) {
		t.Errorf("expected no record keyed on empty phone, got %v", err)
	}
}

type capturingProducer struct {
	keys     []string
	payloads [][]byte
}

func (p *capturingProducer) Produce(ctx context.Context, key string, value []byte) error {
	p.keys = append(p.keys, key)
	p.payloads = append(p.payloads, value)
	return nil
}

func (p *capturingProducer) Close() error { return nil }

func TestRecordCallback_PublishesStatusEvent(t *testing.T) {
	producer := &capturingProducer{}
	repo := memory.NewStatusRepository()
	s := NewPaymentService(&fakeGateway{}, repo, producer, zap.NewNop())

	if err := s.RecordCallback(context.Background(), successCallback()); err != nil {
		t.Fatalf("RecordCallback failed: %v", err)
	}

	if len(producer.keys) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(producer.keys))
	}
	if producer.keys[0] != "254712345678" {
		t.Errorf("expected event keyed by phone, got %q", producer.keys[0])
	}

	var evt map[string]any
	if err := json.Unmarshal(producer.payloads[0], &evt); err != nil {
		t.Fatalf("published event is not valid JSON: %v", err)
	}
	if evt["mpesa_receipt_number"] != "QGH7SK61SU" {
		t.Errorf("expected receipt in event, got %v", evt)
	}
	if evt["event_id"] == "" {
		t.Error("expected a generated event id")
	}
}

func TestGetPaymentStatus_UnknownPhoneIsPending(t *testing.T) {
	s, _ := newTestService(&fakeGateway{})

	record, err := s.GetPaymentStatus(context.Background(), "254799999999")
	if err != nil {
		t.Fatalf("GetPaymentStatus failed: %v", err)
	}
	if record.Status != domain.PaymentStatusPending {
		t.Errorf("expected synthesized pending status, got %s", record.Status)
	}
}
