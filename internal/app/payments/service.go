package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mpesapay/internal/daraja"
	"mpesapay/internal/domain"
	"mpesapay/internal/domain/event"
	kafka_infra "mpesapay/internal/infrastructure/kafka"
	"mpesapay/internal/repository/status_repo"
)

// Kenyan Safaricom/Airtel mobile numbers in international format.
var phonePattern = regexp.MustCompile(`^254[17][0-9]{8}$`)

type PaymentService interface {
	InitiatePayment(ctx context.Context, phoneNumber string, amount int64) (*daraja.STKPushResponse, error)
	RecordCallback(ctx context.Context, cb *daraja.STKCallback) error
	GetPaymentStatus(ctx context.Context, phoneNumber string) (*domain.StatusRecord, error)
}

type paymentService struct {
	gateway    daraja.Gateway
	statusRepo status_repo.Repository
	producer   kafka_infra.Producer // nil when event publishing is disabled
	logger     *zap.Logger
}

func NewPaymentService(
	gateway daraja.Gateway,
	statusRepo status_repo.Repository,
	producer kafka_infra.Producer,
	logger *zap.Logger,
) PaymentService {
	return &paymentService{
		gateway:    gateway,
		statusRepo: statusRepo,
		producer:   producer,
		logger:     logger,
	}
}

// InitiatePayment validates the request and forwards it to the gateway.
// Invalid input never reaches the network.
func (s *paymentService) InitiatePayment(ctx context.Context, phoneNumber string, amount int64) (*daraja.STKPushResponse, error) {
	if !phonePattern.MatchString(phoneNumber) {
		return nil, domain.ErrInvalidPhoneNumber
	}
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	resp, err := s.gateway.InitiateSTKPush(ctx, phoneNumber, amount)
	if err != nil {
		s.logger.Error("Failed to initiate STK push",
			zap.String("phone_number", phoneNumber),
			zap.Int64("amount", amount),
			zap.Error(err),
		)
		return nil, err
	}
	return resp, nil
}

// RecordCallback normalizes a gateway callback into a status record. A
// successful callback without its metadata item list is a structural error;
// any other shape is recorded on a best-effort basis. A missing phone number
// just means there is nothing to key the record on.
func (s *paymentService) RecordCallback(ctx context.Context, cb *daraja.STKCallback) error {
	if cb.ResultCode == 0 {
		return s.recordSuccess(ctx, cb)
	}
	s.recordFailure(ctx, cb)
	return nil
}

func (s *paymentService) recordSuccess(ctx context.Context, cb *daraja.STKCallback) error {
	if cb.CallbackMetadata == nil || len(cb.CallbackMetadata.Item) == 0 {
		s.logger.Warn("Successful payment callback without metadata",
			zap.String("checkout_request_id", cb.CheckoutRequestID))
		return domain.ErrMissingMetadata
	}

	meta := cb.CallbackMetadata
	phoneNumber, ok := meta.StringValue("PhoneNumber")
	if !ok {
		// Nothing to key the record on; acknowledged upstream regardless.
		s.logger.Warn("Successful payment callback without phone number",
			zap.String("checkout_request_id", cb.CheckoutRequestID))
		return nil
	}

	record := &domain.StatusRecord{
		Status:      domain.PaymentStatusSuccess,
		PhoneNumber: phoneNumber,
		Timestamp:   time.Now(),
	}
	if v, ok := meta.Int64Value("Amount"); ok {
		record.Amount = &v
	}
	if v, ok := meta.StringValue("MpesaReceiptNumber"); ok {
		record.MpesaReceiptNumber = &v
	}
	if v, ok := meta.Int64Value("TransactionDate"); ok {
		record.TransactionDate = &v
	}
	if cb.CheckoutRequestID != "" {
		record.CheckoutRequestID = &cb.CheckoutRequestID
	}
	if cb.MerchantRequestID != "" {
		record.MerchantRequestID = &cb.MerchantRequestID
	}

	if err := s.statusRepo.Upsert(ctx, record); err != nil {
		// The gateway still gets its ack; the poller will see a stale state.
		s.logger.Error("Failed to store success record",
			zap.String("phone_number", phoneNumber), zap.Error(err))
	} else {
		s.logger.Info("Payment succeeded",
			zap.String("phone_number", phoneNumber),
			zap.String("checkout_request_id", cb.CheckoutRequestID),
		)
	}

	s.publishSucceeded(ctx, record)
	return nil
}

func (s *paymentService) recordFailure(ctx context.Context, cb *daraja.STKCallback) {
	s.logger.Info("Payment failed",
		zap.Int("result_code", cb.ResultCode),
		zap.String("result_desc", cb.ResultDesc),
		zap.String("checkout_request_id", cb.CheckoutRequestID),
	)

	// Failure callbacks usually carry no metadata at all.
	phoneNumber, ok := cb.CallbackMetadata.StringValue("PhoneNumber")
	if !ok {
		return
	}

	reason := cb.ResultDesc
	record := &domain.StatusRecord{
		Status:      domain.PaymentStatusFailed,
		PhoneNumber: phoneNumber,
		Reason:      &reason,
		Timestamp:   time.Now(),
	}
	if cb.CheckoutRequestID != "" {
		record.CheckoutRequestID = &cb.CheckoutRequestID
	}
	if cb.MerchantRequestID != "" {
		record.MerchantRequestID = &cb.MerchantRequestID
	}

	if err := s.statusRepo.Upsert(ctx, record); err != nil {
		s.logger.Error("Failed to store failure record",
			zap.String("phone_number", phoneNumber), zap.Error(err))
	}

	s.publishFailed(ctx, record)
}

// GetPaymentStatus returns the stored record for the phone, or a synthesized
// pending record when none exists: "no callback yet" and "never initiated"
// are indistinguishable by design.
func (s *paymentService) GetPaymentStatus(ctx context.Context, phoneNumber string) (*domain.StatusRecord, error) {
	record, err := s.statusRepo.GetByPhone(ctx, phoneNumber)
	if err != nil {
		if err == domain.ErrStatusNotFound {
			return &domain.StatusRecord{Status: domain.PaymentStatusPending}, nil
		}
		return nil, fmt.Errorf("failed to look up payment status for %s: %w", phoneNumber, err)
	}
	return record, nil
}

func (s *paymentService) publishSucceeded(ctx context.Context, record *domain.StatusRecord) {
	if s.producer == nil {
		return
	}
	evt := event.PaymentSucceededEvent{
		EventID:     uuid.NewString(),
		PhoneNumber: record.PhoneNumber,
		Timestamp:   record.Timestamp,
	}
	if record.Amount != nil {
		evt.Amount = *record.Amount
	}
	if record.MpesaReceiptNumber != nil {
		evt.MpesaReceiptNumber = *record.MpesaReceiptNumber
	}
	if record.TransactionDate != nil {
		evt.TransactionDate = *record.TransactionDate
	}
	if record.CheckoutRequestID != nil {
		evt.CheckoutRequestID = *record.CheckoutRequestID
	}
	s.publish(ctx, record.PhoneNumber, evt)
}

func (s *paymentService) publishFailed(ctx context.Context, record *domain.StatusRecord) {
	if s.producer == nil {
		return
	}
	evt := event.PaymentFailedEvent{
		EventID:     uuid.NewString(),
		PhoneNumber: record.PhoneNumber,
		Timestamp:   record.Timestamp,
	}
	if record.Reason != nil {
		evt.Reason = *record.Reason
	}
	if record.CheckoutRequestID != nil {
		evt.CheckoutRequestID = *record.CheckoutRequestID
	}
	s.publish(ctx, record.PhoneNumber, evt)
}

func (s *paymentService) publish(ctx context.Context, key string, evt any) {
	payload, err := json.Marshal(evt)
	if err != nil {
		s.logger.Error("Failed to marshal status event", zap.Error(err))
		return
	}
	if err := s.producer.Produce(ctx, key, payload); err != nil {
		s.logger.Error("Failed to publish status event",
			zap.String("key", key), zap.Error(err))
	}
}
