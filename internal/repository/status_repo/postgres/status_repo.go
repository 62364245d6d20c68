package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"mpesapay/internal/domain"
)

type StatusRepository struct {
	db *sql.DB
}

func NewStatusRepository(db *sql.DB) *StatusRepository {
	return &StatusRepository{db: db}
}

func (r *StatusRepository) Upsert(ctx context.Context, record *domain.StatusRecord) error {
	query := `
		INSERT INTO payment_status (
			phone_number, status, amount, mpesa_receipt_number,
			transaction_date, reason, checkout_request_id, merchant_request_id,
			recorded_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (phone_number) DO UPDATE SET
			status               = EXCLUDED.status,
			amount               = EXCLUDED.amount,
			mpesa_receipt_number = EXCLUDED.mpesa_receipt_number,
			transaction_date     = EXCLUDED.transaction_date,
			reason               = EXCLUDED.reason,
			checkout_request_id  = EXCLUDED.checkout_request_id,
			merchant_request_id  = EXCLUDED.merchant_request_id,
			recorded_at          = EXCLUDED.recorded_at
	`
	_, err := r.db.ExecContext(ctx, query,
		record.PhoneNumber,
		string(record.Status),
		record.Amount,
		record.MpesaReceiptNumber,
		record.TransactionDate,
		record.Reason,
		record.CheckoutRequestID,
		record.MerchantRequestID,
		record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert payment status for %s: %w", record.PhoneNumber, err)
	}
	return nil
}

func (r *StatusRepository) GetByPhone(ctx context.Context, phoneNumber string) (*domain.StatusRecord, error) {
	query := `
		SELECT phone_number, status, amount, mpesa_receipt_number,
		       transaction_date, reason, checkout_request_id, merchant_request_id,
		       recorded_at
		FROM payment_status
		WHERE phone_number = $1
	`
	record := &domain.StatusRecord{}
	var status string
	err := r.db.QueryRowContext(ctx, query, phoneNumber).Scan(
		&record.PhoneNumber,
		&status,
		&record.Amount,
		&record.MpesaReceiptNumber,
		&record.TransactionDate,
		&record.Reason,
		&record.CheckoutRequestID,
		&record.MerchantRequestID,
		&record.Timestamp,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrStatusNotFound
		}
		return nil, fmt.Errorf("failed to get payment status for %s: %w", phoneNumber, err)
	}
	record.Status = domain.PaymentStatus(status)
	return record, nil
}
