package domain

import "time"

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"

	// PaymentStatusTimeout is a client-side terminal state produced by the
	// poller when no callback arrived within its attempt budget. The server
	// never stores it.
	PaymentStatusTimeout PaymentStatus = "timeout"
)

// StatusRecord is the latest known outcome of an STK push for a phone number.
// The callback receiver is the only writer; records are last-writer-wins per
// phone number. JSON field names match the wire contract the frontend polls.
type StatusRecord struct {
	Status             PaymentStatus `json:"status"`
	PhoneNumber        string        `json:"phoneNumber,omitempty"`
	Amount             *int64        `json:"amount,omitempty"`
	MpesaReceiptNumber *string       `json:"mpesaReceiptNumber,omitempty"`
	TransactionDate    *int64        `json:"transactionDate,omitempty"`
	Reason             *string       `json:"reason,omitempty"`
	CheckoutRequestID  *string       `json:"checkoutRequestId,omitempty"`
	MerchantRequestID  *string       `json:"merchantRequestId,omitempty"`
	Timestamp          time.Time     `json:"timestamp"`
}
