package event

import "time"

type PaymentSucceededEvent struct {
	EventID            string    `json:"event_id"`
	PhoneNumber        string    `json:"phone_number"`
	Amount             int64     `json:"amount"`
	MpesaReceiptNumber string    `json:"mpesa_receipt_number"`
	TransactionDate    int64     `json:"transaction_date"`
	CheckoutRequestID  string    `json:"checkout_request_id,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}

type PaymentFailedEvent struct {
	EventID           string    `json:"event_id"`
	PhoneNumber       string    `json:"phone_number"`
	Reason            string    `json:"reason"`
	CheckoutRequestID string    `json:"checkout_request_id,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}
