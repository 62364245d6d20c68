package payments_http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"mpesapay/internal/app/payments"
	"mpesapay/internal/daraja"
	"mpesapay/internal/domain"
)

type PaymentHandler struct {
	service payments.PaymentService
	logger  *zap.Logger
}

func NewPaymentHandler(s payments.PaymentService, l *zap.Logger) *PaymentHandler {
	return &PaymentHandler{service: s, logger: l}
}

type STKPushRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Amount      any    `json:"amount"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// STKPushHandler validates and forwards a payment initiation. The gateway's
// response body is returned to the caller as-is; upstream failures come back
// as 500 with whatever detail the gateway gave us.
func (h *PaymentHandler) STKPushHandler(w http.ResponseWriter, r *http.Request) {
	var req STKPushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Malformed STK push request body", zap.Error(err))
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Amount must be a positive integer"})
		return
	}

	resp, err := h.service.InitiatePayment(r.Context(), req.PhoneNumber, amount)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidPhoneNumber):
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid phone number format. Use 2547XXXXXXXX"})
		case errors.Is(err, domain.ErrInvalidAmount):
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Amount must be a positive integer"})
		default:
			var apiErr *daraja.APIError
			details := any(err.Error())
			if errors.As(err, &apiErr) {
				details = apiErr.Details()
			}
			h.writeJSON(w, http.StatusInternalServerError, errorResponse{
				Error:   "Failed to initiate payment",
				Details: details,
			})
		}
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// CallbackHandler receives the gateway's asynchronous payment outcome. No
// caller authentication is performed; the webhook URL is the only secret.
// Once the envelope parses, the gateway always gets a success ack: internal
// bookkeeping problems are ours, and a non-2xx would only trigger redelivery
// of a payload we already could not use.
func (h *PaymentHandler) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	var envelope daraja.CallbackEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil || envelope.Body.STKCallback == nil {
		h.logger.Warn("Invalid callback format, missing stkCallback", zap.Error(err))
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid callback format"})
		return
	}

	if err := h.service.RecordCallback(r.Context(), envelope.Body.STKCallback); err != nil {
		if errors.Is(err, domain.ErrMissingMetadata) {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing metadata"})
			return
		}
		h.logger.Error("Failed to process callback", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "Callback processed successfully"})
}

func (h *PaymentHandler) PaymentStatusHandler(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Phone number is required"})
		return
	}

	record, err := h.service.GetPaymentStatus(r.Context(), phone)
	if err != nil {
		h.logger.Error("Failed to query payment status", zap.String("phone", phone), zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		return
	}

	if record.Status == domain.PaymentStatusPending && record.PhoneNumber == "" {
		// Synthesized record: no callback has ever arrived for this number.
		h.writeJSON(w, http.StatusOK, map[string]string{
			"status":  string(domain.PaymentStatusPending),
			"message": "No payment record found for this number",
		})
		return
	}

	h.writeJSON(w, http.StatusOK, record)
}

func (h *PaymentHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   "M-Pesa API Routes",
	})
}

// parseAmount accepts the amount as a JSON number or a numeric string, the
// two shapes the frontend has historically sent. Fractional values are
// rejected, not truncated.
func parseAmount(v any) (int64, error) {
	switch amount := v.(type) {
	case float64:
		if amount != float64(int64(amount)) {
			return 0, domain.ErrInvalidAmount
		}
		return int64(amount), nil
	case string:
		parsed, err := json.Number(amount).Int64()
		if err != nil {
			return 0, domain.ErrInvalidAmount
		}
		return parsed, nil
	default:
		return 0, domain.ErrInvalidAmount
	}
}

func (h *PaymentHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}
