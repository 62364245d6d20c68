package payments_http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"mpesapay/internal/app/payments"
)

// RegisterRoutes mounts the payment endpoints both at the root and under
// /api/mpesa; the deployed frontend has used both shapes.
func RegisterRoutes(r chi.Router, s payments.PaymentService, l *zap.Logger) {
	handler := NewPaymentHandler(s, l.With(zap.String("component", "PaymentHTTPHandler")))

	mount := func(r chi.Router) {
		r.Post("/stkpush", handler.STKPushHandler)
		r.Post("/callback", handler.CallbackHandler)
		r.Get("/payment-status", handler.PaymentStatusHandler)
		r.Get("/health", handler.HealthHandler)
	}

	mount(r)
	r.Route("/api/mpesa", func(r chi.Router) {
		mount(r)
		r.Get("/test", testHandler)
	})
}

func testHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"message":   "M-Pesa routes are working",
		"timestamp": time.Now().Format(time.RFC3339),
		"availableEndpoints": []string{
			"POST /api/mpesa/stkpush",
			"POST /api/mpesa/callback",
			"GET /api/mpesa/payment-status",
			"GET /api/mpesa/health",
			"GET /api/mpesa/test",
		},
	})
}
