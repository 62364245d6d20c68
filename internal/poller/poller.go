// Package poller implements the client side of the payment flow: repeatedly
// query the payment-status endpoint until a terminal outcome is observed,
// the attempt budget runs out, or the caller cancels.
package poller

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mpesapay/internal/domain"
)

// StatusClient is the slice of the service API the poller needs.
type StatusClient interface {
	PaymentStatus(ctx context.Context, phoneNumber string) (*domain.StatusRecord, error)
}

type Result struct {
	Status   domain.PaymentStatus
	Record   *domain.StatusRecord // nil on timeout
	Attempts int
}

type Poller struct {
	client      StatusClient
	interval    time.Duration
	maxAttempts int
	logger      *zap.Logger
}

func New(client StatusClient, interval time.Duration, maxAttempts int, logger *zap.Logger) *Poller {
	return &Poller{
		client:      client,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Wait polls until the record turns success or failed. Query errors and
// unknown statuses keep the payment pending and polling continues; a spent
// attempt budget yields a terminal timeout result rather than polling
// forever. Cancelling ctx stops immediately and returns ctx.Err().
func (p *Poller) Wait(ctx context.Context, phoneNumber string) (*Result, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Polling cancelled", zap.String("phone_number", phoneNumber))
			return nil, ctx.Err()
		case <-ticker.C:
		}

		attempts++
		record, err := p.client.PaymentStatus(ctx, phoneNumber)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Soft failure: stay pending, keep polling.
			p.logger.Warn("Status query failed, still waiting",
				zap.String("phone_number", phoneNumber),
				zap.Int("attempt", attempts),
				zap.Error(err),
			)
		} else {
			switch record.Status {
			case domain.PaymentStatusSuccess, domain.PaymentStatusFailed:
				p.logger.Info("Payment reached terminal state",
					zap.String("phone_number", phoneNumber),
					zap.String("status", string(record.Status)),
					zap.Int("attempts", attempts),
				)
				return &Result{Status: record.Status, Record: record, Attempts: attempts}, nil
			default:
				p.logger.Debug("Payment still pending",
					zap.String("phone_number", phoneNumber),
					zap.Int("attempt", attempts),
				)
			}
		}

		if attempts >= p.maxAttempts {
			p.logger.Warn("No terminal payment state within attempt budget",
				zap.String("phone_number", phoneNumber),
				zap.Int("attempts", attempts),
			)
			return &Result{Status: domain.PaymentStatusTimeout, Attempts: attempts}, nil
		}
	}
}
