package status_repo

import (
	"context"

	"mpesapay/internal/domain"
)

// Repository stores the latest payment outcome per phone number. The
// callback receiver is the sole writer; upserts are last-writer-wins.
type Repository interface {
	Upsert(ctx context.Context, record *domain.StatusRecord) error
	GetByPhone(ctx context.Context, phoneNumber string) (*domain.StatusRecord, error)
}
