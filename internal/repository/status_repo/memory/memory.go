package memory

import (
	"context"
	"sync"

	"mpesapay/internal/domain"
)

// StatusRepository keeps payment status records in a process-local map.
// Records live until the process exits; there is no eviction because the set
// is bounded by the number of distinct paying phone numbers.
type StatusRepository struct {
	mu   sync.RWMutex
	data map[string]domain.StatusRecord
}

func NewStatusRepository() *StatusRepository {
	return &StatusRepository{
		data: make(map[string]domain.StatusRecord),
	}
}

func (r *StatusRepository) Upsert(_ context.Context, record *domain.StatusRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[record.PhoneNumber] = *record
	return nil
}

func (r *StatusRepository) GetByPhone(_ context.Context, phoneNumber string) (*domain.StatusRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.data[phoneNumber]
	if !ok {
		return nil, domain.ErrStatusNotFound
	}
	// Return a copy so callers never alias the stored entry.
	return &record, nil
}
