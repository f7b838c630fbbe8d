package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/spec-kit/support-ticket-service/internal/domain"
)

type memoryStatusHistoryRepository struct {
	mu      sync.RWMutex
	entries map[string][]domain.StatusChange
}

// NewMemoryStatusHistoryRepository builds an in-memory audit log.
func NewMemoryStatusHistoryRepository() StatusHistoryRepository {
	return &memoryStatusHistoryRepository{entries: make(map[string][]domain.StatusChange)}
}

func (r *memoryStatusHistoryRepository) Create(ctx context.Context, entry *domain.StatusChange) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.entries[entry.TicketID]
	// writers finish out of commit order; keep the slice sorted by revision
	at := sort.Search(len(list), func(i int) bool { return list[i].Revision > entry.Revision })
	list = append(list, domain.StatusChange{})
	copy(list[at+1:], list[at:])
	list[at] = *entry
	r.entries[entry.TicketID] = list
	return nil
}

func (r *memoryStatusHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.StatusChange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.StatusChange{}, r.entries[ticketID]...), nil
}
