package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/spec-kit/support-ticket-service/internal/domain"
)

type memoryTicketEntry struct {
	mu     sync.Mutex
	ticket *domain.Ticket
}

// memoryTicketRepository keeps tickets in process. The map lock only guards lookups and inserts;
// each ticket carries its own mutex so writers of different tickets never wait on each other.
type memoryTicketRepository struct {
	mu      sync.RWMutex
	entries map[string]*memoryTicketEntry
}

// NewMemoryTicketRepository builds an in-memory repository.
func NewMemoryTicketRepository() TicketRepository {
	return &memoryTicketRepository{entries: make(map[string]*memoryTicketEntry)}
}

func (r *memoryTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := domain.CheckTicket(ticket); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[ticket.ID]; exists {
		return nil, fmt.Errorf("ticket %s: %w", ticket.ID, ErrConflict)
	}
	stored := ticket.Clone()
	stored.Version = 1
	r.entries[ticket.ID] = &memoryTicketEntry{ticket: stored}
	return stored.Clone(), nil
}

func (r *memoryTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry, ok := r.lookup(id)
	if !ok {
		return nil, ErrNotFound
	}
	return entry.snapshot(), nil
}

func (r *memoryTicketRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Ticket, error) {
	return r.list(ctx, func(t *domain.Ticket) bool { return t.OwnerID == ownerID })
}

func (r *memoryTicketRepository) ListAll(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	return r.list(ctx, func(t *domain.Ticket) bool {
		return filter.Status == nil || t.Status == *filter.Status
	})
}

func (r *memoryTicketRepository) Mutate(ctx context.Context, id string, fn MutateFunc) (*domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry, ok := r.lookup(id)
	if !ok {
		return nil, ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	working := entry.ticket.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	if err := domain.CheckMutation(entry.ticket, working); err != nil {
		return nil, err
	}
	working.Version = entry.ticket.Version + 1
	entry.ticket = working
	return working.Clone(), nil
}

func (r *memoryTicketRepository) lookup(id string) (*memoryTicketEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	return entry, ok
}

func (r *memoryTicketRepository) list(ctx context.Context, keep func(*domain.Ticket) bool) ([]domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	entries := make([]*memoryTicketEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, entry)
	}
	r.mu.RUnlock()

	result := make([]domain.Ticket, 0)
	for _, entry := range entries {
		snap := entry.snapshot()
		if keep(snap) {
			result = append(result, *snap)
		}
	}
	sortNewestFirst(result)
	return result, nil
}

func (e *memoryTicketEntry) snapshot() *domain.Ticket {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ticket.Clone()
}

func sortNewestFirst(tickets []domain.Ticket) {
	sort.SliceStable(tickets, func(i, j int) bool {
		if !tickets[i].CreatedAt.Equal(tickets[j].CreatedAt) {
			return tickets[i].CreatedAt.After(tickets[j].CreatedAt)
		}
		return tickets[i].ID < tickets[j].ID
	})
}
