package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-ticket-service/internal/domain"
)

// StatusHistoryRepository stores status audit entries. ListByTicket returns them in revision
// order whatever order they were written in.
type StatusHistoryRepository interface {
	Create(ctx context.Context, entry *domain.StatusChange) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.StatusChange, error)
}

type statusHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewStatusHistoryRepository builds repository.
func NewStatusHistoryRepository(pool *pgxpool.Pool) StatusHistoryRepository {
	return &statusHistoryRepository{pool: pool}
}

func (r *statusHistoryRepository) Create(ctx context.Context, entry *domain.StatusChange) error {
	const query = `
        INSERT INTO ticket_status_history (id, ticket_id, revision, from_status, to_status, reason, actor_id, actor_role, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.TicketID,
		entry.Revision,
		entry.From,
		entry.To,
		entry.Reason,
		entry.ActorID,
		entry.ActorRole,
		entry.CreatedAt,
	)
	return err
}

func (r *statusHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.StatusChange, error) {
	const query = `
        SELECT id, ticket_id, revision, from_status, to_status, reason, actor_id, actor_role, created_at
        FROM ticket_status_history WHERE ticket_id=$1 ORDER BY revision ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.StatusChange{}
	for rows.Next() {
		var entry domain.StatusChange
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.Revision,
			&entry.From,
			&entry.To,
			&entry.Reason,
			&entry.ActorID,
			&entry.ActorRole,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		result = append(result, entry)
	}
	return result, rows.Err()
}
