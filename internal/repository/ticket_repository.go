package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-ticket-service/internal/domain"
)

var (
	// ErrNotFound is returned when the referenced ticket does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when creating a ticket whose id is already taken.
	ErrConflict = errors.New("already exists")
	// ErrConcurrencyConflict is returned when a write lost a race with another writer on the
	// same ticket. The whole read-modify-write may be retried.
	ErrConcurrencyConflict = errors.New("concurrent modification")
)

// TicketFilter captures staff listing parameters.
type TicketFilter struct {
	Status *domain.TicketStatus
}

// MutateFunc transforms a private copy of a ticket. Returning an error aborts the write.
type MutateFunc func(ticket *domain.Ticket) error

// TicketRepository encapsulates ticket persistence. Mutate is the only write path for existing
// tickets; it is atomic per ticket id and never blocks writers of other tickets.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error)
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Ticket, error)
	ListAll(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Mutate(ctx context.Context, id string, fn MutateFunc) (*domain.Ticket, error)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the postgres-backed repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, owner_id, subject, priority, status, version, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	if err := domain.CheckTicket(ticket); err != nil {
		return nil, err
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        INSERT INTO tickets (id, owner_id, subject, priority, status, version, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,1,$6,$7)`
	if _, err := tx.Exec(ctx, query,
		ticket.ID,
		ticket.OwnerID,
		ticket.Subject,
		ticket.Priority,
		ticket.Status,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err, "tickets_pkey") {
			return nil, fmt.Errorf("ticket %s: %w", ticket.ID, ErrConflict)
		}
		return nil, err
	}
	if err := insertMessages(ctx, tx, ticket.ID, ticket.Messages); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, mapPgError(err)
	}
	created := ticket.Clone()
	created.Version = 1
	return created, nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapPgError(err)
	}
	if err := attachMessages(ctx, r.pool, []*domain.Ticket{ticket}); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE owner_id=$1 ORDER BY created_at DESC, id ASC`
	return r.list(ctx, query, ownerID)
}

func (r *ticketRepository) ListAll(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	if filter.Status != nil {
		query := `SELECT ` + ticketColumns + ` FROM tickets WHERE status=$1 ORDER BY created_at DESC, id ASC`
		return r.list(ctx, query, *filter.Status)
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets ORDER BY created_at DESC, id ASC`
	return r.list(ctx, query)
}

func (r *ticketRepository) list(ctx context.Context, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ptrs []*domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		ptrs = append(ptrs, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := attachMessages(ctx, r.pool, ptrs); err != nil {
		return nil, err
	}
	result := make([]domain.Ticket, 0, len(ptrs))
	for _, t := range ptrs {
		result = append(result, *t)
	}
	return result, nil
}

// Mutate locks the ticket row for the duration of the transaction, so concurrent writers of the
// same ticket queue behind each other while other rows stay writable.
func (r *ticketRepository) Mutate(ctx context.Context, id string, fn MutateFunc) (*domain.Ticket, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 FOR UPDATE`
	current, err := scanTicket(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapPgError(err)
	}
	if err := attachMessages(ctx, tx, []*domain.Ticket{current}); err != nil {
		return nil, mapPgError(err)
	}

	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	if err := domain.CheckMutation(current, working); err != nil {
		return nil, err
	}

	working.Version = current.Version + 1

	const update = `
        UPDATE tickets SET status=$1, updated_at=$2, version=$3
        WHERE id=$4`
	if _, err := tx.Exec(ctx, update, working.Status, working.UpdatedAt, working.Version, working.ID); err != nil {
		return nil, mapPgError(err)
	}
	if err := insertMessages(ctx, tx, working.ID, working.Messages[len(current.Messages):]); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, mapPgError(err)
	}
	return working, nil
}

func insertMessages(ctx context.Context, q querier, ticketID string, msgs []domain.Message) error {
	const query = `
        INSERT INTO ticket_messages (ticket_id, sequence, sender, body, created_at)
        VALUES ($1,$2,$3,$4,$5)`
	for _, msg := range msgs {
		if _, err := q.Exec(ctx, query, ticketID, msg.Sequence, msg.Sender, msg.Text, msg.Time); err != nil {
			if isUniqueViolation(err, "ticket_messages_pkey") {
				return fmt.Errorf("ticket %s message %d: %w", ticketID, msg.Sequence, ErrConcurrencyConflict)
			}
			return mapPgError(err)
		}
	}
	return nil
}

func attachMessages(ctx context.Context, q querier, tickets []*domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Ticket, len(tickets))
	ids := make([]string, 0, len(tickets))
	for _, t := range tickets {
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}

	const query = `
        SELECT ticket_id, sequence, sender, body, created_at
        FROM ticket_messages WHERE ticket_id = ANY($1) ORDER BY ticket_id, sequence ASC`
	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ticketID string
			msg      domain.Message
		)
		if err := rows.Scan(&ticketID, &msg.Sequence, &msg.Sender, &msg.Text, &msg.Time); err != nil {
			return err
		}
		msg.Time = msg.Time.UTC()
		if t, ok := byID[ticketID]; ok {
			t.Messages = append(t.Messages, msg)
		}
	}
	return rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.OwnerID,
		&ticket.Subject,
		&ticket.Priority,
		&ticket.Status,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	ticket.CreatedAt = ticket.CreatedAt.UTC()
	ticket.UpdatedAt = ticket.UpdatedAt.UTC()
	return &ticket, nil
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %s", ErrConcurrencyConflict, pgErr.Message)
		}
	}
	return err
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}
