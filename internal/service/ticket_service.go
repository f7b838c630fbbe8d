package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-ticket-service/internal/auth"
	"github.com/spec-kit/support-ticket-service/internal/domain"
	"github.com/spec-kit/support-ticket-service/internal/events"
	"github.com/spec-kit/support-ticket-service/internal/repository"
	apperrors "github.com/spec-kit/support-ticket-service/pkg/util/errorutil"
)

const (
	maxSubjectLength = 200
	maxMessageLength = 10000

	defaultMutateAttempts = 3
	defaultIdempotencyTTL = 24 * time.Hour
)

// TicketService coordinates ticket workflows. It keeps no mutable state between calls; every
// write goes through TicketRepository.Mutate.
type TicketService struct {
	tickets     repository.TicketRepository
	history     repository.StatusHistoryRepository
	idempotency repository.IdempotencyStore
	dispatcher  events.Dispatcher
	logger      *zap.Logger

	maxAttempts    int
	backoff        time.Duration
	idempotencyTTL time.Duration
	clock          func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo       repository.TicketRepository
	HistoryRepo      repository.StatusHistoryRepository
	IdempotencyStore repository.IdempotencyStore
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger

	MutateMaxAttempts int
	MutateBackoff     time.Duration
	IdempotencyTTL    time.Duration
	Clock             func() time.Time
}

// CreateTicketInput describes ticket creation payload.
type CreateTicketInput struct {
	Subject  string
	Message  string
	Priority domain.TicketPriority
}

// TicketListFilter describes staff listing filters.
type TicketListFilter struct {
	Status *domain.TicketStatus
}

// AppendOptions carries optional request metadata for AppendMessage.
type AppendOptions struct {
	// IdempotencyKey makes a retried append a no-op when the first attempt already landed.
	IdempotencyKey string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	s := &TicketService{
		tickets:        deps.TicketRepo,
		history:        deps.HistoryRepo,
		idempotency:    deps.IdempotencyStore,
		dispatcher:     deps.Dispatcher,
		logger:         deps.Logger,
		maxAttempts:    deps.MutateMaxAttempts,
		backoff:        deps.MutateBackoff,
		idempotencyTTL: deps.IdempotencyTTL,
		clock:          deps.Clock,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMutateAttempts
	}
	if s.idempotencyTTL <= 0 {
		s.idempotencyTTL = defaultIdempotencyTTL
	}
	if s.clock == nil {
		s.clock = defaultClock
	}
	return s
}

// Timestamps are kept at millisecond precision so every backend round-trips them unchanged.
func defaultClock() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// CreateTicket opens a ticket for the requester with the description stored as message #1.
func (s *TicketService) CreateTicket(ctx context.Context, requester domain.Requester, input CreateTicketInput) (*domain.Ticket, error) {
	if err := requireIdentity(requester); err != nil {
		return nil, err
	}
	if requester.IsStaff() {
		return nil, apperrors.NewForbidden("staff cannot open tickets")
	}

	subject := strings.TrimSpace(input.Subject)
	body := strings.TrimSpace(input.Message)
	switch {
	case subject == "":
		return nil, apperrors.NewValidationError("subject is required", map[string]any{"field": "subject"})
	case utf8.RuneCountInString(subject) > maxSubjectLength:
		return nil, apperrors.NewValidationError("subject is too long", map[string]any{"field": "subject", "max": maxSubjectLength})
	case body == "":
		return nil, apperrors.NewValidationError("message is required", map[string]any{"field": "message"})
	case utf8.RuneCountInString(body) > maxMessageLength:
		return nil, apperrors.NewValidationError("message is too long", map[string]any{"field": "message", "max": maxMessageLength})
	case !input.Priority.Valid():
		return nil, apperrors.NewValidationError("priority must be one of low, medium, high", map[string]any{
			"field": "priority",
			"value": string(input.Priority),
		})
	}

	now := s.clock()
	ticket := &domain.Ticket{
		ID:        uuid.NewString(),
		OwnerID:   requester.ID,
		Subject:   subject,
		Priority:  input.Priority,
		Status:    domain.TicketStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
		Messages: []domain.Message{{
			Sequence: 1,
			Sender:   domain.SenderOwner,
			Text:     body,
			Time:     now,
		}},
	}

	created, err := s.tickets.Create(ctx, ticket)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.NewConflict("ticket id already exists", map[string]any{"ticket_id": ticket.ID})
		}
		return nil, apperrors.MapError(err)
	}

	s.recordStatusChange(ctx, requester, created, "", domain.ReasonCreated)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: created.ID,
		OwnerID:  created.OwnerID,
		Actor:    actorOf(requester),
		Payload: events.TicketCreatedPayload{
			Subject:  created.Subject,
			Priority: created.Priority,
		},
	})
	return created, nil
}

// ListTicketsForOwner returns the requester's own tickets, newest first.
func (s *TicketService) ListTicketsForOwner(ctx context.Context, requester domain.Requester) ([]domain.Ticket, error) {
	if err := requireIdentity(requester); err != nil {
		return nil, err
	}
	tickets, err := s.tickets.ListByOwner(ctx, requester.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListAllTickets returns every ticket, optionally filtered by status. Staff only.
func (s *TicketService) ListAllTickets(ctx context.Context, requester domain.Requester, filter TicketListFilter) ([]domain.Ticket, error) {
	if err := requireIdentity(requester); err != nil {
		return nil, err
	}
	if !auth.CanTransition(requester) {
		return nil, apperrors.NewForbidden("only staff can list all tickets")
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, invalidStatusError(*filter.Status)
	}
	tickets, err := s.tickets.ListAll(ctx, repository.TicketFilter{Status: filter.Status})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// GetTicket returns a single ticket the requester is allowed to read.
func (s *TicketService) GetTicket(ctx context.Context, requester domain.Requester, ticketID string) (*domain.Ticket, error) {
	if err := requireIdentity(requester); err != nil {
		return nil, err
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !auth.CanRead(requester, ticket) {
		return nil, apperrors.NewForbidden("not allowed to read this ticket")
	}
	return ticket, nil
}

// AppendMessage posts text to the ticket thread as the requester. An owner reply reopens a
// resolved or closed ticket and a staff reply starts work on an open one; the status change and
// the new message commit together.
func (s *TicketService) AppendMessage(ctx context.Context, requester domain.Requester, ticketID, text string, opts AppendOptions) (result *domain.Ticket, err error) {
	if err := requireIdentity(requester); err != nil {
		return nil, err
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !auth.CanWrite(requester, ticket) {
		return nil, apperrors.NewForbidden("not allowed to post on this ticket")
	}

	body := strings.TrimSpace(text)
	if body == "" {
		return nil, apperrors.NewValidationError("text is required", map[string]any{"field": "text"})
	}
	if utf8.RuneCountInString(body) > maxMessageLength {
		return nil, apperrors.NewValidationError("text is too long", map[string]any{"field": "text", "max": maxMessageLength})
	}

	if key := strings.TrimSpace(opts.IdempotencyKey); key != "" && s.idempotency != nil {
		scoped := requester.ID + ":" + ticket.ID + ":" + key
		reserved, resErr := s.idempotency.Reserve(ctx, scoped, s.idempotencyTTL)
		if resErr != nil {
			return nil, apperrors.NewInternalError(resErr)
		}
		if !reserved {
			done, doneErr := s.idempotency.Completed(ctx, scoped)
			if doneErr != nil {
				return nil, apperrors.NewInternalError(doneErr)
			}
			if !done {
				return nil, apperrors.NewConflict("a request with this idempotency key is still in progress",
					map[string]any{"retryable": true})
			}
			s.logger.Info("duplicate append suppressed",
				zap.String("ticket_id", ticket.ID),
				zap.String("requester_id", requester.ID))
			return s.loadTicket(ctx, ticket.ID)
		}
		defer func() {
			bg := context.WithoutCancel(ctx)
			if err != nil {
				if relErr := s.idempotency.Release(bg, scoped); relErr != nil {
					s.logger.Warn("failed to release idempotency key", zap.Error(relErr))
				}
				return
			}
			if doneErr := s.idempotency.Complete(bg, scoped); doneErr != nil {
				s.logger.Warn("failed to complete idempotency key", zap.Error(doneErr))
			}
		}()
	}

	sender := requester.SenderRole()
	var (
		oldStatus domain.TicketStatus
		reason    domain.StatusChangeReason
		appended  domain.Message
	)
	updated, err := s.mutate(ctx, ticket.ID, func(t *domain.Ticket) error {
		now := s.clock()
		oldStatus = t.Status
		next, why := domain.StatusAfterAppend(t.Status, sender)
		reason = why
		t.Status = next
		appended = domain.Message{
			Sequence: t.NextSequence(),
			Sender:   sender,
			Text:     body,
			Time:     now,
		}
		t.Messages = append(t.Messages, appended)
		t.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	if reason != "" {
		s.recordStatusChange(ctx, requester, updated, oldStatus, reason)
		s.publishStatusChanged(ctx, requester, updated, oldStatus, reason)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketMessageAppended,
		TicketID: updated.ID,
		OwnerID:  updated.OwnerID,
		Actor:    actorOf(requester),
		Payload: events.TicketMessageAppendedPayload{
			Sequence:    appended.Sequence,
			Sender:      appended.Sender,
			BodyPreview: stringPreview(appended.Text, 120),
		},
	})
	return updated, nil
}

// TransitionStatus applies an explicit, staff-initiated status change.
func (s *TicketService) TransitionStatus(ctx context.Context, requester domain.Requester, ticketID string, newStatus domain.TicketStatus) (*domain.Ticket, error) {
	if err := requireIdentity(requester); err != nil {
		return nil, err
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !auth.CanTransition(requester) {
		return nil, apperrors.NewForbidden("only staff can change ticket status")
	}
	if !newStatus.Valid() {
		return nil, invalidStatusError(newStatus)
	}

	var oldStatus domain.TicketStatus
	updated, err := s.mutate(ctx, ticket.ID, func(t *domain.Ticket) error {
		if !domain.CanTransition(t.Status, newStatus) {
			return apperrors.NewInvalidTransition(string(t.Status), string(newStatus))
		}
		oldStatus = t.Status
		t.Status = newStatus
		t.UpdatedAt = s.clock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordStatusChange(ctx, requester, updated, oldStatus, domain.ReasonExplicit)
	s.publishStatusChanged(ctx, requester, updated, oldStatus, domain.ReasonExplicit)
	return updated, nil
}

// ListStatusHistory returns the status audit trail of a ticket the requester can read.
func (s *TicketService) ListStatusHistory(ctx context.Context, requester domain.Requester, ticketID string) ([]domain.StatusChange, error) {
	ticket, err := s.GetTicket(ctx, requester, ticketID)
	if err != nil {
		return nil, err
	}
	if s.history == nil {
		return []domain.StatusChange{}, nil
	}
	entries, err := s.history.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// mutate runs fn through the repository, retrying lost optimistic races a bounded number of times.
func (s *TicketService) mutate(ctx context.Context, ticketID string, fn repository.MutateFunc) (*domain.Ticket, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		ticket, err := s.tickets.Mutate(ctx, ticketID, fn)
		if err == nil {
			return ticket, nil
		}
		if !errors.Is(err, repository.ErrConcurrencyConflict) {
			return nil, mapRepositoryError(err, ticketID)
		}
		lastErr = err
		s.logger.Debug("ticket write conflict",
			zap.String("ticket_id", ticketID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < s.maxAttempts && s.backoff > 0 {
			timer := time.NewTimer(time.Duration(attempt) * s.backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, apperrors.NewConcurrencyConflict("ticket", ctx.Err())
			case <-timer.C:
			}
		}
	}
	s.logger.Warn("ticket write retries exhausted",
		zap.String("ticket_id", ticketID),
		zap.Int("attempts", s.maxAttempts))
	return nil, apperrors.NewConcurrencyConflict("ticket", lastErr)
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	if strings.TrimSpace(ticketID) == "" {
		return nil, apperrors.NewValidationError("ticket id is required", map[string]any{"field": "ticket_id"})
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepositoryError(err, ticketID)
	}
	return ticket, nil
}

// recordStatusChange audits the status committed in ticket. The entry carries the committed
// version and update time so the trail follows commit order even when these writes race.
func (s *TicketService) recordStatusChange(ctx context.Context, requester domain.Requester, ticket *domain.Ticket, from domain.TicketStatus, reason domain.StatusChangeReason) {
	if s.history == nil {
		return
	}
	entry := &domain.StatusChange{
		ID:        uuid.NewString(),
		TicketID:  ticket.ID,
		Revision:  ticket.Version,
		From:      from,
		To:        ticket.Status,
		Reason:    reason,
		ActorID:   requester.ID,
		ActorRole: requester.Role,
		CreatedAt: ticket.UpdatedAt,
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record status change",
			zap.String("ticket_id", ticket.ID),
			zap.String("to", string(ticket.Status)),
			zap.Error(err))
	}
}

func (s *TicketService) publishStatusChanged(ctx context.Context, requester domain.Requester, ticket *domain.Ticket, oldStatus domain.TicketStatus, reason domain.StatusChangeReason) {
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		OwnerID:  ticket.OwnerID,
		Actor:    actorOf(requester),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: ticket.Status,
			Reason:    reason,
		},
	})
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func mapRepositoryError(err error, ticketID string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return apperrors.MapError(err)
}

func requireIdentity(requester domain.Requester) error {
	if strings.TrimSpace(requester.ID) == "" || !requester.Role.Valid() {
		return apperrors.NewUnauthorized("requester identity required")
	}
	return nil
}

func invalidStatusError(status domain.TicketStatus) error {
	return apperrors.NewValidationError("status must be one of open, in-progress, resolved, closed", map[string]any{
		"field": "status",
		"value": string(status),
	})
}

func actorOf(requester domain.Requester) events.Actor {
	return events.Actor{ID: requester.ID, Role: requester.Role}
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) <= max {
		return body
	}
	runes := []rune(body)
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
