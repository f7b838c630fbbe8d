package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/support-ticket-service/internal/config"
	"github.com/spec-kit/support-ticket-service/internal/domain"
	"github.com/spec-kit/support-ticket-service/internal/events"
)

// AudienceStaffQueue addresses whoever is watching the shared support queue.
const AudienceStaffQueue = "staff-queue"

// Notification is the outbound message derived from a ticket event.
type Notification struct {
	EventID    string           `json:"event_id"`
	EventType  events.EventType `json:"event_type"`
	TicketID   string           `json:"ticket_id"`
	Recipient  string           `json:"recipient"`
	Summary    string           `json:"summary"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// NotificationService turns ticket events into notifications for the other party of the thread.
type NotificationService struct {
	logger *zap.Logger
	cfg    config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		logger: logger,
		cfg:    cfg,
	}
}

// Build derives the notification for event. It reports false when nobody needs to hear about it.
func (n *NotificationService) Build(event events.Event) (Notification, bool) {
	note := Notification{
		EventID:    event.ID,
		EventType:  event.Type,
		TicketID:   event.TicketID,
		OccurredAt: event.Timestamp,
	}
	// the counterpart of the actor is notified: staff hear about owner activity and vice versa
	if event.Actor.Role == domain.RoleStaff {
		note.Recipient = event.OwnerID
	} else {
		note.Recipient = AudienceStaffQueue
	}

	switch payload := event.Payload.(type) {
	case events.TicketCreatedPayload:
		note.Summary = fmt.Sprintf("new %s priority ticket: %s", payload.Priority, payload.Subject)
	case events.TicketMessageAppendedPayload:
		note.Summary = fmt.Sprintf("new reply #%d: %s", payload.Sequence, payload.BodyPreview)
	case events.TicketStatusChangedPayload:
		// auto-advance is implied by the staff reply that caused it
		if payload.Reason == domain.ReasonAutoAdvanced {
			return Notification{}, false
		}
		note.Summary = fmt.Sprintf("status changed from %s to %s", payload.OldStatus, payload.NewStatus)
	default:
		return Notification{}, false
	}
	return note, true
}

// Deliver sends the notification for event through every configured channel.
func (n *NotificationService) Deliver(ctx context.Context, event events.Event) error {
	note, ok := n.Build(event)
	if !ok {
		return nil
	}
	n.logger.Info("ticket notification",
		zap.String("event_type", string(note.EventType)),
		zap.String("ticket_id", note.TicketID),
		zap.String("recipient", note.Recipient))

	n.sendEmailNotificationStub(ctx, note)
	return n.sendWebhookNotification(ctx, note)
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, note Notification) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("recipient", note.Recipient),
		zap.String("ticket_id", note.TicketID),
		zap.String("event_type", string(note.EventType)))
}

func (n *NotificationService) sendWebhookNotification(ctx context.Context, note Notification) error {
	url := strings.TrimSpace(n.cfg.WebhookURL)
	if url == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	agent := fiber.Post(url).JSON(note).Timeout(n.cfg.WebhookTimeout())
	code, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("webhook delivery for %s: %w", note.TicketID, errors.Join(errs...))
	}
	if code < fiber.StatusOK || code >= fiber.StatusMultipleChoices {
		return fmt.Errorf("webhook delivery for %s: unexpected status %d", note.TicketID, code)
	}
	n.logger.Debug("webhook delivered",
		zap.String("url", url),
		zap.String("ticket_id", note.TicketID),
		zap.Int("status", code))
	return nil
}
