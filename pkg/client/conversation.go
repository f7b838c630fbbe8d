package client

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DeliveryState marks whether a displayed message is confirmed by the server.
type DeliveryState string

const (
	DeliveryPending   DeliveryState = "pending"
	DeliveryConfirmed DeliveryState = "confirmed"
)

// DisplayMessage is a thread entry as a front end renders it. Pending entries have no sequence;
// only the server assigns those.
type DisplayMessage struct {
	LocalID  string
	Sequence int
	Sender   string
	Text     string
	Time     time.Time
	State    DeliveryState
}

// MessagePoster is the part of Client a Conversation needs.
type MessagePoster interface {
	AppendMessage(ctx context.Context, ticketID, text, idempotencyKey string) (*Ticket, error)
}

// Conversation overlays provisional messages on the last server copy of a ticket. A submitted
// message shows as pending until the server answers; on success the server copy replaces the
// overlay, on failure the pending entry is dropped and the error kept for display.
type Conversation struct {
	mu      sync.Mutex
	ticket  Ticket
	sender  string
	pending []DisplayMessage
	lastErr error
	now     func() time.Time
}

// NewConversation starts from a server copy of the ticket. sender is how the local user's own
// messages are labelled: "owner" or "staff".
func NewConversation(ticket Ticket, sender string) *Conversation {
	return &Conversation{ticket: ticket, sender: sender, now: time.Now}
}

// Submit records text as pending and returns its local id.
func (c *Conversation) Submit(text string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := uuid.NewString()
	c.pending = append(c.pending, DisplayMessage{
		LocalID: id,
		Sender:  c.sender,
		Text:    text,
		Time:    c.now(),
		State:   DeliveryPending,
	})
	return id
}

// Confirm drops the pending entry and adopts the server copy, which already contains the message
// with its authoritative sequence and time.
func (c *Conversation) Confirm(localID string, server *Ticket) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removePending(localID)
	if server != nil && len(server.Messages) >= len(c.ticket.Messages) {
		c.ticket = *server
	}
	c.lastErr = nil
}

// Fail drops the pending entry and keeps err for the front end to surface.
func (c *Conversation) Fail(localID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removePending(localID)
	c.lastErr = err
}

// Send submits text, posts it and reconciles with the answer. The local id doubles as the
// idempotency key.
func (c *Conversation) Send(ctx context.Context, poster MessagePoster, text string) error {
	localID := c.Submit(text)
	updated, err := poster.AppendMessage(ctx, c.ticketID(), text, localID)
	if err != nil {
		c.Fail(localID, err)
		return err
	}
	c.Confirm(localID, updated)
	return nil
}

// Messages returns confirmed messages in sequence order followed by pending ones.
func (c *Conversation) Messages() []DisplayMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]DisplayMessage, 0, len(c.ticket.Messages)+len(c.pending))
	for _, msg := range c.ticket.Messages {
		out = append(out, DisplayMessage{
			Sequence: msg.Sequence,
			Sender:   msg.Sender,
			Text:     msg.Text,
			Time:     msg.Time,
			State:    DeliveryConfirmed,
		})
	}
	return append(out, c.pending...)
}

// Ticket returns the last server copy.
func (c *Conversation) Ticket() Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticket
}

// Err returns the most recent send failure, cleared by the next success.
func (c *Conversation) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Conversation) ticketID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticket.ID
}

func (c *Conversation) removePending(localID string) {
	for i, msg := range c.pending {
		if msg.LocalID == localID {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}
