// Package client is a Go SDK for the support ticket API. It also carries the client-side view
// navigation and optimistic message display used by interactive front ends.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const defaultTimeout = 10 * time.Second

// Ticket mirrors the server's ticket representation.
type Ticket struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Subject   string    `json:"subject"`
	Priority  string    `json:"priority"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// Message is one confirmed entry of a ticket thread.
type Message struct {
	Sequence int       `json:"sequence"`
	Sender   string    `json:"sender"`
	Text     string    `json:"text"`
	Time     time.Time `json:"time"`
}

// StatusChange is one status audit entry.
type StatusChange struct {
	ID        string    `json:"id"`
	Revision  int64     `json:"revision"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to"`
	Reason    string    `json:"reason"`
	ActorID   string    `json:"actor_id"`
	ActorRole string    `json:"actor_role"`
	CreatedAt time.Time `json:"created_at"`
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int            `json:"-"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// Client talks to the API on behalf of one authenticated requester.
type Client struct {
	baseURL string
	token   string
	staff   bool
	timeout time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithStaffRoutes targets the staff endpoints. The token must carry the staff role.
func WithStaffRoutes() Option {
	return func(c *Client) { c.staff = true }
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New builds a client for baseURL authenticating with a bearer token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *APIError       `json:"error"`
}

// CreateTicket opens a ticket. Owner tokens only.
func (c *Client) CreateTicket(ctx context.Context, subject, message, priority string) (*Ticket, error) {
	var ticket Ticket
	body := map[string]string{"subject": subject, "message": message, "priority": priority}
	if err := c.call(ctx, fiber.MethodPost, "/tickets", body, nil, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// ListTickets returns the tickets visible on this client's routes: the caller's own tickets for
// owners, the whole queue for staff. status filters the staff queue and is ignored for owners.
func (c *Client) ListTickets(ctx context.Context, status string) ([]Ticket, error) {
	path := c.ticketsPath()
	if c.staff && status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var tickets []Ticket
	if err := c.call(ctx, fiber.MethodGet, path, nil, nil, &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

// GetTicket fetches one ticket with its thread.
func (c *Client) GetTicket(ctx context.Context, ticketID string) (*Ticket, error) {
	var ticket Ticket
	if err := c.call(ctx, fiber.MethodGet, c.ticketsPath()+"/"+url.PathEscape(ticketID), nil, nil, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// AppendMessage posts a reply. A non-empty idempotencyKey makes retries of the same post safe.
func (c *Client) AppendMessage(ctx context.Context, ticketID, text, idempotencyKey string) (*Ticket, error) {
	var headers map[string]string
	if idempotencyKey != "" {
		headers = map[string]string{"Idempotency-Key": idempotencyKey}
	}
	var ticket Ticket
	path := c.ticketsPath() + "/" + url.PathEscape(ticketID) + "/messages"
	if err := c.call(ctx, fiber.MethodPost, path, map[string]string{"text": text}, headers, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// TransitionStatus moves a ticket along its lifecycle. Staff tokens only.
func (c *Client) TransitionStatus(ctx context.Context, ticketID, status string) (*Ticket, error) {
	var ticket Ticket
	path := "/staff/tickets/" + url.PathEscape(ticketID) + "/status"
	if err := c.call(ctx, fiber.MethodPost, path, map[string]string{"status": status}, nil, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// History returns the status audit trail of a ticket.
func (c *Client) History(ctx context.Context, ticketID string) ([]StatusChange, error) {
	var entries []StatusChange
	if err := c.call(ctx, fiber.MethodGet, c.ticketsPath()+"/"+url.PathEscape(ticketID)+"/history", nil, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) ticketsPath() string {
	if c.staff {
		return "/staff/tickets"
	}
	return "/tickets"
}

func (c *Client) call(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	var agent *fiber.Agent
	switch method {
	case fiber.MethodPost:
		agent = fiber.Post(c.baseURL + path)
	default:
		agent = fiber.Get(c.baseURL + path)
	}
	agent.Set(fiber.HeaderAuthorization, "Bearer "+c.token).Timeout(timeout)
	for k, v := range headers {
		agent.Set(k, v)
	}
	if body != nil {
		agent.JSON(body)
	}

	status, raw, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("%s %s: %w", method, path, errors.Join(errs...))
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
	}
	if status >= fiber.StatusBadRequest {
		if env.Error == nil {
			env.Error = &APIError{Code: "HTTP_ERROR", Message: fmt.Sprintf("unexpected status %d", status)}
		}
		env.Error.Status = status
		return env.Error
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}
