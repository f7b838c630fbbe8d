package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-ticket-service/internal/api/http"
	"github.com/spec-kit/support-ticket-service/internal/api/http/handlers"
	"github.com/spec-kit/support-ticket-service/internal/auth"
	"github.com/spec-kit/support-ticket-service/internal/domain"
	"github.com/spec-kit/support-ticket-service/internal/observability"
	"github.com/spec-kit/support-ticket-service/internal/repository"
	"github.com/spec-kit/support-ticket-service/internal/service"
)

type apiError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *apiError       `json:"error"`
}

type ticketJSON struct {
	ID       string `json:"id"`
	OwnerID  string `json:"owner_id"`
	Subject  string `json:"subject"`
	Priority string `json:"priority"`
	Status   string `json:"status"`
	Messages []struct {
		Sequence int    `json:"sequence"`
		Sender   string `json:"sender"`
		Text     string `json:"text"`
	} `json:"messages"`
}

type testAPI struct {
	app    *fiber.App
	tokens *auth.TokenManager
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	svc := service.NewTicketService(service.TicketDependencies{
		TicketRepo:       repository.NewMemoryTicketRepository(),
		HistoryRepo:      repository.NewMemoryStatusHistoryRepository(),
		IdempotencyStore: repository.NewMemoryIdempotencyStore(),
	})
	metrics := observability.NewMetrics()
	tokens := auth.NewTokenManager("test-secret", 30)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, zap.NewNop(), metrics, 0)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler("support-ticket-service", "test", nil, metrics),
		Owner:          handlers.NewOwnerTicketsHandler(svc),
		Staff:          handlers.NewStaffTicketsHandler(svc),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})
	return &testAPI{app: app, tokens: tokens}
}

func (a *testAPI) token(t *testing.T, id string, role domain.Role) string {
	t.Helper()
	token, _, err := a.tokens.GenerateToken(id, role)
	require.NoError(t, err)
	return token
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any, headers ...string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func decodeTicket(t *testing.T, env envelope) ticketJSON {
	t.Helper()
	var ticket ticketJSON
	require.NoError(t, json.Unmarshal(env.Data, &ticket))
	return ticket
}

func TestTicketConversationOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	ownerToken := api.token(t, "U1", domain.RoleBuyer)
	staffToken := api.token(t, "S1", domain.RoleStaff)

	status, env := api.do(t, fiber.MethodPost, "/tickets", ownerToken, map[string]string{
		"subject":  "Price update request",
		"message":  "Please revise price for Sona Masoori",
		"priority": "medium",
	})
	require.Equal(t, fiber.StatusCreated, status)
	ticket := decodeTicket(t, env)
	assert.Equal(t, "open", ticket.Status)
	assert.Equal(t, "U1", ticket.OwnerID)
	require.Len(t, ticket.Messages, 1)
	assert.Equal(t, "owner", ticket.Messages[0].Sender)

	status, env = api.do(t, fiber.MethodPost, "/staff/tickets/"+ticket.ID+"/messages", staffToken, map[string]string{"text": "Checking now"})
	require.Equal(t, fiber.StatusOK, status)
	ticket = decodeTicket(t, env)
	assert.Equal(t, "in-progress", ticket.Status)
	assert.Equal(t, 2, ticket.Messages[1].Sequence)

	status, env = api.do(t, fiber.MethodPost, "/staff/tickets/"+ticket.ID+"/status", staffToken, map[string]string{"status": "resolved"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "resolved", decodeTicket(t, env).Status)

	status, env = api.do(t, fiber.MethodPost, "/tickets/"+ticket.ID+"/messages", ownerToken, map[string]string{"text": "Thanks, one more question"})
	require.Equal(t, fiber.StatusOK, status)
	ticket = decodeTicket(t, env)
	assert.Equal(t, "open", ticket.Status)
	assert.Equal(t, 3, ticket.Messages[2].Sequence)

	status, _ = api.do(t, fiber.MethodPost, "/staff/tickets/"+ticket.ID+"/status", staffToken, map[string]string{"status": "closed"})
	require.Equal(t, fiber.StatusOK, status)

	status, env = api.do(t, fiber.MethodPost, "/staff/tickets/"+ticket.ID+"/status", staffToken, map[string]string{"status": "in-progress"})
	require.Equal(t, fiber.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)
	assert.Equal(t, "invalid status transition from closed to in-progress", env.Error.Message)
	assert.Equal(t, "closed", env.Error.Details["current_status"])
	assert.Equal(t, "in-progress", env.Error.Details["requested_status"])

	status, env = api.do(t, fiber.MethodGet, "/tickets/"+ticket.ID+"/history", ownerToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	var history []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.Len(t, history, 5)
}

func TestAuthenticationAndRoleGuards(t *testing.T) {
	api := newTestAPI(t)
	ownerToken := api.token(t, "U1", domain.RoleSupplier)
	staffToken := api.token(t, "S1", domain.RoleStaff)

	status, env := api.do(t, fiber.MethodGet, "/tickets", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	status, _ = api.do(t, fiber.MethodGet, "/tickets", "not-a-jwt", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, env = api.do(t, fiber.MethodGet, "/staff/tickets", ownerToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	status, _ = api.do(t, fiber.MethodPost, "/tickets", staffToken, map[string]string{
		"subject": "s", "message": "m", "priority": "low",
	})
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestOwnershipIsolationOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	ownerToken := api.token(t, "U1", domain.RoleBuyer)
	strangerToken := api.token(t, "U2", domain.RoleBuyer)

	_, env := api.do(t, fiber.MethodPost, "/tickets", ownerToken, map[string]string{
		"subject": "Invoice", "message": "Wrong total", "priority": "high",
	})
	ticket := decodeTicket(t, env)

	status, env := api.do(t, fiber.MethodGet, "/tickets/"+ticket.ID, strangerToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	status, _ = api.do(t, fiber.MethodPost, "/tickets/"+ticket.ID+"/messages", strangerToken, map[string]string{"text": "hi"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, env = api.do(t, fiber.MethodGet, "/tickets", strangerToken, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `[]`, string(env.Data))

	status, env = api.do(t, fiber.MethodGet, "/tickets/"+ticket.ID, ownerToken, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decodeTicket(t, env).Messages, 1)
}

func TestValidationAndNotFound(t *testing.T) {
	api := newTestAPI(t)
	ownerToken := api.token(t, "U1", domain.RoleBuyer)
	staffToken := api.token(t, "S1", domain.RoleStaff)

	status, env := api.do(t, fiber.MethodPost, "/tickets", ownerToken, map[string]string{
		"subject": "s", "message": "m", "priority": "urgent",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	fields := env.Error.Details["fields"].(map[string]any)
	assert.Equal(t, "oneof=low medium high", fields["priority"])

	status, env = api.do(t, fiber.MethodPost, "/tickets", ownerToken, map[string]string{
		"subject": "s", "message": "   ", "priority": "low",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)

	status, env = api.do(t, fiber.MethodGet, "/tickets/unknown", ownerToken, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	status, _ = api.do(t, fiber.MethodPost, "/staff/tickets/unknown/status", staffToken, map[string]string{"status": "closed"})
	assert.Equal(t, fiber.StatusNotFound, status)

	status, env = api.do(t, fiber.MethodGet, "/staff/tickets?status=archived", staffToken, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)

	status, env = api.do(t, fiber.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestStaffListFilterOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	ownerToken := api.token(t, "U1", domain.RoleBuyer)
	staffToken := api.token(t, "S1", domain.RoleStaff)

	for _, subject := range []string{"first", "second"} {
		status, _ := api.do(t, fiber.MethodPost, "/tickets", ownerToken, map[string]string{
			"subject": subject, "message": "body", "priority": "low",
		})
		require.Equal(t, fiber.StatusCreated, status)
	}
	_, env := api.do(t, fiber.MethodGet, "/staff/tickets", staffToken, nil)
	var all []ticketJSON
	require.NoError(t, json.Unmarshal(env.Data, &all))
	require.Len(t, all, 2)

	status, _ := api.do(t, fiber.MethodPost, "/staff/tickets/"+all[0].ID+"/status", staffToken, map[string]string{"status": "closed"})
	require.Equal(t, fiber.StatusOK, status)

	_, env = api.do(t, fiber.MethodGet, "/staff/tickets?status=closed", staffToken, nil)
	var closed []ticketJSON
	require.NoError(t, json.Unmarshal(env.Data, &closed))
	require.Len(t, closed, 1)
	assert.Equal(t, all[0].ID, closed[0].ID)
}

func TestIdempotencyKeyHeader(t *testing.T) {
	api := newTestAPI(t)
	ownerToken := api.token(t, "U1", domain.RoleBuyer)

	_, env := api.do(t, fiber.MethodPost, "/tickets", ownerToken, map[string]string{
		"subject": "s", "message": "m", "priority": "low",
	})
	ticket := decodeTicket(t, env)

	path := "/tickets/" + ticket.ID + "/messages"
	for i := 0; i < 3; i++ {
		status, _ := api.do(t, fiber.MethodPost, path, ownerToken, map[string]string{"text": "retry-safe"},
			handlers.IdempotencyKeyHeader, "abc-123")
		require.Equal(t, fiber.StatusOK, status)
	}

	_, env = api.do(t, fiber.MethodGet, "/tickets/"+ticket.ID, ownerToken, nil)
	assert.Len(t, decodeTicket(t, env).Messages, 2)
}

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t)

	status, _ := api.do(t, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, env := api.do(t, fiber.MethodGet, "/metrics", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	var snap observability.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, int64(1), snap.Requests["/health/ready|GET|200"])
}
