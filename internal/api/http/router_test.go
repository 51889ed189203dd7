package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/craigfelt/zerobitone-ticket-service/internal/api/http/handlers"
	"github.com/craigfelt/zerobitone-ticket-service/internal/auth"
	"github.com/craigfelt/zerobitone-ticket-service/internal/authz"
	"github.com/craigfelt/zerobitone-ticket-service/internal/domain"
	"github.com/craigfelt/zerobitone-ticket-service/internal/events"
	"github.com/craigfelt/zerobitone-ticket-service/internal/observability"
	"github.com/craigfelt/zerobitone-ticket-service/internal/reference"
	"github.com/craigfelt/zerobitone-ticket-service/internal/repository/memory"
	"github.com/craigfelt/zerobitone-ticket-service/internal/service"
)

type testServer struct {
	app     *fiber.App
	tokens  *auth.TokenManager
	metrics *observability.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.NewStore()
	enforcer, err := authz.NewEnforcer(zap.NewNop())
	require.NoError(t, err)

	svc := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  store.Tickets(),
		CommentRepo: store.Comments(),
		HistoryRepo: store.History(),
		Catalog:     reference.Default(),
		Authorizer:  enforcer,
		Dispatcher:  events.NewInMemoryDispatcher(),
		Logger:      zap.NewNop(),
		Location:    time.UTC,
	})

	tokens := auth.NewTokenManager("test-secret", 5)
	metrics := observability.NewMetrics()
	app := NewServer("tickets-test", zap.NewNop(), metrics, time.Second, RouteConfig{
		Health:         handlers.NewHealthHandler("tickets-test", "test", nil, nil, metrics),
		Tickets:        handlers.NewTicketsHandler(svc),
		Comments:       handlers.NewCommentsHandler(svc),
		Watchers:       handlers.NewWatchersHandler(svc),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})
	return &testServer{app: app, tokens: tokens, metrics: metrics}
}

func (s *testServer) do(t *testing.T, actor *domain.Actor, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if actor != nil {
		token, _, err := s.tokens.GenerateToken(*actor)
		require.NoError(t, err)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

var (
	creator = &domain.Actor{ID: 10, Role: domain.RoleUser}
	other   = &domain.Actor{ID: 11, Role: domain.RoleUser}
	admin   = &domain.Actor{ID: 1, Role: domain.RoleAdmin}
)

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	envelope, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %v", body)
	return envelope["code"].(string)
}

func createTicket(t *testing.T, s *testServer, priority int) map[string]any {
	t.Helper()
	status, body := s.do(t, creator, "POST", "/api/tickets", map[string]any{
		"title":       "VPN drops",
		"description": "Disconnects every hour",
		"categoryId":  1,
		"priorityId":  priority,
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	return body
}

func TestCreateTicket_HTTP(t *testing.T) {
	s := newTestServer(t)
	body := createTicket(t, s, 4)

	assert.Regexp(t, `^TKT-\d{4}-000001$`, body["ticketNumber"])
	assert.Equal(t, float64(1), body["statusId"])
	assert.Equal(t, float64(creator.ID), body["createdBy"])
	assert.Equal(t, []any{}, body["comments"])
	assert.NotContains(t, body, "ticket_number")

	sla := body["sla"].(map[string]any)
	assert.Equal(t, false, sla["breached"])
	response, err := time.Parse(time.RFC3339Nano, sla["responseDeadline"].(string))
	require.NoError(t, err)
	resolution, err := time.Parse(time.RFC3339Nano, sla["resolutionDeadline"].(string))
	require.NoError(t, err)
	assert.Equal(t, 7*time.Hour, resolution.Sub(response))
}

func TestCreateTicket_HTTPErrors(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, creator, "POST", "/api/tickets", map[string]any{"title": "x"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, body))
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.ElementsMatch(t, []any{"description", "categoryId"}, details["fields"])

	status, body = s.do(t, creator, "POST", "/api/tickets", map[string]any{
		"title": "x", "description": "y", "categoryId": 999,
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, "INVALID_REFERENCE", errorCode(t, body))

	status, body = s.do(t, nil, "POST", "/api/tickets", map[string]any{"title": "x"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, body))
}

func TestGetTicket_HTTP(t *testing.T) {
	s := newTestServer(t)
	created := createTicket(t, s, 2)

	status, body := s.do(t, other, "GET", "/api/tickets/number/"+created["ticketNumber"].(string), nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, created["id"], body["id"])

	status, body = s.do(t, other, "GET", "/api/tickets/404", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(t, body))

	status, body = s.do(t, other, "GET", "/api/tickets/abc", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, body))

	status, body = s.do(t, other, "GET", "/api/nowhere", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(t, body))
}

func TestUpdateTicket_HTTP(t *testing.T) {
	s := newTestServer(t)
	created := createTicket(t, s, 2)
	path := "/api/tickets/1"

	status, body := s.do(t, other, "PATCH", path, map[string]any{"title": "hijack"})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(t, body))

	status, body = s.do(t, creator, "PATCH", path, map[string]any{"statusId": 4, "version": created["version"]})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, float64(4), body["statusId"])
	assert.NotNil(t, body["resolvedAt"])

	status, body = s.do(t, creator, "PATCH", path, map[string]any{"title": "stale", "version": created["version"]})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "CONFLICT", errorCode(t, body))

	status, body = s.do(t, creator, "GET", path+"/history", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.NotEmpty(t, body["history"])
}

func TestDeleteTicket_HTTP(t *testing.T) {
	s := newTestServer(t)
	createTicket(t, s, 1)

	status, body := s.do(t, creator, "DELETE", "/api/tickets/1", nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(t, body))

	status, _ = s.do(t, admin, "DELETE", "/api/tickets/1", nil)
	assert.Equal(t, fiber.StatusNoContent, status)

	status, body = s.do(t, admin, "DELETE", "/api/tickets/1", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(t, body))
}

func TestComments_HTTP(t *testing.T) {
	s := newTestServer(t)
	createTicket(t, s, 2)

	status, body := s.do(t, other, "POST", "/api/tickets/1/comments", map[string]any{"content": "me too"})
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.Equal(t, float64(other.ID), body["userId"])
	assert.Nil(t, body["updatedAt"])

	status, body = s.do(t, other, "POST", "/api/tickets/1/comments", map[string]any{"content": ""})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, body))

	status, body = s.do(t, creator, "PUT", "/api/tickets/1/comments/1", map[string]any{"content": "edited"})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(t, body))

	status, body = s.do(t, other, "PUT", "/api/tickets/1/comments/1", map[string]any{"content": "edited"})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "edited", body["content"])
	assert.NotNil(t, body["updatedAt"])

	status, _ = s.do(t, other, "DELETE", "/api/tickets/1/comments/1", nil)
	assert.Equal(t, fiber.StatusNoContent, status)

	status, body = s.do(t, other, "POST", "/api/tickets/99/comments", map[string]any{"content": "lost"})
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(t, body))
}

func TestWatchers_HTTP(t *testing.T) {
	s := newTestServer(t)
	createTicket(t, s, 2)

	status, body := s.do(t, other, "POST", "/api/tickets/1/watchers", nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Contains(t, body["watchers"], float64(other.ID))

	status, body = s.do(t, other, "POST", "/api/tickets/1/watchers", map[string]any{"userId": 42})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(t, body))

	status, body = s.do(t, other, "DELETE", "/api/tickets/1/watchers/11", nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.NotContains(t, body["watchers"], float64(other.ID))
}

func TestListAndStatistics_HTTP(t *testing.T) {
	s := newTestServer(t)
	createTicket(t, s, 1)
	createTicket(t, s, 4)

	status, body := s.do(t, other, "GET", "/api/tickets?priorityId=4", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])

	status, body = s.do(t, other, "GET", "/api/tickets?sortBy=password", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, body))

	status, body = s.do(t, other, "GET", "/api/tickets/statistics", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(2), body["total"])
	assert.Equal(t, float64(2), body["open"])

	status, body = s.do(t, other, "GET", "/api/metadata/tickets", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["priorities"], 4)
}

func TestHealthAndMetrics_HTTP(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, nil, "GET", "/health/live", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, _ = s.do(t, nil, "GET", "/health/ready", nil)
	assert.Equal(t, fiber.StatusOK, status)

	s.do(t, nil, "GET", "/api/tickets", nil)
	status, body = s.do(t, nil, "GET", "/metrics", nil)
	require.Equal(t, fiber.StatusOK, status)
	errs := body["errors"].(map[string]any)
	assert.Equal(t, float64(1), errs["/api/tickets|GET|UNAUTHORIZED"])
}
