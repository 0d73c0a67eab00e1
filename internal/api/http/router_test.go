package http

import (
	"bytes"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-workflow/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-workflow/internal/auth"
	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/events"
	"github.com/spec-kit/helpdesk-workflow/internal/lock"
	"github.com/spec-kit/helpdesk-workflow/internal/observability"
	"github.com/spec-kit/helpdesk-workflow/internal/repository/memory"
	"github.com/spec-kit/helpdesk-workflow/internal/service"
)

var (
	requester  = domain.Principal{ID: "req-1", Name: "Rina", Role: domain.RoleRequester}
	technician = domain.Principal{ID: "tech-1", Name: "Tomi", Role: domain.RoleTechnician}
	admin      = domain.Principal{ID: "admin-1", Name: "Ayu", Role: domain.RoleAdmin}
)

type testServer struct {
	app    *fiber.App
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T, mw MiddlewareConfig) *testServer {
	t.Helper()
	store := memory.NewStore()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	deps := service.Dependencies{
		Tickets:    store.Tickets(),
		WorkOrders: store.WorkOrders(),
		Resources:  store.Resources(),
		Directory:  store.Directory(),
		Tx:         store,
		Locker:     lock.NewLocalLocker(),
		Dispatcher: events.NewInMemoryDispatcher(logger),
		Metrics:    metrics,
		Logger:     logger,
	}
	tokens := auth.NewTokenManager("router-test", time.Hour)

	routes := RouteConfig{
		Health:         handlers.NewHealthHandler("helpdesk-workflow", "test", metrics, nil),
		Tickets:        handlers.NewTicketsHandler(service.NewTicketService(deps, service.CredentialsConfig{BcryptCost: 4})),
		WorkOrders:     handlers.NewWorkOrdersHandler(service.NewWorkOrderService(deps)),
		Resources:      handlers.NewResourcesHandler(service.NewResourceService(deps), service.NewAvailabilityService(deps)),
		Ledger:         handlers.NewLedgerHandler(service.NewLedgerService(deps)),
		DevTokens:      handlers.NewDevTokenHandler(tokens),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, store.Directory(), logger),
	}
	return &testServer{app: NewApp("test", logger, metrics, mw, routes), tokens: tokens}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, who *domain.Principal, method, path string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if who != nil {
		token, _, err := s.tokens.GenerateToken(*who)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
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

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func TestRoutes_RequireAuthentication(t *testing.T) {
	s := newTestServer(t, MiddlewareConfig{})

	status, env := s.do(t, nil, nethttp.MethodGet, "/api/v1/tickets", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	status, _ = s.do(t, nil, nethttp.MethodGet, "/health/live", nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, env = s.do(t, &requester, nethttp.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestRoutes_RepairLifecycle(t *testing.T) {
	s := newTestServer(t, MiddlewareConfig{})

	// The technician must have called the API once to be known to the directory.
	status, _ := s.do(t, &technician, nethttp.MethodGet, "/api/v1/tickets", nil)
	require.Equal(t, fiber.StatusOK, status)

	status, env := s.do(t, &requester, nethttp.MethodPost, "/api/v1/tickets/repair", map[string]any{"title": "No power"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.Equal(t, map[string]any{"asset.code": "required"}, env.Error.Details["fields"])

	status, env = s.do(t, &requester, nethttp.MethodPost, "/api/v1/tickets/repair", map[string]any{
		"title":    "No power",
		"severity": "high",
		"asset":    map[string]any{"code": "PC-42", "location": "Lab 1"},
	})
	require.Equal(t, fiber.StatusCreated, status)
	created := decode[map[string]any](t, env.Data)
	assert.Equal(t, "repair", created["type"])
	assert.Equal(t, "submitted", created["status"])
	id := created["id"].(string)

	status, env = s.do(t, &requester, nethttp.MethodPost, "/api/v1/tickets/"+id+"/transitions", map[string]any{
		"action": "assign", "payload": map[string]any{"assignee_id": technician.ID},
	})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	status, env = s.do(t, &admin, nethttp.MethodPost, "/api/v1/tickets/"+id+"/transitions", map[string]any{
		"action": "confirmClose",
	})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)

	status, _ = s.do(t, &admin, nethttp.MethodPost, "/api/v1/tickets/"+id+"/transitions", map[string]any{
		"action": "assign", "payload": map[string]any{"assignee_id": technician.ID},
	})
	require.Equal(t, fiber.StatusOK, status)

	status, env = s.do(t, &technician, nethttp.MethodGet, "/api/v1/tickets/"+id+"/actions", nil)
	require.Equal(t, fiber.StatusOK, status)
	actions := decode[domain.Actionability](t, env.Data)
	assert.True(t, actions[domain.ActionStartWork].Enabled)
	assert.False(t, actions[domain.ActionAssign].Enabled)

	status, env = s.do(t, &requester, nethttp.MethodGet, "/api/v1/tickets/"+id, nil)
	require.Equal(t, fiber.StatusOK, status)
	detail := decode[map[string]any](t, env.Data)
	assert.Equal(t, []any{}, detail["work_orders"])

	status, env = s.do(t, &requester, nethttp.MethodGet, "/api/v1/assets/PC-42/ledger", nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, env = s.do(t, &technician, nethttp.MethodGet, "/api/v1/assets/PC-42/ledger", nil)
	require.Equal(t, fiber.StatusOK, status)
	ledger := decode[domain.MaintenanceLedger](t, env.Data)
	assert.Len(t, ledger.Tickets, 1)
}

func TestRoutes_BookingWarningAndOverride(t *testing.T) {
	s := newTestServer(t, MiddlewareConfig{})

	status, env := s.do(t, &admin, nethttp.MethodPost, "/api/v1/resources", map[string]any{
		"category": "room", "name": "Aula", "capacity": 30,
	})
	require.Equal(t, fiber.StatusCreated, status)
	resource := decode[domain.Resource](t, env.Data)

	booking := func(start, end string, override bool) (int, envelope) {
		return s.do(t, &requester, nethttp.MethodPost, "/api/v1/tickets/booking", map[string]any{
			"title": "Town hall", "resource_id": resource.ID, "participants": 20,
			"start": start, "end": end, "override": override,
		})
	}

	status, env = booking("2024-06-03T10:00:00Z", "2024-06-03T11:00:00Z", false)
	require.Equal(t, fiber.StatusCreated, status)

	status, env = booking("2024-06-03T10:30:00Z", "2024-06-03T11:30:00Z", false)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "SCHEDULE_WARNING", env.Error.Code)
	assert.Equal(t, true, env.Error.Details["requires_override"])

	status, env = booking("2024-06-03T10:30:00Z", "2024-06-03T11:30:00Z", true)
	require.Equal(t, fiber.StatusCreated, status)
	created := decode[map[string]any](t, env.Data)
	assert.NotNil(t, created["warning"])

	status, env = booking("2024-06-03T12:00:00Z", "2024-06-03T11:00:00Z", false)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, env = s.do(t, &requester, nethttp.MethodGet, "/api/v1/resources/"+resource.ID+"/events", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decode[[]domain.BookingEvent](t, env.Data), 2)

	status, env = s.do(t, &requester, nethttp.MethodPost, "/api/v1/resources/"+resource.ID+"/conflicts", map[string]any{
		"start": "2024-06-03T11:30:00Z", "end": "2024-06-03T12:00:00Z",
	})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, domain.ConflictClear, decode[domain.Conflict](t, env.Data).Kind)
}

func TestRoutes_RateLimited(t *testing.T) {
	s := newTestServer(t, MiddlewareConfig{RateLimitRPS: 0.001, RateLimitBurst: 2})

	for i := 0; i < 2; i++ {
		status, _ := s.do(t, nil, nethttp.MethodGet, "/health/live", nil)
		assert.Equal(t, fiber.StatusOK, status)
	}
	status, env := s.do(t, nil, nethttp.MethodGet, "/health/live", nil)
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Equal(t, "RATE_LIMITED", env.Error.Code)
}

func TestDevTokenEndpoint(t *testing.T) {
	s := newTestServer(t, MiddlewareConfig{})
	status, env := s.do(t, nil, nethttp.MethodPost, "/auth/dev-token", map[string]any{
		"id": "x", "name": "X", "role": "admin",
	})
	require.Equal(t, fiber.StatusCreated, status)
	token := decode[map[string]any](t, env.Data)["token"].(string)

	claims, err := s.tokens.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, claims.Role)

	status, _ = s.do(t, nil, nethttp.MethodPost, "/auth/dev-token", map[string]any{"id": "x", "name": "X", "role": "root"})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestMetricsEndpoint_CountsRequestsAndErrors(t *testing.T) {
	s := newTestServer(t, MiddlewareConfig{})
	s.do(t, nil, nethttp.MethodGet, "/health/live", nil)
	s.do(t, nil, nethttp.MethodGet, "/api/v1/tickets", nil)

	resp, err := s.app.Test(httptest.NewRequest(nethttp.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var snapshot observability.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	assert.NotEmpty(t, snapshot.Requests)
	require.Len(t, snapshot.Errors, 1)
	assert.Contains(t, snapshot.Errors[0].Key, "UNAUTHORIZED")
}
