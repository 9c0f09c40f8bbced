package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/websocket"
	ws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockTokenValidator struct {
	userID string
	err    error
}

func (m *mockTokenValidator) ValidateToken(_ context.Context, _ string) (string, error) {
	return m.userID, m.err
}

var testAllowedOrigins = []string{"http://localhost:3000", "https://fortuna.app/"}

func TestHandleWS_RejectsUnauthenticated(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		validator *mockTokenValidator
	}{
		{"missing token", "/ws", &mockTokenValidator{userID: "auth0|u1"}},
		{"invalid token", "/ws?token=invalid-jwt", &mockTokenValidator{err: websocket.ErrInvalidToken}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := websocket.NewHub()
			h := NewWebSocketHandler(hub, tt.validator, testAllowedOrigins)
			c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, tt.target, nil), httptest.NewRecorder())

			err := h.HandleWS(c)

			var httpErr *echo.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
			assert.Equal(t, 0, hub.TotalClientCount())
		})
	}
}

func TestHandleWS_ValidTokenWithoutUpgrade(t *testing.T) {
	hub := websocket.NewHub()
	h := NewWebSocketHandler(hub, &mockTokenValidator{userID: "auth0|u1"}, testAllowedOrigins)
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/ws?token=valid-jwt", nil), httptest.NewRecorder())

	err := h.HandleWS(c)

	// auth passed; a plain GET fails at the upgrade step
	require.Error(t, err)
	_, isHTTPErr := err.(*echo.HTTPError)
	assert.False(t, isHTTPErr)
	assert.Equal(t, 0, hub.ClientCount("auth0|u1"))
}

func startWSServer(t *testing.T, hub *websocket.Hub, userID string) string {
	t.Helper()
	e := echo.New()
	e.GET("/ws", NewWebSocketHandler(hub, &mockTokenValidator{userID: userID}, testAllowedOrigins).HandleWS)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestHandleWS_DeliversUserEvents(t *testing.T) {
	hub := websocket.NewHub()
	url := startWSServer(t, hub, "auth0|u1")

	conn, resp, err := ws.DefaultDialer.Dial(url+"?token=valid-jwt", http.Header{"Origin": {"http://localhost:3000"}})
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.Eventually(t, func() bool { return hub.ClientCount("auth0|u1") == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish("auth0|other", websocket.NewEvent(websocket.TransactionDeletedEvent, map[string]string{"id": "x"}))
	hub.Publish("auth0|u1", websocket.NewEvent(websocket.TransactionCreatedEvent, map[string]string{"id": "tx-1"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event struct {
		Type    string            `json:"type"`
		Entity  string            `json:"entity"`
		Payload map[string]string `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, websocket.TransactionCreatedEvent, event.Type)
	assert.Equal(t, "transaction", event.Entity)
	assert.Equal(t, "tx-1", event.Payload["id"])

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount("auth0|u1") == 0 }, time.Second, 10*time.Millisecond)
}

func TestHandleWS_AcceptsBearerHeader(t *testing.T) {
	hub := websocket.NewHub()
	url := startWSServer(t, hub, "auth0|cli")

	conn, _, err := ws.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer valid-jwt"}})
	require.NoError(t, err)
	defer conn.Close()

	assert.Eventually(t, func() bool { return hub.ClientCount("auth0|cli") == 1 }, time.Second, 10*time.Millisecond)
}

func TestHandleWS_RejectsForeignOrigin(t *testing.T) {
	hub := websocket.NewHub()
	url := startWSServer(t, hub, "auth0|u1")

	_, resp, err := ws.DefaultDialer.Dial(url+"?token=valid-jwt", http.Header{"Origin": {"https://evil.com"}})
	require.ErrorIs(t, err, ws.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, hub.TotalClientCount())
}

func TestWebSocketHandler_CheckOrigin(t *testing.T) {
	tests := []struct {
		name     string
		allowed  []string
		origin   string
		expected bool
	}{
		{"allowed origin", testAllowedOrigins, "http://localhost:3000", true},
		{"trailing slash in config", testAllowedOrigins, "https://fortuna.app", true},
		{"disallowed origin", testAllowedOrigins, "https://evil.com", false},
		{"no origin header", testAllowedOrigins, "", true},
		{"wildcard", []string{"*"}, "https://anywhere.dev", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewWebSocketHandler(websocket.NewHub(), &mockTokenValidator{}, tt.allowed)
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.expected, h.checkOrigin(req))
		})
	}
}

func TestUpgradeToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws?token=query-token", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	assert.Equal(t, "query-token", upgradeToken(req))

	req = httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	assert.Equal(t, "header-token", upgradeToken(req))

	req = httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, upgradeToken(req))
}
