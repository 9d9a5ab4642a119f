package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"auditlog-service/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dial(t *testing.T, srv *httptest.Server, tenantID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?tenant_id=" + tenantID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestHub_BroadcastsToMatchingTenantOnly(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, w, r)
	}))
	defer srv.Close()

	acme := dial(t, srv, "acme")
	defer acme.Close()
	globex := dial(t, srv, "globex")
	defer globex.Close()

	// Let both clients finish registering before broadcasting.
	time.Sleep(50 * time.Millisecond)

	notifier := NewNotifier(hub, zap.NewNop())
	rec := &domain.AuditRecord{
		ID:       uuid.New(),
		TenantID: "acme",
		Action:   "login",
		Severity: domain.SeverityInfo,
	}
	notifier.RecordIndexed(rec)

	acme.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := acme.ReadMessage()
	require.NoError(t, err)

	var msg EventMessage
	require.NoError(t, json.Unmarshal(payload, &msg))
	assert.Equal(t, MessageTypeRecordIndexed, msg.Type)
	data := msg.Data.(map[string]interface{})
	assert.Equal(t, "acme", data["tenant_id"])

	globex.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = globex.ReadMessage()
	assert.Error(t, err, "other tenant must not receive the event")
}

func TestServeWS_RequiresTenant(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, w, r)
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
