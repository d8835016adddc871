package realtime_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gbp-politico/backend/internal/realtime"
)

func newServer(t *testing.T, hub *realtime.Hub, auth realtime.Authenticator) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", realtime.ServeWs(hub, realtime.NewUpgrader("*"), zap.NewNop(), auth, "comum"))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestServeWsDeliversEmpresaEvents(t *testing.T) {
	hub := realtime.NewHub(zap.NewNop(), nil, nil)
	empresaID := uuid.New()
	url := newServer(t, hub, func(_ context.Context, token string) (realtime.Identity, error) {
		if token != "good" {
			return realtime.Identity{}, errors.New("bad token")
		}
		return realtime.Identity{UserID: uuid.New(), EmpresaID: empresaID, Role: "gerente"}, nil
	})

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token=good", nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Connections(empresaID) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Publish(empresaID, realtime.EventImportProgress, map[string]int{"percent": 100})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg realtime.WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if msg.Event != realtime.EventImportProgress {
		t.Fatalf("expected import_progress, got %s", msg.Event)
	}

	if err := conn.WriteJSON(realtime.WSMessage{Event: "ping"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if msg.Event != "pong" {
		t.Fatalf("expected pong, got %s", msg.Event)
	}
}

func TestServeWsRejectsBadTokensAndDeniedRoles(t *testing.T) {
	hub := realtime.NewHub(zap.NewNop(), nil, nil)
	url := newServer(t, hub, func(_ context.Context, token string) (realtime.Identity, error) {
		switch token {
		case "comum":
			return realtime.Identity{EmpresaID: uuid.New(), Role: "comum"}, nil
		case "suspensa":
			return realtime.Identity{}, fmt.Errorf("%w: empresa suspended", realtime.ErrDenied)
		default:
			return realtime.Identity{}, errors.New("bad token")
		}
	})

	cases := map[string]int{
		"":                http.StatusBadRequest,
		"?token=nope":     http.StatusUnauthorized,
		"?token=comum":    http.StatusForbidden,
		"?token=suspensa": http.StatusForbidden,
	}
	for query, status := range cases {
		_, resp, err := websocket.DefaultDialer.Dial(url+query, nil)
		if err == nil {
			t.Fatalf("%q: expected handshake failure", query)
		}
		if resp == nil || resp.StatusCode != status {
			t.Fatalf("%q: expected status %d, got %+v", query, status, resp)
		}
	}
}
