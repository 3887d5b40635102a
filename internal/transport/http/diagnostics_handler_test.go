package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"questionbank/internal/backend"
	"questionbank/internal/infra/probe"
)

type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type okConn struct{}

func (okConn) Close(context.Context) error { return nil }

type fixedHandshaker struct{ up int }

func (h fixedHandshaker) Handshake(_ context.Context, _ string, port int) (probe.Conn, error) {
	if port != h.up {
		return nil, errors.New("refused")
	}
	return okConn{}, nil
}

func openPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

func dial(t *testing.T, h *DiagnosticsHandler) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(NewRouter(h))
	t.Cleanup(server.Close)
	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readNext(t *testing.T, conn *websocket.Conn) inbound {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg inbound
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestDiagnosticsStatusAndProbe(t *testing.T) {
	open := openPort(t)
	candidates := []probe.Candidate{{Name: "default", Port: open}}
	sel := backend.NewSelector()
	h := NewDiagnosticsHandler("127.0.0.1", candidates, nil, sel, zerolog.Nop())
	conn := dial(t, h)

	status := readNext(t, conn)
	if status.Type != "status" || !strings.Contains(string(status.Payload), `"mode":"direct"`) {
		t.Fatalf("unexpected greeting %s %s", status.Type, status.Payload)
	}

	if err := conn.WriteJSON(map[string]string{"type": "probe"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg := readNext(t, conn)
	if msg.Type != "probeResult" {
		t.Fatalf("expected probeResult, got %s", msg.Type)
	}
	var entries []probeEntry
	if err := json.Unmarshal(msg.Payload, &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || !entries[0].Reachable || entries[0].Port != open {
		t.Fatalf("unexpected probe entries %+v", entries)
	}
}

func TestDiagnosticsRecommendAndRace(t *testing.T) {
	open := openPort(t)
	candidates := []probe.Candidate{{Name: "default", Port: open}}
	racer := &probe.Racer{Handshaker: fixedHandshaker{up: open}, PerAttempt: time.Second, Log: zerolog.Nop()}
	h := NewDiagnosticsHandler("127.0.0.1", candidates, racer, backend.NewSelector(), zerolog.Nop())
	conn := dial(t, h)
	readNext(t, conn)

	_ = conn.WriteJSON(map[string]string{"type": "recommend"})
	msg := readNext(t, conn)
	var rec recommendation
	if err := json.Unmarshal(msg.Payload, &rec); err != nil || msg.Type != "recommendation" {
		t.Fatalf("bad recommendation %s %s", msg.Type, msg.Payload)
	}
	if rec.Port != open || !strings.Contains(rec.Report, "Recommended") {
		t.Fatalf("unexpected recommendation %+v", rec)
	}

	_ = conn.WriteJSON(map[string]string{"type": "race"})
	msg = readNext(t, conn)
	var race raceResult
	if err := json.Unmarshal(msg.Payload, &race); err != nil || msg.Type != "raceResult" || race.Port != open {
		t.Fatalf("bad race result %s %s", msg.Type, msg.Payload)
	}
}

func TestDiagnosticsRejectsUnknownType(t *testing.T) {
	h := NewDiagnosticsHandler("127.0.0.1", nil, nil, nil, zerolog.Nop())
	conn := dial(t, h)
	readNext(t, conn)

	_ = conn.WriteJSON(map[string]string{"type": "drop-tables"})
	if msg := readNext(t, conn); msg.Type != "error" {
		t.Fatalf("expected error, got %s", msg.Type)
	}
	_ = conn.WriteJSON(map[string]string{"type": "race"})
	if msg := readNext(t, conn); msg.Type != "error" {
		t.Fatalf("expected error without racer, got %s", msg.Type)
	}
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	server := httptest.NewServer(NewRouter(NewDiagnosticsHandler("127.0.0.1", nil, nil, nil, zerolog.Nop())))
	defer server.Close()

	for path, want := range map[string]string{"/healthz": "ok", "/metrics": "go_goroutines"} {
		resp, err := http.Get(server.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), want) {
			t.Fatalf("%s: status %d body %q", path, resp.StatusCode, body)
		}
	}
}
