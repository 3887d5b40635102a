package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"questionbank/internal/backend"
	"questionbank/internal/infra/probe"
)

// DiagnosticsHandler serves interactive connectivity checks over a websocket.
// Only the configured host is ever probed.
type DiagnosticsHandler struct {
	host       string
	candidates []probe.Candidate
	racer      *probe.Racer
	selector   *backend.Selector
	timeout    time.Duration
	upgrader   websocket.Upgrader
	log        zerolog.Logger
}

func NewDiagnosticsHandler(host string, candidates []probe.Candidate, racer *probe.Racer, selector *backend.Selector, log zerolog.Logger) *DiagnosticsHandler {
	return &DiagnosticsHandler{
		host:       host,
		candidates: candidates,
		racer:      racer,
		selector:   selector,
		timeout:    probe.ProbeTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

type inboundMessage struct {
	Type string `json:"type"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type probeEntry struct {
	Name      string `json:"name"`
	Port      int    `json:"port"`
	Reachable bool   `json:"reachable"`
	LatencyMS int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

type recommendation struct {
	Name   string       `json:"name"`
	Port   int          `json:"port"`
	Probes []probeEntry `json:"probes"`
	Report string       `json:"report"`
}

type raceResult struct {
	Name      string `json:"name"`
	Port      int    `json:"port"`
	LatencyMS int64  `json:"latencyMs"`
}

type statusPayload struct {
	Mode       string            `json:"mode"`
	Host       string            `json:"host"`
	Candidates []probe.Candidate `json:"candidates"`
}

// ServeWS upgrades the request and answers probe, recommend, race and status
// messages until the client goes away.
func (h *DiagnosticsHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	// Single writer: gorilla connections do not support concurrent writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Warn().Err(err).Msg("ws write failed")
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "status", Payload: h.status()}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		send <- h.handle(r.Context(), inbound)
	}

	close(send)
	<-writerDone
}

func (h *DiagnosticsHandler) handle(ctx context.Context, in inboundMessage) outboundMessage[any] {
	switch in.Type {
	case "status":
		return outboundMessage[any]{Type: "status", Payload: h.status()}
	case "probe":
		results := probe.ProbeAll(ctx, h.host, h.candidates, h.timeout)
		return outboundMessage[any]{Type: "probeResult", Payload: toEntries(results)}
	case "recommend":
		pick, results := probe.Recommend(ctx, h.host, h.candidates, h.timeout)
		return outboundMessage[any]{Type: "recommendation", Payload: recommendation{
			Name:   pick.Name,
			Port:   pick.Port,
			Probes: toEntries(results),
			Report: probe.Report(h.host, results),
		}}
	case "race":
		if h.racer == nil {
			return errorMessage("race not configured")
		}
		winner, err := h.racer.Race(ctx, h.host, h.candidates)
		if err != nil {
			return errorMessage(err.Error())
		}
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = winner.Conn.Close(closeCtx)
		cancel()
		return outboundMessage[any]{Type: "raceResult", Payload: raceResult{
			Name:      winner.Candidate.Name,
			Port:      winner.Candidate.Port,
			LatencyMS: winner.Latency.Milliseconds(),
		}}
	default:
		return errorMessage("unsupported message type")
	}
}

func (h *DiagnosticsHandler) status() statusPayload {
	mode := ""
	if h.selector != nil {
		mode = string(h.selector.Mode())
	}
	return statusPayload{Mode: mode, Host: h.host, Candidates: h.candidates}
}

func toEntries(results []probe.Result) []probeEntry {
	out := make([]probeEntry, 0, len(results))
	for _, r := range results {
		out = append(out, probeEntry{
			Name:      r.Candidate.Name,
			Port:      r.Candidate.Port,
			Reachable: r.Reachable,
			LatencyMS: r.Latency.Milliseconds(),
			Error:     r.Err,
		})
	}
	return out
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}
