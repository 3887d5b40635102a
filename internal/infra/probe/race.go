package probe

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"questionbank/internal/domain"
	"questionbank/internal/metrics"
)

// Conn is an established connection produced by a Handshaker.
type Conn interface {
	Close(ctx context.Context) error
}

// Handshaker performs a full connection handshake against host:port.
type Handshaker interface {
	Handshake(ctx context.Context, host string, port int) (Conn, error)
}

// Winner is the first candidate that completed a handshake.
type Winner struct {
	Candidate Candidate
	Conn      Conn
	Latency   time.Duration
}

// Racer runs handshakes against all candidates concurrently.
type Racer struct {
	Handshaker Handshaker
	// PerAttempt bounds each handshake; HandshakeTimeout when zero.
	PerAttempt time.Duration
	// Overall bounds the whole race; PerAttempt plus a small slack when zero.
	Overall time.Duration
	Log     zerolog.Logger
}

// NewRacer builds a Racer with the default timeouts.
func NewRacer(hs Handshaker, log zerolog.Logger) *Racer {
	return &Racer{Handshaker: hs, Log: log}
}

type attempt struct {
	candidate Candidate
	conn      Conn
	latency   time.Duration
	err       error
}

// Race returns the first candidate whose handshake succeeds and cancels the
// others. Losing attempts that still connect after the decision are closed in
// the background. Attempts blocked in a dial may not stop immediately. When
// every attempt fails or the race times out the error wraps ErrNoConnection.
func (r *Racer) Race(ctx context.Context, host string, candidates []Candidate) (Winner, error) {
	if len(candidates) == 0 {
		return Winner{}, fmt.Errorf("race %s: no candidates: %w", host, domain.ErrNoConnection)
	}
	per := r.PerAttempt
	if per <= 0 {
		per = HandshakeTimeout
	}
	overall := r.Overall
	if overall <= 0 {
		overall = per + raceSlack
	}

	raceCtx, cancel := context.WithTimeout(ctx, overall)
	defer cancel()

	results := make(chan attempt, len(candidates))
	g, gctx := errgroup.WithContext(raceCtx)
	g.SetLimit(min(len(candidates), maxWorkers))
	go func() {
		for _, c := range candidates {
			c := c
			g.Go(func() error {
				results <- r.attempt(gctx, host, c, per)
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	var errs []error
	for {
		select {
		case a, ok := <-results:
			if !ok {
				return Winner{}, fmt.Errorf("race %s: %w: %w", host, domain.ErrNoConnection, errors.Join(errs...))
			}
			if a.err != nil {
				errs = append(errs, fmt.Errorf("%s:%d: %w", a.candidate.Name, a.candidate.Port, a.err))
				continue
			}
			cancel()
			go r.drain(results)
			metrics.ProbeAttemptsTotal.WithLabelValues("race", strconv.Itoa(a.candidate.Port), "ok").Inc()
			return Winner{Candidate: a.candidate, Conn: a.conn, Latency: a.latency}, nil
		case <-raceCtx.Done():
			go r.drain(results)
			return Winner{}, fmt.Errorf("race %s: %w: %w", host, domain.ErrNoConnection, raceCtx.Err())
		}
	}
}

func (r *Racer) attempt(ctx context.Context, host string, c Candidate, per time.Duration) attempt {
	attemptCtx, cancel := context.WithTimeout(ctx, per)
	defer cancel()
	start := time.Now()
	conn, err := r.Handshaker.Handshake(attemptCtx, host, c.Port)
	if err != nil {
		result := "failed"
		if ctx.Err() != nil {
			result = "cancelled"
		}
		metrics.ProbeAttemptsTotal.WithLabelValues("race", strconv.Itoa(c.Port), result).Inc()
		r.Log.Debug().Err(err).Int("port", c.Port).Msg("handshake failed")
		return attempt{candidate: c, err: err}
	}
	return attempt{candidate: c, conn: conn, latency: time.Since(start)}
}

// drain closes connections from attempts that finished after the race was decided.
func (r *Racer) drain(results <-chan attempt) {
	for a := range results {
		if a.conn == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.conn.Close(ctx); err != nil {
			r.Log.Warn().Err(err).Int("port", a.candidate.Port).Msg("closing late connection")
		}
		cancel()
		metrics.ProbeAttemptsTotal.WithLabelValues("race", strconv.Itoa(a.candidate.Port), "cancelled").Inc()
	}
}

// PgxHandshaker completes a Postgres startup handshake using pgx.
type PgxHandshaker struct {
	// DSN builds the connection string for a port.
	DSN func(host string, port int) string
}

func (h PgxHandshaker) Handshake(ctx context.Context, host string, port int) (Conn, error) {
	cfg, err := pgx.ParseConfig(h.DSN(host, port))
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
