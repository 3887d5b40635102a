package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"questionbank/internal/config"
	"questionbank/internal/domain"
	"questionbank/internal/infra/probe"
)

// Pinger checks that the table store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Selection is the outcome of startup backend selection.
type Selection struct {
	Mode Mode
	// Port is the direct-connection port to use.
	Port int
	// Latency of the winning direct handshake, when one ran.
	Latency   time.Duration
	RemoteErr error
	DirectErr error
}

// Bootstrap tests the configured backends and sets the selector.
type Bootstrap struct {
	Config config.Config
	// Remote is nil when no table store is configured.
	Remote Pinger
	// Racer is nil when direct connections cannot be tested.
	Racer *probe.Racer
	Log   zerolog.Logger
}

// Candidates lists the configured direct ports, default first.
func Candidates(db config.Database) []probe.Candidate {
	out := []probe.Candidate{{Name: "default", Port: db.Port}}
	if db.PooledPort != db.Port {
		out = append(out, probe.Candidate{Name: "pooled", Port: db.PooledPort})
	}
	return out
}

// Select applies the configured policy. With backend "auto" and auto_test on,
// the table store ping and the direct race run concurrently and the table
// store wins when reachable. If nothing answers the selector is left in
// ModeDirect and the error wraps ErrNoBackendReachable so callers can carry
// on degraded.
func (b Bootstrap) Select(ctx context.Context, sel *Selector) (Selection, error) {
	cfg := b.Config
	result := Selection{Mode: ModeDirect, Port: cfg.Database.Port}

	switch cfg.Backend {
	case config.BackendRemote:
		result.Mode = ModeRemoteStore
		if cfg.Database.AutoTest {
			result.RemoteErr = b.pingRemote(ctx)
		}
	case config.BackendDirect:
		if cfg.Database.AutoTest {
			b.raceDirect(ctx, &result)
		}
	default:
		if !cfg.Database.AutoTest {
			break
		}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			result.RemoteErr = b.pingRemote(gctx)
			return nil
		})
		g.Go(func() error {
			b.raceDirect(gctx, &result)
			return nil
		})
		_ = g.Wait()

		if result.RemoteErr == nil {
			result.Mode = ModeRemoteStore
		}
	}

	sel.SetMode(result.Mode)
	b.Log.Info().
		Str("mode", string(result.Mode)).
		Int("port", result.Port).
		AnErr("remote_err", result.RemoteErr).
		AnErr("direct_err", result.DirectErr).
		Msg("backend selected")

	return result, selectionErr(cfg, result)
}

func selectionErr(cfg config.Config, r Selection) error {
	if !cfg.Database.AutoTest {
		return nil
	}
	switch cfg.Backend {
	case config.BackendRemote:
		if r.RemoteErr != nil {
			return fmt.Errorf("table store: %w: %w", domain.ErrNoBackendReachable, r.RemoteErr)
		}
	case config.BackendDirect:
		if r.DirectErr != nil {
			return fmt.Errorf("direct connection: %w: %w", domain.ErrNoBackendReachable, r.DirectErr)
		}
	default:
		if r.RemoteErr != nil && r.DirectErr != nil {
			return fmt.Errorf("%w: %w", domain.ErrNoBackendReachable, errors.Join(r.RemoteErr, r.DirectErr))
		}
	}
	return nil
}

func (b Bootstrap) pingRemote(ctx context.Context) error {
	if b.Remote == nil {
		return errors.New("table store not configured")
	}
	return b.Remote.Ping(ctx)
}

// raceDirect only touches the direct fields of r.
func (b Bootstrap) raceDirect(ctx context.Context, r *Selection) {
	if b.Racer == nil {
		r.DirectErr = errors.New("direct connection testing not configured")
		return
	}
	w, err := b.Racer.Race(ctx, b.Config.Database.Host, Candidates(b.Config.Database))
	if err != nil {
		r.DirectErr = err
		return
	}
	r.Port = w.Candidate.Port
	r.Latency = w.Latency
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Conn.Close(closeCtx); err != nil {
		b.Log.Warn().Err(err).Msg("closing probe connection")
	}
}
