package backend

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"questionbank/internal/config"
	"questionbank/internal/domain"
	"questionbank/internal/infra/postgres"
	"questionbank/internal/infra/probe"
	"questionbank/internal/infra/tablestore"
)

type fakePinger struct {
	err   error
	calls atomic.Int32
}

func (p *fakePinger) Ping(context.Context) error {
	p.calls.Add(1)
	return p.err
}

type nopConn struct{ closed atomic.Bool }

func (c *nopConn) Close(context.Context) error {
	c.closed.Store(true)
	return nil
}

type portHandshaker struct {
	up    map[int]bool
	calls atomic.Int32
	conn  *nopConn
}

func (h *portHandshaker) Handshake(_ context.Context, _ string, port int) (probe.Conn, error) {
	h.calls.Add(1)
	if !h.up[port] {
		return nil, errors.New("refused")
	}
	return h.conn, nil
}

func bootstrap(backend string, autoTest bool, remote Pinger, up map[int]bool) (Bootstrap, *portHandshaker) {
	cfg := config.Default()
	cfg.Backend = backend
	cfg.Database.AutoTest = autoTest
	hs := &portHandshaker{up: up, conn: &nopConn{}}
	return Bootstrap{
		Config: cfg,
		Remote: remote,
		Racer:  &probe.Racer{Handshaker: hs, PerAttempt: time.Second, Log: zerolog.Nop()},
		Log:    zerolog.Nop(),
	}, hs
}

func TestSelectorDefaultsToDirect(t *testing.T) {
	sel := NewSelector()
	if sel.Mode() != ModeDirect {
		t.Fatalf("expected direct default, got %s", sel.Mode())
	}
	sel.SetMode(ModeRemoteStore)
	if sel.Mode() != ModeRemoteStore {
		t.Fatalf("mode not switched")
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode("remote"); err != nil || m != ModeRemoteStore {
		t.Fatalf("parse remote: %v %v", m, err)
	}
	if _, err := ParseMode("auto"); err == nil {
		t.Fatalf("auto is a policy, not a mode")
	}
}

func TestSelectAutoPrefersRemote(t *testing.T) {
	remote := &fakePinger{}
	b, hs := bootstrap(config.BackendAuto, true, remote, map[int]bool{6543: true})
	sel := NewSelector()

	got, err := b.Select(context.Background(), sel)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got.Mode != ModeRemoteStore || sel.Mode() != ModeRemoteStore {
		t.Fatalf("expected remote, got %+v", got)
	}
	if remote.calls.Load() != 1 || hs.calls.Load() == 0 {
		t.Fatalf("expected both backends tested")
	}
	if got.Port != 6543 || !hs.conn.closed.Load() {
		t.Fatalf("direct result should still be recorded and its connection closed: %+v", got)
	}
}

func TestSelectAutoFallsBackToDirectPort(t *testing.T) {
	b, _ := bootstrap(config.BackendAuto, true, &fakePinger{err: errors.New("401")}, map[int]bool{6543: true})
	sel := NewSelector()
	sel.SetMode(ModeRemoteStore)

	got, err := b.Select(context.Background(), sel)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got.Mode != ModeDirect || got.Port != 6543 || sel.Mode() != ModeDirect {
		t.Fatalf("expected direct on pooled port, got %+v", got)
	}
}

func TestSelectAutoNothingReachable(t *testing.T) {
	b, _ := bootstrap(config.BackendAuto, true, nil, map[int]bool{})
	sel := NewSelector()

	got, err := b.Select(context.Background(), sel)
	if !errors.Is(err, domain.ErrNoBackendReachable) {
		t.Fatalf("expected ErrNoBackendReachable, got %v", err)
	}
	if got.Mode != ModeDirect || sel.Mode() != ModeDirect || got.Port != 5432 {
		t.Fatalf("expected degraded direct default, got %+v", got)
	}
}

func TestSelectWithoutAutoTestDoesNoNetwork(t *testing.T) {
	remote := &fakePinger{}
	b, hs := bootstrap(config.BackendAuto, false, remote, nil)

	got, err := b.Select(context.Background(), NewSelector())
	if err != nil || got.Mode != ModeDirect {
		t.Fatalf("expected quiet direct default, got %+v, %v", got, err)
	}
	if remote.calls.Load() != 0 || hs.calls.Load() != 0 {
		t.Fatalf("no network traffic expected")
	}

	b, _ = bootstrap(config.BackendRemote, false, remote, nil)
	if got, _ := b.Select(context.Background(), NewSelector()); got.Mode != ModeRemoteStore {
		t.Fatalf("explicit remote not adopted: %+v", got)
	}
}

func TestSelectExplicitRemoteReportsFailure(t *testing.T) {
	b, hs := bootstrap(config.BackendRemote, true, &fakePinger{err: errors.New("down")}, map[int]bool{5432: true})
	sel := NewSelector()

	got, err := b.Select(context.Background(), sel)
	if !errors.Is(err, domain.ErrNoBackendReachable) {
		t.Fatalf("expected ErrNoBackendReachable, got %v", err)
	}
	if got.Mode != ModeRemoteStore || sel.Mode() != ModeRemoteStore {
		t.Fatalf("explicit mode must be kept, got %+v", got)
	}
	if hs.calls.Load() != 0 {
		t.Fatalf("direct backend should not be tested in remote mode")
	}
}

func TestCandidatesDeduplicates(t *testing.T) {
	db := config.Default().Database
	db.PooledPort = db.Port
	if c := Candidates(db); len(c) != 1 {
		t.Fatalf("expected one candidate, got %+v", c)
	}
}

func TestFactoryFollowsSelector(t *testing.T) {
	sel := NewSelector()
	store := tablestore.NewClient(tablestore.Options{BaseURL: "http://store.invalid"}, zerolog.Nop())
	f := &Factory{Selector: sel, Store: store, Log: zerolog.Nop()}

	if _, err := f.Questions(); !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("direct mode without a db should be unavailable, got %v", err)
	}

	sel.SetMode(ModeRemoteStore)
	q, err := f.Questions()
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if _, ok := q.(*tablestore.QuestionRepository); !ok {
		t.Fatalf("expected table-store repository, got %T", q)
	}
	for name, build := range map[string]func() (any, error){
		"roles":        func() (any, error) { return f.Roles() },
		"users":        func() (any, error) { return f.Users() },
		"categories":   func() (any, error) { return f.Categories() },
		"difficulties": func() (any, error) { return f.Difficulties() },
	} {
		if _, err := build(); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
}

func TestFactoryDirectRepositories(t *testing.T) {
	sel := NewSelector()
	// sql.OpenDB does not dial, so no database is needed here.
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN("postgres://qb@127.0.0.1:1/qb?sslmode=disable")))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()
	f := &Factory{Selector: sel, DB: db, Log: zerolog.Nop()}

	q, err := f.Questions()
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if _, ok := q.(*postgres.QuestionRepository); !ok {
		t.Fatalf("expected direct repository, got %T", q)
	}

	sel.SetMode(ModeRemoteStore)
	if _, err := f.Users(); !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("remote mode without a store should be unavailable, got %v", err)
	}
}
