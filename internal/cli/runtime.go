package cli

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"questionbank/internal/backend"
	"questionbank/internal/config"
	"questionbank/internal/domain"
	"questionbank/internal/infra/postgres"
	"questionbank/internal/infra/probe"
	qbredis "questionbank/internal/infra/redis"
	"questionbank/internal/infra/tablestore"
	"questionbank/internal/logger"
)

// runtime is everything a command needs after startup selection.
type runtime struct {
	cfg       config.Config
	log       zerolog.Logger
	selector  *backend.Selector
	selection backend.Selection
	factory   *backend.Factory
	racer     *probe.Racer
	closers   []func() error
}

// loadBase reads the config and initialises logging.
func loadBase(path string) (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, zerolog.Nop(), err
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	log := logger.Init(logger.Options{Level: level, Pretty: cfg.Env == "dev"})
	return cfg, log, nil
}

func newStoreClient(cfg config.Config, log zerolog.Logger) *tablestore.Client {
	if !cfg.TableStore.Enabled() {
		return nil
	}
	timeout := cfg.TableStore.RequestTimeout()
	return tablestore.NewClient(tablestore.Options{
		BaseURL:        cfg.TableStore.URL,
		APIKey:         cfg.TableStore.APIKey,
		Token:          cfg.TableStore.Token,
		ConnectTimeout: timeout,
		ReadTimeout:    timeout,
		PingTable:      cfg.TableStore.PingTable,
	}, log)
}

func newRacer(cfg config.Config, log zerolog.Logger) *probe.Racer {
	return probe.NewRacer(probe.PgxHandshaker{DSN: cfg.Database.DSN}, log)
}

// openRuntime selects a backend and opens its handles. Backends that cannot
// be reached are logged and left nil so the factory reports them unavailable.
func openRuntime(ctx context.Context, path string) (*runtime, error) {
	cfg, log, err := loadBase(path)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:      cfg,
		log:      log,
		selector: backend.NewSelector(),
		racer:    newRacer(cfg, log),
	}

	store := newStoreClient(cfg, log)
	boot := backend.Bootstrap{Config: cfg, Racer: rt.racer, Log: log}
	if store != nil {
		boot.Remote = store
	}
	rt.selection, err = boot.Select(ctx, rt.selector)
	if err != nil {
		if !errors.Is(err, domain.ErrNoBackendReachable) {
			return nil, err
		}
		log.Warn().Err(err).Msg("continuing without a verified backend")
	}

	rt.factory = &backend.Factory{
		Selector: rt.selector,
		Store:    store,
		CacheTTL: config.TTLDuration(cfg.Cache.TTL, 0),
		Log:      log,
	}

	if rt.selector.Mode() == backend.ModeDirect {
		db, err := postgres.Open(ctx, cfg.Database, cfg.Database.Host, rt.selection.Port)
		if err != nil {
			log.Warn().Err(err).Msg("direct connection unavailable")
		} else {
			rt.factory.DB = db
			rt.closers = append(rt.closers, db.Close)
		}
	}

	if cfg.Redis.Addr != "" {
		client, err := qbredis.Connect(ctx, cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("shared lookup cache disabled")
		} else {
			rt.factory.Redis = client
			rt.factory.RedisTTL = config.TTLDuration(cfg.Redis.TTL, 0)
			rt.closers = append(rt.closers, client.Close)
		}
	}
	return rt, nil
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.log.Warn().Err(err).Msg("close")
		}
	}
}
