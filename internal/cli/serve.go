package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"questionbank/internal/backend"
	transport "questionbank/internal/transport/http"
)

// NewServeCmd starts the diagnostics server.
func NewServeCmd(configPath *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve health, metrics and the websocket diagnostics endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr from config)")
	return cmd
}

func runServer(ctx context.Context, configPath, addrFlag string) error {
	rt, err := openRuntime(ctx, configPath)
	if err != nil {
		return err
	}
	defer rt.Close()

	addr := addrFlag
	if addr == "" {
		addr = rt.cfg.Server.Addr
	}

	diag := transport.NewDiagnosticsHandler(rt.cfg.Database.Host, backend.Candidates(rt.cfg.Database), rt.racer, rt.selector, rt.log)
	server := transport.NewServer(addr, transport.NewRouter(diag))

	go func() {
		rt.log.Info().Str("addr", addr).Str("backend", string(rt.selector.Mode())).Msg("starting diagnostics server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.log.Error().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		rt.log.Info().Msg("shutting down server...")
	case <-ctx.Done():
		rt.log.Info().Msg("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
