package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/applicants/internal/metrics"
	"github.com/JonMunkholm/applicants/internal/web"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP upload server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from SERVER_HOST and SERVER_PORT)")

	return cmd
}

func runServe(ctx context.Context, rootOpts *RootOptions, addr string) error {
	cfg := rootOpts.Config
	if addr == "" {
		addr = cfg.Server.Addr()
	}

	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "open store", err)
	}
	defer store.Close()

	var (
		m        *metrics.Metrics
		gatherer prometheus.Gatherer
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		if m, err = metrics.New(reg, cfg.Metrics.Namespace); err != nil {
			return WrapExitError(ExitCommandError, "register metrics", err)
		}
		gatherer = reg
	}

	svc, err := newService(cfg, store, m, "")
	if err != nil {
		return WrapExitError(ExitCommandError, "configure ingest", err)
	}

	server := web.NewServer(svc, web.Options{
		Server:        cfg.Server,
		MaxUploadSize: cfg.Ingest.MaxFileSize,
		Gatherer:      gatherer,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(addr)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitCommandError, "server", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down", "active_ingests", svc.LimiterStatus().Active)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("shutdown incomplete", "error", err)
		return err
	}
	slog.Info("server stopped")
	return nil
}
