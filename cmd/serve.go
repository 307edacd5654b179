package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/prospect-audit/internal/audit"
	"github.com/sells-group/prospect-audit/internal/jobs"
	"github.com/sells-group/prospect-audit/internal/monitoring"
	"github.com/sells-group/prospect-audit/internal/ratelimit"
	"github.com/sells-group/prospect-audit/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the audit API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		g, gctx := errgroup.WithContext(ctx)

		env, err := initAuditEnv(gctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		registry := jobs.NewRegistry()
		workers := jobs.NewRunner(gctx, cfg.Jobs.MaxConcurrent)
		svc := audit.NewService(env.Store, env.Pipeline, registry, workers)

		handler := buildServer(env, svc).Handler()
		port := resolvePort(servePort, cfg.Server.Port)

		g.Go(func() error {
			registry.RunSweeper(gctx, cfg.Jobs.SweepInterval(), cfg.Jobs.Retention())
			return nil
		})
		checker := monitoring.NewChecker(
			monitoring.NewCollector(registry, env.Breaker),
			monitoring.NewAlerter(cfg.Monitoring),
			cfg.Monitoring,
		)
		g.Go(func() error {
			checker.Run(gctx)
			return nil
		})
		g.Go(func() error {
			return startServer(gctx, handler, port, time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		})

		err = g.Wait()

		zap.L().Info("waiting for in-flight audits")
		workers.Wait()
		return err
	},
}

// buildServer wires the HTTP layer. Optional collaborators are only set
// when configured so the handlers see a nil interface.
func buildServer(env *auditEnv, svc server.AuditService) *server.Server {
	deps := server.Deps{
		Audits:         svc,
		Store:          env.Store,
		Limiter:        ratelimit.NewWindow(cfg.RateLimit.Limit, cfg.RateLimit.Window()),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}
	if env.Drafter != nil {
		deps.Drafter = env.Drafter
	}
	if env.Mailer != nil {
		deps.Mailer = env.Mailer
	}
	return server.New(deps)
}

func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// startServer serves handler until ctx is cancelled, then drains open
// connections for up to shutdownTimeout.
func startServer(ctx context.Context, handler http.Handler, port int, shutdownTimeout time.Duration) error {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- eris.Wrap(err, "server listen")
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server shutdown")
	}
	return <-errCh
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
