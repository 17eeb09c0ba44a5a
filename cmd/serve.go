package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shopscout/shopscout/internal/app"
	"github.com/shopscout/shopscout/internal/config"
)

const shutdownGrace = 15 * time.Second

// newServeCmd creates the 'serve' subcommand, which runs the webhook
// HTTP service until interrupted.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Starts the webhook service",
		Long: `Runs the HTTP server that receives platform webhook events and
drives the product pipeline. The process exits cleanly on SIGINT or
SIGTERM after draining in-flight runs.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer application.Close()

	logger := application.Logger

	// Cloud Run style port override.
	port := cfg.Server.Port
	if env := os.Getenv("PORT"); env != "" {
		if _, scanErr := fmt.Sscanf(env, "%d", &port); scanErr != nil {
			logger.Warn("ignoring unparsable PORT", zap.String("value", env))
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           application.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("server stopped")
	return nil
}
