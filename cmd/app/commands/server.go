package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/allisson/extractvault/internal/app"
	"github.com/allisson/extractvault/internal/config"
	extractionUseCase "github.com/allisson/extractvault/internal/extraction/usecase"
)

// RunServer starts the review API, the metrics listener and the retention sweeper, and
// blocks until SIGINT/SIGTERM or the first fatal error. Every component is stopped
// within the container's shutdown timeout.
func RunServer(ctx context.Context, version string) error {
	cfg := config.Load()
	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)
	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version))

	defer closeContainer(container, logger)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	server, err := container.HTTPServer(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	var sweeper extractionUseCase.SweeperUseCase
	if cfg.SweepEnabled {
		if sweeper, err = container.SweeperUseCase(); err != nil {
			return fmt.Errorf("failed to initialize retention sweeper: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(gctx); err != nil {
			return fmt.Errorf("api server error: %w", err)
		}
		return nil
	})

	if metricsServer != nil {
		g.Go(func() error {
			if err := metricsServer.Start(gctx); err != nil {
				return fmt.Errorf("metrics server error: %w", err)
			}
			return nil
		})
	}

	if sweeper != nil {
		g.Go(func() error {
			if err := sweeper.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("retention sweeper error: %w", err)
			}
			return nil
		})
	}

	// Stop listeners as soon as the group is cancelled, whether by signal or failure.
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("stopping servers")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), container.ShutdownTimeout())
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api server shutdown: %w", err)
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("metrics server shutdown: %w", err)
			}
		}
		return nil
	})

	return g.Wait()
}
