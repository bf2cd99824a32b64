package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gatepass/internal/app"
	"gatepass/internal/clock"
	"gatepass/internal/config"
	httpinfra "gatepass/internal/infra/http"
	"gatepass/internal/infra/logging"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const backendCheckInterval = 30 * time.Second

func main() {
	cfg := config.FromEnv()
	logger := logging.New(os.Stdout, logging.FormatJSON, cfg.LogLevel)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stack, err := app.NewStack(ctx, cfg, clock.NewSystem(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init verification stack")
	}
	defer stack.Close()

	if len(cfg.ScannerAllowlist) == 0 {
		logger.Warn().Msg("SCANNER_ALLOWLIST is empty; every operator will be refused")
	}

	srv := httpinfra.NewServer(cfg, httpinfra.ServerDeps{
		Verifier:    stack.Verifier,
		Admit:       stack.Admit,
		Admissions:  stack.Admissions,
		Operators:   stack.Operators(),
		Policy:      stack.Policy,
		RateLimiter: stack.Limiter,
		Ready:       stack.Ready,
		Logger:      logger,
	})

	group, gCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return srv.Run(gCtx)
	})
	group.Go(func() error {
		watchBackends(gCtx, stack, clock.NewSystem(), logger)
		return nil
	})
	if err := group.Wait(); err != nil {
		logger.Error().Err(err).Msg("server exited")
		stack.Close()
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}

// watchBackends logs when Postgres or Redis stop answering and when they
// recover, so an operator sees the cause before scanners report retries.
func watchBackends(ctx context.Context, stack *app.Stack, c clock.Clock, logger zerolog.Logger) {
	ticker := c.NewTicker(backendCheckInterval)
	defer ticker.Stop()
	healthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := stack.Ready(checkCtx)
		cancel()
		switch {
		case err != nil && healthy:
			logger.Error().Err(err).Msg("backend unavailable")
		case err == nil && !healthy:
			logger.Info().Msg("backends recovered")
		}
		healthy = err == nil
	}
}
