package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/misintel/misintel/internal/monitoring"
	"github.com/misintel/misintel/internal/ratelimit"
	"github.com/misintel/misintel/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		limiter := ratelimit.New(secs(cfg.RateLimit.WindowSecs), cfg.RateLimit.MaxRequests)

		sched, err := scheduleMaintenance(env, limiter)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()

		if cfg.Monitoring.WebhookURL != "" {
			checker := monitoring.NewChecker(env.Metrics.Window(), monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
			go checker.Run(ctx)
		}

		handler := server.New(server.Deps{
			Checker:        env.Checker,
			Authors:        env.Authors,
			Speech:         env.Speech,
			Trending:       env.Trending,
			Crisis:         env.Crisis,
			Translator:     env.Translator,
			Limiter:        limiter,
			Metrics:        env.Metrics,
			CORSOrigins:    cfg.Server.CORSOrigins,
			MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), secs(cfg.Server.ShutdownSecs))
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// scheduleMaintenance registers the cache purge and rate-limit sweep jobs.
func scheduleMaintenance(env *appEnv, limiter *ratelimit.Limiter) (*cron.Cron, error) {
	c := cron.New()

	if _, err := c.AddFunc(cfg.Cache.PurgeCron, func() {
		n, err := env.Cache.Purge(context.Background())
		if err != nil {
			zap.L().Warn("cache purge failed", zap.Error(err))
			return
		}
		zap.L().Debug("cache purged", zap.Int("removed", n))
	}); err != nil {
		return nil, eris.Wrapf(err, "schedule cache purge %q", cfg.Cache.PurgeCron)
	}

	if _, err := c.AddFunc(cfg.RateLimit.SweepCron, func() {
		n := limiter.Sweep()
		zap.L().Debug("rate limiter swept", zap.Int("removed", n), zap.Int("tracked", limiter.Len()))
	}); err != nil {
		return nil, eris.Wrapf(err, "schedule rate limit sweep %q", cfg.RateLimit.SweepCron)
	}

	return c, nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
