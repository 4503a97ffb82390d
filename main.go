package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"guardbot/bot"
	"guardbot/handlers"
	"guardbot/utils/database"
	"guardbot/utils/logger"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	app := &cli.App{
		Name:  "guardbot",
		Usage: "group moderation bot",
		Flags: globalFlags,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "connect to the gateway and start moderating",
				Action: runBot,
			},
			{
				Name:   "migrate",
				Usage:  "create or upgrade the database schema and exit",
				Action: migrateDB,
			},
		},
		DefaultCommand: "run",
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error("Fatal error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func runBot(c *cli.Context) error {
	cfg, err := loadConfig(c, true)
	if err != nil {
		return err
	}
	defer logger.Sync()

	b, err := bot.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}
	handlers.Register(b)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.Run(ctx)
	})

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			logger.Info("Metrics server listening", zap.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func migrateDB(c *cli.Context) error {
	cfg, err := loadConfig(c, false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	logger.Info("Database schema is up to date", zap.String("path", cfg.DatabasePath))
	return store.Close()
}
