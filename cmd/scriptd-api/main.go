package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"scriptd/internal/backend"
	"scriptd/internal/config"
	"scriptd/internal/events"
	server "scriptd/internal/http"
	"scriptd/internal/jobs"
	"scriptd/internal/migrate"
	"scriptd/internal/store"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg := config.Load(*configPath)

	// Set up logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))

	be, err := backend.New(cfg.Backend)
	if err != nil {
		log.Fatalf("backend init failed: %v", err)
	}
	if c, ok := be.(io.Closer); ok {
		defer c.Close()
	}

	notifiers := []jobs.Notifier{jobs.MetricsNotifier}
	deps := server.Deps{}

	// Optional run archive
	if cfg.Database.DSN != "" {
		// Run migrations on a short-lived connection
		if err := migrate.Run(cfg.Database.DSN); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		db, err := store.Open(cfg.Database.DSN)
		if err != nil {
			log.Fatalf("open db failed: %v", err)
		}
		defer db.Close()

		deps.DB = db
		notifiers = append(notifiers, store.New(db, logger))
	}

	// Optional transition events
	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		rdb, err = events.Connect(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("redis init failed: %v", err)
		}
		defer rdb.Close()

		deps.Redis = rdb
		notifiers = append(notifiers, events.NewPublisher(rdb, cfg.Redis.Channel, logger))
	}

	registry := jobs.NewRegistry()
	dispatcher := jobs.NewDispatcher(registry, be,
		jobs.WithMaxConcurrent(cfg.Worker.MaxConcurrentJobs),
		jobs.WithLogger(logger),
		jobs.WithNotifiers(notifiers...),
	)
	deps.Scripts = dispatcher

	s := server.NewServer(cfg, deps, logger)
	janitor := jobs.NewJanitor(cfg, registry, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Listen()
	})
	g.Go(func() error {
		janitor.Start(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		logger.Info("shutdown_started")
		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http_shutdown_failed", "error", err.Error())
		}
		return dispatcher.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("server failed: %v", err)
	}
	logger.Info("shutdown_complete")
}
