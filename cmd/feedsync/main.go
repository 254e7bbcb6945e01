package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feedsync/internal/config"
	"feedsync/internal/db"
	"feedsync/internal/logger"
	"feedsync/internal/model"
	"feedsync/internal/network"
	"feedsync/internal/report"
	"feedsync/internal/scheduler"
	"feedsync/internal/service"
	"feedsync/internal/snowflake"
	"feedsync/internal/store"
	"feedsync/internal/store/notion"
	"feedsync/internal/store/sqlite"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if errors.Is(err, config.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := logger.Init(logger.Options{Level: logger.ParseLevel(cfg.LogLevel), File: cfg.LogFile}); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		return 1
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("feedsync started", "module", "main", "action", "start", "resource", "app", "result", "ok", "version", config.AppVersion, "store", cfg.Store, "at", time.Now().In(cfg.Timezone).Format(time.RFC3339))

	feeds, err := config.LoadFeeds(cfg.FeedsFile)
	if err != nil {
		logger.Error("load feeds failed", "module", "main", "action", "load", "resource", "config", "result", "failed", "error", err)
		return 1
	}
	logger.Info("feeds loaded", "module", "main", "action", "load", "resource", "config", "result", "ok", "count", len(feeds))

	backend, closeBackend, err := openBackend(cfg)
	if err != nil {
		logger.Error("open store failed", "module", "main", "action", "open", "resource", "store", "result", "failed", "error", err)
		return 1
	}
	defer closeBackend()

	adapter := store.NewAdapter(backend, store.Options{
		RequestInterval:     cfg.RequestInterval,
		MaxRateLimitRetries: cfg.MaxRateLimitRetries,
		Timeout:             cfg.StoreTimeout,
	})
	if !adapter.TestConnection(ctx) {
		logger.Error("failed to connect to store", "module", "main", "action", "ping", "resource", "store", "result", "failed", "store", cfg.Store)
		return 1
	}

	clients := network.NewClientFactory(cfg.ProxyURL)
	if proxy := clients.ProxyURL(); proxy != "" {
		logger.Info("feed requests use proxy", "module", "main", "action", "start", "resource", "network", "result", "ok", "proxy", proxy)
	}
	ingestor := service.NewIngestService(
		clients,
		service.NewNormalizer(),
		service.IngestOptions{
			UserAgent:       cfg.UserAgent,
			Timeout:         cfg.FetchTimeout,
			BrowserFallback: cfg.BrowserFallback,
		},
	)
	syncService := service.NewSyncService(ingestor, adapter)

	pass := func(ctx context.Context) {
		startedAt := time.Now().In(cfg.Timezone)
		result := syncService.Run(ctx, feeds)
		finishedAt := time.Now().In(cfg.Timezone)
		finish(cfg, backend, result, startedAt, finishedAt)
	}

	if cfg.Interval <= 0 {
		pass(ctx)
		return 0
	}

	sched := scheduler.New(pass, cfg.Interval)
	sched.Start()
	<-ctx.Done()
	logger.Info("shutting down", "module", "main", "action", "stop", "resource", "app", "result", "ok")
	sched.Stop()
	return 0
}

func openBackend(cfg config.Config) (store.Backend, func(), error) {
	switch cfg.Store {
	case config.StoreSQLite:
		conn, err := db.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		ids, err := snowflake.NewGenerator(1)
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		return sqlite.New(conn, ids), func() { _ = conn.Close() }, nil
	default:
		client := notion.NewClient(notion.Options{
			BaseURL:    cfg.NotionBaseURL,
			Token:      cfg.NotionToken,
			DatabaseID: cfg.NotionDatabaseID,
		})
		return client, func() {}, nil
	}
}

func finish(cfg config.Config, backend store.Backend, result model.SyncResult, startedAt, finishedAt time.Time) {
	if err := report.PrintSummary(os.Stdout, result, startedAt, finishedAt); err != nil {
		logger.Warn("print summary failed", "module", "main", "action", "report", "resource", "summary", "result", "failed", "error", err)
	}
	if err := report.WriteStepSummary(cfg.StepSummary, result, finishedAt); err != nil {
		logger.Warn("step summary failed", "module", "main", "action", "report", "resource", "summary", "result", "failed", "error", err)
	}
	if counter, ok := backend.(interface {
		Count(ctx context.Context) (int, error)
	}); ok {
		if n, err := counter.Count(context.Background()); err == nil {
			logger.Info("store size", "module", "main", "action", "report", "resource", "store", "result", "ok", "records", n)
		}
	}
	logger.Info("sync completed", "module", "main", "action", "sync", "resource", "feed", "result", "ok",
		"feeds_processed", result.FeedsProcessed, "feeds_failed", result.FeedsFailed,
		"entries_created", result.EntriesCreated, "entries_updated", result.EntriesUpdated, "entries_failed", result.EntriesFailed)
}
