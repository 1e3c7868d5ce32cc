// Package main provides the knowledge-base LINE bot server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tanakritw/sheetqna-linebot-go/internal/buildinfo"
	"github.com/tanakritw/sheetqna-linebot-go/internal/config"
	"github.com/tanakritw/sheetqna-linebot-go/internal/delta"
	"github.com/tanakritw/sheetqna-linebot-go/internal/filetable"
	"github.com/tanakritw/sheetqna-linebot-go/internal/kb"
	"github.com/tanakritw/sheetqna-linebot-go/internal/logger"
	"github.com/tanakritw/sheetqna-linebot-go/internal/metrics"
	"github.com/tanakritw/sheetqna-linebot-go/internal/r2client"
	"github.com/tanakritw/sheetqna-linebot-go/internal/sentry"
	"github.com/tanakritw/sheetqna-linebot-go/internal/sheets"
	"github.com/tanakritw/sheetqna-linebot-go/internal/storage"
	"github.com/tanakritw/sheetqna-linebot-go/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logger.Options{
		BetterStackToken:    cfg.BetterStackToken,
		BetterStackEndpoint: cfg.BetterStackEndpoint,
	})
	log.WithField("version", buildinfo.Version).Info("Starting QnA LINE bot server")

	if err := sentry.Initialize(sentry.Config{
		Token:       cfg.SentryToken,
		Host:        cfg.SentryHost,
		Environment: cfg.SentryEnvironment,
		Release:     buildinfo.Version,
		SampleRate:  cfg.SentrySampleRate,
	}); err != nil {
		log.WithError(err).Warn("Failed to initialize Sentry, error tracking disabled")
	}
	defer sentry.Flush(2 * time.Second)

	db, err := storage.New(cfg.SQLitePath(), cfg.SnapshotTTL)
	if err != nil {
		log.WithError(err).Fatal("Failed to open snapshot database")
	}
	defer func() { _ = db.Close() }()
	log.WithFields(map[string]any{
		"path":         db.Path(),
		"snapshot_ttl": cfg.SnapshotTTL,
	}).Info("Snapshot database opened")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(collectors.NewBuildInfoCollector())
	m := metrics.New(registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	sources, followSource, refreshables, err := buildSources(ctx, cfg, db, m, log, &wg)
	if err != nil {
		log.WithError(err).Fatal("Failed to build table sources")
	}
	log.WithField("tables", cfg.SheetTables).Info("Table sources ready")

	var recorder kb.Recorder
	if cfg.R2Enabled() {
		r2, err := r2client.New(ctx, r2client.Config{
			Endpoint:    cfg.R2Endpoint,
			AccessKeyID: cfg.R2AccessKeyID,
			SecretKey:   cfg.R2SecretKey,
			BucketName:  cfg.R2Bucket,
		})
		if err != nil {
			log.WithError(err).Warn("Failed to create R2 client, unanswered log disabled")
		} else {
			unansweredLog, err := delta.NewLog(r2, cfg.R2Prefix, "", log)
			if err != nil {
				log.WithError(err).Warn("Failed to create unanswered log")
			} else {
				recorder = unansweredLog
				wg.Add(1)
				go func() {
					defer wg.Done()
					unansweredLog.Run(ctx, unansweredFlushInterval)
				}()
				log.Info("Unanswered-question log enabled")
			}
		}
	}

	resolver := kb.NewResolver(sources, followSource, kb.ReadFailurePolicy(cfg.ReadFailurePolicy), recorder, m, log)

	webhookHandler, err := webhook.NewHandler(webhook.HandlerConfig{
		ChannelSecret: cfg.LineChannelSecret,
		ChannelToken:  cfg.LineChannelToken,
		BotConfig:     &cfg.Bot,
		Resolver:      resolver,
		Metrics:       m,
		Logger:        log,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to create webhook handler")
	}

	if len(refreshables) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.WithField("panic", r).Error("Panic in snapshot refresh goroutine")
				}
			}()
			refreshSnapshots(ctx, refreshables, cfg.SnapshotRefreshInterval, log)
		}()
	}

	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(securityHeadersMiddleware())
	router.Use(loggingMiddleware(log))
	if sentry.IsEnabled() {
		router.Use(sentryMiddleware())
	}

	setupRoutes(router, webhookHandler, db, registry, cfg)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  config.WebhookHTTPRead,
		WriteTimeout: config.WebhookHTTPWrite,
		IdleTimeout:  config.WebhookHTTPIdle,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}
	if err := webhookHandler.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Webhook handler shutdown timed out")
	}

	// Stop background goroutines and wait for their final flushes.
	cancel()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info("Server stopped")
	case <-shutdownCtx.Done():
		log.Warn("Background goroutines did not stop in time")
	}
}

// buildSources assembles the ordered table sources. Spreadsheet-backed
// tables are wrapped with the SQLite snapshot fallback; a local CSV
// directory serves tables directly with hot reload.
func buildSources(ctx context.Context, cfg *config.Config, db *storage.DB, m *metrics.Metrics, log *logger.Logger, wg *sync.WaitGroup) ([]kb.Source, kb.Source, []*storage.FallbackSource, error) {
	if cfg.LocalTableDir != "" {
		dir, err := filetable.NewDir(cfg.LocalTableDir, log)
		if err != nil {
			return nil, nil, nil, err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			dir.Watch(ctx)
		}()

		sources := make([]kb.Source, 0, len(cfg.SheetTables))
		for _, table := range cfg.SheetTables {
			sources = append(sources, dir.Table(table))
		}
		return sources, dir.Table(cfg.FollowTable), nil, nil
	}

	client := sheets.NewClient(cfg.SheetTimeout, cfg.SheetMaxRetries)
	format := sheets.ParseFormat(cfg.SheetFormat)

	wrap := func(table string) *storage.FallbackSource {
		primary := sheets.NewTableSource(client, cfg.SheetID, table, format, m, log)
		return storage.NewFallbackSource(primary, db, cfg.SnapshotFallback, m, log)
	}

	sources := make([]kb.Source, 0, len(cfg.SheetTables))
	refreshables := make([]*storage.FallbackSource, 0, len(cfg.SheetTables)+1)
	var followSource kb.Source

	for _, table := range cfg.SheetTables {
		src := wrap(table)
		sources = append(sources, src)
		refreshables = append(refreshables, src)
		if table == cfg.FollowTable {
			followSource = src
		}
	}
	if followSource == nil && cfg.FollowTable != "" {
		src := wrap(cfg.FollowTable)
		followSource = src
		refreshables = append(refreshables, src)
	}

	return sources, followSource, refreshables, nil
}
