// Command warmup prefetches every configured worksheet into the SQLite
// snapshot store so a fresh deployment can answer questions before its
// first live sheet fetch.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/tanakritw/sheetqna-linebot-go/internal/config"
	"github.com/tanakritw/sheetqna-linebot-go/internal/logger"
	"github.com/tanakritw/sheetqna-linebot-go/internal/metrics"
	"github.com/tanakritw/sheetqna-linebot-go/internal/sheets"
	"github.com/tanakritw/sheetqna-linebot-go/internal/storage"
)

// CLI flags
var (
	resetFlag   = flag.Bool("reset", false, "Delete all snapshot data before warmup")
	tablesFlag  = flag.String("tables", "", "Comma-separated worksheet names (default: SHEET_TABLES)")
	workersFlag = flag.Int("workers", 4, "Concurrent table fetches")
)

func main() {
	flag.Parse()

	// LINE credentials are not needed to fill the snapshot store.
	cfg, err := config.LoadForMode(config.WarmupMode)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("Starting warmup tool")

	if cfg.SheetID == "" {
		log.Error("SHEET_ID is required for warmup")
		os.Exit(1)
	}

	db, err := storage.New(cfg.SQLitePath(), cfg.SnapshotTTL)
	if err != nil {
		log.WithError(err).Fatal("Failed to open snapshot database")
	}
	defer func() { _ = db.Close() }()
	log.WithField("path", db.Path()).Info("Snapshot database opened")

	ctx := context.Background()

	if *resetFlag {
		log.Warn("Resetting snapshot data...")
		if err := db.ResetSnapshots(ctx); err != nil {
			log.WithError(err).Fatal("Failed to reset snapshots")
		}
		log.Info("Snapshot reset complete")
	}

	tables := cfg.SheetTables
	if *tablesFlag != "" {
		tables = splitTables(*tablesFlag)
	}
	if len(tables) == 0 {
		log.Info("No tables to warm up, exiting")
		return
	}
	log.WithField("tables", tables).Info("Tables to warm up")

	client := sheets.NewClient(cfg.SheetTimeout, cfg.SheetMaxRetries)
	format := sheets.ParseFormat(cfg.SheetFormat)
	m := metrics.New(prometheus.NewRegistry())

	start := time.Now()
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*workersFlag)
	for _, table := range tables {
		g.Go(func() error {
			src := sheets.NewTableSource(client, cfg.SheetID, table, format, m, log)

			fetchCtx, cancel := context.WithTimeout(gctx, cfg.SheetTimeout*time.Duration(cfg.SheetMaxRetries+1))
			rows, err := src.Rows(fetchCtx)
			cancel()
			if err != nil {
				log.WithError(err).WithField("table", table).Error("Failed to fetch table")
				failed.Add(1)
				return nil
			}

			if err := db.SaveSnapshot(gctx, table, rows); err != nil {
				log.WithError(err).WithField("table", table).Error("Failed to save snapshot")
				failed.Add(1)
				return nil
			}
			log.WithFields(map[string]any{
				"table": table,
				"rows":  len(rows),
			}).Info("Table snapshot saved")
			return nil
		})
	}
	_ = g.Wait()

	log.WithFields(map[string]any{
		"tables":   len(tables),
		"failed":   failed.Load(),
		"duration": time.Since(start).Round(time.Millisecond).String(),
	}).Info("Warmup complete")

	if failed.Load() > 0 {
		os.Exit(1)
	}
}

func splitTables(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
