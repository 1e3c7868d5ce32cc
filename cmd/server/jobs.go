// Package main provides the knowledge-base LINE bot server entry point.
package main

import (
	"context"
	"time"

	"github.com/tanakritw/sheetqna-linebot-go/internal/config"
	"github.com/tanakritw/sheetqna-linebot-go/internal/logger"
	"github.com/tanakritw/sheetqna-linebot-go/internal/storage"
)

// unansweredFlushInterval is how often buffered unanswered questions are
// uploaded to R2.
const unansweredFlushInterval = 5 * time.Minute

// refreshSnapshots periodically re-fetches every spreadsheet table so the
// SQLite snapshots stay warm. The first pass runs after a short delay to
// let the server finish starting up.
func refreshSnapshots(ctx context.Context, sources []*storage.FallbackSource, interval time.Duration, log *logger.Logger) {
	log = log.WithModule("snapshot_refresh")

	select {
	case <-ctx.Done():
		return
	case <-time.After(config.SnapshotRefreshInitialDelay):
	}

	refresh := func() {
		for _, src := range sources {
			refreshCtx, cancel := context.WithTimeout(ctx, config.WebhookProcessing)
			err := src.Refresh(refreshCtx)
			cancel()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.WithError(err).WithField("table", src.Name()).Warn("Snapshot refresh failed")
				continue
			}
			log.WithField("table", src.Name()).Debug("Snapshot refreshed")
		}
	}

	refresh()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}
