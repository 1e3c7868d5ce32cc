// Package config provides centralized timeout and limit constants.
//
// LINE webhook timing notes:
//   - Reply tokens stay valid for a while, but replies should go out ASAP
//   - LINE expects a quick 200 OK acknowledgment; processing happens async
//   - Sheet reads are the slow path, so the webhook timeout covers a full
//     multi-table scan with retries
package config

import "time"

// Webhook timeouts
const (
	// WebhookProcessing is the timeout for processing a single webhook event.
	// Covers table fetches across all configured worksheets plus composition.
	WebhookProcessing = 30 * time.Second

	// WebhookHTTPRead is the HTTP server read timeout for webhook requests.
	// LINE sends small JSON payloads, so this stays short.
	WebhookHTTPRead = 10 * time.Second

	// WebhookHTTPWrite is the HTTP server write timeout.
	WebhookHTTPWrite = 35 * time.Second

	// WebhookHTTPIdle is the HTTP server idle timeout for keep-alive connections.
	WebhookHTTPIdle = 120 * time.Second
)

// Sheet fetch timeouts
const (
	// SheetRequest is the timeout for a single HTTP request to the
	// spreadsheet export endpoint.
	SheetRequest = 15 * time.Second

	// SheetRetryInitial is the initial delay before retrying a failed fetch.
	// Uses exponential backoff: 1s -> 2s -> 4s ...
	SheetRetryInitial = 1 * time.Second

	// SheetRetryMax caps the backoff delay between fetch retries.
	SheetRetryMax = 10 * time.Second
)

// Snapshot store
const (
	// DatabaseBusyTimeout is the SQLite busy_timeout pragma value.
	DatabaseBusyTimeout = 30 * time.Second

	// SnapshotRefreshInterval is how often table snapshots are refreshed
	// in the background.
	SnapshotRefreshInterval = 15 * time.Minute

	// SnapshotRefreshInitialDelay is the delay before the first background
	// refresh, letting the server settle after startup.
	SnapshotRefreshInitialDelay = 30 * time.Second
)

// Graceful shutdown
const (
	// GracefulShutdown is the timeout for graceful server shutdown.
	GracefulShutdown = 30 * time.Second
)

// LINE API limits
const (
	// LINEMaxMessagesPerReply is the LINE Messaging API cap on messages per reply.
	LINEMaxMessagesPerReply = 5

	// LINEMaxTextMessageLength is the LINE API cap on inbound text length.
	LINEMaxTextMessageLength = 20000
)
