package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "github.com/tanakritw/sheetqna-linebot-go/internal/errors"
	"github.com/tanakritw/sheetqna-linebot-go/internal/kb"
)

// SaveSnapshot atomically replaces the stored rows for one table and
// stamps the snapshot time.
func (db *DB) SaveSnapshot(ctx context.Context, table string, rows []kb.Row) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_rows WHERE table_name = ?`, table); err != nil {
		return fmt.Errorf("failed to clear snapshot for %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshot_rows (
			table_name, position, keyword, response_type, text_reply,
			image_url, image_url1, image_url2, image_url3, image_url4,
			video_url, preview_image_url, audio_url, duration_millis,
			button_label, redirect_url, redirect_oa_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, row := range rows {
		_, err := stmt.ExecContext(ctx,
			table, i, row.Keyword, row.Type.String(), row.TextReply,
			row.ImageURL, row.ImageURLs[0], row.ImageURLs[1], row.ImageURLs[2], row.ImageURLs[3],
			row.VideoURL, row.PreviewImageURL, row.AudioURL, row.DurationMillis,
			row.ButtonLabel, row.RedirectURL, row.RedirectOAID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert row %d for %s: %w", i, table, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshot_meta (table_name, cached_at, row_count) VALUES (?, ?, ?)
		ON CONFLICT(table_name) DO UPDATE SET cached_at = excluded.cached_at, row_count = excluded.row_count`,
		table, time.Now().Unix(), len(rows))
	if err != nil {
		return fmt.Errorf("failed to update snapshot meta for %s: %w", table, err)
	}

	return tx.Commit()
}

// LoadSnapshot returns the stored rows for one table and when they were
// cached. A table that was never snapshotted returns ErrNotFound; a
// snapshot past the TTL returns the rows together with ErrSnapshotStale
// so the caller can decide whether stale data is acceptable.
func (db *DB) LoadSnapshot(ctx context.Context, table string) ([]kb.Row, time.Time, error) {
	var cachedAtUnix int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT cached_at FROM snapshot_meta WHERE table_name = ?`, table).Scan(&cachedAtUnix)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read snapshot meta for %s: %w", table, err)
	}
	cachedAt := time.Unix(cachedAtUnix, 0)

	dbRows, err := db.conn.QueryContext(ctx, `
		SELECT keyword, response_type, text_reply,
			image_url, image_url1, image_url2, image_url3, image_url4,
			video_url, preview_image_url, audio_url, duration_millis,
			button_label, redirect_url, redirect_oa_id
		FROM snapshot_rows WHERE table_name = ? ORDER BY position`, table)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read snapshot rows for %s: %w", table, err)
	}
	defer func() { _ = dbRows.Close() }()

	var rows []kb.Row
	for dbRows.Next() {
		var row kb.Row
		var responseType string
		err := dbRows.Scan(
			&row.Keyword, &responseType, &row.TextReply,
			&row.ImageURL, &row.ImageURLs[0], &row.ImageURLs[1], &row.ImageURLs[2], &row.ImageURLs[3],
			&row.VideoURL, &row.PreviewImageURL, &row.AudioURL, &row.DurationMillis,
			&row.ButtonLabel, &row.RedirectURL, &row.RedirectOAID,
		)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to scan snapshot row for %s: %w", table, err)
		}
		row.Type = kb.ParseResponseType(responseType)
		rows = append(rows, row)
	}
	if err := dbRows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to iterate snapshot rows for %s: %w", table, err)
	}

	if db.ttl > 0 && time.Since(cachedAt) > db.ttl {
		return rows, cachedAt, apperrors.ErrSnapshotStale
	}
	return rows, cachedAt, nil
}

// ResetSnapshots deletes all stored snapshots.
func (db *DB) ResetSnapshots(ctx context.Context) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_rows`); err != nil {
		return fmt.Errorf("failed to clear snapshot rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_meta`); err != nil {
		return fmt.Errorf("failed to clear snapshot meta: %w", err)
	}
	return tx.Commit()
}

// SnapshotAge reports how old a table's snapshot is. Tables without a
// snapshot return ErrNotFound.
func (db *DB) SnapshotAge(ctx context.Context, table string) (time.Duration, error) {
	var cachedAtUnix int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT cached_at FROM snapshot_meta WHERE table_name = ?`, table).Scan(&cachedAtUnix)
	if err == sql.ErrNoRows {
		return 0, apperrors.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read snapshot meta for %s: %w", table, err)
	}
	return time.Since(time.Unix(cachedAtUnix, 0)), nil
}
