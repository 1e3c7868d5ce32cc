package storage

import (
	"context"
	"database/sql"
	"fmt"
)

func initSchema(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS snapshot_meta (
		table_name TEXT PRIMARY KEY,
		cached_at INTEGER NOT NULL,
		row_count INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshot_rows (
		table_name TEXT NOT NULL,
		position INTEGER NOT NULL,
		keyword TEXT NOT NULL,
		response_type TEXT NOT NULL,
		text_reply TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		image_url1 TEXT NOT NULL DEFAULT '',
		image_url2 TEXT NOT NULL DEFAULT '',
		image_url3 TEXT NOT NULL DEFAULT '',
		image_url4 TEXT NOT NULL DEFAULT '',
		video_url TEXT NOT NULL DEFAULT '',
		preview_image_url TEXT NOT NULL DEFAULT '',
		audio_url TEXT NOT NULL DEFAULT '',
		duration_millis TEXT NOT NULL DEFAULT '',
		button_label TEXT NOT NULL DEFAULT '',
		redirect_url TEXT NOT NULL DEFAULT '',
		redirect_oa_id TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (table_name, position)
	);
	CREATE INDEX IF NOT EXISTS idx_snapshot_rows_table ON snapshot_rows(table_name);
	`

	if _, err := db.ExecContext(context.Background(), query); err != nil {
		return fmt.Errorf("failed to create snapshot tables: %w", err)
	}

	return nil
}
