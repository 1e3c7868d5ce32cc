package storage

import (
	"context"
	"errors"

	apperrors "github.com/tanakritw/sheetqna-linebot-go/internal/errors"
	"github.com/tanakritw/sheetqna-linebot-go/internal/kb"
	"github.com/tanakritw/sheetqna-linebot-go/internal/logger"
	"github.com/tanakritw/sheetqna-linebot-go/internal/metrics"
)

// FallbackSource serves a table from its primary source and falls back
// to the latest SQLite snapshot when the primary fails. Successful
// primary reads refresh the snapshot as a side effect.
type FallbackSource struct {
	primary    kb.Source
	db         *DB
	allowStale bool
	metrics    *metrics.Metrics
	log        *logger.Logger
}

// NewFallbackSource wraps primary with snapshot persistence. allowStale
// lets snapshots past the TTL still answer lookups. m may be nil.
func NewFallbackSource(primary kb.Source, db *DB, allowStale bool, m *metrics.Metrics, log *logger.Logger) *FallbackSource {
	if log == nil {
		log = logger.New("error")
	}
	return &FallbackSource{
		primary:    primary,
		db:         db,
		allowStale: allowStale,
		metrics:    m,
		log:        log.WithModule("storage"),
	}
}

// Name implements kb.Source.
func (s *FallbackSource) Name() string { return s.primary.Name() }

// Rows implements kb.Source.
func (s *FallbackSource) Rows(ctx context.Context) ([]kb.Row, error) {
	rows, err := s.primary.Rows(ctx)
	if err == nil {
		if saveErr := s.db.SaveSnapshot(ctx, s.Name(), rows); saveErr != nil {
			s.log.WithError(saveErr).WithField("table", s.Name()).Warn("failed to refresh snapshot")
		}
		return rows, nil
	}
	if errors.Is(err, context.Canceled) {
		return nil, err
	}

	snapRows, cachedAt, snapErr := s.db.LoadSnapshot(ctx, s.Name())
	switch {
	case snapErr == nil:
	case errors.Is(snapErr, apperrors.ErrSnapshotStale) && s.allowStale:
		s.log.WithFields(map[string]any{"table": s.Name(), "cached_at": cachedAt}).Warn("serving stale snapshot")
	default:
		// No usable snapshot: surface the primary failure.
		return nil, err
	}

	s.log.WithError(err).WithField("table", s.Name()).Warn("primary read failed, serving snapshot")
	if s.metrics != nil {
		s.metrics.RecordSnapshotFallback(s.Name())
	}
	return snapRows, nil
}

// Refresh forces one primary read so the snapshot is warm before the
// first lookup needs it. Used by the background refresh job.
func (s *FallbackSource) Refresh(ctx context.Context) error {
	rows, err := s.primary.Rows(ctx)
	if err != nil {
		return err
	}
	return s.db.SaveSnapshot(ctx, s.Name(), rows)
}
