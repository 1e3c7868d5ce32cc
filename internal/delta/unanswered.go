// Package delta records user questions that matched no knowledge-base
// row. Entries are batched in memory and archived to R2 as
// zstd-compressed JSON so sheet owners can mine them for new rows.
package delta

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/tanakritw/sheetqna-linebot-go/internal/logger"
)

// defaultMaxBuffer bounds the in-memory batch; a full buffer forces an
// immediate flush.
const defaultMaxBuffer = 200

// flushTimeout bounds the final flush during shutdown.
const flushTimeout = 10 * time.Second

// Entry is one unanswered question.
type Entry struct {
	UserID  string `json:"user_id"`
	Text    string `json:"text"`
	AskedAt int64  `json:"asked_at"`
}

// Uploader stores one archive object. *r2client.Client satisfies it.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

// Log batches unanswered questions and uploads them as compressed
// archives. It implements kb.Recorder.
type Log struct {
	uploader   Uploader
	prefix     string
	instanceID string
	maxBuffer  int
	log        *logger.Logger

	mu  sync.Mutex
	buf []Entry
}

// NewLog creates an unanswered-question log. instanceID separates
// archives written by concurrent replicas.
func NewLog(uploader Uploader, prefix, instanceID string, log *logger.Logger) (*Log, error) {
	if uploader == nil {
		return nil, errors.New("delta: uploader is required")
	}
	if prefix == "" {
		prefix = "unanswered"
	}
	if instanceID == "" {
		instanceID = uuid.NewString()
	}
	if log == nil {
		log = logger.New("error")
	}
	return &Log{
		uploader:   uploader,
		prefix:     prefix,
		instanceID: instanceID,
		maxBuffer:  defaultMaxBuffer,
		log:        log.WithModule("delta"),
	}, nil
}

// RecordUnanswered implements kb.Recorder. The entry lands in the
// in-memory batch; only a full buffer touches the network.
func (l *Log) RecordUnanswered(ctx context.Context, userID, text string) error {
	l.mu.Lock()
	l.buf = append(l.buf, Entry{
		UserID:  userID,
		Text:    text,
		AskedAt: time.Now().UTC().Unix(),
	})
	full := len(l.buf) >= l.maxBuffer
	l.mu.Unlock()

	if full {
		return l.Flush(ctx)
	}
	return nil
}

// Flush uploads the buffered entries as one archive object. A failed
// upload puts the entries back so the next flush retries them.
func (l *Log) Flush(ctx context.Context) error {
	l.mu.Lock()
	batch := l.buf
	l.buf = nil
	l.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	data, err := encodeArchive(batch)
	if err != nil {
		return fmt.Errorf("delta: encode archive: %w", err)
	}

	key := l.objectKey()
	if _, err := l.uploader.Upload(ctx, key, bytes.NewReader(data), "application/zstd"); err != nil {
		l.mu.Lock()
		l.buf = append(batch, l.buf...)
		l.mu.Unlock()
		return fmt.Errorf("delta: upload archive: %w", err)
	}

	l.log.WithFields(map[string]any{"key": key, "entries": len(batch)}).Info("unanswered archive uploaded")
	return nil
}

// Run flushes the batch on an interval until ctx is cancelled, then
// performs one last flush so shutdown loses nothing.
func (l *Log) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := l.Flush(ctx); err != nil {
				l.log.WithError(err).Warn("periodic flush failed")
			}
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			defer cancel()
			if err := l.Flush(flushCtx); err != nil {
				l.log.WithError(err).Warn("final flush failed")
			}
			return
		}
	}
}

func (l *Log) objectKey() string {
	return fmt.Sprintf("%s/%s/%d-%s.json.zst", l.prefix, l.instanceID, time.Now().UnixNano(), uuid.NewString())
}

// encodeArchive marshals entries as JSON and compresses with zstd.
func encodeArchive(entries []Entry) ([]byte, error) {
	raw, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, err
	}
	if _, err := enc.Write(raw); err != nil {
		_ = enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeArchive reverses encodeArchive. Offline tooling reads archives
// through it.
func DecodeArchive(r io.Reader) ([]Entry, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
