package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/tanakritw/sheetqna-linebot-go/internal/errors"
	"github.com/tanakritw/sheetqna-linebot-go/internal/kb"
)

func newTestDB(t *testing.T, ttl time.Duration) *DB {
	t.Helper()
	db, err := New(":memory:", ttl)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleRows() []kb.Row {
	combo := kb.Row{
		Keyword: "โปรโมชัน", Type: kb.TypeCombo, TextReply: "โปรเดือนนี้",
		VideoURL: "https://cdn.example.com/v.mp4", PreviewImageURL: "https://cdn.example.com/v.jpg",
		ButtonLabel: "สั่งเลย", RedirectURL: "https://shop.example.com", RedirectOAID: "@shop",
	}
	combo.ImageURLs[0] = "https://cdn.example.com/1.jpg"
	combo.ImageURLs[3] = "https://cdn.example.com/4.jpg"

	return []kb.Row{
		{Keyword: "ราคา", Type: kb.TypeText, TextReply: "100 บาทค่ะ"},
		{Keyword: "เพลง", Type: kb.TypeAudio, AudioURL: "https://cdn.example.com/a.m4a", DurationMillis: "32000"},
		combo,
	}
}

func TestSaveAndLoadSnapshot(t *testing.T) {
	db := newTestDB(t, time.Hour)
	ctx := context.Background()

	if err := db.SaveSnapshot(ctx, "SimpleQnA", sampleRows()); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}

	rows, cachedAt, err := db.LoadSnapshot(ctx, "SimpleQnA")
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if time.Since(cachedAt) > time.Minute {
		t.Errorf("cachedAt = %v, want recent", cachedAt)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}

	// Order and every field must round-trip.
	if rows[0].Keyword != "ราคา" || rows[0].Type != kb.TypeText {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[1].DurationMillis != "32000" {
		t.Errorf("row 1 duration = %q", rows[1].DurationMillis)
	}
	combo := rows[2]
	if combo.Type != kb.TypeCombo || combo.ImageURLs[0] == "" || combo.ImageURLs[3] == "" || combo.RedirectOAID != "@shop" {
		t.Errorf("row 2 = %+v", combo)
	}
}

func TestSaveSnapshotReplaces(t *testing.T) {
	db := newTestDB(t, time.Hour)
	ctx := context.Background()

	if err := db.SaveSnapshot(ctx, "SimpleQnA", sampleRows()); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveSnapshot(ctx, "SimpleQnA", sampleRows()[:1]); err != nil {
		t.Fatal(err)
	}

	rows, _, err := db.LoadSnapshot(ctx, "SimpleQnA")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Errorf("got %d rows after replace, want 1", len(rows))
	}
}

func TestLoadSnapshotNotFound(t *testing.T) {
	db := newTestDB(t, time.Hour)

	_, _, err := db.LoadSnapshot(context.Background(), "Never")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestLoadSnapshotStale(t *testing.T) {
	db := newTestDB(t, time.Nanosecond)
	ctx := context.Background()

	if err := db.SaveSnapshot(ctx, "SimpleQnA", sampleRows()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)

	rows, _, err := db.LoadSnapshot(ctx, "SimpleQnA")
	if !errors.Is(err, apperrors.ErrSnapshotStale) {
		t.Fatalf("error = %v, want ErrSnapshotStale", err)
	}
	if len(rows) != 3 {
		t.Errorf("stale load must still return rows, got %d", len(rows))
	}
}

func TestSnapshotAge(t *testing.T) {
	db := newTestDB(t, time.Hour)
	ctx := context.Background()

	if _, err := db.SnapshotAge(ctx, "SimpleQnA"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound before save", err)
	}

	if err := db.SaveSnapshot(ctx, "SimpleQnA", sampleRows()); err != nil {
		t.Fatal(err)
	}
	age, err := db.SnapshotAge(ctx, "SimpleQnA")
	if err != nil {
		t.Fatalf("SnapshotAge() error = %v", err)
	}
	if age > time.Minute {
		t.Errorf("age = %v, want recent", age)
	}
}

type flakySource struct {
	name string
	rows []kb.Row
	err  error
}

func (f *flakySource) Name() string { return f.name }

func (f *flakySource) Rows(ctx context.Context) ([]kb.Row, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func TestFallbackSource(t *testing.T) {
	db := newTestDB(t, time.Hour)
	ctx := context.Background()
	primary := &flakySource{name: "SimpleQnA", rows: sampleRows()}
	src := NewFallbackSource(primary, db, false, nil, nil)

	// Healthy primary read also warms the snapshot.
	rows, err := src.Rows(ctx)
	if err != nil {
		t.Fatalf("Rows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows", len(rows))
	}

	// Primary down: the snapshot answers.
	primary.err = errors.New("503 from sheets")
	rows, err = src.Rows(ctx)
	if err != nil {
		t.Fatalf("Rows() with failed primary error = %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("got %d rows from snapshot", len(rows))
	}
}

func TestFallbackSourceNoSnapshot(t *testing.T) {
	db := newTestDB(t, time.Hour)
	primaryErr := errors.New("503 from sheets")
	src := NewFallbackSource(&flakySource{name: "SimpleQnA", err: primaryErr}, db, false, nil, nil)

	_, err := src.Rows(context.Background())
	if !errors.Is(err, primaryErr) {
		t.Errorf("error = %v, want the primary failure", err)
	}
}

func TestFallbackSourceStalePolicy(t *testing.T) {
	db := newTestDB(t, time.Nanosecond)
	ctx := context.Background()
	primary := &flakySource{name: "SimpleQnA", rows: sampleRows()}

	strict := NewFallbackSource(primary, db, false, nil, nil)
	if _, err := strict.Rows(ctx); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	primary.err = errors.New("503 from sheets")

	if _, err := strict.Rows(ctx); !errors.Is(err, primary.err) {
		t.Errorf("strict source error = %v, stale snapshot must not answer", err)
	}

	lenient := NewFallbackSource(primary, db, true, nil, nil)
	rows, err := lenient.Rows(ctx)
	if err != nil {
		t.Fatalf("lenient source error = %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("got %d rows from stale snapshot", len(rows))
	}
}

func TestFallbackSourceRefresh(t *testing.T) {
	db := newTestDB(t, time.Hour)
	ctx := context.Background()
	primary := &flakySource{name: "SimpleQnA", rows: sampleRows()}
	src := NewFallbackSource(primary, db, false, nil, nil)

	if err := src.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	rows, _, err := db.LoadSnapshot(ctx, "SimpleQnA")
	if err != nil {
		t.Fatalf("LoadSnapshot() after refresh error = %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("got %d rows", len(rows))
	}
}
