package delta

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
)

type fakeUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{objects: make(map[string][]byte)}
}

func (f *fakeUploader) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.objects[key] = data
	return "etag", nil
}

func (f *fakeUploader) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		keys = append(keys, k)
	}
	return keys
}

func TestLogFlushRoundTrip(t *testing.T) {
	up := newFakeUploader()
	l, err := NewLog(up, "unanswered", "test-instance", nil)
	if err != nil {
		t.Fatalf("NewLog() error = %v", err)
	}
	ctx := context.Background()

	if err := l.RecordUnanswered(ctx, "U1", "มีสาขาเชียงใหม่ไหม"); err != nil {
		t.Fatal(err)
	}
	if err := l.RecordUnanswered(ctx, "U2", "ส่งต่างประเทศได้ไหม"); err != nil {
		t.Fatal(err)
	}
	if len(up.keys()) != 0 {
		t.Fatal("entries must stay buffered until flush")
	}

	if err := l.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	keys := up.keys()
	if len(keys) != 1 {
		t.Fatalf("got %d objects, want 1", len(keys))
	}
	key := keys[0]
	if !strings.HasPrefix(key, "unanswered/test-instance/") || !strings.HasSuffix(key, ".json.zst") {
		t.Errorf("key = %q", key)
	}

	entries, err := DecodeArchive(bytes.NewReader(up.objects[key]))
	if err != nil {
		t.Fatalf("DecodeArchive() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries", len(entries))
	}
	if entries[0].UserID != "U1" || entries[0].Text != "มีสาขาเชียงใหม่ไหม" {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[0].AskedAt == 0 {
		t.Error("AskedAt not stamped")
	}
}

func TestLogFlushEmptyIsNoop(t *testing.T) {
	up := newFakeUploader()
	l, _ := NewLog(up, "unanswered", "i", nil)

	if err := l.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if len(up.keys()) != 0 {
		t.Error("empty flush must not upload")
	}
}

func TestLogFlushFailureKeepsEntries(t *testing.T) {
	up := newFakeUploader()
	up.err = errors.New("bucket down")
	l, _ := NewLog(up, "unanswered", "i", nil)
	ctx := context.Background()

	if err := l.RecordUnanswered(ctx, "U1", "คำถาม"); err != nil {
		t.Fatal(err)
	}
	if err := l.Flush(ctx); err == nil {
		t.Fatal("expected flush error")
	}

	// The entry survives for the next flush.
	up.err = nil
	if err := l.Flush(ctx); err != nil {
		t.Fatalf("retry Flush() error = %v", err)
	}
	keys := up.keys()
	if len(keys) != 1 {
		t.Fatalf("got %d objects after retry", len(keys))
	}
	entries, err := DecodeArchive(bytes.NewReader(up.objects[keys[0]]))
	if err != nil || len(entries) != 1 {
		t.Fatalf("entries = %v, err = %v", entries, err)
	}
}

func TestLogFullBufferFlushes(t *testing.T) {
	up := newFakeUploader()
	l, _ := NewLog(up, "unanswered", "i", nil)
	l.maxBuffer = 3
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.RecordUnanswered(ctx, "U1", "คำถาม"); err != nil {
			t.Fatal(err)
		}
	}
	if len(up.keys()) != 1 {
		t.Errorf("got %d objects, full buffer should auto-flush", len(up.keys()))
	}
}
