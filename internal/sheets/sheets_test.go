package sheets

import (
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "github.com/tanakritw/sheetqna-linebot-go/internal/errors"
	"github.com/tanakritw/sheetqna-linebot-go/internal/kb"
)

const sampleCSV = `Keyword,ResponseType,TextReply,ImageURL1,ImageURL2,RedirectURL
ราคา,text,"สินค้าราคา 100 บาท",,,
โปรโมชัน,combo,โปรเดือนนี้,https://cdn.example.com/1.jpg,https://cdn.example.com/2.jpg,https://shop.example.com
,,,,,
`

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(5*time.Second, 2)
	c.SetBaseURL(srv.URL)
	c.retryDelay = time.Millisecond
	return c
}

func TestFetchTableCSV(t *testing.T) {
	var gotPath, gotQuery string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(sampleCSV))
	}))

	rows, err := c.FetchTable(context.Background(), "sheet-id", "SimpleQnA", FormatCSV)
	if err != nil {
		t.Fatalf("FetchTable() error = %v", err)
	}

	if gotPath != "/spreadsheets/d/sheet-id/gviz/tq" {
		t.Errorf("path = %q", gotPath)
	}
	if !strings.Contains(gotQuery, "tqx=out:csv") || !strings.Contains(gotQuery, "sheet=SimpleQnA") {
		t.Errorf("query = %q", gotQuery)
	}

	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (blank line dropped)", len(rows))
	}
	if rows[0].Keyword != "ราคา" || rows[0].Type != kb.TypeText {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[1].ImageURLs[1] != "https://cdn.example.com/2.jpg" {
		t.Errorf("row 1 images = %+v", rows[1].ImageURLs)
	}
}

func TestFetchTableHTML(t *testing.T) {
	const page = `<html><body><table>
<tr><td>Keyword</td><td>ResponseType</td><td>TextReply</td></tr>
<tr><td>ราคา</td><td>text</td><td>100 บาท</td></tr>
<tr><td>เวลาเปิด</td><td>text</td><td>9.00-18.00 น.</td></tr>
</table></body></html>`

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))

	rows, err := c.FetchTable(context.Background(), "sheet-id", "SimpleQnA", FormatHTML)
	if err != nil {
		t.Fatalf("FetchTable() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[1].Keyword != "เวลาเปิด" || rows[1].TextReply != "9.00-18.00 น." {
		t.Errorf("row 1 = %+v", rows[1])
	}
}

func TestFetchTableGzip(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte(sampleCSV))
		_ = gz.Close()
	}))

	rows, err := c.FetchTable(context.Background(), "sheet-id", "SimpleQnA", FormatCSV)
	if err != nil {
		t.Fatalf("FetchTable() error = %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("got %d rows, want 2", len(rows))
	}
}

func TestFetchTableRetriesServerErrors(t *testing.T) {
	var calls int
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(sampleCSV))
	}))

	rows, err := c.FetchTable(context.Background(), "sheet-id", "SimpleQnA", FormatCSV)
	if err != nil {
		t.Fatalf("FetchTable() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("server called %d times, want 2", calls)
	}
	if len(rows) != 2 {
		t.Errorf("got %d rows", len(rows))
	}
}

func TestFetchTableNotFoundIsPermanent(t *testing.T) {
	var calls int
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := c.FetchTable(context.Background(), "sheet-id", "Missing", FormatCSV)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("server called %d times, 404 must not retry", calls)
	}

	var terr *apperrors.TableReadError
	if !errors.As(err, &terr) || terr.Table != "Missing" {
		t.Errorf("error = %v, want TableReadError for Missing", err)
	}
	var ferr *apperrors.FetchError
	if !errors.As(err, &ferr) || ferr.StatusCode != http.StatusNotFound {
		t.Errorf("error = %v, want FetchError with 404", err)
	}
}

func TestTableSourceSingleflight(t *testing.T) {
	var calls int
	var mu sync.Mutex
	release := make(chan struct{})

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		<-release
		_, _ = w.Write([]byte(sampleCSV))
	}))

	src := NewTableSource(c, "sheet-id", "SimpleQnA", FormatCSV, nil, nil)

	const workers = 5
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = src.Rows(context.Background())
		}(i)
	}

	// Give the goroutines time to pile onto the in-flight fetch.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("worker %d: %v", i, err)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("server called %d times, want 1 shared fetch", calls)
	}
}

func TestParseCSVRecordsEmpty(t *testing.T) {
	records, err := parseCSVRecords(strings.NewReader(""))
	if err != nil {
		t.Fatalf("parseCSVRecords() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records", len(records))
	}
}

func TestRetryWithBackoffPermanent(t *testing.T) {
	var calls int
	sentinel := errors.New("bad request")
	err := RetryWithBackoff(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return Permanent(sentinel)
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("err = %v, want %v", err, sentinel)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestRetryWithBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, 3, time.Hour, func() error {
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
