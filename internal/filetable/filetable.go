// Package filetable serves knowledge-base tables from a directory of
// CSV files, reloading them when the files change on disk. It backs
// deployments that run without a published spreadsheet.
package filetable

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	apperrors "github.com/tanakritw/sheetqna-linebot-go/internal/errors"
	"github.com/tanakritw/sheetqna-linebot-go/internal/kb"
	"github.com/tanakritw/sheetqna-linebot-go/internal/logger"
	"github.com/tanakritw/sheetqna-linebot-go/internal/sheets"
)

// reloadSettleDelay gives editors time to finish writing before a
// changed file is re-read.
const reloadSettleDelay = 100 * time.Millisecond

// Dir watches a directory of <table>.csv files and hands out per-table
// sources backed by an invalidating cache.
type Dir struct {
	dir     string
	watcher *fsnotify.Watcher
	log     *logger.Logger

	mu    sync.RWMutex
	cache map[string][]kb.Row
}

// NewDir opens dir and starts watching it for CSV changes.
func NewDir(dir string, log *logger.Logger) (*Dir, error) {
	if log == nil {
		log = logger.New("error")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	return &Dir{
		dir:     dir,
		watcher: watcher,
		log:     log.WithModule("filetable"),
		cache:   make(map[string][]kb.Row),
	}, nil
}

// Watch processes file events until ctx is cancelled or the watcher
// closes. Run it in its own goroutine.
func (d *Dir) Watch(ctx context.Context) {
	d.log.WithField("dir", d.dir).Info("file watcher started")

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !strings.HasSuffix(event.Name, ".csv") {
				continue
			}

			table := strings.TrimSuffix(filepath.Base(event.Name), ".csv")
			time.Sleep(reloadSettleDelay)

			d.mu.Lock()
			delete(d.cache, table)
			d.mu.Unlock()

			d.log.WithField("table", table).Info("table file changed, cache cleared")

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.log.WithError(err).Warn("file watcher error")
		}
	}
}

// Close stops the watcher.
func (d *Dir) Close() error {
	return d.watcher.Close()
}

// Table returns a source for one table. The backing file is
// <dir>/<name>.csv.
func (d *Dir) Table(name string) *Source {
	return &Source{dir: d, name: name}
}

func (d *Dir) rows(table string) ([]kb.Row, error) {
	d.mu.RLock()
	rows, ok := d.cache[table]
	d.mu.RUnlock()
	if ok {
		return rows, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Another caller may have loaded it while we waited for the lock.
	if rows, ok := d.cache[table]; ok {
		return rows, nil
	}

	path := filepath.Join(d.dir, table+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewTableReadError(table, err)
	}
	defer func() { _ = f.Close() }()

	rows, err = sheets.ReadCSV(f)
	if err != nil {
		return nil, apperrors.NewTableReadError(table, err)
	}

	d.cache[table] = rows
	d.log.WithFields(map[string]any{"table": table, "rows": len(rows)}).Info("table loaded from file")
	return rows, nil
}

// Source reads one table through its parent Dir's cache.
type Source struct {
	dir  *Dir
	name string
}

// Name implements kb.Source.
func (s *Source) Name() string { return s.name }

// Rows implements kb.Source.
func (s *Source) Rows(ctx context.Context) ([]kb.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.dir.rows(s.name)
}
