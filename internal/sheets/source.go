package sheets

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/tanakritw/sheetqna-linebot-go/internal/errors"
	"github.com/tanakritw/sheetqna-linebot-go/internal/kb"
	"github.com/tanakritw/sheetqna-linebot-go/internal/logger"
	"github.com/tanakritw/sheetqna-linebot-go/internal/metrics"
)

// Format selects which export endpoint a table is read through.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
)

// ParseFormat maps a config value to a Format, defaulting to CSV.
func ParseFormat(s string) Format {
	if Format(s) == FormatHTML {
		return FormatHTML
	}
	return FormatCSV
}

// FetchTable reads one worksheet and converts it to knowledge-base rows.
func (c *Client) FetchTable(ctx context.Context, sheetID, table string, format Format) ([]kb.Row, error) {
	reqURL := c.exportURL(sheetID, table, string(format))

	resp, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, apperrors.NewTableReadError(table, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, cleanup, err := bodyReader(resp)
	if err != nil {
		return nil, apperrors.NewTableReadError(table, err)
	}
	defer cleanup()

	var records []map[string]string
	switch format {
	case FormatHTML:
		records, err = parseHTMLRecords(body)
	default:
		records, err = parseCSVRecords(body)
	}
	if err != nil {
		return nil, apperrors.NewTableReadError(table, err)
	}

	return rowsFromRecords(records), nil
}

// TableSource reads one worksheet on every lookup, deduplicating
// concurrent reads of the same table through singleflight.
type TableSource struct {
	client  *Client
	sheetID string
	table   string
	format  Format

	group   singleflight.Group
	metrics *metrics.Metrics
	log     *logger.Logger
}

// NewTableSource builds a source for one worksheet. m may be nil.
func NewTableSource(client *Client, sheetID, table string, format Format, m *metrics.Metrics, log *logger.Logger) *TableSource {
	if log == nil {
		log = logger.New("error")
	}
	return &TableSource{
		client:  client,
		sheetID: sheetID,
		table:   table,
		format:  format,
		metrics: m,
		log:     log.WithModule("sheets"),
	}
}

// Name implements kb.Source.
func (s *TableSource) Name() string { return s.table }

// Rows implements kb.Source. Concurrent callers share one fetch.
func (s *TableSource) Rows(ctx context.Context) ([]kb.Row, error) {
	v, err, shared := s.group.Do(s.table, func() (any, error) {
		start := time.Now()
		rows, err := s.client.FetchTable(ctx, s.sheetID, s.table, s.format)
		s.recordRead(err == nil, time.Since(start))
		if err != nil {
			return nil, err
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.log.WithField("table", s.table).Debug("table read shared across callers")
	}

	rows, ok := v.([]kb.Row)
	if !ok {
		return nil, fmt.Errorf("unexpected singleflight value %T", v)
	}
	return rows, nil
}

func (s *TableSource) recordRead(ok bool, d time.Duration) {
	if s.metrics == nil {
		return
	}
	status := "success"
	if !ok {
		status = "error"
	}
	s.metrics.RecordTableRead(s.table, status, d.Seconds())
}
