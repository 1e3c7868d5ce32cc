package sheets

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/tanakritw/sheetqna-linebot-go/internal/kb"
)

// parseCSVRecords decodes a CSV export into column-name keyed records.
// The first line is the header; short lines are padded, long lines
// tolerated.
func parseCSVRecords(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // sheet exports pad rows unevenly
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var records []map[string]string
	for {
		line, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}

		rec := make(map[string]string, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			if i < len(line) {
				rec[name] = line[i]
			}
		}
		records = append(records, rec)
	}

	return records, nil
}

// parseHTMLRecords decodes an HTML export. The gviz endpoint renders one
// table whose first row carries the column names.
func parseHTMLRecords(r io.Reader) ([]map[string]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var header []string
	var records []map[string]string

	doc.Find("table").First().Find("tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if header == nil {
			cells.Each(func(_ int, cell *goquery.Selection) {
				header = append(header, strings.TrimSpace(cell.Text()))
			})
			return
		}

		rec := make(map[string]string, len(header))
		cells.Each(func(j int, cell *goquery.Selection) {
			if j < len(header) && header[j] != "" {
				rec[header[j]] = cell.Text()
			}
		})
		records = append(records, rec)
	})

	return records, nil
}

// ReadCSV decodes CSV content into knowledge-base rows. The local file
// source shares this decoder so on-disk tables use the export dialect.
func ReadCSV(r io.Reader) ([]kb.Row, error) {
	records, err := parseCSVRecords(r)
	if err != nil {
		return nil, err
	}
	return rowsFromRecords(records), nil
}

// rowsFromRecords converts raw records into knowledge-base rows,
// dropping fully empty lines the export pads tables with.
func rowsFromRecords(records []map[string]string) []kb.Row {
	rows := make([]kb.Row, 0, len(records))
	for _, rec := range records {
		row := kb.RowFromRecord(rec)
		if row.Keyword == "" && row.TextReply == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}
