// Command verify checks the configured knowledge-base tables for rows
// the bot would silently skip at runtime: keyword patterns that do not
// compile, unknown response types, and responses missing the fields
// their type needs.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tanakritw/sheetqna-linebot-go/internal/config"
	"github.com/tanakritw/sheetqna-linebot-go/internal/filetable"
	"github.com/tanakritw/sheetqna-linebot-go/internal/kb"
	"github.com/tanakritw/sheetqna-linebot-go/internal/logger"
	"github.com/tanakritw/sheetqna-linebot-go/internal/metrics"
	"github.com/tanakritw/sheetqna-linebot-go/internal/sheets"
)

// Verification results
type verifyResult struct {
	name    string
	passed  bool
	message string
}

func main() {
	fmt.Println("🔍 Knowledge-Base Table Verification Tool")
	fmt.Println("=========================================")

	cfg, err := config.LoadForMode(config.WarmupMode)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("error")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	sources, err := buildSources(cfg, log)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to build table sources: %v\n", err)
		os.Exit(1)
	}

	results := []verifyResult{}
	for _, src := range sources {
		results = append(results, verifyTable(ctx, src)...)
	}

	// Print results
	fmt.Println("\n📊 Verification Results:")
	fmt.Println("========================")

	passedCount := 0
	failedCount := 0

	for _, result := range results {
		status := "❌"
		if result.passed {
			status = "✅"
			passedCount++
		} else {
			failedCount++
		}
		fmt.Printf("%s %s: %s\n", status, result.name, result.message)
	}

	fmt.Printf("\n📈 Summary: %d passed, %d failed\n", passedCount, failedCount)

	if failedCount > 0 {
		os.Exit(1)
	}
}

func buildSources(cfg *config.Config, log *logger.Logger) ([]kb.Source, error) {
	sources := make([]kb.Source, 0, len(cfg.SheetTables))

	if cfg.LocalTableDir != "" {
		dir, err := filetable.NewDir(cfg.LocalTableDir, log)
		if err != nil {
			return nil, err
		}
		for _, table := range cfg.SheetTables {
			sources = append(sources, dir.Table(table))
		}
		return sources, nil
	}

	client := sheets.NewClient(cfg.SheetTimeout, cfg.SheetMaxRetries)
	format := sheets.ParseFormat(cfg.SheetFormat)
	m := metrics.New(prometheus.NewRegistry())
	for _, table := range cfg.SheetTables {
		sources = append(sources, sheets.NewTableSource(client, cfg.SheetID, table, format, m, log))
	}
	return sources, nil
}

// verifyTable fetches one table and checks every row.
func verifyTable(ctx context.Context, src kb.Source) []verifyResult {
	name := src.Name()

	rows, err := src.Rows(ctx)
	if err != nil {
		return []verifyResult{{
			name:    name,
			passed:  false,
			message: fmt.Sprintf("fetch failed: %v", err),
		}}
	}
	if len(rows) == 0 {
		return []verifyResult{{
			name:    name,
			passed:  false,
			message: "table has no usable rows",
		}}
	}

	results := []verifyResult{}
	badRows := 0
	for i, row := range rows {
		for _, problem := range checkRow(row) {
			badRows++
			results = append(results, verifyResult{
				name:    fmt.Sprintf("%s row %d", name, i+1),
				passed:  false,
				message: problem,
			})
		}
	}

	if badRows == 0 {
		results = append(results, verifyResult{
			name:    name,
			passed:  true,
			message: fmt.Sprintf("%d rows OK", len(rows)),
		})
	}
	return results
}

// checkRow returns every problem that would make the bot skip or
// mis-compose a row.
func checkRow(row kb.Row) []string {
	var problems []string

	if row.Keyword == "" {
		problems = append(problems, "empty Keyword")
	} else if err := kb.ValidatePattern(row.Keyword); err != nil {
		problems = append(problems, fmt.Sprintf("Keyword does not compile: %v", err))
	}

	switch row.Type {
	case kb.TypeText:
		if row.TextReply == "" {
			problems = append(problems, "text row with empty TextReply")
		}
	case kb.TypeImage:
		if row.ImageURL == "" {
			problems = append(problems, "image row with empty ImageURL")
		}
	case kb.TypeVideo:
		if row.VideoURL == "" {
			problems = append(problems, "video row with empty VideoURL")
		}
	case kb.TypeAudio:
		if row.AudioURL == "" {
			problems = append(problems, "audio row with empty AudioURL")
		}
	case kb.TypeRedirect:
		if row.RedirectURL == "" && row.RedirectOAID == "" {
			problems = append(problems, "redirect row with no RedirectURL or RedirectOA_ID")
		}
	case kb.TypeCombo:
		if row.TextReply == "" && row.ImageURLs == ([kb.ComboImageSlots]string{}) &&
			row.VideoURL == "" && row.RedirectURL == "" && row.RedirectOAID == "" {
			problems = append(problems, "combo row with no content fields")
		}
	default:
		problems = append(problems, "unknown ResponseType")
	}

	if row.DurationMillis != "" {
		if _, err := strconv.Atoi(row.DurationMillis); err != nil {
			problems = append(problems, fmt.Sprintf("DurationMillis is not a number: %q", row.DurationMillis))
		}
	}

	return problems
}
