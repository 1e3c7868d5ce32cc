package kb

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tanakritw/sheetqna-linebot-go/internal/logger"
	"github.com/tanakritw/sheetqna-linebot-go/internal/metrics"
)

// Source yields the rows of one knowledge-base table. Implementations
// back onto the spreadsheet fetcher, a local CSV directory, or the
// SQLite snapshot store.
type Source interface {
	// Name identifies the table for logging and metrics.
	Name() string
	// Rows returns the table rows in sheet order.
	Rows(ctx context.Context) ([]Row, error)
}

// Recorder receives questions that matched no row. Implementations may
// persist them for later curation; errors are logged, never surfaced.
type Recorder interface {
	RecordUnanswered(ctx context.Context, userID, text string) error
}

// ReadFailurePolicy decides what a table read error does to a lookup.
type ReadFailurePolicy string

const (
	// PolicyMask answers with the error text as soon as any table fails.
	PolicyMask ReadFailurePolicy = "mask"
	// PolicyContinue skips the failed table and keeps scanning.
	PolicyContinue ReadFailurePolicy = "continue"
)

// Resolver matches user text against an ordered list of tables. Earlier
// sources win: the first row whose keyword pattern matches produces the
// whole reply.
type Resolver struct {
	sources  []Source
	follow   Source
	policy   ReadFailurePolicy
	recorder Recorder
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// NewResolver builds a resolver over the given sources. follow may be
// nil when no follow-greeting table is configured; recorder and m may be
// nil to disable unanswered capture and instrumentation.
func NewResolver(sources []Source, follow Source, policy ReadFailurePolicy, recorder Recorder, m *metrics.Metrics, log *logger.Logger) *Resolver {
	if policy != PolicyContinue {
		policy = PolicyMask
	}
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}
	if log == nil {
		log = logger.New("error")
	}
	return &Resolver{
		sources:  sources,
		follow:   follow,
		policy:   policy,
		recorder: recorder,
		metrics:  m,
		log:      log.WithModule("kb"),
	}
}

// Resolve answers one user message. The result always holds at least one
// item: the matched row's reply, the not-found text, or the error text.
func (r *Resolver) Resolve(ctx context.Context, userID, text string) []Content {
	text = NormalizeText(text)

	for _, src := range r.sources {
		rows, err := src.Rows(ctx)
		if err != nil {
			r.log.WithError(err).WithField("table", src.Name()).Error("table read failed")
			if r.policy == PolicyMask {
				r.recordLookup("error")
				return []Content{TextContent{Body: ErrorText}}
			}
			continue
		}

		for _, row := range rows {
			items, matched := r.tryRow(src.Name(), row, text)
			if !matched {
				continue
			}
			if len(items) == 0 {
				r.metrics.RecordSkippedRow("empty_reply")
				continue
			}
			r.recordLookup("matched")
			return items
		}
	}

	r.recordLookup("default")
	r.recordUnanswered(ctx, userID, text)
	return []Content{TextContent{Body: NotFoundText}}
}

// ResolveFollow looks up the greeting row keyed by the follow sentinel.
// A missing table, read error, or absent row falls back to the built-in
// greeting so new followers always hear something.
func (r *Resolver) ResolveFollow(ctx context.Context) []Content {
	fallback := []Content{TextContent{Body: FollowGreetingText}}
	if r.follow == nil {
		return fallback
	}

	rows, err := r.follow.Rows(ctx)
	if err != nil {
		r.log.WithError(err).WithField("table", r.follow.Name()).Error("follow table read failed")
		return fallback
	}

	for _, row := range rows {
		items, matched := r.tryRow(r.follow.Name(), row, FollowSentinel)
		if matched && len(items) > 0 {
			return items
		}
	}
	return fallback
}

// tryRow matches one row's keyword pattern and, on a hit, composes its
// reply. A panic while composing degrades to the error text rather than
// taking the whole lookup down with it.
func (r *Resolver) tryRow(table string, row Row, text string) (items []Content, matched bool) {
	if row.Keyword == "" {
		r.metrics.RecordSkippedRow("no_keyword")
		return nil, false
	}

	m, ok, err := MatchKeyword(row.Keyword, text)
	if err != nil {
		r.log.WithError(err).WithFields(map[string]any{"table": table, "pattern": row.Keyword}).Warn("skipping row with invalid pattern")
		r.metrics.RecordSkippedRow("bad_pattern")
		return nil, false
	}
	if !ok {
		return nil, false
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithField("table", table).Errorf("panic composing reply: %v", rec)
			items = []Content{TextContent{Body: ErrorText}}
			matched = true
		}
	}()
	return Compose(row, m), true
}

func (r *Resolver) recordLookup(outcome string) {
	r.metrics.RecordLookup(outcome)
}

func (r *Resolver) recordUnanswered(ctx context.Context, userID, text string) {
	if r.recorder == nil {
		return
	}
	r.metrics.RecordUnanswered()
	if err := r.recorder.RecordUnanswered(ctx, userID, text); err != nil && !errors.Is(err, context.Canceled) {
		r.log.WithError(err).Warn("failed to record unanswered question")
	}
}
