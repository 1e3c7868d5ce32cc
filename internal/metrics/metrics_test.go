package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordTableRead(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.RecordTableRead("SimpleQnA", "success", 0.2)
	m.RecordTableRead("SimpleQnA", "error", 1.5)
	m.RecordTableRead("GeneralQnA", "success", 0.1)

	if got := testutil.ToFloat64(m.TableReadsTotal.WithLabelValues("SimpleQnA", "success")); got != 1 {
		t.Errorf("SimpleQnA success reads = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.TableReadsTotal.WithLabelValues("SimpleQnA", "error")); got != 1 {
		t.Errorf("SimpleQnA error reads = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.TableReadsTotal.WithLabelValues("GeneralQnA", "success")); got != 1 {
		t.Errorf("GeneralQnA success reads = %v, want 1", got)
	}
}

func TestRecordLookupOutcomes(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.RecordLookup("matched")
	m.RecordLookup("matched")
	m.RecordLookup("default")
	m.RecordUnanswered()

	if got := testutil.ToFloat64(m.LookupsTotal.WithLabelValues("matched")); got != 2 {
		t.Errorf("matched lookups = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.LookupsTotal.WithLabelValues("default")); got != 1 {
		t.Errorf("default lookups = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.UnansweredTotal); got != 1 {
		t.Errorf("unanswered = %v, want 1", got)
	}
}

func TestRegistryIsolation(t *testing.T) {
	// Two instances must not clash when registered on separate registries.
	m1 := New(prometheus.NewRegistry())
	m2 := New(prometheus.NewRegistry())

	m1.RecordSkippedRow("bad_pattern")
	if got := testutil.ToFloat64(m2.SkippedRows.WithLabelValues("bad_pattern")); got != 0 {
		t.Errorf("second registry should be untouched, got %v", got)
	}
}
