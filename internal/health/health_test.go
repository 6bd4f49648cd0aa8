package health

import (
	"testing"

	"github.com/rawblock/aml-risk-platform/pkg/models"
)

func strPtr(s string) *string { return &s }

func TestEffectiveGraphError_SuppressesStaleOnceTransactionsExist(t *testing.T) {
	c := &Checker{graphErr: staleGraphError}

	if got := c.effectiveGraphError(0); got != staleGraphError {
		t.Fatalf("expected sticky error to persist with tx_count=0, got %q", got)
	}
	if got := c.effectiveGraphError(5); got != "" {
		t.Fatalf("expected sticky 'no transactions found' to clear once tx_count>0, got %q", got)
	}
}

func TestEffectiveGraphError_NonStaleErrorAlwaysPersists(t *testing.T) {
	c := &Checker{graphErr: "file not found"}
	if got := c.effectiveGraphError(5); got != "file not found" {
		t.Fatalf("expected a non-stale graph error to persist regardless of tx_count, got %q", got)
	}
}

// S6 — readiness gating: an empty transactions table with db source is
// "starting", not "ok" or "degraded".
func TestDeriveStatus_S6StartingWhenDBEmpty(t *testing.T) {
	c := &Checker{txSource: "db"}
	got := c.deriveStatus(true, 0, nil, "")
	if got != StatusStarting {
		t.Fatalf("expected starting with empty db source, got %q", got)
	}
}

func TestDeriveStatus_OKOnceIngestedAndGraphReady(t *testing.T) {
	c := &Checker{txSource: "db"}
	state := &models.IngestionState{TotalInserted: 10}
	got := c.deriveStatus(true, 10, state, "")
	if got != StatusOK {
		t.Fatalf("expected ok once graph is ready and db has rows, got %q", got)
	}
}

func TestDeriveStatus_NotReadyWhenGraphMissing(t *testing.T) {
	c := &Checker{txSource: "csv"}
	got := c.deriveStatus(false, 10, nil, "")
	if got != StatusStarting {
		t.Fatalf("expected starting while the graph has not been built yet, got %q", got)
	}
}

// Precedence: degraded beats starting beats ok.
func TestDeriveStatus_DegradedTakesPrecedenceOverStarting(t *testing.T) {
	c := &Checker{txSource: "db"}
	got := c.deriveStatus(false, 0, nil, "graph build failed")
	if got != StatusDegraded {
		t.Fatalf("expected degraded to take precedence over starting, got %q", got)
	}
}

func TestDeriveStatus_IngestionLastErrorDegradesEvenWhenGraphReady(t *testing.T) {
	c := &Checker{txSource: "db"}
	state := &models.IngestionState{TotalInserted: 5, LastError: strPtr("db write failed")}
	got := c.deriveStatus(true, 5, state, "")
	if got != StatusDegraded {
		t.Fatalf("expected degraded when ingestion_state.last_error is set, got %q", got)
	}
}

func TestDeriveStatus_CSVSourceDoesNotRequireIngestionState(t *testing.T) {
	c := &Checker{txSource: "csv"}
	got := c.deriveStatus(true, 0, nil, "")
	if got != StatusOK {
		t.Fatalf("expected ok for a graph-ready csv source regardless of tx_count, got %q", got)
	}
}
