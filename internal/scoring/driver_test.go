package scoring

import (
	"context"
	"testing"

	"github.com/rawblock/aml-risk-platform/internal/apperr"
	"github.com/rawblock/aml-risk-platform/internal/graph"
	"github.com/rawblock/aml-risk-platform/pkg/models"
)

func TestRunScore_NotReadyWithoutGraph(t *testing.T) {
	driver := NewDriver(nil, &graph.Handle{})

	_, err := driver.RunScore(context.Background(), "csv", models.DefaultRiskConfig())
	if err == nil {
		t.Fatalf("expected an error when no graph has been loaded")
	}
	if apperr.KindOf(err) != apperr.KindNotReady {
		t.Fatalf("expected KindNotReady, got %v", apperr.KindOf(err))
	}
	if driver.IsRunning() {
		t.Fatalf("expected the running guard to be released after a failed run")
	}
}

// Invariant: only one scoring run may be in flight; a concurrent request
// fails fast with KindBusy rather than blocking or corrupting state.
func TestRunScore_BusyWhenAlreadyRunning(t *testing.T) {
	driver := NewDriver(nil, &graph.Handle{})
	driver.running.Store(true)
	defer driver.running.Store(false)

	_, err := driver.RunScore(context.Background(), "csv", models.DefaultRiskConfig())
	if err == nil {
		t.Fatalf("expected an error when a run is already in flight")
	}
	if apperr.KindOf(err) != apperr.KindBusy {
		t.Fatalf("expected KindBusy, got %v", apperr.KindOf(err))
	}
}

func TestLastSummary_ZeroBeforeAnyRun(t *testing.T) {
	driver := NewDriver(nil, &graph.Handle{})
	runID, walletsScored := driver.LastSummary()
	if runID != 0 || walletsScored != 0 {
		t.Fatalf("expected zero values before any run, got runID=%d walletsScored=%d", runID, walletsScored)
	}
}
