// Package scoring drives a single scoring run: create the run row, score
// every wallet currently in the graph, and bulk-insert the results inside
// one transaction. The single-flight guard and atomic progress counters
// are grounded on the teacher's internal/scanner/block_scanner.go
// (ScanRange's isRunning atomic.Bool and atomic progress fields),
// repurposed from block-range scanning to wallet-set scoring.
package scoring

import (
	"context"
	"sync/atomic"

	"github.com/jackc/pgx/v5"

	"github.com/rawblock/aml-risk-platform/internal/apperr"
	"github.com/rawblock/aml-risk-platform/internal/graph"
	"github.com/rawblock/aml-risk-platform/internal/risk"
	"github.com/rawblock/aml-risk-platform/internal/store"
	"github.com/rawblock/aml-risk-platform/pkg/models"
)

// Driver owns the single-flight scoring run lifecycle.
type Driver struct {
	st      *store.Store
	handle  *graph.Handle
	running atomic.Bool

	lastWalletsScored atomic.Int64
	lastRunID         atomic.Int64
}

// NewDriver builds a scoring run driver over the given store and graph
// handle.
func NewDriver(st *store.Store, handle *graph.Handle) *Driver {
	return &Driver{st: st, handle: handle}
}

// Result is the outcome of a completed scoring run.
type Result struct {
	RunID         int64
	WalletsScored int
}

// RunScore creates a run record, scores every node in the current graph
// snapshot, and bulk-inserts the rows transactionally. The run is visible
// to readers only after commit; a failure anywhere leaves no rows and
// rolls the run back. Only one run may be in flight — a concurrent
// request fails fast with KindBusy. The run uses whatever snapshot was
// current at call entry even if the graph is swapped mid-run (Open
// Question (a): continue on old snapshot).
func (d *Driver) RunScore(ctx context.Context, txSource string, cfg models.RiskConfig) (Result, error) {
	if !d.running.CompareAndSwap(false, true) {
		return Result{}, apperr.New(apperr.KindBusy, "a scoring run is already in flight")
	}
	defer d.running.Store(false)

	snap := d.handle.Load()
	if snap == nil {
		return Result{}, apperr.New(apperr.KindNotReady, "graph is not loaded")
	}

	results := risk.ScoreAllWallets(snap, cfg)

	var runID int64
	err := d.st.RunTx(ctx, func(tx pgx.Tx) error {
		id, err := d.st.CreateScoringRun(ctx, tx, txSource, cfg)
		if err != nil {
			return err
		}
		runID = id

		rows := make([]models.RiskScore, 0, len(results))
		for _, r := range results {
			rows = append(rows, models.RiskScore{
				RunID:     id,
				Wallet:    r.Wallet,
				RiskScore: r.RiskScore,
				Exposures: r.Exposures,
				InDegree:  r.InDegree,
				OutDegree: r.OutDegree,
			})
		}
		_, err = d.st.BulkInsertRiskScores(ctx, tx, id, rows)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	d.lastRunID.Store(runID)
	d.lastWalletsScored.Store(int64(len(results)))

	return Result{RunID: runID, WalletsScored: len(results)}, nil
}

// IsRunning reports whether a scoring run is currently in flight.
func (d *Driver) IsRunning() bool { return d.running.Load() }

// LastSummary returns the run id and wallet count of the most recently
// completed run observed by this driver instance (zero values if none).
func (d *Driver) LastSummary() (runID int64, walletsScored int64) {
	return d.lastRunID.Load(), d.lastWalletsScored.Load()
}
