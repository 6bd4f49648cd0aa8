package graph

import (
	"context"

	"github.com/rawblock/aml-risk-platform/internal/apperr"
	"github.com/rawblock/aml-risk-platform/internal/store"
)

// Source selects where the graph is (re)built from.
type Source string

const (
	SourceDB  Source = "db"
	SourceCSV Source = "csv"
)

// LoadResult summarizes a completed (re)build for the reload endpoint.
type LoadResult struct {
	TxCount int
	Nodes   int
	Edges   int
}

// Loader owns the reload operation: fetch rows from the configured
// source, build a Snapshot, and publish it to Handle only after the
// full pass succeeds.
type Loader struct {
	st       *store.Store
	handle   *Handle
	source   Source
	csvPath  string
	seed     int64
	pct      float64
}

// NewLoader builds a Loader. st may be nil when source is SourceCSV.
func NewLoader(st *store.Store, handle *Handle, source Source, csvPath string, seed int64, pct float64) *Loader {
	return &Loader{st: st, handle: handle, source: source, csvPath: csvPath, seed: seed, pct: pct}
}

// Reload rebuilds the graph from the configured source and publishes it
// atomically on success. It never partially publishes: a failure leaves
// the previously published snapshot (if any) untouched.
func (l *Loader) Reload(ctx context.Context) (LoadResult, error) {
	switch l.source {
	case SourceCSV:
		snap, rowCount, err := BuildFromCSV(l.csvPath, l.seed, l.pct)
		if err != nil {
			return LoadResult{}, err
		}
		if rowCount == 0 {
			return LoadResult{}, apperr.New(apperr.KindInvalidInput, "no transactions found")
		}
		l.handle.Store(snap)
		return LoadResult{TxCount: rowCount, Nodes: snap.NodeCount(), Edges: snap.EdgeCount()}, nil

	case SourceDB:
		if l.st == nil {
			return LoadResult{}, apperr.New(apperr.KindNotReady, "database source configured but no store is connected")
		}
		rows, err := l.st.FetchAllTransactions(ctx)
		if err != nil {
			return LoadResult{}, err
		}
		if len(rows) == 0 {
			return LoadResult{}, apperr.New(apperr.KindInvalidInput, "no transactions found")
		}
		snap, rowCount, err := BuildFromTransactions(rows, l.seed, l.pct)
		if err != nil {
			return LoadResult{}, err
		}
		l.handle.Store(snap)
		return LoadResult{TxCount: rowCount, Nodes: snap.NodeCount(), Edges: snap.EdgeCount()}, nil

	default:
		return LoadResult{}, apperr.New(apperr.KindInvalidInput, "unknown tx source")
	}
}
