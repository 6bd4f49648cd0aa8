package graph

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/rawblock/aml-risk-platform/internal/apperr"
	"github.com/rawblock/aml-risk-platform/pkg/models"
)

// edgeAccumulator mirrors the single linear scan in
// original_source/services/scoring/risk_engine.py's build_tx_graph: one
// pass accumulating tx_count/amount per (src,dst) pair, only turned into
// a Snapshot after the full pass succeeds so a partial failure never
// replaces the published graph.
type edgeAccumulator struct {
	nodeSet  map[string]struct{}
	out      map[string]map[string]*Edge
	in       map[string]map[string]*Edge
	rowCount int
}

func newEdgeAccumulator() *edgeAccumulator {
	return &edgeAccumulator{
		nodeSet: make(map[string]struct{}),
		out:     make(map[string]map[string]*Edge),
		in:      make(map[string]map[string]*Edge),
	}
}

func (a *edgeAccumulator) add(src, dst string, amount float64) {
	a.rowCount++
	a.nodeSet[src] = struct{}{}
	a.nodeSet[dst] = struct{}{}

	if a.out[src] == nil {
		a.out[src] = make(map[string]*Edge)
	}
	e, ok := a.out[src][dst]
	if !ok {
		e = &Edge{}
		a.out[src][dst] = e
		if a.in[dst] == nil {
			a.in[dst] = make(map[string]*Edge)
		}
		a.in[dst][src] = e
	}
	e.TxCount++
	e.Amount += amount
}

func (a *edgeAccumulator) snapshot(seed int64, pct float64) *Snapshot {
	nodes := make([]string, 0, len(a.nodeSet))
	for n := range a.nodeSet {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)

	s := &Snapshot{
		nodes:   nodes,
		nodeSet: a.nodeSet,
		out:     a.out,
		in:      a.in,
	}
	s.illicit = sampleIllicit(nodes, pct, seed)
	return s
}

// BuildFromTransactions builds a Snapshot from an in-memory slice of
// persisted transactions (the transaction-store snapshot source).
// Returns the snapshot and the number of transaction rows it was built
// from, for the reload endpoint's tx_count field.
func BuildFromTransactions(rows []models.Transaction, seed int64, pct float64) (*Snapshot, int, error) {
	acc := newEdgeAccumulator()
	for _, r := range rows {
		if r.Sender == "" || r.Receiver == "" {
			return nil, 0, apperr.New(apperr.KindInvalidInput, "transaction row missing sender or receiver")
		}
		acc.add(r.Sender, r.Receiver, r.Amount)
	}
	return acc.snapshot(seed, pct), acc.rowCount, nil
}

// BuildFromCSV builds a Snapshot from a delimited file with columns
// src, dst, and an optional amount column. Missing src/dst columns are
// rejected as InvalidInput before any row is read. Returns the snapshot
// and the number of rows successfully accumulated.
func BuildFromCSV(path string, seed int64, pct float64) (*Snapshot, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.KindInvalidInput, "opening transaction file failed", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.KindInvalidInput, "reading transaction file header failed", err)
	}

	srcIdx, dstIdx, amountIdx := -1, -1, -1
	for i, col := range header {
		switch col {
		case "src":
			srcIdx = i
		case "dst":
			dstIdx = i
		case "amount":
			amountIdx = i
		}
	}
	if srcIdx < 0 || dstIdx < 0 {
		return nil, 0, apperr.New(apperr.KindInvalidInput, "transaction file missing required columns: src, dst")
	}

	acc := newEdgeAccumulator()
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, apperr.Wrap(apperr.KindInvalidInput, "reading transaction file row failed", err)
		}
		if srcIdx >= len(row) || dstIdx >= len(row) {
			continue
		}
		src, dst := row[srcIdx], row[dstIdx]
		if src == "" || dst == "" {
			continue
		}
		amount := 0.0
		if amountIdx >= 0 && amountIdx < len(row) {
			if v, err := strconv.ParseFloat(row[amountIdx], 64); err == nil {
				amount = v
			}
		}
		acc.add(src, dst, amount)
	}

	return acc.snapshot(seed, pct), acc.rowCount, nil
}
