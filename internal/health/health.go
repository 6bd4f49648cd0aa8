// Package health derives the tri-state readiness/status model from the
// transaction store, ingestion telemetry, and the current graph snapshot.
// The degraded > starting > ok precedence and the "stale once recovered"
// handling of a sticky error is grounded on the teacher's
// internal/heuristics/alert_system.go severity-threshold pattern
// (severityMeetsThreshold's ordered-levels comparison), repurposed from
// ranking alert severity to ranking service status.
package health

import (
	"context"
	"time"

	"github.com/rawblock/aml-risk-platform/internal/graph"
	"github.com/rawblock/aml-risk-platform/internal/ingest"
	"github.com/rawblock/aml-risk-platform/internal/scoring"
	"github.com/rawblock/aml-risk-platform/internal/store"
	"github.com/rawblock/aml-risk-platform/pkg/models"
)

// Status values, most severe first.
const (
	StatusDegraded = "degraded"
	StatusStarting = "starting"
	StatusOK       = "ok"
)

// staleGraphError is the one sticky message that the graph builder can
// leave behind from before any transactions existed; it no longer
// indicates a real problem once the store holds rows.
const staleGraphError = "no transactions found"

// RunSummary is the latest scoring run's headline numbers.
type RunSummary struct {
	RunID         int64     `json:"run_id"`
	WalletsScored int64     `json:"wallets_scored"`
	CreatedAt     time.Time `json:"created_at"`
}

// Summary is the full ingestion/readiness telemetry payload.
type Summary struct {
	Status                    string      `json:"status"`
	GraphReady                bool        `json:"graph_ready"`
	GraphError                string      `json:"graph_error,omitempty"`
	TxSource                  string      `json:"tx_source"`
	TxCount                   int64       `json:"tx_count"`
	TotalInserted             int64       `json:"total_inserted"`
	SecondsSinceLastProcessed *float64    `json:"seconds_since_last_processed"`
	IngestedLast5m            int64       `json:"ingested_last_5m"`
	TxPerMin5m                float64     `json:"tx_per_min_5m"`
	LatestRun                 *RunSummary `json:"latest_run,omitempty"`
	GraphNodeCount            int         `json:"graph_node_count,omitempty"`
	GraphEdgeCount            int         `json:"graph_edge_count,omitempty"`
}

// Checker evaluates the current system status on demand — it holds no
// state of its own beyond the sticky graph-build error, which the graph
// loader reports through SetGraphError.
type Checker struct {
	st           *store.Store
	handle       *graph.Handle
	driver       *scoring.Driver
	consumer     *ingest.Consumer // optional; nil in file-source mode
	consumerName string
	txSource     string

	graphErr string
}

// NewChecker builds a status checker. consumer may be nil when running
// against a file-backed graph source with no live bus consumer.
func NewChecker(st *store.Store, handle *graph.Handle, driver *scoring.Driver, consumer *ingest.Consumer, consumerName, txSource string) *Checker {
	return &Checker{
		st:           st,
		handle:       handle,
		driver:       driver,
		consumer:     consumer,
		consumerName: consumerName,
		txSource:     txSource,
	}
}

// SetGraphError records the graph builder's last error, or clears it
// with an empty string on a successful build.
func (c *Checker) SetGraphError(msg string) { c.graphErr = msg }

// Evaluate computes the current Summary. It performs store round-trips
// and is meant to be called per health/ingestion-status request, not on
// a hot path.
func (c *Checker) Evaluate(ctx context.Context) (Summary, error) {
	snap := c.handle.Load()
	graphReady := snap != nil

	txCount, err := c.st.CountTransactions(ctx)
	if err != nil {
		return Summary{}, err
	}

	ingestionState, err := c.st.GetIngestionState(ctx, c.consumerName)
	if err != nil {
		return Summary{}, err
	}

	since := time.Now().UTC().Add(-5 * time.Minute)
	last5m, err := c.st.CountIngestedSince(ctx, since)
	if err != nil {
		return Summary{}, err
	}

	var latestRun *RunSummary
	if run, err := c.st.GetLatestRun(ctx); err != nil {
		return Summary{}, err
	} else if run != nil {
		_, walletsScored := c.driver.LastSummary()
		latestRun = &RunSummary{RunID: run.ID, WalletsScored: walletsScored, CreatedAt: run.CreatedAt}
	}

	summary := Summary{
		GraphReady:     graphReady,
		GraphError:     c.effectiveGraphError(txCount),
		TxSource:       c.txSource,
		TxCount:        txCount,
		TotalInserted:  0,
		IngestedLast5m: last5m,
		TxPerMin5m:     float64(last5m) / 5.0,
		LatestRun:      latestRun,
	}

	if ingestionState != nil {
		summary.TotalInserted = ingestionState.TotalInserted
		if ingestionState.LastProcessedAt != nil {
			secs := time.Since(*ingestionState.LastProcessedAt).Seconds()
			summary.SecondsSinceLastProcessed = &secs
		}
	}

	if graphReady {
		summary.GraphNodeCount = snap.NodeCount()
		summary.GraphEdgeCount = snap.EdgeCount()
	}

	summary.Status = c.deriveStatus(graphReady, txCount, ingestionState, summary.GraphError)
	return summary, nil
}

// effectiveGraphError returns the sticky graph-build error, suppressing
// the empty-source message once the store actually holds transactions.
func (c *Checker) effectiveGraphError(txCount int64) string {
	if c.graphErr == staleGraphError && txCount > 0 {
		return ""
	}
	return c.graphErr
}

func (c *Checker) deriveStatus(graphReady bool, txCount int64, ingestionState *models.IngestionState, graphErr string) string {
	if graphErr != "" {
		return StatusDegraded
	}
	if ingestionState != nil && ingestionState.LastError != nil && *ingestionState.LastError != "" {
		return StatusDegraded
	}

	if !graphReady {
		return StatusStarting
	}
	if c.txSource == "db" && (txCount == 0 || ingestionState == nil) {
		return StatusStarting
	}

	return StatusOK
}
