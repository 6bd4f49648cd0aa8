// Package models holds the tagged structs that cross component boundaries:
// the bus record shape, the normalized transaction, and the persisted
// scoring-run / risk-score rows. JSON columns that are intentionally open
// (config_json, exposures_json) stay as typed values marshaled at the
// store boundary rather than bare maps.
package models

import "time"

// RawRecord is the loosely-typed inbound bus payload, accepting the field
// aliases the spec requires (sender|src|from, receiver|dst|to,
// timestamp|time). It is normalized into a Transaction before persistence.
type RawRecord struct {
	TxID      string      `json:"tx_id"`
	Sender    string      `json:"sender"`
	Src       string      `json:"src"`
	From      string      `json:"from"`
	Receiver  string      `json:"receiver"`
	Dst       string      `json:"dst"`
	To        string      `json:"to"`
	Amount    interface{} `json:"amount"`
	Timestamp string      `json:"timestamp"`
	Time      string      `json:"time"`
}

// Transaction is the immutable, persisted transfer record. tx_id is the
// global dedupe key; re-presentation of the same tx_id is a no-op.
type Transaction struct {
	TxID        string    `json:"tx_id"`
	Sender      string    `json:"sender"`
	Receiver    string    `json:"receiver"`
	Amount      float64   `json:"amount"`
	Timestamp   time.Time `json:"timestamp"`
	IngestedAt  time.Time `json:"ingested_at"`
}

// IngestionState is the singleton-per-consumer-name telemetry row.
type IngestionState struct {
	Name            string     `json:"name"`
	LastTxID        *string    `json:"last_tx_id"`
	LastProcessedAt *time.Time `json:"last_processed_at"`
	TotalInserted   int64      `json:"total_inserted"`
	LastError       *string    `json:"last_error"`
}

// ScoringRun is an immutable record of one scoring pass: the source
// descriptor and the exact config needed to reproduce its risk scores.
type ScoringRun struct {
	ID         int64     `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	TxSource   string    `json:"tx_source"`
	ConfigJSON []byte    `json:"config_json"`
}

// HopExposure is one row of the cumulative-by-hop exposure breakdown
// stored alongside a risk score.
type HopExposure struct {
	Hop          int     `json:"hop"`
	Weight       float64 `json:"weight"`
	IllicitCount int     `json:"illicit_count"`
}

// RiskScore is one wallet's result within a ScoringRun. (run_id, wallet)
// is unique within a successful run.
type RiskScore struct {
	RunID         int64         `json:"run_id"`
	Wallet        string        `json:"wallet"`
	RiskScore     float64       `json:"risk_score"`
	Exposures     []HopExposure `json:"exposures"`
	InDegree      int           `json:"in_degree"`
	OutDegree     int           `json:"out_degree"`
	CreatedAt     time.Time     `json:"created_at"`
}

// RiskConfig captures the parameters needed to reproduce a run:
// hop_weights, degree_normalize, illicit_seed_pct (and the RNG seed,
// carried alongside so config_json is self-describing).
type RiskConfig struct {
	HopWeights     []float64 `json:"hop_weights"`
	DegreeNormalize bool     `json:"degree_normalize"`
	IllicitSeedPct float64   `json:"illicit_seed_pct"`
	IllicitSeed    int64     `json:"illicit_seed"`
}

// DefaultRiskConfig matches the original risk engine's defaults.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		HopWeights:      []float64{1.0, 0.6, 0.3},
		DegreeNormalize: true,
		IllicitSeedPct:  0.05,
		IllicitSeed:     42,
	}
}
