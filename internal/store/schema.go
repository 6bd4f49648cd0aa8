package store

// schemaSQL creates the four tables described in the data model: the
// durable transaction log, the per-consumer ingestion telemetry row, the
// immutable scoring runs, and the per-run risk scores. Risk scores cascade
// on run delete — the run/risk-score relationship is a foreign-key join,
// not a live object cycle.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS transactions (
	tx_id        TEXT PRIMARY KEY,
	sender       TEXT NOT NULL,
	receiver     TEXT NOT NULL,
	amount       DOUBLE PRECISION NOT NULL DEFAULT 0,
	timestamp    TIMESTAMPTZ NOT NULL DEFAULT now(),
	ingested_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_transactions_sender ON transactions (sender);
CREATE INDEX IF NOT EXISTS idx_transactions_receiver ON transactions (receiver);

CREATE TABLE IF NOT EXISTS ingestion_state (
	name              TEXT PRIMARY KEY,
	last_tx_id        TEXT,
	last_processed_at TIMESTAMPTZ,
	total_inserted    BIGINT NOT NULL DEFAULT 0,
	last_error        TEXT
);

CREATE TABLE IF NOT EXISTS scoring_runs (
	id           BIGSERIAL PRIMARY KEY,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	tx_source    TEXT NOT NULL,
	config_json  JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scoring_runs_created_at ON scoring_runs (created_at);

CREATE TABLE IF NOT EXISTS risk_scores (
	id              BIGSERIAL PRIMARY KEY,
	run_id          BIGINT NOT NULL REFERENCES scoring_runs(id) ON DELETE CASCADE,
	wallet          TEXT NOT NULL,
	risk_score      DOUBLE PRECISION NOT NULL,
	exposures_json  JSONB NOT NULL,
	in_degree       INT NOT NULL,
	out_degree      INT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (run_id, wallet)
);
CREATE INDEX IF NOT EXISTS idx_risk_scores_run_id ON risk_scores (run_id);
CREATE INDEX IF NOT EXISTS idx_risk_scores_wallet ON risk_scores (wallet);
CREATE INDEX IF NOT EXISTS idx_risk_scores_created_at ON risk_scores (created_at);
`
