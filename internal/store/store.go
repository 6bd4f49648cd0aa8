// Package store is the durable, de-duplicated transaction log plus the
// ingestion-state and scoring-run/risk-score tables. It is the single
// source of truth for durability; the in-memory graph is rebuilt from it
// on demand. Grounded on the teacher's internal/db/postgres.go: a thin
// wrapper over a pgxpool.Pool issuing explicit SQL, explicit
// Begin/Commit/Rollback for multi-statement writes, and
// ON CONFLICT ... RETURNING for idempotent upserts.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/aml-risk-platform/internal/apperr"
	"github.com/rawblock/aml-risk-platform/pkg/models"
)

// Store is the Postgres-backed transaction log and scoring store.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pgx connection pool and verifies connectivity.
func Connect(ctx context.Context, connStr string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransientStorage, "unable to connect to database", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apperr.Wrap(apperr.KindTransientStorage, "ping failed", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema creates the four tables if they do not already exist.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return apperr.Wrap(apperr.KindTransientStorage, "failed to execute schema migration", err)
	}
	return nil
}

// Pool exposes the underlying pool for callers that need a raw handle
// (e.g. a health check issuing its own lightweight query).
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// UpsertTransactions bulk-inserts rows with ON CONFLICT DO NOTHING on
// tx_id, returning only the tx_ids that were actually new. inserted_count
// is therefore exact, not a rowcount.
func (s *Store) UpsertTransactions(ctx context.Context, rows []models.Transaction) ([]string, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO transactions (tx_id, sender, receiver, amount, timestamp, ingested_at) VALUES ")
	args := make([]any, 0, len(rows)*6)
	now := time.Now().UTC()
	for i, r := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 6
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5, base+6)
		ts := r.Timestamp
		if ts.IsZero() {
			ts = now
		}
		args = append(args, r.TxID, r.Sender, r.Receiver, r.Amount, ts, now)
	}
	sb.WriteString(" ON CONFLICT (tx_id) DO NOTHING RETURNING tx_id")

	rs, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransientStorage, "bulk upsert transactions failed", err)
	}
	defer rs.Close()

	var inserted []string
	for rs.Next() {
		var id string
		if err := rs.Scan(&id); err != nil {
			return nil, apperr.Wrap(apperr.KindTransientStorage, "scanning inserted tx_id failed", err)
		}
		inserted = append(inserted, id)
	}
	if err := rs.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindTransientStorage, "iterating inserted tx_ids failed", err)
	}
	return inserted, nil
}

// RecordIngestion upserts the ingestion-state row for name: total_inserted
// is incremented (never replaced), last_error is set to the given value
// (nil clears it on a successful flush).
func (s *Store) RecordIngestion(ctx context.Context, name string, lastTxID *string, inserted int64, lastErr *string) error {
	const sql = `
		INSERT INTO ingestion_state (name, last_tx_id, last_processed_at, total_inserted, last_error)
		VALUES ($1, $2, now(), $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			last_tx_id        = COALESCE(EXCLUDED.last_tx_id, ingestion_state.last_tx_id),
			last_processed_at = now(),
			total_inserted    = ingestion_state.total_inserted + EXCLUDED.total_inserted,
			last_error        = EXCLUDED.last_error
	`
	if _, err := s.pool.Exec(ctx, sql, name, lastTxID, inserted, lastErr); err != nil {
		return apperr.Wrap(apperr.KindTransientStorage, "recording ingestion state failed", err)
	}
	return nil
}

// GetIngestionState returns the telemetry row for name, or nil if the
// consumer has never flushed.
func (s *Store) GetIngestionState(ctx context.Context, name string) (*models.IngestionState, error) {
	const sql = `SELECT name, last_tx_id, last_processed_at, total_inserted, last_error FROM ingestion_state WHERE name = $1`
	row := s.pool.QueryRow(ctx, sql, name)

	var st models.IngestionState
	if err := row.Scan(&st.Name, &st.LastTxID, &st.LastProcessedAt, &st.TotalInserted, &st.LastError); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.KindTransientStorage, "reading ingestion state failed", err)
	}
	return &st, nil
}

// CountTransactions returns the number of durable transaction rows.
func (s *Store) CountTransactions(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM transactions`).Scan(&n); err != nil {
		return 0, apperr.Wrap(apperr.KindTransientStorage, "counting transactions failed", err)
	}
	return n, nil
}

// FetchAllTransactions loads the full transaction table for graph
// construction. Callers stream-build the graph from this snapshot; the
// snapshot is a point-in-time read, not a live cursor.
func (s *Store) FetchAllTransactions(ctx context.Context) ([]models.Transaction, error) {
	rows, err := s.pool.Query(ctx, `SELECT tx_id, sender, receiver, amount, timestamp, ingested_at FROM transactions`)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransientStorage, "fetching transactions failed", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.TxID, &t.Sender, &t.Receiver, &t.Amount, &t.Timestamp, &t.IngestedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindTransientStorage, "scanning transaction failed", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindTransientStorage, "iterating transactions failed", err)
	}
	return out, nil
}

// CountIngestedSince counts transaction rows persisted (ingested_at) at or
// after since — used to derive the health model's ingested_last_5m metric.
func (s *Store) CountIngestedSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM transactions WHERE ingested_at >= $1`, since).Scan(&n); err != nil {
		return 0, apperr.Wrap(apperr.KindTransientStorage, "counting recently ingested transactions failed", err)
	}
	return n, nil
}

// RunTx begins a transaction, invokes fn, and commits only if fn
// succeeds; any error rolls the transaction back.
func (s *Store) RunTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperr.Wrap(apperr.KindTransientStorage, "begin transaction failed", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Wrap(apperr.KindTransientStorage, "commit transaction failed", err)
	}
	return nil
}

// CreateScoringRun inserts the immutable run row and returns its id. Must
// be called within a RunTx so a downstream bulk-insert failure rolls the
// run back too.
func (s *Store) CreateScoringRun(ctx context.Context, tx pgx.Tx, txSource string, config models.RiskConfig) (int64, error) {
	cfgBytes, err := json.Marshal(config)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInvalidInput, "marshaling run config failed", err)
	}

	var id int64
	const sql = `INSERT INTO scoring_runs (tx_source, config_json) VALUES ($1, $2) RETURNING id`
	if err := tx.QueryRow(ctx, sql, txSource, cfgBytes).Scan(&id); err != nil {
		return 0, apperr.Wrap(apperr.KindTransientStorage, "inserting scoring run failed", err)
	}
	return id, nil
}

// BulkInsertRiskScores inserts every row in one multi-row statement.
func (s *Store) BulkInsertRiskScores(ctx context.Context, tx pgx.Tx, runID int64, rows []models.RiskScore) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO risk_scores (run_id, wallet, risk_score, exposures_json, in_degree, out_degree, created_at) VALUES ")
	args := make([]any, 0, len(rows)*7)
	now := time.Now().UTC()
	for i, r := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 7
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5, base+6, base+7)
		expBytes, err := json.Marshal(r.Exposures)
		if err != nil {
			return 0, apperr.Wrap(apperr.KindInvalidInput, "marshaling exposures failed", err)
		}
		args = append(args, runID, r.Wallet, r.RiskScore, expBytes, r.InDegree, r.OutDegree, now)
	}

	tag, err := tx.Exec(ctx, sb.String(), args...)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindTransientStorage, "bulk inserting risk scores failed", err)
	}
	return int(tag.RowsAffected()), nil
}

// GetLatestRun returns the most recently created scoring run, or nil if
// none exists.
func (s *Store) GetLatestRun(ctx context.Context) (*models.ScoringRun, error) {
	const sql = `SELECT id, created_at, tx_source, config_json FROM scoring_runs ORDER BY created_at DESC LIMIT 1`
	var run models.ScoringRun
	if err := s.pool.QueryRow(ctx, sql).Scan(&run.ID, &run.CreatedAt, &run.TxSource, &run.ConfigJSON); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.KindTransientStorage, "reading latest run failed", err)
	}
	return &run, nil
}

// GetTopScores returns the top `limit` risk scores from the latest run,
// ordered by risk_score descending.
func (s *Store) GetTopScores(ctx context.Context, limit int) ([]models.RiskScore, error) {
	latest, err := s.GetLatestRun(ctx)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}

	const sql = `
		SELECT run_id, wallet, risk_score, exposures_json, in_degree, out_degree, created_at
		FROM risk_scores WHERE run_id = $1 ORDER BY risk_score DESC LIMIT $2
	`
	rows, err := s.pool.Query(ctx, sql, latest.ID, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransientStorage, "reading top scores failed", err)
	}
	defer rows.Close()
	return scanRiskScores(rows)
}

// GetLatestScoreForWallet returns the most recently created score row for
// wallet across any run, or nil if none exists.
func (s *Store) GetLatestScoreForWallet(ctx context.Context, wallet string) (*models.RiskScore, error) {
	const sql = `
		SELECT run_id, wallet, risk_score, exposures_json, in_degree, out_degree, created_at
		FROM risk_scores WHERE wallet = $1 ORDER BY created_at DESC LIMIT 1
	`
	var r models.RiskScore
	var expBytes []byte
	err := s.pool.QueryRow(ctx, sql, wallet).Scan(&r.RunID, &r.Wallet, &r.RiskScore, &expBytes, &r.InDegree, &r.OutDegree, &r.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.KindTransientStorage, "reading latest score for wallet failed", err)
	}
	if err := json.Unmarshal(expBytes, &r.Exposures); err != nil {
		return nil, apperr.Wrap(apperr.KindTransientStorage, "unmarshaling exposures failed", err)
	}
	return &r, nil
}

// GetScoresForWallets does a single indexed lookup of every wallet in
// wallets against the latest run's scores — used by the subgraph
// extractor to attach risk scores to candidate nodes in one round trip.
func (s *Store) GetScoresForWallets(ctx context.Context, wallets []string) (map[string]models.RiskScore, error) {
	out := make(map[string]models.RiskScore, len(wallets))
	if len(wallets) == 0 {
		return out, nil
	}

	latest, err := s.GetLatestRun(ctx)
	if err != nil || latest == nil {
		return out, err
	}

	const sql = `
		SELECT run_id, wallet, risk_score, exposures_json, in_degree, out_degree, created_at
		FROM risk_scores WHERE run_id = $1 AND wallet = ANY($2)
	`
	rows, err := s.pool.Query(ctx, sql, latest.ID, wallets)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransientStorage, "reading scores for wallets failed", err)
	}
	defer rows.Close()

	scores, err := scanRiskScores(rows)
	if err != nil {
		return nil, err
	}
	for _, r := range scores {
		out[r.Wallet] = r
	}
	return out, nil
}

func scanRiskScores(rows pgx.Rows) ([]models.RiskScore, error) {
	var out []models.RiskScore
	for rows.Next() {
		var r models.RiskScore
		var expBytes []byte
		if err := rows.Scan(&r.RunID, &r.Wallet, &r.RiskScore, &expBytes, &r.InDegree, &r.OutDegree, &r.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindTransientStorage, "scanning risk score failed", err)
		}
		if err := json.Unmarshal(expBytes, &r.Exposures); err != nil {
			return nil, apperr.Wrap(apperr.KindTransientStorage, "unmarshaling exposures failed", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindTransientStorage, "iterating risk scores failed", err)
	}
	return out, nil
}
