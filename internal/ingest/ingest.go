// Package ingest consumes the raw transaction stream, normalizes and
// batches records, and persists them exactly once per offset. The
// batch/flush loop is grounded on the teacher's
// internal/mempool/poller.go ticker-driven polling idiom; the
// normalize/flush/commit-after-DB-success semantics are carried over
// directly from original_source/services/ingestion/kafka_consumer.py,
// translated from kafka-python's manual-commit consumer to
// segmentio/kafka-go's Reader.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rawblock/aml-risk-platform/internal/store"
	"github.com/rawblock/aml-risk-platform/pkg/models"
)

// ConsumerName identifies this consumer's row in ingestion_state.
const ConsumerName = "transactions_consumer"

// Config holds the consumer's tunables, mirroring the original's env
// vars (KAFKA_BOOTSTRAP_SERVERS, CONSUMER_BATCH_SIZE, etc.) one-to-one.
type Config struct {
	BootstrapServers    string
	Topic               string
	GroupID             string
	BatchSize           int
	PollInterval        time.Duration
	FlushInterval       time.Duration
	ConnectRetryBackoff time.Duration
	ConnectMaxAttempts  int // 0 = unlimited
}

// Stats is the consumer's live in-process telemetry, returned by
// Consumer.Stats. The health endpoint does not read it.
type Stats struct {
	TotalReceived int64
	TotalInserted int64
	TotalSkipped  int64 // poison records dropped by normalize
	TotalFlushes  int64
}

// Consumer drains Config.Topic, normalizes each record, and buffers it
// until a size or time threshold is hit, then writes the batch to the
// store and commits the batch's offsets — never before.
type Consumer struct {
	cfg    Config
	st     *store.Store
	reader *kafka.Reader

	received atomic.Int64
	inserted atomic.Int64
	skipped  atomic.Int64
	flushes  atomic.Int64

	mu       sync.Mutex
	lastErr  *string
	lastTxID *string
}

// NewConsumer builds a consumer over the given store. The kafka.Reader
// is not created until Run dials the broker, so construction never
// fails even if the broker is unreachable yet.
func NewConsumer(cfg Config, st *store.Store) *Consumer {
	return &Consumer{cfg: cfg, st: st}
}

// Stats snapshots the consumer's running counters.
func (c *Consumer) Stats() Stats {
	return Stats{
		TotalReceived: c.received.Load(),
		TotalInserted: c.inserted.Load(),
		TotalSkipped:  c.skipped.Load(),
		TotalFlushes:  c.flushes.Load(),
	}
}

// LastError returns the most recent flush error message, if any.
func (c *Consumer) LastError() *string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Run blocks until ctx is canceled, dialing the broker with retry,
// then looping: poll up to PollInterval, flush on BatchSize or
// FlushInterval, whichever comes first.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.waitForBroker(ctx); err != nil {
		return err
	}

	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{c.cfg.BootstrapServers},
		Topic:       c.cfg.Topic,
		GroupID:     c.cfg.GroupID,
		StartOffset: kafka.FirstOffset,
	})
	defer c.reader.Close()

	log.Printf("[ingest] connected broker=%s topic=%s group=%s", c.cfg.BootstrapServers, c.cfg.Topic, c.cfg.GroupID)

	var buffer []kafka.Message
	lastFlush := time.Now()

	for {
		if ctx.Err() != nil {
			return nil
		}

		pollCtx, cancel := context.WithTimeout(ctx, c.cfg.PollInterval)
		msg, err := c.reader.FetchMessage(pollCtx)
		cancel()

		switch {
		case err == nil:
			buffer = append(buffer, msg)
			c.received.Add(1)
		case ctx.Err() != nil:
			return nil
		case isTimeout(err):
			// no message this tick, fall through to the flush check
		default:
			log.Printf("[ingest] fetch error: %v", err)
			time.Sleep(time.Second)
			continue
		}

		sizeDue := len(buffer) >= c.cfg.BatchSize
		timeDue := time.Since(lastFlush) >= c.cfg.FlushInterval

		if len(buffer) > 0 && (sizeDue || timeDue) {
			if err := c.flush(ctx, buffer); err != nil {
				log.Printf("[ingest] flush failed, will retry next loop: %v", err)
				time.Sleep(time.Second)
				continue
			}
			buffer = nil
			lastFlush = time.Now()
		}
	}
}

func isTimeout(err error) bool {
	return err == context.DeadlineExceeded
}

// flush normalizes every buffered message, upserts the valid rows,
// commits the batch's Kafka offsets only after the DB write succeeds,
// and records ingestion telemetry. Poison records (missing required
// fields) are counted and dropped, never block the batch.
func (c *Consumer) flush(ctx context.Context, buffer []kafka.Message) error {
	received := len(buffer)
	c.flushes.Add(1)

	var lastTxID *string
	for i := len(buffer) - 1; i >= 0; i-- {
		var raw models.RawRecord
		if err := json.Unmarshal(buffer[i].Value, &raw); err == nil {
			if id := raw.TxID; id != "" {
				lastTxID = &id
				break
			}
		}
	}

	rows := make([]models.Transaction, 0, received)
	skipped := 0
	for _, m := range buffer {
		tx, ok := normalize(m.Value)
		if !ok {
			skipped++
			continue
		}
		rows = append(rows, tx)
	}

	var insertedIDs []string
	if len(rows) > 0 {
		var err error
		insertedIDs, err = c.st.UpsertTransactions(ctx, rows)
		if err != nil {
			c.recordFailure(ctx, err)
			return err
		}
	}

	if err := c.reader.CommitMessages(ctx, buffer...); err != nil {
		c.recordFailure(ctx, err)
		return fmt.Errorf("commit offsets: %w", err)
	}

	inserted := int64(len(insertedIDs))
	c.inserted.Add(inserted)
	c.skipped.Add(int64(skipped))

	if err := c.st.RecordIngestion(ctx, ConsumerName, lastTxID, inserted, nil); err != nil {
		log.Printf("[ingest] failed to record ingestion state: %v", err)
	}

	c.mu.Lock()
	c.lastErr = nil
	c.lastTxID = lastTxID
	c.mu.Unlock()

	log.Printf("[ingest] flushed received=%d valid=%d skipped=%d inserted=%d last_tx_id=%v",
		received, len(rows), skipped, inserted, derefOrNil(lastTxID))

	return nil
}

func (c *Consumer) recordFailure(ctx context.Context, err error) {
	msg := err.Error()
	c.mu.Lock()
	c.lastErr = &msg
	c.mu.Unlock()
	if recErr := c.st.RecordIngestion(ctx, ConsumerName, nil, 0, &msg); recErr != nil {
		log.Printf("[ingest] failed to record ingestion failure: %v", recErr)
	}
}

func derefOrNil(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

// waitForBroker dials bootstrap with retry/backoff, matching the
// original's connect-retry loop so a consumer started before its broker
// comes up doesn't crash-loop.
func (c *Consumer) waitForBroker(ctx context.Context) error {
	attempt := 0
	for {
		attempt++
		conn, err := kafka.DialContext(ctx, "tcp", c.cfg.BootstrapServers)
		if err == nil {
			conn.Close()
			return nil
		}
		if c.cfg.ConnectMaxAttempts > 0 && attempt >= c.cfg.ConnectMaxAttempts {
			return fmt.Errorf("broker %s unreachable after %d attempts: %w", c.cfg.BootstrapServers, attempt, err)
		}
		log.Printf("[ingest] broker not ready (attempt %d): %v; retrying in %s", attempt, err, c.cfg.ConnectRetryBackoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.ConnectRetryBackoff):
		}
	}
}

// normalize resolves field aliases (sender|src|from, receiver|dst|to,
// timestamp|time), coerces amount from whatever JSON type it arrived
// as, and rejects the record if tx_id, sender, or receiver is missing.
func normalize(raw []byte) (models.Transaction, bool) {
	var r models.RawRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return models.Transaction{}, false
	}

	sender := firstNonEmpty(r.Sender, r.Src, r.From)
	receiver := firstNonEmpty(r.Receiver, r.Dst, r.To)

	if r.TxID == "" || sender == "" || receiver == "" {
		return models.Transaction{}, false
	}

	amount := coerceFloat(r.Amount)

	ts := time.Now().UTC()
	if raw := firstNonEmpty(r.Timestamp, r.Time); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			ts = parsed
		}
	}

	return models.Transaction{
		TxID:      r.TxID,
		Sender:    sender,
		Receiver:  receiver,
		Amount:    amount,
		Timestamp: ts,
	}, true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func coerceFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		var f float64
		if _, err := fmt.Sscanf(n, "%g", &f); err == nil {
			return f
		}
	}
	return 0.0
}
