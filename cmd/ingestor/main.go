package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rawblock/aml-risk-platform/internal/config"
	"github.com/rawblock/aml-risk-platform/internal/ingest"
	"github.com/rawblock/aml-risk-platform/internal/store"
)

// cmd/ingestor runs the stream consumer as its own process, independent
// of the read API — the spec's two independent long-lived workers
// (§5 Scheduling model) can then scale and restart separately.
func main() {
	config.LoadDotenv()
	log.Println("Starting AML risk platform ingestor...")

	dbURL := config.RequireEnv("DATABASE_URL")
	st, err := store.Connect(context.Background(), dbURL)
	if err != nil {
		log.Fatalf("FATAL: failed to connect to database: %v", err)
	}
	defer st.Close()
	if err := st.InitSchema(context.Background()); err != nil {
		log.Fatalf("FATAL: schema init failed: %v", err)
	}

	consumerCfg := ingest.Config{
		BootstrapServers:    config.RequireEnv("KAFKA_BOOTSTRAP_SERVERS"),
		Topic:               config.StringOr("KAFKA_TOPIC_TRANSACTIONS", "transactions"),
		GroupID:             config.StringOr("KAFKA_GROUP_ID", "tx-consumer"),
		BatchSize:           config.IntOr("CONSUMER_BATCH_SIZE", 500),
		PollInterval:        config.DurationMillisOr("CONSUMER_POLL_MS", 1000*time.Millisecond),
		FlushInterval:       config.DurationSecondsOr("CONSUMER_FLUSH_SECONDS", 2*time.Second),
		ConnectRetryBackoff: config.DurationSecondsOr("CONSUMER_CONNECT_RETRY_SECONDS", 5*time.Second),
		ConnectMaxAttempts:  config.IntOr("CONSUMER_CONNECT_MAX_ATTEMPTS", 0),
	}
	consumer := ingest.NewConsumer(consumerCfg, st)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := consumer.Run(ctx); err != nil {
		log.Fatalf("FATAL: ingestor exited: %v", err)
	}
	log.Println("Ingestor stopped.")
}
