package main

import (
	"context"
	"log"
	"time"

	"github.com/rawblock/aml-risk-platform/internal/config"
	"github.com/rawblock/aml-risk-platform/internal/graph"
	"github.com/rawblock/aml-risk-platform/internal/health"
	"github.com/rawblock/aml-risk-platform/internal/httpapi"
	"github.com/rawblock/aml-risk-platform/internal/ingest"
	"github.com/rawblock/aml-risk-platform/internal/scoring"
	"github.com/rawblock/aml-risk-platform/internal/store"
	"github.com/rawblock/aml-risk-platform/pkg/models"
)

func main() {
	config.LoadDotenv()
	log.Println("Starting AML risk platform API server...")

	txSource := config.StringOr("TX_SOURCE", "db")
	txPath := config.StringOr("TX_PATH", "")

	var st *store.Store
	if txSource == "db" || config.StringOr("DATABASE_URL", "") != "" {
		dbURL := config.RequireEnv("DATABASE_URL")
		var err error
		st, err = store.Connect(context.Background(), dbURL)
		if err != nil {
			log.Fatalf("FATAL: failed to connect to database: %v", err)
		}
		defer st.Close()
		if err := st.InitSchema(context.Background()); err != nil {
			log.Fatalf("FATAL: schema init failed: %v", err)
		}
	}

	cfg := models.DefaultRiskConfig()
	cfg.IllicitSeed = config.Int64Or("ILLICIT_SEED", cfg.IllicitSeed)

	handle := &graph.Handle{}
	loader := graph.NewLoader(st, handle, graph.Source(txSource), txPath, cfg.IllicitSeed, cfg.IllicitSeedPct)

	driver := scoring.NewDriver(st, handle)

	var consumer *ingest.Consumer
	if st != nil && config.StringOr("KAFKA_BOOTSTRAP_SERVERS", "") != "" {
		consumerCfg := ingest.Config{
			BootstrapServers:    config.StringOr("KAFKA_BOOTSTRAP_SERVERS", "kafka:9092"),
			Topic:               config.StringOr("KAFKA_TOPIC_TRANSACTIONS", "transactions"),
			GroupID:             config.StringOr("KAFKA_GROUP_ID", "tx-consumer"),
			BatchSize:           config.IntOr("CONSUMER_BATCH_SIZE", 500),
			PollInterval:        config.DurationMillisOr("CONSUMER_POLL_MS", 1000*time.Millisecond),
			FlushInterval:       config.DurationSecondsOr("CONSUMER_FLUSH_SECONDS", 2*time.Second),
			ConnectRetryBackoff: config.DurationSecondsOr("CONSUMER_CONNECT_RETRY_SECONDS", 5*time.Second),
			ConnectMaxAttempts:  config.IntOr("CONSUMER_CONNECT_MAX_ATTEMPTS", 0),
		}
		consumer = ingest.NewConsumer(consumerCfg, st)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			if err := consumer.Run(ctx); err != nil {
				log.Printf("[server] ingest consumer stopped: %v", err)
			}
		}()
	} else {
		log.Println("[server] no Kafka bootstrap servers configured; running API-only, no live consumer")
	}

	checker := health.NewChecker(st, handle, driver, consumer, ingest.ConsumerName, txSource)

	if st != nil || txSource == "csv" {
		if result, err := loader.Reload(context.Background()); err != nil {
			log.Printf("[server] initial graph load failed: %v", err)
			checker.SetGraphError(err.Error())
		} else {
			log.Printf("[server] graph loaded: tx_count=%d nodes=%d edges=%d", result.TxCount, result.Nodes, result.Edges)
		}
	}

	hub := httpapi.NewHub()
	go hub.Run()

	router := httpapi.SetupRouter(st, handle, loader, driver, checker, hub, cfg, txSource)

	port := config.StringOr("PORT", "8080")
	log.Printf("[server] listening on :%s (tx_source=%s)", port, txSource)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("FATAL: server exited: %v", err)
	}
}
