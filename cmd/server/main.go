package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"

	"pharmatrace/internal/actor"
	"pharmatrace/internal/aggregation"
	"pharmatrace/internal/alert"
	"pharmatrace/internal/batch"
	"pharmatrace/internal/ledger"
	"pharmatrace/internal/platform/config"
	"pharmatrace/internal/platform/httpserver"
	"pharmatrace/internal/platform/logger"
	"pharmatrace/internal/platform/postgres"
	platformredis "pharmatrace/internal/platform/redis"
	"pharmatrace/internal/recall"
	"pharmatrace/internal/signing"
	"pharmatrace/internal/telemetry"
	"pharmatrace/internal/transition"
	httptransport "pharmatrace/internal/transport/http"
	"pharmatrace/internal/unit"
	"pharmatrace/internal/verification"
	verifmetrics "pharmatrace/internal/verification/metrics"
	"pharmatrace/internal/verification/scanwindow"
	"pharmatrace/pkg/platform/tx"
)

// main wires dependencies and keeps the server lifecycle small. Optional
// backends (Postgres, Redis, Kafka) degrade to in-memory implementations when
// not configured; business logic lives in the internal services.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		os.Stderr.WriteString("configuration error: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.New()
	ctx := context.Background()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}

	signer, err := signing.NewHMACSigner(cfg.Signing.MasterKey, cfg.Signing.KeyVersion)
	if err != nil {
		log.Error("signing backend init failed", "error", err)
		os.Exit(1)
	}

	var (
		aggStore       aggregation.Store         = aggregation.NewInMemoryStore()
		unitStore      unit.Store                = unit.NewInMemoryStore()
		batchStore     batch.Store               = batch.NewInMemoryStore()
		ledgerStore    ledger.Store              = ledger.NewInMemoryStore()
		transitions    transition.Store          = transition.NewInMemoryStore()
		recallStore    recall.Store              = recall.NewInMemoryStore()
		alertStore     alert.Store               = alert.NewInMemoryStore()
		historyStore   verification.HistoryStore = verification.NewMemoryHistoryStore()
		readingStore   telemetry.Store           = telemetry.NewInMemoryStore()
		scanStore      scanwindow.Store          = scanwindow.NewMemoryStore()
		txRunner       tx.Runner
		healthCheckers []httptransport.HealthChecker
	)
	if db != nil {
		aggStore = aggregation.NewPostgres(db)
		unitStore = unit.NewPostgres(db)
		batchStore = batch.NewPostgres(db)
		ledgerStore = ledger.NewPostgres(db)
		transitions = transition.NewPostgres(db)
		recallStore = recall.NewPostgres(db)
		alertStore = alert.NewPostgres(db)
		historyStore = verification.NewPostgresHistoryStore(db)
		readingStore = telemetry.NewPostgresStore(db)
		txRunner = tx.NewSQLRunner(db)
		healthCheckers = append(healthCheckers, dbHealth{db})
		defer db.Close()
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}
	if redisClient != nil {
		scanStore = scanwindow.NewRedisStore(redisClient.Client)
		healthCheckers = append(healthCheckers, redisClient)
		defer redisClient.Close()
	}

	var publisher alert.Publisher
	if cfg.KafkaBrokers != "" {
		kafka, err := alert.NewKafkaPublisher(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			log.Error("kafka publisher init failed", "error", err)
			os.Exit(1)
		}
		publisher = kafka
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := kafka.Close(closeCtx); err != nil {
				log.Warn("kafka publisher close failed", "error", err)
			}
		}()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	actors := actor.NewInMemoryDirectory()
	ledgerRec := ledger.NewRecorder(ledgerStore, actors, log)
	transitionRec := transition.NewRecorder(transitions, actors, log)

	alertSvc := alert.NewService(alertStore, publisher, log)
	unitSvc := unit.NewService(unitStore, batchStore, signer, transitionRec, ledgerRec, txRunner, log)
	recallSvc := recall.NewService(recallStore, batchStore, unitSvc, unitStore, alertSvc, ledgerRec, log)
	aggregationSvc := aggregation.NewService(aggStore, unitStore, ledgerRec, txRunner, log)
	telemetrySvc := telemetry.NewService(readingStore, batchStore, alertSvc, ledgerRec, log)
	verificationSvc := verification.NewService(
		unitStore, batchStore, recallSvc, signer,
		historyStore, scanStore, alertSvc, ledgerRec,
		cfg.Verification, verifmetrics.New(registry),
		otel.Tracer("pharmatrace/verification"), log,
	)

	handler := httptransport.NewHandler(
		verificationSvc, unitSvc, batchStore, recallSvc, aggregationSvc, telemetrySvc,
		ledgerRec, alertSvc, healthCheckers, log,
	)
	router := httptransport.NewRouter(handler, cfg.JWTSigningKey, registry)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting pharmatrace", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

type dbHealth struct {
	db *sql.DB
}

func (h dbHealth) Health(ctx context.Context) error {
	return h.db.PingContext(ctx)
}
