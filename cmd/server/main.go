package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campusid/internal/audit"
	"campusid/internal/chain"
	"campusid/internal/document"
	documenthandler "campusid/internal/document/handler"
	identityhandler "campusid/internal/identity/handler"
	"campusid/internal/identity/lock"
	identitymetrics "campusid/internal/identity/metrics"
	identityservice "campusid/internal/identity/service"
	identitystore "campusid/internal/identity/store"
	"campusid/internal/jwttoken"
	"campusid/internal/metadata"
	"campusid/internal/platform/config"
	"campusid/internal/platform/httpserver"
	"campusid/internal/platform/logger"
	"campusid/internal/platform/metrics"
	platformpg "campusid/internal/platform/postgres"
	platformredis "campusid/internal/platform/redis"
	httptransport "campusid/internal/transport/http"
)

// main wires the dependency graph: stores, chain registry client, pinning
// client, the lifecycle coordinator and the HTTP surface. Every external
// client is constructed once and injected; nothing is a package-level
// singleton.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	pool, err := platformpg.New(ctx, cfg.Postgres)
	if err != nil {
		log.Error("postgres init failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}

	chainClient, err := chain.NewClient(cfg.Chain, log)
	if err != nil {
		log.Error("chain client init failed", "error", err)
		os.Exit(1)
	}
	if chainClient == nil {
		log.Error("CHAIN_RPC_URL is required; the registry is not optional in production")
		os.Exit(1)
	}
	defer chainClient.Close()

	var meta metadata.Store
	if cfg.Pinning.JWT != "" {
		meta = metadata.NewPinataClient(cfg.Pinning)
	} else {
		log.Warn("no pinning credentials configured, using in-memory metadata store")
		meta = metadata.NewMemory()
	}

	var identities identitystore.Store
	var documents document.Store
	var auditStore audit.Store
	health := map[string]httptransport.HealthChecker{}
	if pool != nil {
		pgIdentities := identitystore.NewPostgres(pool.Pool)
		pgDocuments := document.NewPostgresStore(pool.Pool)
		pgAudit := audit.NewPostgresStore(pool.Pool)
		for _, migrate := range []func(context.Context) error{pgIdentities.Migrate, pgDocuments.Migrate, pgAudit.Migrate} {
			if err := migrate(ctx); err != nil {
				log.Error("schema migration failed", "error", err)
				os.Exit(1)
			}
		}
		identities, documents, auditStore = pgIdentities, pgDocuments, pgAudit
		health["postgres"] = pool.Health
	} else {
		log.Warn("no POSTGRES_DSN configured, using in-memory stores")
		identities, documents, auditStore = identitystore.NewMemory(), document.NewMemoryStore(), audit.NewMemoryStore()
	}

	var locker lock.Locker = lock.NewKeyedMutex()
	if redisClient != nil {
		// Lock TTL must outlive the longest chain confirmation wait.
		locker = lock.NewRedisLocker(redisClient, cfg.Chain.ConfirmTimeout+30*time.Second)
		health["redis"] = redisClient.Health
		defer redisClient.Close()
	}

	recorder := audit.NewRecorder(auditStore, log, 256)

	publisher, err := audit.NewKafkaPublisher(cfg.Kafka, log)
	if err != nil {
		log.Error("kafka publisher init failed", "error", err)
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if publisher != nil {
		go publisher.Run(runCtx, recorder.Outbox())
		defer publisher.Close()
	}

	sharedMetrics := metrics.New()
	jwtService := jwttoken.NewService(cfg.JWTSigningKey, "campusid")

	coordinator := identityservice.New(
		identities, chainClient, meta, locker, recorder, log, identitymetrics.New(),
	)
	documentService := document.NewService(documents, meta, identities, recorder, log)

	router := httptransport.NewRouter(health,
		identityhandler.New(coordinator, recorder, log, sharedMetrics, jwtService),
		documenthandler.New(documentService, log, sharedMetrics, jwtService),
	)

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting campusid server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-runCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	if pool != nil {
		pool.Close()
	}
}
