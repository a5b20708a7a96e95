package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"nuca/internal/audit"
	"nuca/internal/audit/outbox"
	"nuca/internal/audit/retention"
	"nuca/internal/consent"
	consenthandler "nuca/internal/consent/handler"
	consentservice "nuca/internal/consent/service"
	"nuca/internal/crypto/fieldcrypt"
	"nuca/internal/crypto/keyring"
	"nuca/internal/erasure"
	erasurehandler "nuca/internal/erasure/handler"
	erasureservice "nuca/internal/erasure/service"
	"nuca/internal/erasure/sweeper"
	"nuca/internal/health"
	healthhandler "nuca/internal/health/handler"
	healthservice "nuca/internal/health/service"
	"nuca/internal/identity"
	jwttoken "nuca/internal/jwt_token"
	"nuca/internal/platform/config"
	"nuca/internal/platform/database"
	"nuca/internal/platform/httpserver"
	"nuca/internal/platform/kafka/producer"
	"nuca/internal/platform/logger"
	"nuca/internal/platform/metrics"
	platformredis "nuca/internal/platform/redis"
	httptransport "nuca/internal/transport/http"
	"nuca/pkg/platform/tx"
)

// stores groups the persistence layer behind interfaces so the rest of main
// is identical for postgres and memory modes.
type stores struct {
	audit       audit.Store
	retention   retention.Store
	consent     consent.Store
	erasure     erasure.Store
	profiles    health.ProfileStore
	family      health.FamilyStore
	scans       health.ScanStore
	consumption health.ConsumptionStore
	users       identity.Store
	runner      tx.Runner
}

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	keys, err := keyring.New(cfg.MasterSecret, keyring.Version(cfg.ActiveKeyVersion))
	if err != nil {
		log.Error("keyring initialization failed", "error", err)
		os.Exit(1)
	}
	crypt := fieldcrypt.NewService(keys)
	m := metrics.New()

	pool, err := buildPool(cfg)
	if err != nil {
		log.Error("database initialization failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis initialization failed", "error", err)
		os.Exit(1)
	}

	st := buildStores(pool)
	auditor := audit.NewPublisher(st.audit, audit.WithAppendCounter(m.AuditAppends))

	consentSvc := consentservice.New(st.consent, auditor, st.runner,
		consentservice.WithEnforcement(cfg.ComplianceEnabled),
		consentservice.WithMetrics(m),
	)
	erasureSvc := erasureservice.New(st.erasure, auditor, st.runner, cfg.GracePeriod,
		erasureservice.WithMetrics(m),
	)
	healthSvc := healthservice.New(
		st.profiles, st.family, st.scans, st.consumption,
		crypt, consentSvc, erasureSvc, auditor, st.runner,
		cfg.ConsentPolicyVersion,
		healthservice.WithMetrics(m),
		healthservice.WithIdentity(st.users),
	)

	// The producer and outbox worker only run where the outbox exists:
	// postgres mode with Kafka configured.
	var prod *producer.Producer
	if pool != nil && cfg.Kafka.Brokers != "" {
		if prod, err = producer.New(producer.DefaultConfig(cfg.Kafka.Brokers), log); err != nil {
			log.Error("kafka producer initialization failed", "error", err)
			os.Exit(1)
		}
		defer prod.Close()
	}

	cascade := sweeper.Cascade{
		erasure.TargetFamilyMembers:   st.family.DeleteByUser,
		erasure.TargetScanHistory:     st.scans.DeleteByUser,
		erasure.TargetConsumptionLogs: st.consumption.DeleteByUser,
		erasure.TargetConsentRecords:  st.consent.DeleteByUser,
		erasure.TargetProfile:         st.profiles.DeleteByUser,
		erasure.TargetUserIdentity:    st.users.Delete,
	}

	sweeperOpts := []sweeper.Option{
		sweeper.WithInterval(cfg.SweepInterval),
		sweeper.WithMetrics(m),
		sweeper.WithLogger(log),
	}
	if redisClient != nil {
		sweeperOpts = append(sweeperOpts,
			sweeper.WithLocker(platformredis.NewLock(redisClient, "nuca:erasure-sweep", 2*cfg.SweepInterval)))
	}
	erasureSweeper, err := sweeper.New(st.erasure, auditor, st.runner, cascade, sweeperOpts...)
	if err != nil {
		log.Error("sweeper initialization failed", "error", err)
		os.Exit(1)
	}

	retentionSweeper, err := retention.New(st.retention, cfg.AuditRetention, retention.WithLogger(log))
	if err != nil {
		log.Error("retention sweeper initialization failed", "error", err)
		os.Exit(1)
	}

	jwtSvc := jwttoken.NewJWTService(cfg.JWTSigningKey, "nuca", "nuca-api")
	router := httptransport.NewRouter(httptransport.Handlers{
		Consent: consenthandler.New(consentSvc, log, cfg.ConsentPolicyVersion),
		Erasure: erasurehandler.New(erasureSvc, log),
		Health:  healthhandler.New(healthSvc, log),
	}, jwtSvc, log, m, buildHealthChecks(pool, redisClient, prod))

	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting nuca server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		if err := erasureSweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := retentionSweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if prod != nil {
		worker := outbox.New(outbox.NewPostgresStore(pool.DB()), prod, cfg.Kafka.AuditTopic, log)
		g.Go(func() error {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}

	if pool != nil {
		_ = pool.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	log.Info("shutdown complete")
}

func buildPool(cfg config.Config) (*database.Pool, error) {
	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.DatabaseURL
	return database.New(dbCfg)
}

// buildStores selects postgres stores when a database is configured and
// memory stores otherwise. Both modes share the Runner discipline: the
// consent check, the gated action, and its audit entry commit together.
func buildStores(pool *database.Pool) stores {
	if pool == nil {
		auditStore := audit.NewInMemoryStore()
		return stores{
			audit:       auditStore,
			retention:   auditStore,
			consent:     consent.NewInMemoryStore(),
			erasure:     erasure.NewInMemoryStore(),
			profiles:    health.NewInMemoryProfileStore(),
			family:      health.NewInMemoryFamilyStore(),
			scans:       health.NewInMemoryScanStore(),
			consumption: health.NewInMemoryConsumptionStore(),
			users:       identity.NewInMemoryStore(),
			runner:      tx.NewShardedRunner(),
		}
	}

	db := pool.DB()
	auditStore := audit.NewPostgresStore(db)
	return stores{
		audit:       auditStore,
		retention:   auditStore,
		consent:     consent.NewPostgresStore(db),
		erasure:     erasure.NewPostgresStore(db),
		profiles:    health.NewPostgresProfileStore(db),
		family:      health.NewPostgresFamilyStore(db),
		scans:       health.NewPostgresScanStore(db),
		consumption: health.NewPostgresConsumptionStore(db),
		users:       identity.NewPostgresStore(db),
		runner:      pool,
	}
}

func buildHealthChecks(pool *database.Pool, redisClient *platformredis.Client, prod *producer.Producer) map[string]httptransport.HealthChecker {
	check := func(fn func(ctx context.Context) error) httptransport.HealthChecker {
		return func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return fn(ctx)
		}
	}
	checks := make(map[string]httptransport.HealthChecker)
	if pool != nil {
		checks["database"] = check(pool.Health)
	}
	if redisClient != nil {
		checks["redis"] = check(redisClient.Health)
	}
	if prod != nil {
		checks["kafka"] = check(func(ctx context.Context) error {
			if !prod.Healthy(ctx) {
				return errors.New("kafka producer unreachable")
			}
			return nil
		})
	}
	return checks
}
