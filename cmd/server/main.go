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

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"podbroker/internal/auth"
	"podbroker/internal/auth/revocation"
	"podbroker/internal/authz"
	consentService "podbroker/internal/consent/service"
	consentMemory "podbroker/internal/consent/store/memory"
	consentPostgres "podbroker/internal/consent/store/postgres"
	dataService "podbroker/internal/data/service"
	dataMemory "podbroker/internal/data/store/memory"
	dataPostgres "podbroker/internal/data/store/postgres"
	"podbroker/internal/platform/config"
	"podbroker/internal/platform/httpserver"
	"podbroker/internal/platform/logger"
	"podbroker/internal/platform/metrics"
	"podbroker/internal/platform/middleware"
	platformRedis "podbroker/internal/platform/redis"
	httptransport "podbroker/internal/transport/http"
	"podbroker/pkg/platform/audit"
	"podbroker/pkg/platform/audit/publisher"
	auditMemory "podbroker/pkg/platform/audit/store/memory"
	auditWorker "podbroker/pkg/platform/audit/worker"
)

// main wires the backends picked by configuration and supervises the server
// lifecycle. Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	// Persistence: Postgres when a DSN is configured, process memory otherwise.
	var (
		consentStore consentService.Store
		consentTx    consentService.Tx
		dataStore    dataService.Store
	)
	if cfg.Postgres.DSN != "" {
		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error("ping postgres", "error", err)
			os.Exit(1)
		}

		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			log.Error("open pgx pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		consentStore = consentPostgres.New(db)
		consentTx = consentPostgres.NewTx(db)
		dataStore = dataPostgres.New(pool)
		log.Info("using postgres stores")
	} else {
		consentStore = consentMemory.New()
		consentTx = consentMemory.NewTx()
		dataStore = dataMemory.New()
		log.Info("using in-memory stores")
	}

	// Token revocation list: Redis when configured, process memory otherwise.
	var revocations middleware.RevocationChecker
	redisClient, err := platformRedis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		revocations = revocation.NewRedisTRL(redisClient.Client)
		log.Info("using redis token revocation list")
	} else {
		revocations = revocation.NewMemoryTRL()
	}

	// Audit: Kafka when brokers are configured, in-process worker otherwise.
	var auditPublisher audit.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := publisher.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer kafka.Close()
		if err := kafka.EnsureTopic(ctx, 3, 1); err != nil {
			log.Error("ensure audit topic", "error", err)
			os.Exit(1)
		}
		auditPublisher = kafka
		log.Info("publishing audit events to kafka", "topic", cfg.Kafka.Topic)
	} else {
		inbox := make(chan audit.Event, 256)
		auditPublisher = audit.NewChannelPublisher(inbox)
		w := auditWorker.New(auditMemory.NewInMemoryStore(), inbox, log)
		group.Go(func() error {
			err := w.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	tokens := auth.NewService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.AccessTTL)
	consents := consentService.New(consentStore, consentTx, m, auditPublisher, log)
	authorizer := authz.New(consents, m, log)
	data := dataService.New(dataStore, authorizer, m, auditPublisher, log)

	router := httptransport.NewRouter(httptransport.Deps{
		Config:      cfg,
		Logger:      log,
		Metrics:     m,
		Validator:   tokens,
		Revocations: revocations,
		Consent:     consents,
		Data:        data,
		Health: func() map[string]string {
			checks := map[string]string{"server": "ok"}
			if redisClient != nil {
				state := "ok"
				if err := redisClient.Health(ctx); err != nil {
					state = "unreachable"
				}
				checks["redis"] = state
			}
			return checks
		},
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	group.Go(func() error {
		log.Info("starting podbroker", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
