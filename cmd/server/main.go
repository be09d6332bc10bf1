package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"scrip/internal/assets"
	"scrip/internal/platform/config"
	"scrip/internal/platform/httpserver"
	"scrip/internal/platform/logger"
	"scrip/internal/platform/middleware"
	"scrip/internal/platform/postgres"
	platformredis "scrip/internal/platform/redis"
	"scrip/internal/vault/cache"
	"scrip/internal/vault/handler"
	vaultmetrics "scrip/internal/vault/metrics"
	"scrip/internal/vault/service"
	rolestore "scrip/internal/vault/store/role"
	vaultstore "scrip/internal/vault/store/vault"
	"scrip/pkg/platform/audit"
	auditkafka "scrip/pkg/platform/audit/publishers/kafka"
	auditmemory "scrip/pkg/platform/audit/store/memory"
	auditpostgres "scrip/pkg/platform/audit/store/postgres"
	platformtx "scrip/pkg/platform/tx"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages. Each backing system is
// optional: absent Postgres, Redis or Kafka config selects the in-memory
// equivalent so a local process runs with no infrastructure at all.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	var (
		vaults service.VaultStore
		roles  service.RoleStore
	)
	pool, err := postgres.Connect(ctx, cfg.Postgres)
	if err != nil {
		log.Error("postgres connect failed", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
		if err := postgres.Migrate(ctx, pool); err != nil {
			log.Error("postgres migrate failed", "error", err)
			os.Exit(1)
		}
		vaults = vaultstore.NewPostgres(pool)
		roles = rolestore.NewPostgres(pool)
		log.Info("using postgres stores")
	} else {
		vaults = vaultstore.NewInMemory()
		roles = rolestore.NewInMemory()
		log.Info("using in-memory stores")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}

	var engine assets.Engine = assets.NewInMemoryEngine()
	opts := []service.Option{service.WithLogger(log)}
	if pool != nil {
		opts = append(opts, service.WithTxRunner(platformtx.NewPgxRunner(pool)))
	}
	if redisClient != nil {
		defer redisClient.Close()
		engine = assets.NewRedisEngine(redisClient.Client)
		opts = append(opts, service.WithRoleCache(cache.NewRoleCache(redisClient.Client, roles)))
		log.Info("using redis asset engine")
	}

	var auditStore audit.Store
	switch {
	case len(cfg.Kafka.Brokers) > 0:
		publisher, err := auditkafka.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, auditkafka.WithLogger(log))
		if err != nil {
			log.Error("kafka connect failed", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		auditStore = publisher
		log.Info("publishing audit events to kafka", "brokers", cfg.Kafka.Brokers)
	case pool != nil:
		auditStore = auditpostgres.New(pool)
		log.Info("persisting audit events in postgres")
	default:
		auditStore = auditmemory.NewInMemoryStore()
	}
	opts = append(opts,
		service.WithAuditPublisher(auditStore),
		service.WithMetrics(vaultmetrics.New()),
	)

	svc := service.New(vaults, roles, engine, opts...)

	verifier := middleware.NewJWTVerifier(cfg.JWTSigningKey)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if pool != nil {
			if err := pool.Ping(r.Context()); err != nil {
				http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(verifier, log))
		handler.New(svc, log).Register(r)
	})

	srv := httpserver.New(cfg.Addr, router)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		log.Info("starting scrip server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
