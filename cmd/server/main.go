package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"casevault/internal/audit"
	audithandler "casevault/internal/audit/handler"
	kafkasink "casevault/internal/audit/publisher/kafka"
	auditmemory "casevault/internal/audit/store/memory"
	auditpostgres "casevault/internal/audit/store/postgres"
	"casevault/internal/deletion"
	deletionhandler "casevault/internal/deletion/handler"
	deletionmetrics "casevault/internal/deletion/metrics"
	statememory "casevault/internal/deletion/store/memory"
	stateredis "casevault/internal/deletion/store/redis"
	"casevault/internal/deletion/watch"
	evidencememory "casevault/internal/evidence/store/memory"
	evidencepostgres "casevault/internal/evidence/store/postgres"
	httpapi "casevault/internal/http"
	jwttoken "casevault/internal/jwt_token"
	"casevault/internal/platform/config"
	"casevault/internal/platform/httpserver"
	"casevault/internal/platform/logger"
	"casevault/internal/platform/metrics"
	"casevault/internal/platform/postgres"
	platformredis "casevault/internal/platform/redis"
	"casevault/pkg/domain"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
	}

	registry := metrics.NewRegistry()
	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		redisClient.RegisterPoolMetrics(registry)
	}

	deletionMetrics := deletionmetrics.New(registry)
	g, gctx := errgroup.WithContext(ctx)

	trail, err := buildAuditTrail(gctx, g, cfg, db, log)
	if err != nil {
		return err
	}

	evidence, err := buildEvidenceStore(cfg, db)
	if err != nil {
		return err
	}

	hub := watch.NewHub()
	var states deletion.StateStore = statememory.New()
	var notifier deletion.Notifier = hub
	if redisClient != nil {
		states = stateredis.NewRedis(redisClient.Client)
		relay := watch.NewRedisRelay(redisClient.Client, hub, cfg.Redis.EventsChannel, log)
		notifier = relay
		g.Go(func() error { return relay.Run(gctx) })
		log.Info("deletion state shared through redis")
	} else {
		log.Warn("deletion state is process-local and does not survive restart")
	}

	workflow, err := deletion.New(states, evidence,
		deletion.WithLogger(log),
		deletion.WithAuditRecorder(trail),
		deletion.WithNotifier(notifier),
		deletion.WithMetrics(deletionMetrics),
		deletion.WithStoreTimeout(cfg.Deletion.StoreTimeout),
		deletion.WithResourceLabel(cfg.Deletion.ResourceLabel),
	)
	if err != nil {
		return err
	}
	watcher, err := watch.NewWatcher(workflow, hub, watch.WithLogger(log), watch.WithMetrics(deletionMetrics))
	if err != nil {
		return err
	}

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)
	checks := map[string]httpapi.HealthCheck{}
	if db != nil {
		checks["postgres"] = db.PingContext
	}
	if redisClient != nil {
		checks["redis"] = redisClient.Health
	}

	router := httpapi.NewRouter(httpapi.Dependencies{
		Logger:       log,
		Registry:     registry,
		JWTValidator: jwttoken.NewJWTServiceAdapter(jwtService),
		Modules: []httpapi.RouteRegistrar{
			deletionhandler.New(workflow, watcher, log,
				deletionhandler.WithStatusWait(cfg.Deletion.StatusWait, cfg.Deletion.StatusMaxWait)),
			audithandler.New(trail, log),
		},
		HealthChecks: checks,
	})
	srv := httpserver.New(cfg.Addr, router, cfg.Deletion.StatusMaxWait)

	g.Go(func() error {
		log.Info("starting casevault", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// buildAuditTrail picks the audit store and, when brokers are configured,
// starts the Kafka forwarder under g.
func buildAuditTrail(ctx context.Context, g *errgroup.Group, cfg config.Server, db *sql.DB, log *slog.Logger) (*audit.Trail, error) {
	var store audit.Store = auditmemory.NewInMemoryStore()
	if db != nil {
		store = auditpostgres.New(db)
	}
	opts := []audit.Option{audit.WithLogger(log)}

	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := kafkasink.New(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			return nil, err
		}
		if err := sink.EnsureTopic(ctx, 3, 1); err != nil {
			log.Warn("could not ensure audit topic", "topic", cfg.Kafka.AuditTopic, "error", err)
		}
		fwd := audit.NewForwarder(sink, 0, log)
		g.Go(func() error {
			defer sink.Close()
			return fwd.Run(ctx)
		})
		opts = append(opts, audit.WithForwarder(fwd))
	}
	return audit.New(store, opts...)
}

func buildEvidenceStore(cfg config.Server, db *sql.DB) (deletion.ResourceStore, error) {
	if db != nil {
		return evidencepostgres.New(db), nil
	}
	store := evidencememory.New()
	for _, raw := range cfg.Evidence.SeedIDs {
		id, err := domain.ParseResourceID(raw)
		if err != nil {
			return nil, err
		}
		store.Add(id)
	}
	return store, nil
}
