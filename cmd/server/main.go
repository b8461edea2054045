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

	"aims/internal/assignment"
	assignmenthandler "aims/internal/assignment/handler"
	assignmentmemory "aims/internal/assignment/store/memory"
	assignmentpg "aims/internal/assignment/store/postgres"
	"aims/internal/audit"
	audithandler "aims/internal/audit/handler"
	auditmemory "aims/internal/audit/store/memory"
	auditpg "aims/internal/audit/store/postgres"
	"aims/internal/broadcast"
	"aims/internal/cachestamp"
	"aims/internal/clock"
	"aims/internal/directory"
	jwttoken "aims/internal/jwt_token"
	"aims/internal/platform/config"
	"aims/internal/platform/httpserver"
	"aims/internal/platform/logger"
	"aims/internal/platform/metrics"
	"aims/internal/platform/postgres"
	"aims/internal/platform/redis"
	"aims/internal/ratelimit"
	httptransport "aims/internal/transport/http"
	"aims/migrations"
	"aims/pkg/platform/middleware/auth"
)

// main wires the storage, broadcast and transport layers from configuration.
// Every external backend is optional: without Postgres, Redis or Kafka the
// server runs fully in memory, which is the dev and test mode.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	clk := clock.NewSystem()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres connect failed", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
		if err := migrations.Apply(ctx, pool); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}
	}

	redisClient, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Storage and directories.
	var (
		assignmentStore assignment.Store
		auditStore      audit.Store
		users           directory.UserDirectory
		resources       directory.ResourceDirectory
	)
	if pool != nil {
		assignmentStore = assignmentpg.New(pool)
		auditStore = auditpg.New(pool)
		dir := directory.NewPostgresDirectory(pool)
		users, resources = dir, dir
	} else {
		memStore := assignmentmemory.New()
		assignmentStore = memStore
		auditStore = auditmemory.New()
		userDir := directory.NewInMemoryUserDirectory()
		users, resources = userDir, memStore
		log.Warn("no database configured, using in-memory stores")
	}

	var stamp cachestamp.Stamp = cachestamp.NewMemory()
	var limitStore ratelimit.Store = ratelimit.NewMemoryStore(clk)
	if redisClient != nil {
		stamp = cachestamp.NewRedis(redisClient.Client, "")
		limitStore = ratelimit.NewRedisStore(redisClient.Client, clk)
	}

	// Broadcast sinks. The hub always runs; Redis and Kafka join when
	// configured.
	hub := broadcast.NewHub(16)
	sinks := []broadcast.Sink{hub}
	if redisClient != nil {
		sinks = append(sinks, broadcast.NewRedisSink(redisClient.Client, cfg.BroadcastChannel))
	}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := broadcast.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Error("kafka connect failed", "error", err)
			os.Exit(1)
		}
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
	}
	fanout := broadcast.NewFanout(users, log, sinks...)

	auditService := audit.NewService(auditStore, fanout, log, m, clk)
	engine := assignment.NewService(
		assignmentStore, users, resources, auditService, stamp, clk, log,
		assignment.WithAttempts(cfg.RetryAttempts),
		assignment.WithMetrics(m),
	)

	var authMW func(http.Handler) http.Handler
	if cfg.AuthEnabled {
		validator := jwttoken.NewAuthAdapter(jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer))
		authMW = auth.RequireActor(validator, log)
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Assignments: assignmenthandler.New(engine, log),
		Audit:       audithandler.New(auditService, users, hub, log, m, clk, cfg.CatchupWindow),
		RateLimit: ratelimit.NewMiddleware(
			limitStore, log, m, clk, cfg.RateLimitMax, cfg.RateLimitWindow),
		Auth:   authMW,
		Logger: log,
		Ready: func() error {
			if pool != nil {
				if err := pool.Ping(ctx); err != nil {
					return err
				}
			}
			if redisClient != nil {
				return redisClient.Health(ctx)
			}
			return nil
		},
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server",
			"addr", cfg.Addr,
			"postgres", pool != nil,
			"redis", redisClient != nil,
			"kafka", len(cfg.KafkaBrokers) > 0,
			"auth", cfg.AuthEnabled,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
