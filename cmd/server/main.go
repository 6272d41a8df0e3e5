package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/stdr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"semaphore/auth-session/internal/auth"
	"semaphore/auth-session/internal/config"
	"semaphore/auth-session/internal/db"
	sessiongrpc "semaphore/auth-session/internal/grpc"
	internalhttp "semaphore/auth-session/internal/http"
	"semaphore/auth-session/internal/metrics"
	"semaphore/auth-session/internal/ratelimit"
	"semaphore/auth-session/internal/repository"
	"semaphore/auth-session/internal/telemetry"
)

func main() {
	cfg := config.Load()

	stdr.SetVerbosity(cfg.LogVerbosity)
	logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags)).WithName("auth-session")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	secret, err := cfg.SigningSecret(logger)
	if err != nil {
		log.Fatalf("signing secret: %v", err)
	}
	if cfg.IsProduction() && cfg.ServiceAuthToken == "" {
		log.Fatalf("SERVICE_AUTH_TOKEN is required in production")
	}

	shutdownTracing, err := telemetry.InitTraceProvider(ctx, cfg.OTLPEndpoint, "auth-session")
	if err != nil {
		log.Fatalf("tracing init failed: %v", err)
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer pool.Close()
	store := repository.NewStore(pool)

	m := metrics.New(prometheus.DefaultRegisterer)
	codec, err := auth.NewCodec(secret, cfg.JWTIssuer,
		auth.WithLogger(logger.WithName("token")),
		auth.WithFailureHook(m.ObserveTokenRejected),
	)
	if err != nil {
		log.Fatalf("token codec init failed: %v", err)
	}

	opts := []internalhttp.Option{
		internalhttp.WithLogger(logger.WithName("http")),
		internalhttp.WithMetrics(m, prometheus.DefaultGatherer),
	}

	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping failed: %v", err)
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("redis close error: %v", err)
			}
		}()
		opts = append(opts, internalhttp.WithLimiter(ratelimit.New(redisClient, ratelimit.Config{
			MaxAttempts: cfg.LoginMaxAttempts,
			Cooldown:    cfg.LoginCooldown,
		})))
	} else {
		logger.Info("REDIS_ADDR not set, login throttling disabled")
	}

	server, err := internalhttp.NewServer(cfg, store, codec, opts...)
	if err != nil {
		log.Fatalf("server init failed: %v", err)
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if cfg.ServiceAuthToken == "" {
		logger.Info("SERVICE_AUTH_TOKEN not set, session introspection is unauthenticated")
	}
	grpcServer, healthServer, err := sessiongrpc.NewServer(server.Resolver(), cfg.ServiceAuthToken, logger.WithName("grpc"))
	if err != nil {
		log.Fatalf("grpc server init failed: %v", err)
	}

	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	go func() {
		listener, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatalf("grpc listen error: %v", err)
		}
		logger.Info("grpc listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(listener); err != nil {
			log.Fatalf("grpc server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	healthServer.Shutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	grpcServer.GracefulStop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("tracing shutdown error: %v", err)
	}
}
