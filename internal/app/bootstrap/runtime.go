package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cacheadapter "github.com/quantgrid/marketdata-service/internal/adapters/cache"
	httpadapter "github.com/quantgrid/marketdata-service/internal/adapters/http"
	"github.com/quantgrid/marketdata-service/internal/adapters/security"
	"github.com/quantgrid/marketdata-service/internal/adapters/timescale"
	"github.com/quantgrid/marketdata-service/internal/application"
	"github.com/quantgrid/marketdata-service/internal/health"
)

// insecureDevSecret backs the JWT verifier when no secret is configured and
// insecure local runs are allowed.
const insecureDevSecret = "insecure-dev-secret"

// Runtime is the composition root. It owns every long-lived resource and
// guarantees release on each exit path, including startup failure after
// partial acquisition.
type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	cleanupFn  func(context.Context)
}

// NewRuntime loads configuration, connects and bootstraps storage, wires the
// probe set and aggregator, and builds both servers. A connect or config
// failure aborts startup; bootstrap conflicts only warn.
func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping market-data service",
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
		"environment", cfg.Environment,
	)

	store, err := timescale.Connect(ctx, timescale.Config{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.MaxDBConns,
		ConnectTimeout: cfg.ConnectTimeout,
		ProbeTimeout:   cfg.ProbeTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect timescale: %w", err)
	}
	store.Bootstrap(ctx)

	info := store.Describe(ctx)
	logger.Info("storage backend described",
		"server_version", info.ServerVersion,
		"timescale_version", info.TimescaleVersion,
	)

	redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		store.Close(ctx)
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		store.Close(ctx)
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	secret := cfg.JWTSigningSecret
	if secret == "" {
		logger.Warn("using insecure JWT secret for local/dev runtime")
		secret = insecureDevSecret
	}
	verifier, err := security.NewTokenVerifier(secret)
	if err != nil {
		_ = redisClient.Close()
		store.Close(ctx)
		return nil, fmt.Errorf("init token verifier: %w", err)
	}

	probes := health.NewSet(cfg.ProbeTimeout)
	probes.Register(health.NewDatabaseProbe(store))
	probes.Register(health.NewCacheProbe(redisClient))
	if len(cfg.KafkaBrokers) > 0 {
		probes.Register(health.NewBrokerProbe(cfg.KafkaBrokers))
	}
	aggregator := health.NewAggregator(probes, cfg.Version, cfg.Environment)

	svc := application.NewService(application.Dependencies{
		Candles: timescale.NewCandleRepository(store.DB()),
	})

	handler := httpadapter.NewHandler(aggregator, verifier, svc)
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := grpchealth.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		_ = redisClient.Close()
		store.Close(ctx)
		return nil, fmt.Errorf("listen gRPC: %w", err)
	}

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		cleanupFn: func(ctx context.Context) {
			_ = redisClient.Close()
			store.Close(ctx)
		},
	}, nil
}

// RunAPI serves HTTP and gRPC until a shutdown signal or server failure, then
// releases every resource within the configured shutdown budget.
func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", r.grpcLis.Addr().String())
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), r.cfg.ShutdownTimeout)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}
