package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"catering/internal/api"
	"catering/internal/audit"
	"catering/internal/cache"
	"catering/internal/config"
	"catering/internal/database"
	"catering/internal/events"
	"catering/internal/inventory"
	"catering/internal/monitoring"
	"catering/internal/notify"
	"catering/internal/observability"
	"catering/internal/orders"
	"catering/internal/realtime"
	"catering/internal/reservations"
)

var (
	configFile = flag.String("config", "configs/config.yaml", "Path to configuration file")
	printToken = flag.String("token", "", "Print a signed token for role[:id] and exit, e.g. kitchen or driver:3")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *printToken != "" {
		if err := devToken(cfg.Auth.JWTSecret, *printToken); err != nil {
			log.Fatalf("Failed to sign token: %v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, otelShutdown, err := observability.Setup(ctx, cfg.Telemetry)
	if err != nil {
		log.Fatalf("Failed to set up telemetry: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Log.Level, cfg.Telemetry.OTLPEndpoint != "")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ExportTimeout)
	defer cancel()
	if err := otelShutdown(shutdownCtx); err != nil {
		logger.Warn("Telemetry shutdown failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	store, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	if cfg.Database.Seed {
		if err := store.Seed(ctx); err != nil {
			return fmt.Errorf("seed database: %w", err)
		}
	}

	loc := cfg.Business.Location()
	metrics := monitoring.NewMetricsCollector()
	monitor := monitoring.NewMonitor()
	hub := realtime.NewHub(logger, realtime.WithLocation(loc), realtime.WithMetrics(metrics))
	recorder := audit.NewRecorder(store, logger)

	transport, err := notify.NewTransport(cfg.Notify, otel.GetTracerProvider())
	if err != nil {
		return fmt.Errorf("notify transport: %w", err)
	}
	publisher := notify.NewPublisher(transport, logger, metrics)
	sink := events.Multi{hub, publisher}

	ledger := inventory.NewLedger(store, logger, metrics)
	consumer := inventory.NewConsumer(store, ledger, logger)

	svc := orders.NewService(store, logger,
		orders.WithConsumer(consumer),
		orders.WithSink(sink),
		orders.WithAudit(recorder),
		orders.WithLocation(loc),
		orders.WithMetrics(metrics),
	)

	rdb := cache.NewRedisClient(cfg.Redis, logger)
	if rdb != nil {
		defer rdb.Close()
	}
	alloc := reservations.NewAllocator(store, logger,
		reservations.WithCache(cache.NewAvailability(rdb, cfg.Redis.TTL, logger)),
		reservations.WithSink(sink),
		reservations.WithAudit(recorder),
		reservations.WithMetrics(metrics),
	)

	monitor.RecordMetric("database_driver", cfg.Database.Driver)
	monitor.RecordMetric("notify_driver", cfg.Notify.Driver)
	monitor.RecordMetric("availability_cache", rdb != nil)
	monitor.RecordMetric("timezone", loc.String())

	gin.SetMode(gin.ReleaseMode)
	k := api.NewKitchenAPI(api.Deps{
		Orders:       svc,
		Reservations: alloc,
		Ledger:       ledger,
		DB:           store,
		Hub:          hub,
		Monitor:      monitor,
		Logger:       logger,
		JWTSecret:    cfg.Auth.JWTSecret,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: k.Router,
	}
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: metricsRouter(metrics),
	}

	go archiveLoop(ctx, svc, monitor, cfg.Business.ArchiveInterval, logger)

	errc := make(chan error, 2)
	for name, srv := range map[string]*http.Server{"api": server, "metrics": metricsServer} {
		go func(name string, srv *http.Server) {
			logger.Info("Starting server", zap.String("server", name), zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- fmt.Errorf("%s server: %w", name, err)
			}
		}(name, srv)
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down servers")
	case runErr = <-errc:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("API server shutdown error", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Metrics server shutdown error", zap.Error(err))
	}

	consumer.Wait()
	if err := publisher.Close(); err != nil {
		logger.Warn("Notification transport close error", zap.Error(err))
	}
	return runErr
}

func metricsRouter(metrics *monitoring.MetricsCollector) http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	return router
}

// archiveLoop hides finished orders from previous days on every tick
func archiveLoop(ctx context.Context, svc *orders.Service, monitor *monitoring.Monitor, every time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.ArchiveDay(ctx)
			monitor.RecordArchiveRun(svc.Now(), n, err)
			if err != nil {
				logger.Error("Archive run failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("Archived orders", zap.Int("count", n))
			}
		}
	}
}

func devToken(secret, subject string) error {
	role, rawID, found := strings.Cut(subject, ":")
	id := uint64(1)
	if found {
		var err error
		if id, err = strconv.ParseUint(rawID, 10, 64); err != nil {
			return fmt.Errorf("bad id in %q: %w", subject, err)
		}
	}
	tok, err := api.SignToken(secret, uint(id), role, role, 24*time.Hour)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, tok)
	return err
}
