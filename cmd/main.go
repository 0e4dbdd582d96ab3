package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"minute/internal/api"
	"minute/internal/board"
	"minute/internal/catalog"
	"minute/internal/config"
	"minute/internal/database"
	"minute/internal/events"
	"minute/internal/logging"
	"minute/internal/models"
	"minute/internal/monitoring"
	"minute/internal/ordering"
	"minute/internal/storage"
	"minute/internal/telemetry"
)

const version = "0.1.0"

var (
	port        = flag.Int("port", 0, "API server port (overrides config)")
	metricsPort = flag.Int("metrics-port", 0, "Metrics server port (overrides config)")
	configFile  = flag.String("config", "", "Path to configuration file")
	seed        = flag.Bool("seed", false, "Load demo data into an empty database")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "minute: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return err
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *metricsPort != 0 {
		cfg.Metrics.Port = *metricsPort
	}
	if *seed {
		cfg.Seed = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Tracing, version)
	if err != nil {
		return err
	}

	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		return err
	}
	store, err := storage.NewGormStore(db)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer store.Close()

	if cfg.Seed {
		seeded, err := storage.SeedIfEmpty(ctx, store, time.Now())
		if err != nil {
			return fmt.Errorf("failed to seed database: %w", err)
		}
		if seeded {
			logger.Info("database seeded with demo data")
		}
	}

	monitor := monitoring.NewMonitor()
	eventLog := logger.Named("events")
	notifiers := ordering.Notifiers{
		monitor,
		ordering.NotifierFunc(func(_ context.Context, ev ordering.Event) {
			eventLog.Debug("order event",
				zap.String("type", string(ev.Type)),
				zap.Uint("order_id", ev.OrderID),
				zap.Uint("menu_item_id", ev.MenuItemID),
				zap.String("reason", ev.Reason))
		}),
	}

	var lifecycle *ordering.Lifecycle
	hub := board.NewHub(func(ctx context.Context) ([]models.Order, error) {
		return lifecycle.OpenOrders(ctx)
	}, logger.Named("board"))
	notifiers = append(notifiers, hub)

	if cfg.Kafka.Enabled() {
		publisher := events.NewPublisher(events.NewKafkaWriter(cfg.Kafka, logger), logger.Named("events"))
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("failed to flush order events", zap.Error(err))
			}
		}()
		notifiers = append(notifiers, publisher)
		logger.Info("publishing order events",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	}

	ledger := ordering.NewLedger(time.Now)
	lifecycle = ordering.NewLifecycle(store, ledger,
		ordering.WithNotifier(notifiers),
		ordering.WithLogger(logger.Named("ordering")),
	)
	cat := catalog.NewService(store, ledger, logger.Named("catalog"))

	srv := api.NewServer(lifecycle, cat, store,
		api.WithBoard(hub),
		api.WithMonitor(monitor),
		api.WithLogger(logger.Named("api")),
		api.WithReset(cfg.Admin.AllowReset),
	)

	apiServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	servers := []*http.Server{apiServer}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting API server", zap.Int("port", cfg.Server.Port))
		return serve(apiServer)
	})

	if cfg.Metrics.Enabled {
		metricsRouter := gin.New()
		metricsRouter.GET(cfg.Metrics.Path, gin.WrapH(monitor.Handler()))
		metricsServer := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: metricsRouter,
		}
		servers = append(servers, metricsServer)
		g.Go(func() error {
			logger.Info("starting metrics server",
				zap.Int("port", cfg.Metrics.Port),
				zap.String("path", cfg.Metrics.Path))
			return serve(metricsServer)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		hub.Close()
		var errs []error
		for _, s := range servers {
			if err := s.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s: %w", s.Addr, err))
			}
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

func serve(s *http.Server) error {
	if err := s.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server %s: %w", s.Addr, err)
	}
	return nil
}
