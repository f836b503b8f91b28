// Package main provides the dx provisioning server executable with HTTP API and background reconciler.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	provisioner "github.com/datakaveri/dx-resource-server-sub001"
	"github.com/datakaveri/dx-resource-server-sub001/adapters/catalogue"
	"github.com/datakaveri/dx-resource-server-sub001/adapters/rabbitmq"
	"github.com/datakaveri/dx-resource-server-sub001/adapters/relica"
	"github.com/datakaveri/dx-resource-server-sub001/cmd/dx-server/internal/api"
	"github.com/datakaveri/dx-resource-server-sub001/cmd/dx-server/internal/config"
	"github.com/datakaveri/dx-resource-server-sub001/retry"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		fmt.Print(config.Usage())
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	base, err := newZap(cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	os.Exit(exitCode(base, run(cfg, base)))
}

// exitCode logs the outcome of run and flushes base before the process exits.
// os.Exit skips deferred calls, so the flush happens here.
func exitCode(base *zap.Logger, err error) int {
	code := 0
	if err != nil {
		base.Error("Server failed", zap.Error(err))
		code = 1
	}
	_ = base.Sync()
	return code
}

func newZap(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func run(cfg *config.Config, base *zap.Logger) error {
	logger := provisioner.NewZapLogger(base, "server")

	base.Info("Configuration loaded",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("db_host", cfg.Database.Host),
		zap.String("broker", cfg.Broker.ManagementURL),
		zap.String("catalogue", cfg.Catalogue.BaseURL),
		zap.Duration("sweep_interval", cfg.Sweep.Interval),
	)

	db, err := sql.Open(cfg.Database.Driver, cfg.Database.GetDSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Warnf("Failed to close database: %v", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.Database.Migrate {
		if err := provisioner.ApplyMigrations(ctx, db, cfg.Database.Driver); err != nil {
			return err
		}
		logger.Info("Migrations applied")
	}

	repos := relica.NewRepositoriesWithPrefix(db, cfg.Database.Driver, cfg.Database.Prefix)

	broker, err := rabbitmq.New(rabbitmq.Config{
		ManagementURL: cfg.Broker.ManagementURL,
		Username:      cfg.Broker.Username,
		Password:      cfg.Broker.Password,
		VHost:         cfg.Broker.VHost,
		AMQPURL:       cfg.Broker.AMQPURL,
		Timeout:       cfg.Broker.Timeout,
	}, provisioner.NewZapLogger(base, "rabbitmq"))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := broker.Close(); closeErr != nil {
			logger.Warnf("Failed to close broker connection: %v", closeErr)
		}
	}()

	cat := catalogue.New(cfg.Catalogue.BaseURL, cfg.Catalogue.Timeout)

	metrics, err := provisioner.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	notifications := provisioner.NewLoggingNotificationService(provisioner.NewZapLogger(base, "notifications"))

	subscriptions, err := provisioner.NewSubscriptionOrchestrator(
		provisioner.WithSubscriptionRepository(repos.Subscription),
		provisioner.WithSubscriptionGateways(broker, cat),
		provisioner.WithSubscriptionLogger(provisioner.NewZapLogger(base, "subscriptions")),
		provisioner.WithSubscriptionNotifications(notifications),
		provisioner.WithSubscriptionMetrics(metrics),
	)
	if err != nil {
		return err
	}

	ingestion, err := provisioner.NewIngestionOrchestrator(
		provisioner.WithAdapterRepository(repos.Adapter),
		provisioner.WithIngestionGateways(broker, cat),
		provisioner.WithIngestionLogger(provisioner.NewZapLogger(base, "ingestion")),
		provisioner.WithIngestionNotifications(notifications),
		provisioner.WithIngestionMetrics(metrics),
	)
	if err != nil {
		return err
	}

	if cfg.Sweep.Enabled {
		reconciler, err := provisioner.NewReconciler(
			provisioner.WithReconcilerRepositories(repos.Subscription, repos.Adapter),
			provisioner.WithReconcilerBroker(broker),
			provisioner.WithReconcilerLogger(provisioner.NewZapLogger(base, "reconciler")),
			provisioner.WithBackoff(retry.DefaultBackoff()),
			provisioner.WithPageSize(cfg.Sweep.PageSize),
			provisioner.WithReconcilerMetrics(metrics),
		)
		if err != nil {
			return err
		}
		go reconciler.Run(ctx, cfg.Sweep.Interval)
	}

	router := api.NewHandler(subscriptions, ingestion, provisioner.NewZapLogger(base, "api")).Routes()
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("HTTP server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Infof("Received %s, shutting down", sig)
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	cancel()
	logger.Info("Server stopped gracefully")
	return nil
}
