package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/julienvidal/bistro-backoffice/api/routes"
	"github.com/julienvidal/bistro-backoffice/internal/aibridge"
	"github.com/julienvidal/bistro-backoffice/internal/cashback"
	"github.com/julienvidal/bistro-backoffice/internal/catalog"
	"github.com/julienvidal/bistro-backoffice/internal/engine"
	"github.com/julienvidal/bistro-backoffice/internal/orders"
	"github.com/julienvidal/bistro-backoffice/internal/promotions"
	"github.com/julienvidal/bistro-backoffice/internal/settings"
	"github.com/julienvidal/bistro-backoffice/pkg/clock"
	"github.com/julienvidal/bistro-backoffice/pkg/config"
	"github.com/julienvidal/bistro-backoffice/pkg/db"
	"github.com/julienvidal/bistro-backoffice/pkg/instance"
	"github.com/julienvidal/bistro-backoffice/pkg/logger"
	"github.com/julienvidal/bistro-backoffice/pkg/metrics"
	"github.com/julienvidal/bistro-backoffice/pkg/outbox"
	"github.com/julienvidal/bistro-backoffice/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	engineMetrics := metrics.NewEngineMetrics(registry)
	orderMetrics := metrics.NewOrderMetrics(registry)

	clk := clock.System()
	conn := dbClient.DB()

	promotionsService, err := promotions.NewService(promotions.NewRepository(conn), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create promotions service", err)
		os.Exit(1)
	}

	engineService, err := engine.NewService(promotionsService, clk, cfg.Engine, engineMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create promotion engine", err)
		os.Exit(1)
	}

	settingsProvider, err := settings.NewProvider(conn, redisClient, cfg.Cashback.SettingsCacheTTL, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create settings provider", err)
		os.Exit(1)
	}

	cashbackService, err := cashback.NewService(cashback.NewRepository(conn), settingsProvider, cfg.Engine, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cashback service", err)
		os.Exit(1)
	}

	catalogLookup, err := catalog.NewLookup(conn)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog lookup", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(conn), logg)

	ordersService, err := orders.NewService(orders.Deps{
		Tx:       dbClient,
		Repo:     orders.NewRepository(conn),
		Engine:   engineService,
		Ledger:   cashbackService,
		Settings: settingsProvider,
		Registry: promotionsService,
		Catalog:  catalogLookup,
		Events:   outboxService,
		Clock:    clk,
		Config:   cfg.Engine,
		Metrics:  orderMetrics,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	bridgeService, err := aibridge.NewService(dbClient, promotions.NewRepository(conn), catalogLookup, outboxService, clk, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create suggestion bridge", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg, logg, dbClient, redisClient, registry,
			promotionsService, engineService, ordersService,
			cashbackService, settingsProvider, bridgeService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
