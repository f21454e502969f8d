package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/KotFed0t/invest_ledger/config"
	"github.com/KotFed0t/invest_ledger/data"
	"github.com/KotFed0t/invest_ledger/data/cache"
	"github.com/KotFed0t/invest_ledger/data/cursor"
	"github.com/KotFed0t/invest_ledger/data/repository/postgres"
	"github.com/KotFed0t/invest_ledger/internal/circuitBreaker"
	"github.com/KotFed0t/invest_ledger/internal/externalApi/marketDataApi"
	"github.com/KotFed0t/invest_ledger/internal/priceCache"
	"github.com/KotFed0t/invest_ledger/internal/scheduler"
	"github.com/KotFed0t/invest_ledger/internal/service/ledgerService"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	slog.Debug("config", slog.Any("cfg", cfg))

	clock := clockwork.NewRealClock()

	pgClient := data.NewPostgresClient(cfg)
	defer pgClient.Close()

	pgRepo := postgres.NewPostgres(pgClient)

	redisClient := data.NewRedisClient(cfg)
	defer redisClient.Close()

	redisCache := cache.NewRedisCache(redisClient)
	cursorStore := cursor.NewRedisCursorStore(redisClient)

	breaker := circuitBreaker.New("market data api", cfg.CircuitBreaker.Threshold, cfg.CircuitBreaker.Timeout, clock)
	marketDataClient := marketDataApi.New(cfg, breaker, cursorStore, clock)

	prices := priceCache.New(cfg, redisCache, clock)

	ledgerSrv := ledgerService.New(cfg, pgRepo, prices, marketDataClient, clock)

	sched, err := scheduler.New(clock)
	if err != nil {
		slog.Error("can't create scheduler", slog.String("err", err.Error()))
		os.Exit(1)
	}
	if err = sched.NewIntervalJob("refresh prices", ledgerSrv.RefreshPrices, cfg.Jobs.RefreshPricesInterval, true); err != nil {
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	slog.Info("invest ledger started")

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-interrupt

	slog.Info("invest ledger stopping")
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
