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

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/streadway/amqp"

	"github.com/haneulsoft/reserve-notify/internal/api"
	"github.com/haneulsoft/reserve-notify/internal/cache"
	"github.com/haneulsoft/reserve-notify/internal/client"
	"github.com/haneulsoft/reserve-notify/internal/config"
	"github.com/haneulsoft/reserve-notify/internal/metrics"
	"github.com/haneulsoft/reserve-notify/internal/queue"
	"github.com/haneulsoft/reserve-notify/internal/repo"
	"github.com/haneulsoft/reserve-notify/internal/scheduler"
	"github.com/haneulsoft/reserve-notify/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		slog.Error("loading config failed", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("reserve-notify starting",
		"addr", cfg.Server.Address,
		"eval_interval", cfg.Evaluator.Interval,
		"dispatch_interval", cfg.Dispatcher.Interval,
		"dispatch_batch", cfg.Dispatcher.BatchSize,
		"redis", cfg.Redis.Enabled,
		"broker", cfg.Broker.Enabled,
	)

	db, err := sql.Open("pgx", cfg.Database.PostgresURL)
	if err != nil {
		logger.Error("opening postgres failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ruleRepo := repo.NewPostgresRuleRepo(db)
	templateRepo := repo.NewPostgresTemplateRepo(db)
	scheduleRepo := repo.NewPostgresScheduleRepo(db)
	deliveryRepo := repo.NewPostgresDeliveryRepo(db)
	reservations := repo.NewSQLReservationSource(db, "pgx")

	var receipts cache.ReceiptCache
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		receipts = cache.NewRedisCache(rdb, cfg.Redis.TTL)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	materializer := service.NewMaterializer(scheduleRepo, m, logger)
	evaluator := service.NewEvaluator(ruleRepo, reservations, materializer, m, logger)
	dispatcher := service.NewDispatcher(service.DispatcherDeps{
		Schedules:  scheduleRepo,
		Templates:  templateRepo,
		Deliveries: deliveryRepo,
		Source:     reservations,
		Provider:   client.NewGatewayClient(cfg.Provider.URL),
		Receipts:   receipts,
		Metrics:    m,
		Logger:     logger,
		BatchSize:  cfg.Dispatcher.BatchSize,
		Workers:    cfg.Dispatcher.Workers,
	})

	ruleService := service.NewRuleService(ruleRepo, templateRepo, scheduleRepo, reservations, materializer, logger)
	templateService := service.NewTemplateService(templateRepo)
	scheduleService := service.NewScheduleService(scheduleRepo)

	evalLoop, err := scheduler.New("evaluator", cfg.Evaluator.Interval, evaluator.RescanPass, logger)
	if err != nil {
		logger.Error("creating evaluator loop failed", "error", err)
		os.Exit(1)
	}
	dispatchLoop, err := scheduler.New("dispatcher", cfg.Dispatcher.Interval, func(ctx context.Context) {
		dispatcher.DrainDue(ctx)
	}, logger)
	if err != nil {
		logger.Error("creating dispatcher loop failed", "error", err)
		os.Exit(1)
	}

	evalLoop.Start()
	dispatchLoop.Start()
	defer evalLoop.Stop()
	defer dispatchLoop.Stop()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Broker.Enabled {
		conn, err := amqp.Dial(cfg.Broker.URL)
		if err != nil {
			logger.Error("connecting to broker failed", "error", err)
			os.Exit(1)
		}
		defer conn.Close()

		consumer := queue.NewReservationConsumer(conn, cfg.Broker.Queue, evaluator, logger)
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("reservation consumer stopped", "error", err)
			}
		}()
	}

	router := api.NewRouter(api.Deps{
		Rules:      ruleService,
		Templates:  templateService,
		Schedules:  scheduleService,
		Deliveries: deliveryRepo,
		Receipts:   receipts,
		Dispatcher: dispatcher,
		Loops:      []*scheduler.Loop{evalLoop, dispatchLoop},
		Registry:   registry,
		Health:     db.Ping,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
