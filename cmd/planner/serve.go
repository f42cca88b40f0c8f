package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pmplanner/contracts/mq"
	"pmplanner/internal/config"
	"pmplanner/internal/httpserver"
	"pmplanner/internal/mqhandler"
	"pmplanner/internal/repository"
	"pmplanner/internal/service"
	"pmplanner/internal/suggestion"
	"pmplanner/internal/wbs"
	pkgconfig "pmplanner/pkg/config"
	"pmplanner/pkg/db"
	"pmplanner/pkg/logger"
	pkgmq "pmplanner/pkg/mq"
	"pmplanner/pkg/otel"
	"pmplanner/pkg/outbox"
	redisclient "pmplanner/pkg/redis"
	"pmplanner/pkg/util"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Consume planning requests from RabbitMQ and serve health endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load(pkgconfig.GetConfigEnv(), flagConfigDir)
	if err != nil {
		return err
	}

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting planner...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("mq_url", cfg.MQ.URL),
	)

	ctx := context.Background()

	shutdownOtel, err := otel.Init(ctx, otel.Config{
		ServiceName:    "pmplanner",
		ServiceVersion: "1.0.0",
		Endpoint:       cfg.Otel.Endpoint,
		Enabled:        cfg.Otel.Enabled,
	}, log)
	if err != nil {
		log.Warn("Failed to init OpenTelemetry, continuing without tracing", zap.Error(err))
	} else {
		defer shutdownOtel()
	}

	// DB
	dbConn, err := db.NewConnection(ctx, cfg.DB, log)
	if err != nil {
		log.Error("Failed to init DB", zap.Error(err))
		return err
	}
	defer dbConn.Close()
	if cfg.MigrateOnStart {
		if err := repository.ApplySchema(ctx, dbConn, log); err != nil {
			return err
		}
	}

	// Redis 只用于去重，不可用时照常处理
	var deduper *util.Deduper
	rdb, err := redisclient.NewRedisClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Warn("Redis unavailable, request dedup disabled", zap.Error(err))
	} else {
		defer rdb.Close()
		deduper = util.NewDeduper(rdb, cfg.Planning.DedupTTL, log)
	}

	var (
		suggester        wbs.Suggester
		suggestionClient *suggestion.Client
	)
	if cfg.Suggestion.URL != "" {
		suggestionClient = suggestion.NewClient(cfg.Suggestion.URL, cfg.Suggestion.Timeout, log)
		suggester = suggestionClient
	}

	events := outbox.NewRepository(dbConn, log)
	store := repository.NewStore(dbConn, events, log)
	svc := service.NewPlanningService(store, suggester, cfg.Planning, log)

	publisher, err := pkgmq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Error("Failed to init publisher", zap.Error(err))
		return err
	}
	defer publisher.Close()

	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	defer stopDispatch()
	dispatcher := outbox.NewDispatcher(events, publisher, log).
		WithInterval(cfg.Outbox.Interval).
		WithBatchSize(cfg.Outbox.BatchSize).
		WithMaxRetries(cfg.Outbox.MaxRetries)
	go dispatcher.Start(dispatchCtx)

	handler := mqhandler.NewPlanningHandler(svc, publisher, deduper, log)

	bindings := []struct {
		queue      string
		routingKey string
		handle     pkgmq.MessageHandler
	}{
		{"planning.decompose.q", mq.RoutingDecomposeRequested, handler.HandleDecomposeRequested},
		{"planning.schedule.q", mq.RoutingScheduleRequested, handler.HandleScheduleRequested},
		{"planning.allocate.q", mq.RoutingAllocateRequested, handler.HandleAllocateRequested},
		{"planning.review.q", mq.RoutingWbsReviewed, handler.HandleWbsReviewed},
	}

	consumers := make([]*pkgmq.Consumer, 0, len(bindings))
	for _, b := range bindings {
		log.Info("Initializing MQ consumer...",
			zap.String("queue", b.queue),
			zap.String("routing_key", b.routingKey),
		)
		consumer, err := pkgmq.NewConsumer(cfg.MQ.URL, b.queue, b.routingKey, log)
		if err != nil {
			log.Error("Failed to init consumer", zap.String("queue", b.queue), zap.Error(err))
			return err
		}
		defer consumer.Close()

		consumer.SetHandler(b.handle)
		consumer.SetDeadLetterer(publisher)
		consumers = append(consumers, consumer)

		go func(c *pkgmq.Consumer, queue string) {
			if err := c.StartConsuming(); err != nil {
				log.Fatal("Consumer failed", zap.String("queue", queue), zap.Error(err))
			}
		}(consumer, b.queue)
	}

	ready := httpserver.Readiness{
		DB: dbConn,
		MQConnected: func() bool {
			if !publisher.IsConnected() {
				return false
			}
			for _, c := range consumers {
				if !c.IsConnected() {
					return false
				}
			}
			return true
		},
	}
	if suggestionClient != nil {
		ready.SuggestionState = func() string { return suggestionClient.State().String() }
	}
	router := httpserver.NewRouter(ready)

	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: router.Engine,
	}
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("planner is fully initialized and running")

	// 优雅退出处理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down planner gracefully...")
	for _, c := range consumers {
		c.Stop()
	}
	stopDispatch()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	log.Info("planner shutdown complete")
	return nil
}

func replayOutboxCmd() *cobra.Command {
	var eventID int64
	cmd := &cobra.Command{
		Use:   "replay-outbox",
		Short: "Reset failed outbox events to pending so the running dispatcher resends them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(pkgconfig.GetConfigEnv(), flagConfigDir)
			if err != nil {
				return err
			}
			log := logger.NewLogger()
			defer log.Sync()

			ctx := context.Background()
			dbConn, err := db.NewConnection(ctx, cfg.DB, log)
			if err != nil {
				return err
			}
			defer dbConn.Close()

			n, err := outbox.NewRepository(dbConn, log).Replay(ctx, eventID)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]int64{"replayed": n})
		},
	}
	cmd.Flags().Int64Var(&eventID, "id", 0, "Replay a single event (default: every failed event)")
	return cmd
}
