// Package server wires the pipeline together: canonical store, queues,
// search index, blob store, consumers, ingest bridge, retention sweeper and
// the ops HTTP surface.
package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auditlog-service/internal/blob"
	"auditlog-service/internal/config"
	"auditlog-service/internal/queue"
	"auditlog-service/internal/repository"
	"auditlog-service/internal/search"
	"auditlog-service/internal/service/export"
	"auditlog-service/internal/service/indexer"
	"auditlog-service/internal/service/ingest"
	"auditlog-service/internal/service/logs"
	"auditlog-service/internal/service/ws"
	"auditlog-service/pkg/cache"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Run starts every component and blocks until SIGINT/SIGTERM.
func Run(cfg config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := config.ConnectDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to canonical store")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
	})
	defer redisClient.Close()

	auditRepo := repository.NewAuditRepository(db)
	exportRepo := repository.NewExportRepository(db)

	logQueue := queue.NewRedisQueue(redisClient, cfg.LogQueueName, cfg.VisibilityTimeout, logger)
	exportQueue := queue.NewRedisQueue(redisClient, cfg.ExportQueueName, cfg.VisibilityTimeout, logger)

	index := search.NewOpenSearchIndex(cfg.SearchURL, cfg.SearchUser, cfg.SearchPass, logger)
	uploader := blob.NewHTTPStore(cfg.BlobEndpoint, cfg.BlobPublicURL, logger)

	// ================================
	// LIVE EVENT STREAM
	// ================================

	hub := ws.NewHub(logger)
	go hub.Run()
	notifier := ws.NewNotifier(hub, logger)

	// ================================
	// QUEUE CONSUMERS
	// ================================

	logConsumer := indexer.New(logQueue, auditRepo, index, notifier, logger)
	go logConsumer.Run(ctx)

	exportPipeline := export.NewPipeline(exportQueue, exportRepo, auditRepo, uploader,
		cfg.ExportBucket, cfg.ExportDir, logger)
	go exportPipeline.Run(ctx)

	// ================================
	// KAFKA INGEST BRIDGE
	// ================================

	var geo ingest.Locator
	if cfg.GeoIPDBPath != "" {
		geo, err = ingest.NewMaxmindLocator(cfg.GeoIPDBPath)
		if err != nil {
			logger.Warn("geoip init failed, ingesting without location", zap.Error(err))
			geo = nil
		} else {
			defer geo.Close()
		}
	}

	bridge := ingest.NewBridge(auditRepo, logQueue, geo, logger)
	kafkaConsumer, err := ingest.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.KafkaAuditTopic, bridge, logger)
	if err != nil {
		return err
	}
	defer kafkaConsumer.Close()

	go func() {
		if err := kafkaConsumer.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("kafka consumer stopped", zap.Error(err))
		}
	}()

	// ================================
	// RETENTION SWEEPER
	// ================================

	logsService := logs.New(auditRepo, index, cache.New(redisClient), cfg.StatsCacheTTL, logger)
	sweeper, err := logs.NewSweeper(logsService, cfg.RetentionTenants, cfg.RetentionDays, cfg.RetentionCron, logger)
	if err != nil {
		return err
	}
	sweeper.Start()
	defer sweeper.Stop()

	// ================================
	// OPS HTTP SERVER
	// ================================

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Get("/ws/events", func(w http.ResponseWriter, req *http.Request) {
		ws.ServeWS(hub, w, req)
	})

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddress,
		Handler: r,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddress))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// ================================
	// GRACEFUL SHUTDOWN
	// ================================

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	cancel()
	logger.Info("stopped")
	return nil
}
