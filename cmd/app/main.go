package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docstream/internal/config"
	"docstream/internal/infra/api/apiv1"
	pg "docstream/internal/infra/db/postgres"
	httpapi "docstream/internal/infra/http"
	"docstream/internal/infra/logging"
	"docstream/internal/infra/metrics"
	"docstream/internal/infra/ocr"
	red "docstream/internal/infra/redis"
	"docstream/internal/infra/security"
	"docstream/internal/infra/worker"
	"docstream/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logging)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	tm := pg.NewTxManager(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()
	bus := red.NewEventBus(redisClient, logger)
	signals := red.NewBatchSignals(redisClient, cfg.Redis.TTL)
	locker := red.NewRunLock(redisClient)

	// ---- Encryption ----
	encKey := cfg.Security.EncryptionKey
	if len(encKey) != 32 {
		logger.Warn().Msg("security.encryption_key not set or not 32 bytes; falling back to dev key (INSECURE)")
		encKey = "0123456789abcdef0123456789abcdef"
	}
	encSvc, err := security.NewEncryptionService(encKey)
	if err != nil {
		log.Fatalf("encryption: %v", err)
	}

	// ---- Repositories ----
	jobRepo := pg.NewJobRepo(pool, tm, cfg.Worker.MaxRetries)
	docRepo := pg.NewDocumentRepo(pool)
	tagRepo := pg.NewTagRepo(pool)
	settingRepo := pg.NewSettingRepo(pool)

	// ---- OCR toolchain ----
	pdf := ocr.NewFitzToolkit()
	recognizer := ocr.NewTesseractRecognizer(cfg.OCR.Language)
	runner := ocr.NewOCRmyPDFRunner(cfg.OCR.Language, cfg.OCR.DPI)

	// ---- Use cases ----
	settingsUC := usecase.NewSettingsUseCase(settingRepo, encSvc, cfg.AI, logger)
	tracker := usecase.NewJobTracker(jobRepo, docRepo, bus, logger)
	dispatcher := worker.NewQueueDispatcher(logger)
	chainer := usecase.NewPipelineChainer(jobRepo, dispatcher, settingsUC, logger)
	extractionUC := usecase.NewExtractionUseCase(
		docRepo, tracker, pdf, recognizer, runner, signals, chainer, logger,
		cfg.Storage.UploadDir, cfg.OCR.PollInterval)
	classifyUC := usecase.NewClassificationUseCase(
		docRepo, tagRepo, tracker, settingsUC, pdf, bus, logger, cfg.Storage.UploadDir)
	organizeUC := usecase.NewOrganizeUseCase(docRepo, tracker, bus, logger, cfg.Storage.UploadDir)
	batchUC := usecase.NewBatchUseCase(
		docRepo, extractionUC, classifyUC, signals, locker, bus, logger,
		cfg.Storage.UploadDir, cfg.Redis.TTL)

	// ---- Worker pool ----
	pool2 := worker.NewPool(cfg.Worker.Count, logger)
	pool2.Start(ctx)
	defer pool2.Stop()
	processor := worker.NewJobProcessor(
		jobRepo, extractionUC, classifyUC, organizeUC, tracker, logger,
		cfg.Worker.PollEvery, cfg.Worker.MaxRetries, cfg.Worker.RetryDelay)
	go processor.Start(ctx, pool2)

	// ---- HTTP ----
	api := apiv1.NewServer(jobRepo, dispatcher, batchUC, settingsUC, logger)
	srv := httpapi.NewServer(cfg, api, pool, redisClient, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
}
