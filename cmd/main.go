package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/pagopa/payment-notice-generator/internal/clients/pdfengine"
	"github.com/pagopa/payment-notice-generator/internal/data/repos/generation"
	"github.com/pagopa/payment-notice-generator/internal/db"
	"github.com/pagopa/payment-notice-generator/internal/events"
	apphttp "github.com/pagopa/payment-notice-generator/internal/http"
	httpH "github.com/pagopa/payment-notice-generator/internal/http/handlers"
	"github.com/pagopa/payment-notice-generator/internal/platform/cipher"
	"github.com/pagopa/payment-notice-generator/internal/platform/envutil"
	"github.com/pagopa/payment-notice-generator/internal/platform/logger"
	"github.com/pagopa/payment-notice-generator/internal/services"
	"github.com/pagopa/payment-notice-generator/internal/storage"
)

var version = "dev"

func main() {
	// Logger
	logMode := envutil.Str("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos from main...")
	folderRepo := generation.NewFolderRepo(thePG, log)
	errorRecordRepo := generation.NewErrorRecordRepo(thePG, log)

	// Clients and storage
	log.Info("Setting up storage and clients from main...")
	templateStorage, err := storage.NewTemplateStorage(log)
	if err != nil {
		log.Error("Could not init TemplateStorage", "error", err)
		os.Exit(1)
	}
	institutionStorage, err := storage.NewInstitutionStorage(log)
	if err != nil {
		log.Error("Could not init InstitutionStorage", "error", err)
		os.Exit(1)
	}
	noticeStorage, err := storage.NewNoticeStorage(log)
	if err != nil {
		log.Error("Could not init NoticeStorage", "error", err)
		os.Exit(1)
	}
	pdfEngine, err := pdfengine.NewClient(log)
	if err != nil {
		log.Error("Could not init PdfEngine client", "error", err)
		os.Exit(1)
	}
	dataCipher, err := cipher.NewFromEnv()
	if err != nil {
		log.Error("Could not init error data cipher", "error", err)
		os.Exit(1)
	}
	publisher, err := events.NewPublisher(log)
	if err != nil {
		log.Error("Could not init event publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	// Services
	log.Info("Setting up services from main...")
	ledger := services.NewErrorLedger(log, folderRepo, errorRecordRepo, publisher, dataCipher)
	generationService := services.NewGenerationService(
		log,
		folderRepo,
		templateStorage,
		institutionStorage,
		noticeStorage,
		pdfEngine,
		ledger,
		publisher,
	)

	// Consumer
	consumer, err := events.NewConsumer(log, generationService.ProcessMessage)
	if err != nil {
		log.Error("Could not init event consumer", "error", err)
		os.Exit(1)
	}

	// Handlers and router
	log.Info("Setting up router from main...")
	server := apphttp.NewServer(apphttp.RouterConfig{
		Log:           log,
		NoticeHandler: httpH.NewNoticeHandler(log, generationService, templateStorage),
		HealthHandler: httpH.NewHealthHandler(),
		InfoHandler:   httpH.NewInfoHandler(version),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return consumer.Start(ctx)
	})
	group.Go(func() error {
		port := envutil.Str("PORT", "8080")
		log.Info("Server listening", "port", port)
		return server.Run(":" + port)
	})

	if err := group.Wait(); err != nil && ctx.Err() == nil {
		log.Error("Service stopped", "error", err)
		os.Exit(1)
	}
	log.Info("Service shut down")
}
