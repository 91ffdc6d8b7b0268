package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/shopledger/internal/config"
	"github.com/mamadbah2/shopledger/internal/domain/models"
	"github.com/mamadbah2/shopledger/internal/events"
	"github.com/mamadbah2/shopledger/internal/repository"
	"github.com/mamadbah2/shopledger/internal/repository/memory"
	"github.com/mamadbah2/shopledger/internal/repository/mongodb"
	"github.com/mamadbah2/shopledger/internal/repository/sheets"
	"github.com/mamadbah2/shopledger/internal/scheduler"
	"github.com/mamadbah2/shopledger/internal/server/handlers"
	"github.com/mamadbah2/shopledger/internal/server/router"
	commandsvc "github.com/mamadbah2/shopledger/internal/service/commands"
	"github.com/mamadbah2/shopledger/internal/service/ledger"
	reportingsvc "github.com/mamadbah2/shopledger/internal/service/reporting"
	whatsappsvc "github.com/mamadbah2/shopledger/internal/service/whatsapp"
	amqpclient "github.com/mamadbah2/shopledger/pkg/clients/amqp"
	whatsappclient "github.com/mamadbah2/shopledger/pkg/clients/whatsapp"
	"github.com/mamadbah2/shopledger/pkg/logger"
)

// systemUser owns the long-lived session the scheduler reports from.
const systemUser = "system"

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	location, err := cfg.Reporting.Location()
	if err != nil {
		baseLogger.Fatal("failed to load report timezone", zap.Error(err))
	}

	retry := repository.RetryPolicy{Initial: cfg.Store.RetryInitial, Max: cfg.Store.RetryMax}

	var (
		stores      ledger.Stores
		reportStore scheduler.ReportStore
	)
	switch cfg.Store.Backend {
	case config.BackendMemory:
		store := memory.NewStore(baseLogger.Named("repo.memory"))
		stores = ledger.Stores{
			Expenses:    memory.NewCollection[models.Expense](store, repository.CollectionExpenses),
			Revenue:     memory.NewCollection[models.RevenueEntry](store, repository.CollectionRevenue),
			Stock:       memory.NewCollection[models.StockItem](store, repository.CollectionStock),
			Consumables: memory.NewCollection[models.ConsumableItem](store, repository.CollectionConsumables),
		}
		baseLogger.Warn("using in-memory record store, data is lost on restart")
	default:
		mongoRepo, err := mongodb.NewMongoDBRepository(context.Background(), cfg.MongoDB.URI, cfg.MongoDB.DBName, retry, baseLogger.Named("repo.mongodb"))
		if err != nil {
			baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
		}
		defer func() {
			if err := mongoRepo.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}()
		stores = ledger.Stores{
			Expenses:    mongodb.NewCollection[models.Expense](mongoRepo, repository.CollectionExpenses),
			Revenue:     mongodb.NewCollection[models.RevenueEntry](mongoRepo, repository.CollectionRevenue),
			Stock:       mongodb.NewCollection[models.StockItem](mongoRepo, repository.CollectionStock),
			Consumables: mongodb.NewCollection[models.ConsumableItem](mongoRepo, repository.CollectionConsumables),
		}
		reportStore = mongoRepo
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.Events.URL != "" {
		broker, err := amqpclient.NewClient(cfg.Events.URL, cfg.Events.Exchange, baseLogger.Named("client.amqp"))
		if err != nil {
			baseLogger.Fatal("failed to connect to event broker", zap.Error(err))
		}
		defer func() {
			if err := broker.Close(); err != nil {
				baseLogger.Error("failed to close event broker", zap.Error(err))
			}
		}()
		publisher = events.NewAMQPPublisher(broker)
		baseLogger.Info("record events enabled", zap.String("exchange", cfg.Events.Exchange))
	}

	sessionLogger := baseLogger.Named("svc.ledger")
	sessionOpts := ledger.Options{
		Private:   cfg.Store.Private,
		Publisher: publisher,
		Logger:    sessionLogger,
		OnError: func(collection string, err error) {
			sessionLogger.Warn("subscription interrupted", zap.String("collection", collection), zap.Error(err))
		},
	}
	manager := ledger.NewManager(stores, sessionOpts)
	defer manager.Close()

	// Reports cover the whole shop even when user sessions are private.
	systemOpts := sessionOpts
	systemOpts.Private = false
	systemSession, err := ledger.Open(context.Background(), ledger.Principal{UserID: systemUser, DisplayName: "Scheduler"}, stores, systemOpts)
	if err != nil {
		baseLogger.Fatal("failed to open system session", zap.Error(err))
	}
	defer systemSession.Close()
	reportingSvc := reportingsvc.NewService(systemSession, location, baseLogger.Named("svc.reporting"))

	var mirror scheduler.ReportMirror
	if cfg.Sheets.Enabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(context.Background(), cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		mirror = sheets.NewDailyMirror(sheetsRepo)
	} else {
		baseLogger.Warn("google sheets spreadsheet id missing, daily mirror disabled")
	}

	var (
		messagingSvc   whatsappsvc.MessagingService
		webhookHandler *handlers.WebhookHandler
	)
	if cfg.WhatsApp.Enabled() {
		dispatcher := commandsvc.NewService(manager, cfg.WhatsApp.AllowedSenders, location, baseLogger.Named("svc.commands"))
		whatsClient := whatsappclient.NewClient(cfg.WhatsApp)
		metaSvc := whatsappsvc.NewMetaWhatsAppService(cfg.WhatsApp, whatsClient, dispatcher, baseLogger.Named("svc.whatsapp"))
		messagingSvc = metaSvc
		webhookHandler = handlers.NewWebhookHandler(metaSvc, baseLogger.Named("handlers.whatsapp"))
	} else {
		baseLogger.Warn("whatsapp access token missing, chat commands and notifications disabled")
	}

	ledgerHandler := handlers.NewLedgerHandler(manager, location, baseLogger.Named("handlers.ledger"))
	engine := router.New(ledgerHandler, webhookHandler, baseLogger.Named("router"))

	sched, err := scheduler.NewScheduler(*cfg, reportingSvc, reportStore, mirror, messagingSvc, baseLogger.Named("scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("backend", cfg.Store.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
