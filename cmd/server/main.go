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

	"github.com/mamadbah2/farmreport/internal/config"
	"github.com/mamadbah2/farmreport/internal/events"
	"github.com/mamadbah2/farmreport/internal/repository/cache"
	"github.com/mamadbah2/farmreport/internal/repository/memory"
	"github.com/mamadbah2/farmreport/internal/repository/mongodb"
	"github.com/mamadbah2/farmreport/internal/repository/sheets"
	"github.com/mamadbah2/farmreport/internal/scheduler"
	"github.com/mamadbah2/farmreport/internal/server/handlers"
	"github.com/mamadbah2/farmreport/internal/server/router"
	"github.com/mamadbah2/farmreport/internal/service/batch"
	"github.com/mamadbah2/farmreport/internal/service/entitlement"
	"github.com/mamadbah2/farmreport/internal/service/panels"
	"github.com/mamadbah2/farmreport/internal/service/reporting"
	"github.com/mamadbah2/farmreport/internal/service/sharing"
	whatsappclient "github.com/mamadbah2/farmreport/pkg/clients/whatsapp"
	"github.com/mamadbah2/farmreport/pkg/logger"
)

type eventStore interface {
	reporting.EventSource
	handlers.EventRecorder
}

// stores groups the persistence adapters, MongoDB or in-memory.
type stores struct {
	history   entitlement.HistoryStore
	batches   batch.Store
	rows      reporting.RowStore
	snapshots reporting.SnapshotStore
	configs   reporting.ConfigStore
	events    eventStore
	close     func(context.Context) error
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Server.LogLevel))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	st, err := openStores(startupCtx, cfg, baseLogger)
	if err != nil {
		baseLogger.Fatal("failed to init stores", zap.Error(err))
	}
	defer func() {
		if err := st.close(context.Background()); err != nil {
			baseLogger.Error("failed to close stores", zap.Error(err))
		}
	}()

	var tokenCache sharing.TokenCache
	if cfg.Redis.URL != "" {
		client, err := cache.Connect(startupCtx, cfg.Redis.URL)
		if err != nil {
			baseLogger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer func() { _ = client.Close() }()
		tokenCache = cache.NewShareCache(client)
		baseLogger.Info("redis share cache enabled")
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher, err := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		}, baseLogger.Named("events.kafka"))
		if err != nil {
			baseLogger.Fatal("failed to init kafka publisher", zap.Error(err))
		}
		publisher = kafkaPublisher
		baseLogger.Info("kafka batch events enabled", zap.String("topic", cfg.Kafka.Topic))
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			baseLogger.Error("failed to close publisher", zap.Error(err))
		}
	}()

	entitlementSvc := entitlement.NewService(st.history, baseLogger.Named("svc.entitlement"))
	reportingSvc := reporting.NewService(st.events, st.configs, st.rows, st.snapshots, panels.Default(), baseLogger.Named("svc.reporting"))
	coordinator := batch.NewCoordinator(st.batches, entitlementSvc, reportingSvc, publisher, cfg.Reporting.Workers, baseLogger.Named("svc.batch"))
	sharingSvc := sharing.NewService(st.snapshots, tokenCache, cfg.Reporting.ShareExpireDays, baseLogger.Named("svc.sharing"))

	reportHandler := handlers.NewReportHandler(coordinator, reportingSvc, sharingSvc, baseLogger.Named("handlers.reports"))
	farmHandler := handlers.NewFarmHandler(entitlementSvc, reportingSvc, st.events, baseLogger.Named("handlers.farms"))
	engine := router.New(reportHandler, farmHandler, baseLogger.Named("router"))

	var notifier scheduler.Notifier
	if cfg.WhatsApp.Enabled() {
		notifier = whatsappclient.NewClient(cfg.WhatsApp)
	} else {
		baseLogger.Warn("whatsapp token missing, batch summaries disabled")
	}

	sched := scheduler.NewScheduler(scheduler.Jobs(cfg.Reporting), coordinator, notifier, cfg.WhatsApp.NotifyTo, baseLogger.Named("scheduler"))
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
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

func openStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (stores, error) {
	var st stores
	st.close = func(context.Context) error { return nil }

	if cfg.MongoDB.URI != "" {
		repo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
		if err != nil {
			return stores{}, err
		}
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = repo.Close(ctx)
			return stores{}, err
		}
		st.history, st.batches, st.rows, st.snapshots, st.configs = repo, repo, repo, repo, repo
		st.close = repo.Close
		log.Info("mongodb stores enabled", zap.String("db", cfg.MongoDB.DBName))
	} else {
		reports := memory.NewReportStore()
		st.history = memory.NewEntitlementStore()
		st.batches = memory.NewBatchStore()
		st.rows, st.snapshots = reports, reports
		st.configs = memory.NewConfigStore()
		log.Warn("MONGODB_URI not set, using in-memory stores")
	}

	if cfg.Sheets.Enabled() {
		repo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, log.Named("repo.sheets"))
		if err != nil {
			_ = st.close(ctx)
			return stores{}, err
		}
		st.events = sheets.NewEventSource(repo, cfg.Sheets.EventsRange, log.Named("repo.sheets"))
	} else {
		st.events = memory.NewEventStore()
		log.Warn("GOOGLE_SHEET_DATABASE_ID not set, using in-memory events")
	}
	return st, nil
}
