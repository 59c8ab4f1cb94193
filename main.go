package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"club-pos/internal/auth"
	"club-pos/internal/catalog"
	"club-pos/internal/config"
	"club-pos/internal/ledger"
	ledgerdb "club-pos/internal/ledger/db"
	"club-pos/internal/ledger/kafka"
	"club-pos/internal/ledger/sheet"
	"club-pos/internal/logger"
	"club-pos/internal/order"
	"club-pos/internal/pos_api"
	"club-pos/internal/receipt"
	"club-pos/internal/session"
)

func loadCatalog(cfg *config.Config, log *logger.Logger) *catalog.Catalog {
	if cfg.Order.CatalogFile == "" {
		log.Info("CATALOG", "Using built-in catalog")
		return catalog.Default(cfg.Order.MaxPerCategory)
	}
	cat, err := catalog.Load(cfg.Order.CatalogFile, cfg.Order.MaxPerCategory)
	if err != nil {
		log.Fatal("CATALOG", fmt.Sprintf("Failed to load catalog: %v", err))
	}
	log.Info("CATALOG", fmt.Sprintf("Loaded %d events and %d ticket categories from %s",
		len(cat.Events()), len(cat.Categories()), cfg.Order.CatalogFile))
	return cat
}

// setupLedger opens every configured ledger sink. The returned func closes them.
func setupLedger(ctx context.Context, cfg *config.Config, log *logger.Logger) (ledger.Sink, func()) {
	var (
		sinks   []ledger.Sink
		closers []func() error
	)

	if cfg.Ledger.DB.Driver != "" {
		ledgerDB, err := ledgerdb.Open(ctx, cfg.Ledger.DB.Driver, cfg.Ledger.DB.DSN, log)
		if err != nil {
			log.Fatal("DATABASE", err.Error())
		}
		if cfg.Ledger.DB.Migrations {
			if err := ledgerDB.Migrate(ctx, log); err != nil {
				log.Fatal("MIGRATE", fmt.Sprintf("Failed to migrate ledger schema: %v", err))
			}
			log.Info("MIGRATE", "Ledger schema is up to date")
		}
		sinks = append(sinks, ledgerDB)
		closers = append(closers, ledgerDB.Close)
	}

	if cfg.Ledger.Sheet.SpreadsheetID != "" {
		sheetSink, err := sheet.New(ctx, sheet.Config{
			SpreadsheetID:   cfg.Ledger.Sheet.SpreadsheetID,
			Range:           cfg.Ledger.Sheet.Range,
			CredentialsFile: cfg.Ledger.Sheet.CredentialsFile,
			Endpoint:        cfg.Ledger.Sheet.Endpoint,
		})
		if err != nil {
			log.Fatal("LEDGER", fmt.Sprintf("Failed to set up spreadsheet ledger: %v", err))
		}
		log.Info("LEDGER", fmt.Sprintf("Spreadsheet ledger enabled for %s", cfg.Ledger.Sheet.SpreadsheetID))
		sinks = append(sinks, sheetSink)
	}

	if cfg.Kafka.Enabled {
		log.Info("KAFKA", fmt.Sprintf("Using Kafka brokers: %v", cfg.Kafka.Brokers))
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.SalesTopic}, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.SalesTopic)
		log.Info("KAFKA", "Kafka producer initialized successfully")
		sinks = append(sinks, producer)
		closers = append(closers, producer.Close)
	}

	if len(sinks) == 0 {
		log.Warn("LEDGER", "No ledger configured, sales will not be recorded externally")
	}

	return ledger.Multi(sinks...), func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Error("LEDGER", fmt.Sprintf("Failed to close ledger sink: %v", err))
			}
		}
	}
}

func setupLimiter(cfg *config.Config, log *logger.Logger) (order.AttemptLimiter, func()) {
	if cfg.Auth.MaxAttempts <= 0 {
		log.Warn("AUTH", "Login attempt limiting disabled")
		return nil, func() {}
	}
	if cfg.Redis.Addr == "" {
		log.Info("AUTH", "Tracking login attempts in memory")
		return auth.NewMemoryLimiter(cfg.Auth.MaxAttempts, cfg.Auth.AttemptWindow), func() {}
	}

	client, err := auth.InitializeRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		log.Warn("AUTH", fmt.Sprintf("Redis unavailable, tracking login attempts in memory: %v", err))
		return auth.NewMemoryLimiter(cfg.Auth.MaxAttempts, cfg.Auth.AttemptWindow), func() {}
	}
	return auth.NewRedisLimiter(client, cfg.Auth.MaxAttempts, cfg.Auth.AttemptWindow), func() { client.Close() }
}

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Dir, "club-pos")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()
	log.SetLevel(logger.ParseLevel(cfg.Log.Level))

	log.Info("APP", "Starting club point of sale")
	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("Invalid configuration: %v", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat := loadCatalog(cfg, log)

	sink, closeLedger := setupLedger(ctx, cfg, log)
	defer closeLedger()

	limiter, closeLimiter := setupLimiter(cfg, log)
	defer closeLimiter()

	orderService := order.NewOrderService(cat, sink, limiter, log, order.Options{
		AccessSecret:         cfg.Auth.Password,
		RetainEventAfterSale: cfg.Order.RetainEventAfterSale,
		LedgerTimeout:        cfg.Ledger.Timeout,
	})

	tokens, err := auth.NewTokenIssuer([]byte(cfg.Auth.SigningKey), cfg.Auth.SessionTTL)
	if err != nil {
		log.Fatal("AUTH", err.Error())
	}

	sessions := session.NewStore(cfg.Auth.SessionTTL)
	go sessions.Run(ctx, time.Minute, func(removed int) {
		log.Debug("SESSION", fmt.Sprintf("Expired %d idle sessions", removed))
	})

	var receipts *receipt.Generator
	if cfg.Receipt.Secret != "" {
		receipts, err = receipt.NewGenerator(cfg.Receipt.Secret)
		if err != nil {
			log.Fatal("RECEIPT", err.Error())
		}
		log.Info("RECEIPT", "QR receipts enabled")
	}

	handler := pos_api.NewHandler(orderService, sessions, tokens, receipts, log)
	handler.TrustProxyHeaders = cfg.Server.TrustProxyHeaders

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Point of sale running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Point of sale shutdown complete")
	}
}
