package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/forgeline-erp/forgeline-erp/internal/app"
	"github.com/forgeline-erp/forgeline-erp/internal/inventory"
	"github.com/forgeline-erp/forgeline-erp/internal/masterdata"
	"github.com/forgeline-erp/forgeline-erp/internal/platform/cache"
	"github.com/forgeline-erp/forgeline-erp/internal/platform/db"
	"github.com/forgeline-erp/forgeline-erp/internal/procurement"
	"github.com/forgeline-erp/forgeline-erp/internal/shared"
	"github.com/forgeline-erp/forgeline-erp/jobs"
)

// vendorDirectory adapts master data vendors to the procurement snapshot
// port. Inactive vendors cannot appear on new documents.
type vendorDirectory struct {
	service *masterdata.Service
}

func (v vendorDirectory) GetVendorSnapshot(ctx context.Context, id int64) (procurement.VendorSnapshot, error) {
	vendor, err := v.service.GetVendor(ctx, id)
	if err != nil {
		return procurement.VendorSnapshot{}, err
	}
	if !vendor.IsActive {
		return procurement.VendorSnapshot{}, fmt.Errorf("vendor %s is inactive: %w", vendor.Code, shared.ErrValidation)
	}
	contact := vendor.Contact
	if contact == "" {
		contact = strings.TrimSpace(vendor.Phone + " " + vendor.Email)
	}
	return procurement.VendorSnapshot{ID: vendor.ID, Name: vendor.Name, Contact: contact}, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis connect", slog.Any("error", err))
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	auditLogger := shared.NewAuditLogger(pool)

	masterdataRepo := masterdata.NewRepository(pool)
	materialCache := masterdata.NewMaterialCache(redisClient, cfg.CacheTTL)
	masterdataService := masterdata.NewService(masterdataRepo, materialCache, auditLogger)
	masterdataHandler := masterdata.NewHandler(logger, masterdataService)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger, inventory.ServiceConfig{
		AllowNegativeStock: cfg.AllowNegativeStock,
	})
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	queueClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()
	notifier := jobs.NewNotifier(queueClient, logger)

	procurementRepo := procurement.NewRepository(pool)
	procurementService := procurement.NewService(
		procurementRepo,
		masterdataService,
		vendorDirectory{service: masterdataService},
		inventory.NewLedger(cfg.AllowNegativeStock),
		notifier,
		auditLogger,
		procurement.ServiceConfig{
			AllowNegativeTotals: cfg.AllowNegativeTotals,
			AllowOverReceipt:    cfg.AllowOverReceipt,
			ReceiptRetryMax:     cfg.ReceiptRetryMax,
		},
	)
	procurementHandler := procurement.NewHandler(logger, procurementService)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Pool:               pool,
		MasterDataHandler:  masterdataHandler,
		InventoryHandler:   inventoryHandler,
		ProcurementHandler: procurementHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", slog.Any("error", err))
	}
}
