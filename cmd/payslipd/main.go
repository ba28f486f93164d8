// payslipd is the payslip processing daemon: it polls the jobs table and
// runs extraction, anomaly detection and account housekeeping jobs until
// interrupted.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rory-hayes/payslip-buddy-ai/internal/common"
	"github.com/rory-hayes/payslip-buddy-ai/internal/export"
	"github.com/rory-hayes/payslip-buddy-ai/internal/extract"
	"github.com/rory-hayes/payslip-buddy-ai/internal/llm"
	"github.com/rory-hayes/payslip-buddy-ai/internal/llm/gemini"
	"github.com/rory-hayes/payslip-buddy-ai/internal/llm/openai"
	"github.com/rory-hayes/payslip-buddy-ai/internal/ocr"
	"github.com/rory-hayes/payslip-buddy-ai/internal/pipeline"
	"github.com/rory-hayes/payslip-buddy-ai/internal/redact"
	"github.com/rory-hayes/payslip-buddy-ai/internal/repository"
	"github.com/rory-hayes/payslip-buddy-ai/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig(logger)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, pool, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("opening database", "error", err)
		os.Exit(1)
	}
	defer repository.Close(db, pool, logger)

	if err := repository.Migrate(ctx, db); err != nil {
		logger.Error("migrating schema", "error", err)
		os.Exit(1)
	}
	if err := repository.HealthCheck(ctx, db, 3*time.Second, logger); err != nil {
		logger.Error("database health check failed", "error", err)
		os.Exit(1)
	}

	store := repository.NewStore(db, logger)

	local, err := storage.NewLocal(cfg.Storage.Bucket, logger)
	if err != nil {
		logger.Error("opening storage", "error", err)
		os.Exit(1)
	}

	var ocrEngine extract.OCRExtractor = extract.NoopOCR{}
	if cfg.OCR.Enabled {
		ocrEngine = ocr.NewExtractor(ocr.Config{
			Pdftoppm:  cfg.OCR.Pdftoppm,
			Tesseract: cfg.OCR.Tesseract,
			Language:  cfg.OCR.Language,
			DPI:       cfg.OCR.DPI,
			MaxPages:  cfg.OCR.MaxPages,
		}, logger)
	}

	vision := buildVision(ctx, cfg, store, logger)

	dispatcher := &pipeline.QueueDispatcher{Store: store}
	extractExec := &pipeline.ExtractExecutor{
		Store:      store,
		Source:     local,
		Scanner:    pipeline.NoopScanner{},
		Text:       ocr.NewTextLayer("", logger),
		OCR:        ocrEngine,
		Vision:     vision,
		Renderer:   redact.NoopRenderer{},
		Dispatcher: dispatcher,
		OCROpts: extract.OCROptions{
			MaxPages: cfg.OCR.MaxPages,
			Language: cfg.OCR.Language,
			DPI:      cfg.OCR.DPI,
		},
		Logger: logger,
	}
	anomalyExec := &pipeline.AnomalyExecutor{Store: store, Logger: logger}
	housekeepingExec := &pipeline.HousekeepingExecutor{
		Store:    store,
		Exporter: export.NewService(logger),
		Sink:     local,
		Logger:   logger,
	}

	worker := &pipeline.Worker{
		Store:        store,
		Extract:      extractExec,
		Anomaly:      anomalyExec,
		Housekeeping: housekeepingExec,
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.Worker.PollInterval,
		Logger:       logger,
	}

	logger.Info("payslipd started", "llm_provider", cfg.LLM.Provider, "ocr_enabled", cfg.OCR.Enabled)
	if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("payslipd stopped")
}

// buildVision wires the configured provider behind the spend-cap meter.
// Provider "none" disables the LLM stage entirely.
func buildVision(ctx context.Context, cfg *common.Config, store *repository.Store, logger *slog.Logger) llm.VisionExtractor {
	var inner llm.VisionExtractor
	switch cfg.LLM.Provider {
	case "none":
		return nil
	case "gemini":
		client, err := gemini.NewClient(ctx, gemini.Config{
			APIKey: cfg.LLM.APIKey,
			Model:  cfg.LLM.Model,
		}, logger)
		if err != nil {
			logger.Error("gemini client unavailable, llm stage disabled", "error", err)
			return nil
		}
		inner = client
	default:
		inner = openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger)
	}
	return llm.NewMeteredExtractor(inner, store, cfg.LLM.Model, cfg.LLM.DailySpendCapUSD, logger)
}
