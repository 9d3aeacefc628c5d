package main

import (
	"context"
	"os"
	"time"

	"hearth/internal/amqp"
	"hearth/internal/cli"
	"hearth/internal/sheets"
	gsheet "hearth/internal/sheets/google"
	mem "hearth/internal/sheets/memory"
	"hearth/internal/worker"
)

func main() {
	logger := cli.SetupLogger()
	cli.LoadEnvFile()

	logger.Info("Starting hearth-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	var ledger sheets.LedgerWriter
	switch cfg.LedgerExport {
	case "sheets":
		client, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		ledger = client
		logger.Info("Google Sheets ledger export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	case "memory":
		ledger = mem.NewLedger()
		logger.Info("In-memory ledger export enabled")
	default:
		logger.Info("Ledger export disabled")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	activity := worker.NewActivityWorker(repo, ledger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	go func() {
		if err := amqpClient.ConsumeEvents(ctx, activity.HandleEvent); err != nil && err != context.Canceled {
			logger.Error("Event consumption failed", "error", err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
