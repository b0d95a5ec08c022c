package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/agent-lilith/transform-pipeline/config"
	"github.com/agent-lilith/transform-pipeline/core/port/in"
	"github.com/agent-lilith/transform-pipeline/internal/bootstrap"
	"github.com/agent-lilith/transform-pipeline/pkg/logger"
)

func main() {
	logger.Init(logger.Config{
		Level:   logger.LevelInfo,
		Service: "transform-pipeline",
	})

	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found, using environment variables")
	}

	var (
		accountID = flag.Int64("account-id", 0, "limit the run to one account (0 = all accounts)")
		emailID   = flag.Int64("email-id", 0, "limit the run to one email (0 = selector-driven)")
		force     = flag.Bool("force", false, "re-transform emails that already have a transform_completed_at")
		batchSize = flag.Int("batch-size", 0, "emails per batch (0 = config default)")
		limit     = flag.Int("limit", 0, "cap the total number of emails selected (0 = no cap)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config: %v", err)
	}

	deps, cleanup, err := bootstrap.NewDependencies(cfg)
	if err != nil {
		logger.Fatal("initialize dependencies: %v", err)
	}
	defer cleanup()

	pipeline, err := bootstrap.NewPipeline(deps)
	if err != nil {
		logger.Fatal("initialize pipeline: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal, finishing the in-flight batch...")
		cancel()
	}()

	params := in.RunParams{Force: *force, BatchSize: *batchSize}
	if params.BatchSize == 0 {
		params.BatchSize = cfg.DefaultBatchSize
	}
	if *accountID != 0 {
		params.AccountID = accountID
	}
	if *emailID != 0 {
		params.EmailID = emailID
	}
	if *limit != 0 {
		params.Limit = limit
	}

	processed, err := pipeline.Run(ctx, params, reportProgress)
	if err != nil {
		logger.Fatal("transform run failed: %v", err)
	}
	logger.Info("transform run complete: %d emails processed", processed)
}

func reportProgress(p in.Progress) {
	fmt.Printf(
		"batch %d/%d: processed=%d failed=%d of %d total (full=%d chunked=%d, by_tier=%v)\n",
		p.BatchNum, p.TotalBatches, p.Processed, p.Failed, p.Total, p.BodyFull, p.BodyChunked, p.ByTier,
	)
}
