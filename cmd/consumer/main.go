package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/levietanh/gitstar-crawler/cfg"
	"github.com/levietanh/gitstar-crawler/internal/model"
	"github.com/levietanh/gitstar-crawler/pkg/db"
	"github.com/levietanh/gitstar-crawler/pkg/kafka"
	"github.com/levietanh/gitstar-crawler/pkg/log"
)

func main() {
	logger, _ := log.NewCslLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loader, _ := cfg.NewViperLoader()
	config, err := loader.Load()
	if err != nil {
		logger.Error(ctx, "Failed to load config: %v", err)
		os.Exit(1)
	}

	mysql, _ := db.NewMysql(config)
	repoModel, _ := model.NewRepo(config, logger, mysql)
	if err := mysql.Migrate(repoModel); err != nil {
		logger.Error(ctx, "Failed to migrate database: %v", err)
		os.Exit(1)
	}

	consumer, err := kafka.NewConsumer(config, logger, config.Kafka.Producer.TopicRepo, "repo-consumer-group")
	if err != nil {
		logger.Error(ctx, "Failed to create consumer: %v", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	startRepoConsumer(ctx, logger, consumer, repoModel)

	<-sigCh
	logger.Info(ctx, "Received shutdown signal, gracefully shutting down...")
	cancel()
}

func startRepoConsumer(ctx context.Context, logger log.Logger, consumer *kafka.Consumer, repoModel *model.Repo) {
	batchSize := 100
	batchTimeout := 5 * time.Second
	messages := make(chan model.RepoMessage, batchSize*2)

	go processBatchedRepos(ctx, messages, batchSize, batchTimeout, logger, repoModel)

	consumer.RegisterHandler("repo", func(data []byte) error {
		var repoMsg model.RepoMessage
		if err := json.Unmarshal(data, &repoMsg); err != nil {
			return fmt.Errorf("failed to unmarshal repo message: %w", err)
		}

		select {
		case messages <- repoMsg:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.Error(ctx, "Repo consumer error: %v", err)
		}
	}()
}

// processBatchedRepos flushes collected messages to the database whenever
// the batch fills up or the timeout elapses.
func processBatchedRepos(ctx context.Context, messages <-chan model.RepoMessage, batchSize int, batchTimeout time.Duration, logger log.Logger, repoModel *model.Repo) {
	var mu sync.Mutex
	batch := make([]model.RepoMessage, 0, batchSize)

	flush := func() {
		mu.Lock()
		if len(batch) == 0 {
			mu.Unlock()
			return
		}
		toSave := make([]model.RepoMessage, len(batch))
		copy(toSave, batch)
		batch = batch[:0]
		mu.Unlock()

		if err := repoModel.CreateBatch(toSave); err != nil {
			logger.Error(ctx, "Failed to batch upsert %d repos: %v", len(toSave), err)
			return
		}
		logger.Info(ctx, "Batch upserted %d repos", len(toSave))
	}

	ticker := time.NewTicker(batchTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-ticker.C:
			flush()
		case msg := <-messages:
			mu.Lock()
			batch = append(batch, msg)
			full := len(batch) >= batchSize
			mu.Unlock()
			if full {
				flush()
			}
		}
	}
}
