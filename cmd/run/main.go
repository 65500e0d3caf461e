package main

import (
	"context"
	"os"

	"github.com/levietanh/gitstar-crawler/cfg"
	"github.com/levietanh/gitstar-crawler/internal/crawler"
	"github.com/levietanh/gitstar-crawler/internal/model"
	"github.com/levietanh/gitstar-crawler/pkg/db"
	"github.com/levietanh/gitstar-crawler/pkg/log"
)

func main() {
	ctx := context.Background()
	logger, _ := log.NewCslLogger()

	loader, _ := cfg.NewViperLoader()
	config, err := loader.Load()
	if err != nil {
		logger.Error(ctx, "Failed to load config: %v", err)
		os.Exit(1)
	}

	mysql, _ := db.NewMysql(config)
	repoMd, _ := model.NewRepo(config, logger, mysql)
	releaseMd, _ := model.NewRelease(config, logger, mysql)

	// Migrate database
	if err := mysql.Migrate(repoMd, releaseMd); err != nil {
		logger.Error(ctx, "Failed to migrate database: %v", err)
		os.Exit(1)
	}

	starCrawler, err := crawler.FactoryCrawler("stars", logger, config, mysql)
	if err != nil {
		logger.Error(ctx, "Failed to create crawler: %v", err)
		os.Exit(1)
	}

	logger.Info(ctx, "Starting gitstar repository crawler")
	if starCrawler.Crawl() {
		logger.Info(ctx, "Successfully!")
	} else {
		logger.Error(ctx, "Failed!")
		os.Exit(1)
	}
}
