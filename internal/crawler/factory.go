package crawler

import (
	"context"
	"fmt"

	"github.com/levietanh/gitstar-crawler/cfg"
	"github.com/levietanh/gitstar-crawler/internal/model"
	"github.com/levietanh/gitstar-crawler/pkg/db"
	"github.com/levietanh/gitstar-crawler/pkg/kafka"
	"github.com/levietanh/gitstar-crawler/pkg/log"
)

// FactoryCrawler wires up one of the two harvesters against MySQL. Kafka
// publishing is enabled for the star crawler only when brokers are
// configured.
func FactoryCrawler(kind string, logger log.Logger, config *cfg.Config, mysql *db.Mysql) (Crawler, error) {
	switch kind {
	case "stars":
		repoMd, err := model.NewRepo(config, logger, mysql)
		if err != nil {
			return nil, fmt.Errorf("failed to create repo model: %w", err)
		}

		var producer *kafka.Producer
		if len(config.Kafka.Brokers) > 0 {
			producer, err = kafka.NewProducer(config, logger, config.Kafka.Producer.TopicRepo)
			if err != nil {
				logger.Warn(context.Background(), "Kafka producer disabled: %v", err)
				producer = nil
			}
		}

		return NewStarCrawler(logger, config, repoMd, producer)

	case "releases":
		repoMd, err := model.NewRepo(config, logger, mysql)
		if err != nil {
			return nil, fmt.Errorf("failed to create repo model: %w", err)
		}
		releaseMd, err := model.NewRelease(config, logger, mysql)
		if err != nil {
			return nil, fmt.Errorf("failed to create release model: %w", err)
		}
		return NewReleaseCrawler(logger, config, repoMd, releaseMd)

	default:
		return nil, fmt.Errorf("unsupported crawler kind: %s", kind)
	}
}
