package cfg

import "fmt"

type (
	App struct {
		Name    string
		Version string
	}

	Mysql struct {
		Host                  string
		Port                  string
		Username              string
		Password              string
		Database              string
		MaxIdleConnection     int
		MaxOpenConnection     int
		MaxLifeTimeConnection int
	}

	// Ranking covers the listing-site side: the page locator and the
	// repository harvester share the same base URL and retry policy.
	Ranking struct {
		BaseUrl           string
		TargetRank        int
		MaxPages          int
		MaxSearchPage     int
		Workers           int
		RequestTimeout    int
		MaxRetries        int
		RetryDelay        int
		RequestsPerSecond int
		JsonFile          string
		CsvFile           string
	}

	GithubApi struct {
		AccessToken       string
		ApiBaseUrl        string
		Workers           int
		BatchSize         int
		BatchDelay        int
		MinRateLimit      int
		RequestTimeout    int
		MaxRetries        int
		RetryDelay        int
		RequestsPerSecond int
	}

	KafkaProducer struct {
		TopicRepo string
	}

	Kafka struct {
		Brokers  []string
		Producer KafkaProducer
	}
)

type Config struct {
	App       App
	Mysql     Mysql
	Ranking   Ranking
	GithubApi GithubApi
	Kafka     Kafka
}

// Validate runs once at startup so the crawlers can assume a sane config.
func (c *Config) Validate() error {
	if c.Ranking.BaseUrl == "" {
		return fmt.Errorf("ranking base url is required")
	}
	if c.Ranking.TargetRank <= 0 {
		return fmt.Errorf("ranking target rank must be positive, got %d", c.Ranking.TargetRank)
	}
	if c.Ranking.MaxPages <= 0 {
		return fmt.Errorf("ranking max pages must be positive, got %d", c.Ranking.MaxPages)
	}
	if c.Ranking.MaxSearchPage <= 0 {
		return fmt.Errorf("ranking max search page must be positive, got %d", c.Ranking.MaxSearchPage)
	}
	if c.Ranking.Workers <= 0 {
		return fmt.Errorf("ranking workers must be positive, got %d", c.Ranking.Workers)
	}
	if c.GithubApi.ApiBaseUrl == "" {
		return fmt.Errorf("github api base url is required")
	}
	if c.GithubApi.Workers <= 0 {
		return fmt.Errorf("github api workers must be positive, got %d", c.GithubApi.Workers)
	}
	if c.GithubApi.BatchSize <= 0 {
		return fmt.Errorf("github api batch size must be positive, got %d", c.GithubApi.BatchSize)
	}
	return nil
}
