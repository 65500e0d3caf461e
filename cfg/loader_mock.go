package cfg

type MockLoader struct{}

func NewMockLoader() (*MockLoader, error) {
	return &MockLoader{}, nil
}

func (yl *MockLoader) Load() (*Config, error) {
	return &Config{
		// App
		App: App{
			Name:    "gitstar-crawler",
			Version: "0.0.1",
		},

		// Mysql
		Mysql: Mysql{
			Host:                  "127.0.0.1",
			Password:              "root",
			Username:              "root",
			Port:                  "3306",
			Database:              "github_data",
			MaxIdleConnection:     10,
			MaxOpenConnection:     100,
			MaxLifeTimeConnection: 3600,
		},

		// Ranking site
		Ranking: Ranking{
			BaseUrl:           "https://gitstar-ranking.com/repositories",
			TargetRank:        5000,
			MaxPages:          50,
			MaxSearchPage:     100,
			Workers:           4,
			RequestTimeout:    30,
			MaxRetries:        3,
			RetryDelay:        2,
			RequestsPerSecond: 10,
			JsonFile:          "output/github_repos.json",
			CsvFile:           "output/github_repos.csv",
		},

		// GithubApi
		GithubApi: GithubApi{
			AccessToken:       "",
			ApiBaseUrl:        "https://api.github.com",
			Workers:           4,
			BatchSize:         10,
			BatchDelay:        1,
			MinRateLimit:      10,
			RequestTimeout:    30,
			MaxRetries:        3,
			RetryDelay:        2,
			RequestsPerSecond: 10,
		},

		// Kafka is optional, no brokers by default
		Kafka: Kafka{
			Brokers: nil,
			Producer: KafkaProducer{
				TopicRepo: "gitstar.repos",
			},
		},
	}, nil
}
