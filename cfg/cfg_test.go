package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockLoaderValidates(t *testing.T) {
	loader, err := NewMockLoader()
	require.NoError(t, err)

	config, err := loader.Load()
	require.NoError(t, err)
	require.NoError(t, config.Validate())

	assert.Equal(t, 5000, config.Ranking.TargetRank)
	assert.Equal(t, 50, config.Ranking.MaxPages)
	assert.Equal(t, 10, config.GithubApi.BatchSize)
}

func TestValidateRejectsBadFields(t *testing.T) {
	base := func(t *testing.T) *Config {
		t.Helper()
		loader, err := NewMockLoader()
		require.NoError(t, err)
		config, err := loader.Load()
		require.NoError(t, err)
		return config
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing base url", func(c *Config) { c.Ranking.BaseUrl = "" }},
		{"zero target rank", func(c *Config) { c.Ranking.TargetRank = 0 }},
		{"negative max pages", func(c *Config) { c.Ranking.MaxPages = -1 }},
		{"zero search bound", func(c *Config) { c.Ranking.MaxSearchPage = 0 }},
		{"zero ranking workers", func(c *Config) { c.Ranking.Workers = 0 }},
		{"missing api base url", func(c *Config) { c.GithubApi.ApiBaseUrl = "" }},
		{"zero api workers", func(c *Config) { c.GithubApi.Workers = 0 }},
		{"zero batch size", func(c *Config) { c.GithubApi.BatchSize = 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			config := base(t)
			tc.mutate(config)
			assert.Error(t, config.Validate())
		})
	}
}
