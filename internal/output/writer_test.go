package output

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/levietanh/gitstar-crawler/cfg"
	"github.com/levietanh/gitstar-crawler/internal/extractor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWriter(t *testing.T) (*Writer, *cfg.Config) {
	t.Helper()
	loader, err := cfg.NewMockLoader()
	require.NoError(t, err)
	config, err := loader.Load()
	require.NoError(t, err)

	dir := t.TempDir()
	config.Ranking.JsonFile = filepath.Join(dir, "out", "repos.json")
	config.Ranking.CsvFile = filepath.Join(dir, "out", "repos.csv")

	w, err := NewWriter(testLogger(t), config)
	require.NoError(t, err)
	return w, config
}

func sampleRecords() []extractor.RepoRecord {
	return []extractor.RepoRecord{
		{
			Rank:        1,
			User:        "alice",
			Name:        "toolkit",
			FullName:    "alice/toolkit",
			Stars:       420000,
			Description: "Utilities & helpers <for> everyone",
			Language:    "Go",
			AvatarUrl:   "https://example.com/a.png",
			RepoUrl:     "https://example.com/alice/toolkit",
		},
		{
			Rank:        2,
			User:        "bob",
			Name:        "widgets",
			FullName:    "bob/widgets",
			Stars:       310000,
			Description: "No description available",
			Language:    "Rust",
		},
	}
}

func TestWriteAllRoundTrip(t *testing.T) {
	w, config := testWriter(t)
	records := sampleRecords()

	require.NoError(t, w.WriteAll(context.Background(), records))

	data, err := os.ReadFile(config.Ranking.JsonFile)
	require.NoError(t, err)

	var got []extractor.RepoRecord
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, records, got)

	// HTML characters survive unescaped.
	assert.Contains(t, string(data), "<for>")

	f, err := os.Open(config.Ranking.CsvFile)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"rank", "user", "name", "full_name", "stars", "description", "language", "avatar_url", "repo_url"}, rows[0])
	assert.Equal(t, "alice/toolkit", rows[1][3])
	assert.Equal(t, "310000", rows[2][4])
}

func TestWriteJSONEmptyList(t *testing.T) {
	w, config := testWriter(t)

	require.NoError(t, w.WriteJSON(context.Background(), []extractor.RepoRecord{}))

	data, err := os.ReadFile(config.Ranking.JsonFile)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestWriteCreatesOutputDir(t *testing.T) {
	w, config := testWriter(t)

	require.NoError(t, w.WriteCSV(context.Background(), sampleRecords()))

	info, err := os.Stat(filepath.Dir(config.Ranking.CsvFile))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
