package crawler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/levietanh/gitstar-crawler/cfg"
	"github.com/levietanh/gitstar-crawler/internal/extractor"
	"github.com/levietanh/gitstar-crawler/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepoStore struct {
	mu    sync.Mutex
	repos []*model.Repo
	fail  bool
}

func (s *fakeRepoStore) Upsert(repo *model.Repo) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return 0, fmt.Errorf("storage unavailable")
	}
	s.repos = append(s.repos, repo)
	return len(s.repos), nil
}

func (s *fakeRepoStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.repos)
}

func listingPage(firstRank, count int) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < count; i++ {
		rank := firstRank + i
		fmt.Fprintf(&b, `<div class="list-group-item paginated_item"><a href="/user%d/repo%d"><span class="name">%d. repo</span><span class="stargazers_count">%d</span></a></div>`,
			rank, rank, rank, 100000-rank)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func starTestConfig(t *testing.T, baseUrl string) *cfg.Config {
	t.Helper()
	loader, err := cfg.NewMockLoader()
	require.NoError(t, err)
	config, err := loader.Load()
	require.NoError(t, err)

	dir := t.TempDir()
	config.Ranking.BaseUrl = baseUrl
	config.Ranking.MaxPages = 3
	config.Ranking.MaxSearchPage = 4
	config.Ranking.Workers = 2
	config.Ranking.MaxRetries = 1
	config.Ranking.RetryDelay = 0
	config.Ranking.RequestsPerSecond = 1000
	config.Ranking.JsonFile = filepath.Join(dir, "repos.json")
	config.Ranking.CsvFile = filepath.Join(dir, "repos.csv")
	return config
}

func TestStarCrawlerHarvestsAndSorts(t *testing.T) {
	const perPage = 4
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 || page > 3 {
			fmt.Fprint(w, "<html><body></body></html>")
			return
		}
		fmt.Fprint(w, listingPage((page-1)*perPage+1, perPage))
	}))
	defer server.Close()

	config := starTestConfig(t, server.URL)
	config.Ranking.TargetRank = 6

	store := &fakeRepoStore{}
	sc, err := NewStarCrawler(testLogger(t), config, store, nil)
	require.NoError(t, err)

	require.True(t, sc.Crawl())

	// Every parsed record was upserted as it was produced.
	assert.Equal(t, 12, store.count())

	// The JSON output is sorted by rank.
	data, err := os.ReadFile(config.Ranking.JsonFile)
	require.NoError(t, err)
	var records []extractor.RepoRecord
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 12)
	for i, rec := range records {
		assert.Equal(t, i+1, rec.Rank)
	}

	// The CSV output has a header plus one row per record.
	csvData, err := os.ReadFile(config.Ranking.CsvFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csvData)), "\n")
	assert.Len(t, lines, 13)
	assert.True(t, strings.HasPrefix(lines[0], "rank,user,name,full_name,stars"))
}

func TestStarCrawlerFailedPageDegrades(t *testing.T) {
	const perPage = 3
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if page < 1 || page > 3 {
			fmt.Fprint(w, "<html><body></body></html>")
			return
		}
		fmt.Fprint(w, listingPage((page-1)*perPage+1, perPage))
	}))
	defer server.Close()

	config := starTestConfig(t, server.URL)
	config.Ranking.TargetRank = 5

	store := &fakeRepoStore{}
	sc, err := NewStarCrawler(testLogger(t), config, store, nil)
	require.NoError(t, err)

	// Page 2 fails permanently; pages 1 and 3 still get harvested.
	require.True(t, sc.Crawl())
	assert.Equal(t, 6, store.count())

	data, err := os.ReadFile(config.Ranking.JsonFile)
	require.NoError(t, err)
	var records []extractor.RepoRecord
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 6)

	ranks := make([]int, 0, len(records))
	for _, rec := range records {
		ranks = append(ranks, rec.Rank)
	}
	assert.Equal(t, []int{1, 2, 3, 7, 8, 9}, ranks)
}

func TestStarCrawlerStorageFailureContinues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listingPage(1, 2))
	}))
	defer server.Close()

	config := starTestConfig(t, server.URL)
	config.Ranking.MaxPages = 1
	config.Ranking.TargetRank = 1

	store := &fakeRepoStore{fail: true}
	sc, err := NewStarCrawler(testLogger(t), config, store, nil)
	require.NoError(t, err)

	// Storage failures are logged per record; the harvest itself still
	// completes and writes the flat output.
	require.True(t, sc.Crawl())
	assert.Equal(t, 0, store.count())

	_, err = os.Stat(config.Ranking.JsonFile)
	assert.NoError(t, err)
}

func TestStarCrawlerAllPagesEmptyFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body></body></html>")
	}))
	defer server.Close()

	config := starTestConfig(t, server.URL)

	store := &fakeRepoStore{}
	sc, err := NewStarCrawler(testLogger(t), config, store, nil)
	require.NoError(t, err)

	assert.False(t, sc.Crawl())
}
