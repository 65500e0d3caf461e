package locator

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/levietanh/gitstar-crawler/cfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const perPage = 100

// rankedListingServer serves listing pages carrying ranks 1..totalRanks,
// perPage per page. Pages past the data return an empty listing.
func rankedListingServer(t *testing.T, totalRanks int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}
		first := (page-1)*perPage + 1
		last := page * perPage
		if last > totalRanks {
			last = totalRanks
		}

		var b strings.Builder
		b.WriteString("<html><body>")
		for rank := first; rank <= last; rank++ {
			fmt.Fprintf(&b, `<div class="list-group-item paginated_item"><a href="/user%d/repo%d"><span class="name">%d. repo</span></a></div>`,
				rank, rank, rank)
		}
		b.WriteString("</body></html>")
		fmt.Fprint(w, b.String())
	}))
}

func testConfig(t *testing.T, baseUrl string) *cfg.Config {
	t.Helper()
	loader, err := cfg.NewMockLoader()
	require.NoError(t, err)
	config, err := loader.Load()
	require.NoError(t, err)

	config.Ranking.BaseUrl = baseUrl
	config.Ranking.MaxRetries = 0
	config.Ranking.RetryDelay = 0
	return config
}

func TestFindTargetPageExactMatch(t *testing.T) {
	server := rankedListingServer(t, 10000)
	defer server.Close()

	config := testConfig(t, server.URL)
	config.Ranking.TargetRank = 5000

	finder, err := NewPageFinder(testLogger(t), config)
	require.NoError(t, err)

	page, rr, err := finder.FindTargetPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50, page)
	assert.Equal(t, 4901, rr.First)
	assert.Equal(t, 5000, rr.Last)
	assert.True(t, rr.Contains(config.Ranking.TargetRank))
}

func TestFindTargetPageMatchOnProbedPage(t *testing.T) {
	// Every page carries ranks 4999-5002, so the very first probe both
	// derives the range and reports a match for target 5000.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder
		b.WriteString("<html><body>")
		for i, full := range []string{"a/x", "b/x", "c/y", "d/y"} {
			fmt.Fprintf(&b, `<div class="list-group-item paginated_item"><a href="/%s"><span class="name">%d. repo</span></a></div>`,
				full, 4999+i)
		}
		b.WriteString("</body></html>")
		fmt.Fprint(w, b.String())
	}))
	defer server.Close()

	config := testConfig(t, server.URL)
	config.Ranking.TargetRank = 5000

	finder, err := NewPageFinder(testLogger(t), config)
	require.NoError(t, err)

	_, rr, err := finder.FindTargetPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4999, rr.First)
	assert.Equal(t, 5002, rr.Last)
	assert.True(t, rr.Contains(5000))
}

func TestFindTargetPageBestEffort(t *testing.T) {
	// Only 2000 ranks exist; the target 5000 is past the data. The search
	// must terminate and fall back to the last valid probed page.
	server := rankedListingServer(t, 2000)
	defer server.Close()

	config := testConfig(t, server.URL)
	config.Ranking.TargetRank = 5000

	finder, err := NewPageFinder(testLogger(t), config)
	require.NoError(t, err)

	page, rr, err := finder.FindTargetPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, page)
	assert.Equal(t, 1901, rr.First)
	assert.Equal(t, 2000, rr.Last)
	assert.False(t, rr.Contains(config.Ranking.TargetRank))
}

func TestFindTargetPageNoValidPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>no items</body></html>")
	}))
	defer server.Close()

	config := testConfig(t, server.URL)
	config.Ranking.MaxSearchPage = 8

	finder, err := NewPageFinder(testLogger(t), config)
	require.NoError(t, err)

	_, _, err = finder.FindTargetPage(context.Background())
	assert.Error(t, err)
}

func TestFetchPageRetriesTransientFailure(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "<html><body>ok</body></html>")
	}))
	defer server.Close()

	config := testConfig(t, server.URL)
	config.Ranking.MaxRetries = 2

	finder, err := NewPageFinder(testLogger(t), config)
	require.NoError(t, err)

	body, err := finder.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	assert.Contains(t, body, "ok")
	assert.Equal(t, 2, calls)
}
