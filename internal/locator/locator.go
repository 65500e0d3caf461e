// Package locator binary-searches the ranking site's pages for the one
// whose rank range contains a target rank.
package locator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/levietanh/gitstar-crawler/cfg"
	"github.com/levietanh/gitstar-crawler/internal/extractor"
	"github.com/levietanh/gitstar-crawler/pkg/log"
)

// RankRange is the (first, last) rank parsed from one listing page. The
// first and last extracted items are used directly; the upstream listing is
// ordered by rank, which this system treats as an invariant of the source.
type RankRange struct {
	First int
	Last  int
}

// Contains reports whether the target rank falls inside the range.
func (r RankRange) Contains(rank int) bool {
	return r.First <= rank && rank <= r.Last
}

type PageFinder struct {
	Logger log.Logger
	Config *cfg.Config
	client *http.Client
}

func NewPageFinder(logger log.Logger, config *cfg.Config) (*PageFinder, error) {
	return &PageFinder{
		Logger: logger,
		Config: config,
		client: &http.Client{
			Timeout: time.Duration(config.Ranking.RequestTimeout) * time.Second,
		},
	}, nil
}

// FetchPage downloads one listing page, retrying transient failures with
// exponential backoff up to the configured retry budget.
func (f *PageFinder) FetchPage(ctx context.Context, page int) (string, error) {
	pageUrl := fmt.Sprintf("%s?page=%d", f.Config.Ranking.BaseUrl, page)

	var lastErr error
	delay := time.Duration(f.Config.Ranking.RetryDelay) * time.Second
	for attempt := 0; attempt <= f.Config.Ranking.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		body, err := f.fetchOnce(ctx, pageUrl)
		if err == nil {
			return body, nil
		}
		lastErr = err
		f.Logger.Warn(ctx, "Fetch page %d attempt %d failed: %v", page, attempt+1, err)
	}
	return "", fmt.Errorf("fetch page %d: %w", page, lastErr)
}

func (f *PageFinder) fetchOnce(ctx context.Context, pageUrl string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageUrl, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// rankRange parses a page and derives its rank range from the first and
// last extracted records. ok is false for an empty or unparsable page.
func (f *PageFinder) rankRange(pageHtml string) (RankRange, bool) {
	records, err := extractor.ParsePage(pageHtml, f.Config.Ranking.BaseUrl)
	if err != nil || len(records) == 0 {
		return RankRange{}, false
	}
	return RankRange{First: records[0].Rank, Last: records[len(records)-1].Rank}, true
}

// FindTargetPage binary-searches pages 1..MaxSearchPage for the page whose
// rank range contains the configured target rank. The first page that
// contains the target terminates the search. Empty or failing probes narrow
// the search downward. When the search range is exhausted without an exact
// hit, the last valid probed page is returned as a best-effort match; an
// error is returned only when no probe yielded records at all.
func (f *PageFinder) FindTargetPage(ctx context.Context) (int, RankRange, error) {
	target := f.Config.Ranking.TargetRank
	left, right := 1, f.Config.Ranking.MaxSearchPage

	bestPage := -1
	var bestRange RankRange

	f.Logger.Info(ctx, "Starting binary search for repository rank %d", target)

	for left <= right {
		mid := (left + right) / 2

		pageHtml, err := f.FetchPage(ctx, mid)
		if err != nil {
			f.Logger.Error(ctx, "Error processing page %d: %v", mid, err)
			right = mid - 1
			continue
		}

		rr, ok := f.rankRange(pageHtml)
		if !ok {
			// Page is empty or invalid, try lower pages
			right = mid - 1
			continue
		}

		f.Logger.Info(ctx, "Page %d: first rank=%d, last rank=%d", mid, rr.First, rr.Last)
		bestPage, bestRange = mid, rr

		if rr.Contains(target) {
			f.Logger.Info(ctx, "Found target page %d with ranks %d-%d", mid, rr.First, rr.Last)
			return mid, rr, nil
		}
		if target < rr.First {
			right = mid - 1
		} else {
			left = mid + 1
		}
	}

	if bestPage == -1 {
		return 0, RankRange{}, fmt.Errorf("no valid listing page found for rank %d", target)
	}

	f.Logger.Warn(ctx, "Could not find exact target page, using closest match %d (ranks %d-%d)",
		bestPage, bestRange.First, bestRange.Last)
	return bestPage, bestRange, nil
}
