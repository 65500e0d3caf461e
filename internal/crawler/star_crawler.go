package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/levietanh/gitstar-crawler/cfg"
	"github.com/levietanh/gitstar-crawler/internal/cleaner"
	"github.com/levietanh/gitstar-crawler/internal/extractor"
	"github.com/levietanh/gitstar-crawler/internal/limiter"
	"github.com/levietanh/gitstar-crawler/internal/locator"
	"github.com/levietanh/gitstar-crawler/internal/model"
	"github.com/levietanh/gitstar-crawler/internal/output"
	"github.com/levietanh/gitstar-crawler/pkg/kafka"
	"github.com/levietanh/gitstar-crawler/pkg/log"
)

// StarCrawler harvests the listing pages [1, MaxPages] through a bounded
// worker pool. Each record is upserted as it is parsed so partial progress
// survives a crash; the merged result is sorted by rank and written to the
// flat output files at the end.
type StarCrawler struct {
	Logger   log.Logger
	Config   *cfg.Config
	Store    RepoStore
	Finder   *locator.PageFinder
	Writer   *output.Writer
	Producer *kafka.Producer

	rateLimiter *limiter.RateLimiter
	client      *http.Client

	allRepos      []extractor.RepoRecord
	allReposMutex sync.Mutex

	pageCount   int32
	failedPages int32
	savedCount  int32
}

func NewStarCrawler(logger log.Logger, config *cfg.Config, store RepoStore, producer *kafka.Producer) (*StarCrawler, error) {
	finder, err := locator.NewPageFinder(logger, config)
	if err != nil {
		return nil, err
	}
	writer, err := output.NewWriter(logger, config)
	if err != nil {
		return nil, err
	}

	return &StarCrawler{
		Logger:      logger,
		Config:      config,
		Store:       store,
		Finder:      finder,
		Writer:      writer,
		Producer:    producer,
		rateLimiter: limiter.NewRateLimiter(config.Ranking.RequestsPerSecond),
		client: &http.Client{
			Timeout: time.Duration(config.Ranking.RequestTimeout) * time.Second,
		},
		allRepos: make([]extractor.RepoRecord, 0, config.Ranking.MaxPages*100),
	}, nil
}

func (c *StarCrawler) Crawl() bool {
	ctx := context.Background()
	startTime := time.Now()
	c.Logger.Info(ctx, "Starting repository crawl at %s", startTime.Format(time.RFC3339))

	// Locate the page holding the target rank. The result is informational
	// only; the crawl still walks the fixed page range below. See DESIGN.md
	// for why this mirrors the upstream behavior.
	if page, rr, err := c.Finder.FindTargetPage(ctx); err != nil {
		c.Logger.Warn(ctx, "Page location failed, continuing with fixed range: %v", err)
	} else {
		c.Logger.Info(ctx, "Target rank %d located on page %d (ranks %d-%d); crawling pages 1 to %d",
			c.Config.Ranking.TargetRank, page, rr.First, rr.Last, c.Config.Ranking.MaxPages)
	}

	// Fan pages out across the worker pool, one task per page.
	workers := make(chan struct{}, c.Config.Ranking.Workers)
	var wg sync.WaitGroup
	for page := 1; page <= c.Config.Ranking.MaxPages; page++ {
		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			workers <- struct{}{}
			defer func() { <-workers }()
			c.crawlPage(ctx, page)
		}(page)
	}
	wg.Wait()

	c.allReposMutex.Lock()
	records := make([]extractor.RepoRecord, len(c.allRepos))
	copy(records, c.allRepos)
	c.allReposMutex.Unlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].Rank < records[j].Rank
	})

	if len(records) == 0 {
		c.Logger.Error(ctx, "No repositories harvested from %d pages", c.Config.Ranking.MaxPages)
		return false
	}

	if err := c.Writer.WriteAll(ctx, records); err != nil {
		c.Logger.Error(ctx, "Failed to write output files: %v", err)
		return false
	}

	duration := time.Since(startTime)
	c.Logger.Info(ctx, "==== CRAWL RESULT ====")
	c.Logger.Info(ctx, "Pages processed: %d (failed: %d)", atomic.LoadInt32(&c.pageCount), atomic.LoadInt32(&c.failedPages))
	c.Logger.Info(ctx, "Repositories harvested: %d, persisted: %d", len(records), atomic.LoadInt32(&c.savedCount))
	c.Logger.Info(ctx, "Total duration: %v", duration)
	return true
}

// crawlPage processes one listing page. Any failure degrades to an empty
// result for this page; sibling pages are unaffected.
func (c *StarCrawler) crawlPage(ctx context.Context, page int) {
	atomic.AddInt32(&c.pageCount, 1)
	applyRateLimit(c.rateLimiter, time.Duration(c.Config.Ranking.RetryDelay)*time.Second)

	pageHtml, err := c.fetchPage(ctx, page)
	if err != nil {
		c.Logger.Error(ctx, "Error processing page %d: %v", page, err)
		atomic.AddInt32(&c.failedPages, 1)
		return
	}

	records, err := extractor.ParsePage(pageHtml, c.Config.Ranking.BaseUrl)
	if err != nil {
		c.Logger.Error(ctx, "Error parsing page %d: %v", page, err)
		atomic.AddInt32(&c.failedPages, 1)
		return
	}

	// Persist each record as it is produced rather than batching at the
	// end, so a later crash keeps what was already harvested.
	for _, rec := range records {
		if err := c.saveRecord(ctx, rec); err != nil {
			c.Logger.Error(ctx, "Failed to persist %s: %v", rec.FullName, err)
			continue
		}
		atomic.AddInt32(&c.savedCount, 1)
	}

	c.allReposMutex.Lock()
	c.allRepos = append(c.allRepos, records...)
	c.allReposMutex.Unlock()

	c.Logger.Info(ctx, "Page %d: parsed %d repositories", page, len(records))
}

// fetchPage downloads one listing page with a fixed retry budget and fixed
// delay between attempts.
func (c *StarCrawler) fetchPage(ctx context.Context, page int) (string, error) {
	pageUrl := fmt.Sprintf("%s?page=%d", c.Config.Ranking.BaseUrl, page)

	var lastErr error
	for attempt := 0; attempt <= c.Config.Ranking.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(c.Config.Ranking.RetryDelay) * time.Second)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageUrl, nil)
		if err != nil {
			return "", err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("unexpected status: %s", resp.Status)
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return string(body), nil
	}
	return "", lastErr
}

func (c *StarCrawler) saveRecord(ctx context.Context, rec extractor.RepoRecord) error {
	cleaned := cleaner.CleanRepo(toCleanerRepo(rec))

	repo := &model.Repo{
		User:        cleaned.User,
		Name:        cleaned.Name,
		FullName:    cleaned.FullName,
		Rank:        cleaned.Rank,
		Stars:       cleaned.Stars,
		Description: cleaned.Description,
		Language:    cleaned.Language,
		AvatarUrl:   cleaned.AvatarUrl,
		RepoUrl:     cleaned.RepoUrl,
	}

	if _, err := c.Store.Upsert(repo); err != nil {
		return err
	}

	if c.Producer != nil {
		msg := model.RepoMessage{
			User:        repo.User,
			Name:        repo.Name,
			FullName:    repo.FullName,
			Rank:        repo.Rank,
			Stars:       repo.Stars,
			Description: repo.Description,
			Language:    repo.Language,
			AvatarUrl:   repo.AvatarUrl,
			RepoUrl:     repo.RepoUrl,
		}
		if err := c.Producer.Publish(ctx, "repo", msg); err != nil {
			c.Logger.Warn(ctx, "Failed to publish %s to kafka: %v", repo.FullName, err)
		}
	}
	return nil
}

func toCleanerRepo(rec extractor.RepoRecord) cleaner.Repo {
	rank := rec.Rank
	stars := rec.Stars
	cl := cleaner.Repo{
		User:        rec.User,
		Name:        rec.Name,
		FullName:    rec.FullName,
		Description: rec.Description,
		Language:    rec.Language,
		Rank:        &rank,
		Stars:       &stars,
	}
	if rec.AvatarUrl != "" {
		avatar := rec.AvatarUrl
		cl.AvatarUrl = &avatar
	}
	if rec.RepoUrl != "" {
		repoUrl := rec.RepoUrl
		cl.RepoUrl = &repoUrl
	}
	return cl
}
