package crawler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/levietanh/gitstar-crawler/cfg"
	"github.com/levietanh/gitstar-crawler/internal/cleaner"
	githubapi "github.com/levietanh/gitstar-crawler/internal/github_api"
	"github.com/levietanh/gitstar-crawler/internal/limiter"
	"github.com/levietanh/gitstar-crawler/internal/model"
	"github.com/levietanh/gitstar-crawler/pkg/log"
)

// ReleaseCrawler walks every persisted repository in fixed-size batches,
// fetching and cleaning each one's release list through a worker pool. The
// orchestrator pauses between batches when the API reports few remaining
// requests, and always sleeps a short politeness delay.
type ReleaseCrawler struct {
	Logger   log.Logger
	Config   *cfg.Config
	Repos    RepoSource
	Releases ReleaseStore

	rateLimiter *limiter.RateLimiter

	processedCount int32
	skippedCount   int32
	releaseCount   int32
}

func NewReleaseCrawler(logger log.Logger, config *cfg.Config, repos RepoSource, releases ReleaseStore) (*ReleaseCrawler, error) {
	return &ReleaseCrawler{
		Logger:      logger,
		Config:      config,
		Repos:       repos,
		Releases:    releases,
		rateLimiter: limiter.NewRateLimiter(config.GithubApi.RequestsPerSecond),
	}, nil
}

func (c *ReleaseCrawler) Crawl() bool {
	ctx := context.Background()
	startTime := time.Now()
	c.Logger.Info(ctx, "Starting release crawl at %s", startTime.Format(time.RFC3339))

	repos, err := c.Repos.All()
	if err != nil {
		c.Logger.Error(ctx, "Failed to load repositories: %v", err)
		return false
	}
	if len(repos) == 0 {
		c.Logger.Error(ctx, "No repositories loaded")
		return false
	}
	c.Logger.Info(ctx, "Loaded %d repositories from database", len(repos))

	// Defensive re-validation of stored rows before hitting the API.
	targets := make([]cleaner.Repo, 0, len(repos))
	for _, repo := range repos {
		cl := cleaner.CleanRepo(cleaner.Repo{
			User:        repo.User,
			Name:        repo.Name,
			FullName:    repo.FullName,
			Description: repo.Description,
			Language:    repo.Language,
			AvatarUrl:   repo.AvatarUrl,
			RepoUrl:     repo.RepoUrl,
			Rank:        repo.Rank,
			Stars:       repo.Stars,
		})
		if cl.FullName == "" {
			c.Logger.Warn(ctx, "Skipping repository with empty identity (id=%d)", repo.ID)
			continue
		}
		targets = append(targets, cl)
	}

	batchSize := c.Config.GithubApi.BatchSize
	totalBatches := (len(targets) + batchSize - 1) / batchSize

	for i := 0; i < len(targets); i += batchSize {
		end := i + batchSize
		if end > len(targets) {
			end = len(targets)
		}
		c.Logger.Info(ctx, "Processing batch %d/%d", i/batchSize+1, totalBatches)

		lastRate := c.processBatch(ctx, targets[i:end])

		// Pace on the API's own signal before moving on.
		if lastRate != nil && lastRate.Remaining < c.Config.GithubApi.MinRateLimit {
			wait := time.Until(lastRate.Reset)
			if wait > 0 {
				c.Logger.Info(ctx, "Rate limit low (%d). Waiting %v until reset", lastRate.Remaining, wait.Round(time.Second))
				time.Sleep(wait)
			}
		}

		// Small fixed pause between batches to stay polite.
		time.Sleep(time.Duration(c.Config.GithubApi.BatchDelay) * time.Second)
	}

	duration := time.Since(startTime)
	c.Logger.Info(ctx, "==== RELEASE CRAWL RESULT ====")
	c.Logger.Info(ctx, "Repositories processed: %d (skipped: %d)", atomic.LoadInt32(&c.processedCount), atomic.LoadInt32(&c.skippedCount))
	c.Logger.Info(ctx, "Releases persisted: %d", atomic.LoadInt32(&c.releaseCount))
	c.Logger.Info(ctx, "Total duration: %v", duration)
	return true
}

// processBatch dispatches one task per repository through the worker pool
// and blocks until the whole batch completes. It returns the last observed
// rate-limit signal from the batch, nil when no response carried one.
func (c *ReleaseCrawler) processBatch(ctx context.Context, batch []cleaner.Repo) *githubapi.RateInfo {
	workers := make(chan struct{}, c.Config.GithubApi.Workers)
	var wg sync.WaitGroup

	var rateMu sync.Mutex
	var lastRate *githubapi.RateInfo

	for _, repo := range batch {
		wg.Add(1)
		go func(repo cleaner.Repo) {
			defer wg.Done()
			workers <- struct{}{}
			defer func() { <-workers }()

			rate := c.processRepo(ctx, repo)
			if rate != nil {
				rateMu.Lock()
				lastRate = rate
				rateMu.Unlock()
			}
		}(repo)
	}
	wg.Wait()
	return lastRate
}

// processRepo handles a single repository: resolve its storage id, fetch
// its releases with its own API client, clean them, and persist whatever
// survives. Every failure path skips just this repository.
func (c *ReleaseCrawler) processRepo(ctx context.Context, repo cleaner.Repo) *githubapi.RateInfo {
	atomic.AddInt32(&c.processedCount, 1)

	if repo.User == "" || repo.Name == "" {
		c.Logger.Warn(ctx, "Repository %q has no owner/name split, skipping", repo.FullName)
		atomic.AddInt32(&c.skippedCount, 1)
		return nil
	}

	repoID, found, err := c.Repos.IDByFullName(repo.FullName)
	if err != nil {
		c.Logger.Error(ctx, "Failed to resolve id for %s: %v", repo.FullName, err)
		atomic.AddInt32(&c.skippedCount, 1)
		return nil
	}
	if !found {
		c.Logger.Warn(ctx, "Repository %s not found in database", repo.FullName)
		atomic.AddInt32(&c.skippedCount, 1)
		return nil
	}

	// Each task gets its own client session.
	caller := githubapi.NewCaller(c.Logger, c.Config)
	releases, rate, err := c.fetchReleases(ctx, caller, repo)
	if err != nil {
		if errors.Is(err, githubapi.ErrNotAList) {
			c.Logger.Warn(ctx, "Unexpected response format for %s", repo.FullName)
		} else {
			c.Logger.Error(ctx, "Failed to fetch releases for %s: %v", repo.FullName, err)
		}
		atomic.AddInt32(&c.skippedCount, 1)
		return rate
	}

	cleaned := make([]model.Release, 0, len(releases))
	for _, rel := range releases {
		if cl, ok := cleaner.CleanRelease(int64(rel.ID), rel.TagName, rel.Body); ok {
			cleaned = append(cleaned, model.Release{
				ID:      cl.ID,
				TagName: cl.TagName,
				Content: cl.Body,
			})
		}
	}

	if len(cleaned) == 0 {
		return rate
	}

	if err := c.Releases.UpsertBatch(cleaned, repoID); err != nil {
		c.Logger.Error(ctx, "Failed to persist releases for %s: %v", repo.FullName, err)
		return rate
	}

	atomic.AddInt32(&c.releaseCount, int32(len(cleaned)))
	c.Logger.Info(ctx, "Persisted %d releases for %s", len(cleaned), repo.FullName)
	return rate
}

// fetchReleases retries transient failures up to the configured budget. A
// non-list response is permanent and returned immediately.
func (c *ReleaseCrawler) fetchReleases(ctx context.Context, caller *githubapi.Caller, repo cleaner.Repo) ([]githubapi.ReleaseResponse, *githubapi.RateInfo, error) {
	var lastErr error
	var lastRate *githubapi.RateInfo

	for attempt := 0; attempt <= c.Config.GithubApi.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(c.Config.GithubApi.RetryDelay) * time.Second)
		}

		applyRateLimit(c.rateLimiter, time.Duration(c.Config.GithubApi.RetryDelay)*time.Second)

		releases, rate, err := caller.CallReleases(ctx, repo.User, repo.Name)
		if rate != nil {
			lastRate = rate
		}
		if err == nil {
			return releases, lastRate, nil
		}
		if errors.Is(err, githubapi.ErrNotAList) {
			return nil, lastRate, err
		}
		lastErr = err
	}
	return nil, lastRate, lastErr
}
