// Package crawler holds the two harvesters: the star crawler walks the
// ranking site's listing pages, the release crawler walks the GitHub API
// for every repository already persisted.
package crawler

import (
	"time"

	"github.com/levietanh/gitstar-crawler/internal/limiter"
	"github.com/levietanh/gitstar-crawler/internal/model"
)

type Crawler interface {
	Crawl() bool
}

// RepoStore is the persistence surface the star crawler needs.
type RepoStore interface {
	Upsert(repo *model.Repo) (int, error)
}

// RepoSource is the read side the release crawler needs.
type RepoSource interface {
	All() ([]model.Repo, error)
	IDByFullName(fullName string) (int, bool, error)
}

// ReleaseStore persists cleaned release batches.
type ReleaseStore interface {
	UpsertBatch(releases []model.Release, repoID int) error
}

// applyRateLimit blocks until the limiter admits another request, backing
// off harder the longer it has been waiting.
func applyRateLimit(rl *limiter.RateLimiter, baseDelay time.Duration) {
	attempts := 0
	maxAttempts := 5
	for !rl.Allow() {
		attempts++
		if attempts > maxAttempts {
			time.Sleep(5 * time.Second)
			attempts = 0
		} else {
			time.Sleep(baseDelay * time.Duration(attempts))
		}
	}
}
