// Package githubapi calls the GitHub REST API for release data. Each caller
// owns its HTTP client so harvester tasks do not share sessions, and every
// response carries the rate-limit headers back to the orchestrator.
package githubapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/levietanh/gitstar-crawler/cfg"
	"github.com/levietanh/gitstar-crawler/pkg/log"
)

// ErrNotAList marks a releases response whose body is not a JSON array.
// The calling task skips the repository without retrying.
var ErrNotAList = errors.New("releases response is not a list")

// RateInfo mirrors the X-RateLimit response headers.
type RateInfo struct {
	Remaining int
	Reset     time.Time
}

type Caller struct {
	Logger log.Logger
	Config *cfg.Config
	client *http.Client
}

func NewCaller(logger log.Logger, config *cfg.Config) *Caller {
	return &Caller{
		Logger: logger,
		Config: config,
		client: &http.Client{
			Timeout: time.Duration(config.GithubApi.RequestTimeout) * time.Second,
		},
	}
}

// CallReleases fetches the release list of one repository. The rate info is
// returned whenever the response headers carried it, including on errors.
func (c *Caller) CallReleases(ctx context.Context, user, repo string) ([]ReleaseResponse, *RateInfo, error) {
	releasesUrl := fmt.Sprintf("%s/repos/%s/%s/releases", c.Config.GithubApi.ApiBaseUrl, user, repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, releasesUrl, nil)
	if err != nil {
		return nil, nil, err
	}

	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if c.Config.GithubApi.AccessToken != "" {
		req.Header.Set("Authorization", fmt.Sprintf("token %s", c.Config.GithubApi.AccessToken))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	rate := parseRateInfo(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, rate, fmt.Errorf("cannot receive response: %v", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, rate, err
	}

	// The endpoint must answer with a JSON array; anything else means the
	// repository's task is skipped.
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, rate, ErrNotAList
	}

	var releases []ReleaseResponse
	if err := json.Unmarshal(trimmed, &releases); err != nil {
		return nil, rate, err
	}

	return releases, rate, nil
}

func parseRateInfo(resp *http.Response) *RateInfo {
	remainingStr := resp.Header.Get("X-RateLimit-Remaining")
	if remainingStr == "" {
		return nil
	}
	remaining, err := strconv.Atoi(remainingStr)
	if err != nil {
		return nil
	}

	info := &RateInfo{Remaining: remaining}
	if resetStr := resp.Header.Get("X-RateLimit-Reset"); resetStr != "" {
		if resetUnix, err := strconv.ParseInt(resetStr, 10, 64); err == nil {
			info.Reset = time.Unix(resetUnix, 0)
		}
	}
	return info
}
