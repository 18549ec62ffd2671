// Package github fetches public contribution data from the GitHub REST API.
//
// The reputation engine only needs four numbers per developer (non-fork repo
// count, stars, forks, followers), so the client exposes UserStats and keeps
// the raw API shapes private to this package.
//
// CACHING:
// GitHub's unauthenticated rate limit is 60 requests/hour. A batch
// recalculation touches every developer, so results are kept in a go-cache
// TTL cache keyed by lower-cased username. Only successful lookups are cached.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/oauth2"

	"github.com/sakif/vouchnet/internal/apperror"
)

const (
	DefaultBaseURL  = "https://api.github.com"
	DefaultTimeout  = 10 * time.Second
	DefaultCacheTTL = 10 * time.Minute

	perPage = 100
)

// Config configures a Client. Zero values fall back to the defaults above.
type Config struct {
	BaseURL  string
	Token    string // optional personal access token; raises the rate limit
	Timeout  time.Duration
	CacheTTL time.Duration
	// MaxPages caps repository pagination (100 repos per page).
	MaxPages int
}

// Stats is what the reputation engine consumes for one GitHub account.
// Fork repositories are already excluded from every repo-derived field.
type Stats struct {
	Username   string `json:"username"`
	RepoCount  int    `json:"repoCount"`
	TotalStars int    `json:"totalStars"`
	TotalForks int    `json:"totalForks"`
	Followers  int    `json:"followers"`
}

// Repository is a single repository's public counters.
type Repository struct {
	FullName string `json:"full_name"`
	Stars    int    `json:"stargazers_count"`
	Forks    int    `json:"forks_count"`
	Language string `json:"language"`
	Fork     bool   `json:"fork"`
}

type profile struct {
	Login     string `json:"login"`
	Followers int    `json:"followers"`
}

// Client talks to the GitHub REST API.
type Client struct {
	http     *http.Client
	baseURL  string
	cache    *cache.Cache
	maxPages int
}

// New builds a Client. When cfg.Token is set every request carries it as a
// bearer token via an oauth2 static token source.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}

	httpClient := &http.Client{}
	if cfg.Token != "" {
		httpClient = oauth2.NewClient(context.Background(),
			oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))
	}
	httpClient.Timeout = cfg.Timeout

	return &Client{
		http:     httpClient,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		cache:    cache.New(cfg.CacheTTL, cfg.CacheTTL+5*time.Minute),
		maxPages: cfg.MaxPages,
	}
}

// UserStats returns aggregated contribution numbers for username.
// Returns apperror.ErrNotFound if GitHub has no such user.
func (c *Client) UserStats(ctx context.Context, username string) (*Stats, error) {
	key := "user:" + strings.ToLower(username)
	if cached, ok := c.cache.Get(key); ok {
		s := cached.(Stats)
		return &s, nil
	}

	var p profile
	if err := c.get(ctx, "/users/"+url.PathEscape(username), &p, "github user", username); err != nil {
		return nil, err
	}

	stats := Stats{Username: p.Login, Followers: p.Followers}

	for page := 1; page <= c.maxPages; page++ {
		var repos []Repository
		path := fmt.Sprintf("/users/%s/repos?type=owner&per_page=%d&page=%d", url.PathEscape(username), perPage, page)
		if err := c.get(ctx, path, &repos, "github user", username); err != nil {
			return nil, err
		}

		for _, r := range repos {
			if r.Fork {
				continue
			}
			stats.RepoCount++
			stats.TotalStars += r.Stars
			stats.TotalForks += r.Forks
		}

		if len(repos) < perPage {
			break
		}
	}

	c.cache.Set(key, stats, cache.DefaultExpiration)
	return &stats, nil
}

// Repository fetches the counters of owner/name. Used by project sync.
func (c *Client) Repository(ctx context.Context, owner, name string) (*Repository, error) {
	var r Repository
	path := "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(name)
	if err := c.get(ctx, path, &r, "github repository", owner+"/"+name); err != nil {
		return nil, err
	}
	return &r, nil
}

// get performs a GET against the API and decodes the JSON body into out.
// A 404 becomes apperror.ErrNotFound for (resource, id).
func (c *Client) get(ctx context.Context, path string, out any, resource, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("github: building request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", "vouchnet")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("github: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperror.NotFound(resource, id)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("github: GET %s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("github: decoding %s: %w", path, err)
	}
	return nil
}
