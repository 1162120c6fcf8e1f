// Package release lists and downloads data files published as GitHub release
// assets.
package release

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// ErrFetch marks a failure to list or download release assets. It is scoped to
// the asset (or tag) being fetched.
var ErrFetch = errors.New("fetch failed")

// maxAssetBytes bounds a single download
const maxAssetBytes = 256 << 20

// Asset is one downloadable file attached to a release
type Asset struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	DownloadURL string    `json:"browser_download_url"`
	Size        int64     `json:"size"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type releaseResponse struct {
	TagName string  `json:"tag_name"`
	Assets  []Asset `json:"assets"`
}

// Config configures a Client
type Config struct {
	BaseURL string
	Owner   string
	Repo    string
	Token   string
	Timeout time.Duration

	// Retry tuning; zero values use the defaults
	RetryInitialInterval time.Duration
	RetryMaxElapsed      time.Duration
	MaxConcurrent        int
}

// Client talks to the GitHub releases API
type Client struct {
	baseURL     string
	owner       string
	repo        string
	token       string
	httpClient  *http.Client
	rateLimiter chan struct{} // Rate limiting semaphore

	retryInitial    time.Duration
	retryMaxElapsed time.Duration
}

// NewClient creates a new releases client
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = time.Second
	}
	if cfg.RetryMaxElapsed <= 0 {
		cfg.RetryMaxElapsed = time.Minute
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 8
	}

	rateLimiter := make(chan struct{}, cfg.MaxConcurrent)
	for i := 0; i < cfg.MaxConcurrent; i++ {
		rateLimiter <- struct{}{}
	}

	return &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		owner:           cfg.Owner,
		repo:            cfg.Repo,
		token:           cfg.Token,
		rateLimiter:     rateLimiter,
		retryInitial:    cfg.RetryInitialInterval,
		retryMaxElapsed: cfg.RetryMaxElapsed,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInitial
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = c.retryMaxElapsed
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.5
	return backoff.WithContext(b, ctx)
}

// get performs a GET with retry on network errors, 429 and 5xx responses.
// Other non-200 statuses fail immediately.
func (c *Client) get(ctx context.Context, rawURL, accept string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.rateLimiter:
		defer func() { c.rateLimiter <- struct{}{} }()
	}

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", accept)
		req.Header.Set("User-Agent", "nflstats-ingestion/1.0")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("retryable status %d", resp.StatusCode)
		default:
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes+1))
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		if len(body) > maxAssetBytes {
			return backoff.Permanent(fmt.Errorf("response larger than %d bytes", maxAssetBytes))
		}
		return nil
	}

	var attempt int
	notify := func(err error, wait time.Duration) {
		attempt++
		log.Warn().
			Err(err).
			Str("url", rawURL).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Release request failed, retrying")
	}

	if err := backoff.RetryNotify(operation, c.newBackOff(ctx), notify); err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrFetch, rawURL, err)
	}
	return body, nil
}

// ListAssets returns the assets attached to the release with the given tag
func (c *Client) ListAssets(ctx context.Context, tag string) ([]Asset, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/releases/tags/%s",
		c.baseURL, url.PathEscape(c.owner), url.PathEscape(c.repo), url.PathEscape(tag))

	body, err := c.get(ctx, u, "application/vnd.github+json")
	if err != nil {
		return nil, err
	}

	var rel releaseResponse
	if err := json.Unmarshal(body, &rel); err != nil {
		return nil, fmt.Errorf("%w: decode release %s: %w", ErrFetch, tag, err)
	}

	log.Debug().
		Str("tag", tag).
		Int("assets", len(rel.Assets)).
		Msg("Listed release assets")

	return rel.Assets, nil
}

// Download returns the content of an asset
func (c *Client) Download(ctx context.Context, asset Asset) ([]byte, error) {
	if asset.DownloadURL == "" {
		return nil, fmt.Errorf("%w: asset %s has no download url", ErrFetch, asset.Name)
	}

	body, err := c.get(ctx, asset.DownloadURL, "application/octet-stream")
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("asset", asset.Name).
		Int("bytes", len(body)).
		Msg("Downloaded release asset")

	return body, nil
}
