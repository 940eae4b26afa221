// Package ghrelease installs applications from GitHub release assets: it
// resolves version aliases against the release API, picks an asset for the
// host platform, extracts it into a per-app directory, and tracks the
// installed version in a marker file.
package ghrelease

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/warpcode/zinstall/pkg/engine"
)

const (
	defaultAPIBase = "https://api.github.com/repos"

	maxRetries     = 3
	initialBackoff = 1 * time.Second
	maxBackoff     = 32 * time.Second
)

// Release is the subset of the GitHub release API payload we consume.
type Release struct {
	TagName string  `json:"tag_name"`
	Assets  []Asset `json:"assets"`
}

// Asset is one downloadable file attached to a release.
type Asset struct {
	Name               string `json:"name"`
	Size               int64  `json:"size"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// Client talks to the GitHub release API. Transient failures (network
// errors, 5xx, rate limiting) are retried with exponential backoff before
// being surfaced as NETWORK_FAILURE errors.
type Client struct {
	client    *http.Client
	token     string
	userAgent string

	// APIBase is overridable for tests.
	APIBase string
}

// NewClient builds a client, picking up an API token from GITHUB_TOKEN or
// GH_TOKEN when present. Anonymous access works but is heavily rate-limited.
func NewClient() *Client {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		token = os.Getenv("GH_TOKEN")
	}
	return &Client{
		client:    &http.Client{Timeout: 5 * time.Minute},
		token:     token,
		userAgent: "zinstall/1.0",
		APIBase:   defaultAPIBase,
	}
}

// LatestRelease fetches the latest published release.
func (c *Client) LatestRelease(ctx context.Context, owner, repo string) (*Release, error) {
	return c.getRelease(ctx, fmt.Sprintf("%s/%s/%s/releases/latest", c.APIBase, owner, repo))
}

// ReleaseByTag fetches the release for a concrete tag.
func (c *Client) ReleaseByTag(ctx context.Context, owner, repo, tag string) (*Release, error) {
	return c.getRelease(ctx, fmt.Sprintf("%s/%s/%s/releases/tags/%s", c.APIBase, owner, repo, tag))
}

func (c *Client) getRelease(ctx context.Context, url string) (*Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.doWithRetry(req)
	if err != nil {
		return nil, engine.NewTransientError("release lookup failed", err).WithCode(engine.CodeNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, engine.NewPermanentError(
			fmt.Sprintf("release not found: %s", url), nil).WithCode(engine.CodeNetwork)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, engine.NewTransientError(
			fmt.Sprintf("release lookup failed: HTTP %d: %s", resp.StatusCode, string(body)), nil).
			WithCode(engine.CodeNetwork)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("failed to decode release: %w", err)
	}
	return &release, nil
}

// Download streams an asset to dest.
func (c *Client) Download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.doWithRetry(req)
	if err != nil {
		return engine.NewTransientError("asset download failed", err).WithCode(engine.CodeNetwork)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return engine.NewTransientError(
			fmt.Sprintf("asset download failed: HTTP %d", resp.StatusCode), nil).
			WithCode(engine.CodeNetwork)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer out.Close()

	written, err := io.Copy(out, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	log.Debug().Str("dest", dest).Int64("bytes", written).Msg("Downloaded asset")
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", c.userAgent)
}

// doWithRetry executes a request with exponential backoff on transient
// failures. Rate-limit exhaustion aborts immediately rather than sleeping
// until the reset window.
func (c *Client) doWithRetry(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(calculateBackoff(attempt - 1))
		}

		resp, err = c.client.Do(req)
		if err != nil {
			if attempt < maxRetries {
				continue
			}
			return nil, err
		}

		if rateErr := checkRateLimit(resp); rateErr != nil {
			resp.Body.Close()
			return nil, rateErr
		}

		if !isRetryableStatus(resp.StatusCode) {
			return resp, nil
		}

		resp.Body.Close()
		if attempt < maxRetries {
			continue
		}
		return resp, nil
	}

	return resp, err
}

// checkRateLimit inspects the rate-limit headers and fails fast when the
// quota is exhausted.
func checkRateLimit(resp *http.Response) error {
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return nil
	}
	remainingInt, err := strconv.Atoi(remaining)
	if err != nil {
		return nil
	}

	if remainingInt == 0 {
		if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
			if resetUnix, err := strconv.ParseInt(reset, 10, 64); err == nil {
				return fmt.Errorf("GitHub API rate limit exceeded, resets at %s",
					time.Unix(resetUnix, 0).Format(time.RFC3339))
			}
		}
		return fmt.Errorf("GitHub API rate limit exceeded")
	}

	if remainingInt <= 10 {
		log.Warn().Int("remaining", remainingInt).Msg("GitHub API rate limit low")
	}
	return nil
}

func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusForbidden,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func calculateBackoff(attempt int) time.Duration {
	backoff := float64(initialBackoff) * math.Pow(2, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}
	return time.Duration(backoff)
}
