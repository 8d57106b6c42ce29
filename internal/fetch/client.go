// internal/fetch/client.go

// Package fetch retrieves rendered profile pages through an external render
// API. The API executes the page's scripts remotely and returns the final
// HTML, so the pipeline never runs a browser itself.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/valpere/TikTokIngester/internal/config"
	"github.com/valpere/TikTokIngester/internal/utils"
)

// maxErrorBody bounds how much of an error response is carried into the
// returned error.
const maxErrorBody = 512

// Client calls the render API with a token-bucket rate limit.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	renderJS   bool
	waitMillis int
	limiter    *rate.Limiter
	logger     utils.Logger
}

// NewClient creates a client from the fetcher configuration.
func NewClient(cfg config.FetcherConfig, logger utils.Logger) *Client {
	if logger == nil {
		logger = utils.NewLogger()
	}
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 1
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		renderJS:   cfg.RenderJS,
		waitMillis: cfg.WaitMillis,
		limiter:    rate.NewLimiter(rate.Limit(perSec), 1),
		logger:     logger,
	}
}

// ProfileURL returns the canonical page URL for a username.
func ProfileURL(username string) string {
	return "https://www.tiktok.com/@" + username
}

// Fetch retrieves one rendered page and returns its HTML. The call blocks on
// the rate limiter first, so burst traffic drains at the configured rate.
func (c *Client) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("fetch: rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("url", pageURL)
	params.Set("render_js", strconv.FormatBool(c.renderJS))
	params.Set("wait", strconv.Itoa(c.waitMillis))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("fetch: build request: %w", err)
	}

	c.logger.WithField("url", pageURL).Debug("fetch: requesting rendered page")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: request %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("fetch: render API returned %d for %s: %s", resp.StatusCode, pageURL, snippet)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("fetch: read response for %s: %w", pageURL, err)
	}
	if len(body) == 0 {
		return "", fmt.Errorf("fetch: empty response for %s", pageURL)
	}

	c.logger.WithFields(map[string]interface{}{
		"url":   pageURL,
		"bytes": len(body),
	}).Info("fetch: page retrieved")
	return string(body), nil
}
