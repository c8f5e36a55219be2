// Package search provides the web search client behind the web_search tool.
// It queries the DuckDuckGo HTML endpoint and scrapes the result list.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v5"
)

const (
	// DefaultEndpoint is the DuckDuckGo HTML (no-JS) search page.
	DefaultEndpoint = "https://html.duckduckgo.com/html/"

	requestTimeout = 20 * time.Second
	maxBodySize    = 2 * 1024 * 1024 // 2 MB

	// A throttled search is tried once more after a short pause.
	maxTries   = 2
	retryDelay = 2 * time.Second
)

// version is set at build time via ldflags.
var version = "dev"

// SetVersion sets the version string for User-Agent headers.
func SetVersion(v string) { version = v }

// ErrEmptyQuery is returned when Search is called with a blank query.
var ErrEmptyQuery = errors.New("search query is empty")

// Client is an HTTP client for the search endpoint.
type Client struct {
	endpoint   string
	maxResults int
	retryDelay time.Duration
	client     *http.Client
}

// New creates a search client. An empty endpoint means DefaultEndpoint;
// maxResults <= 0 means no limit.
func New(endpoint string, maxResults int) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint:   endpoint,
		maxResults: maxResults,
		retryDelay: retryDelay,
		client:     &http.Client{Timeout: requestTimeout},
	}
}

// Search runs a query and returns the parsed results, best first.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryDelay
	results, err := backoff.Retry(ctx, func() ([]Result, error) {
		res, err := c.fetch(ctx, u.String())
		var statusErr *StatusError
		if err != nil && !(errors.As(err, &statusErr) && statusErr.IsRetryable()) {
			return nil, backoff.Permanent(err)
		}
		if err != nil {
			slog.Debug("web search throttled", "status", statusErr.StatusCode)
		}
		return res, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(maxTries))
	if err != nil {
		return nil, err
	}
	if c.maxResults > 0 && len(results) > c.maxResults {
		results = results[:c.maxResults]
	}

	slog.Debug("web search", "query", truncate(query, 60), "results", len(results))
	return results, nil
}

func (c *Client) fetch(ctx context.Context, target string) ([]Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	// The HTML endpoint rejects requests without a browser-like agent.
	httpReq.Header.Set("User-Agent", "Mozilla/5.0 (compatible; rain/"+version+")")
	httpReq.Header.Set("Accept", "text/html")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: httpResp.StatusCode, Body: truncate(string(body), 200)}
	}

	results, err := ParseResults(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}
	return results, nil
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
