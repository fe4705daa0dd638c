// Package crossbell publishes records as notes on a Crossbell character and
// answers whether a record was already published there.
package crossbell

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/Zuo-Peng/t2c/internal/migrate"
)

// Config is what a Client needs to talk to the indexer and the IPFS relay.
type Config struct {
	IndexerURL        string
	IPFSURL           string
	Token             string // operator bearer token
	Author            string // export owner, used to build source tweet URLs
	Timeout           time.Duration
	RequestsPerSecond float64
	MediaConcurrency  int
}

// Client is safe for sequential use by one migration run.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	seen    *cache.Cache
	logger  *slog.Logger
}

var (
	_ migrate.Publisher      = (*Client)(nil)
	_ migrate.ExistenceIndex = (*Client)(nil)
)

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a *migrate.ConfigError when the token or an endpoint is missing.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Token == "" {
		return nil, &migrate.ConfigError{Field: "crossbell.token", Reason: "operator token is not configured"}
	}
	if cfg.IndexerURL == "" {
		return nil, &migrate.ConfigError{Field: "crossbell.indexer_url", Reason: "indexer url is empty"}
	}
	if cfg.IPFSURL == "" {
		return nil, &migrate.ConfigError{Field: "crossbell.ipfs_url", Reason: "ipfs relay url is empty"}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MediaConcurrency < 1 {
		cfg.MediaConcurrency = 1
	}
	cfg.IndexerURL = strings.TrimRight(cfg.IndexerURL, "/")
	cfg.IPFSURL = strings.TrimRight(cfg.IPFSURL, "/")

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		seen:    cache.New(cache.NoExpiration, 0),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close drops cached existence answers and idle connections.
func (c *Client) Close() error {
	c.seen.Flush()
	c.http.CloseIdleConnections()
	return nil
}

// TweetURL is the external url a note carries for its source record.
func (c *Client) TweetURL(recordID string) string {
	author := c.cfg.Author
	if author == "" {
		author = "i/web"
	}
	return fmt.Sprintf("https://twitter.com/%s/status/%s", author, recordID)
}

// StatusError is a non-2xx answer from the indexer or the relay.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Status, e.Body)
}

// do sends req after waiting for the limiter. A 2xx body is decoded into out
// when out is non-nil.
func (c *Client) do(ctx context.Context, req *http.Request, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("crossbell request", "method", req.Method, "path", req.URL.Path,
		"status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{
			Method: req.Method,
			URL:    req.URL.Path,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}
