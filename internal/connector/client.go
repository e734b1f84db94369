// Package connector provides the shared fetch plumbing used by the
// per-store connector implementations.
package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/appradar/appradar/internal/appstore"
	"github.com/appradar/appradar/internal/policy/ratelimit"
)

// Config controls client behavior across all connectors.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	Limiter   *ratelimit.Limiter
}

// Client performs rate-limited upstream fetches. JSON endpoints go
// through net/http; HTML pages go through a Colly collector.
type Client struct {
	cfg           Config
	httpClient    *http.Client
	baseCollector *colly.Collector
}

// NewClient builds a Client.
func NewClient(cfg Config) *Client {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "appradar-bot/0.1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.UserAgent = cfg.UserAgent
	c.IgnoreRobotsTxt = false
	c.SetRequestTimeout(cfg.Timeout)

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseCollector: c,
	}
}

// GetJSON fetches url and decodes the response body into out.
// 404/410 map to appstore.ErrNotFound so callers can distinguish
// definitive absence from transience.
func (c *Client) GetJSON(ctx context.Context, m appstore.Marketplace, url string, out any) error {
	if err := c.wait(ctx, m); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := classifyStatus(resp.StatusCode); err != nil {
		return err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode json from %s: %w", url, err)
	}
	return nil
}

// GetHTML fetches url through the Colly collector and parses the body
// into a goquery document.
func (c *Client) GetHTML(ctx context.Context, m appstore.Marketplace, url string) (*goquery.Document, error) {
	if err := c.wait(ctx, m); err != nil {
		return nil, err
	}

	var (
		body     []byte
		status   int
		fetchErr error
	)
	collector := c.baseCollector.Clone()
	collector.UserAgent = c.cfg.UserAgent
	collector.SetRequestTimeout(c.cfg.Timeout)
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	visitErr := c.runCollector(ctx, collector, url)

	// Status classification comes first so a 404 surfaces as the
	// definitive-absence sentinel even though Colly also reports it as
	// a visit error.
	if status != 0 {
		if err := classifyStatus(status); err != nil {
			return nil, err
		}
	}
	if visitErr != nil {
		return nil, visitErr
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, fetchErr)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse html from %s: %w", url, err)
	}
	return doc, nil
}

// runCollector executes the visit off the calling goroutine so the
// context can interrupt a slow upstream.
func (c *Client) runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		if err := collector.Visit(url); err != nil {
			done <- err
			return
		}
		collector.Wait()
		done <- nil
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit %s: %w", url, err)
		}
		return nil
	}
}

func (c *Client) wait(ctx context.Context, m appstore.Marketplace) error {
	if c.cfg.Limiter == nil {
		return nil
	}
	return c.cfg.Limiter.Wait(ctx, string(m))
}

func classifyStatus(status int) error {
	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		return appstore.ErrNotFound
	case status >= 400:
		return fmt.Errorf("unexpected status %d", status)
	default:
		return nil
	}
}
