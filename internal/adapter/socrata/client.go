// Package socrata pages through the City of Chicago parking-violation dataset
// on the Socrata open-data API.
package socrata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/parkwise/internal/config"
	"github.com/couchcryptid/parkwise/internal/domain"
	"github.com/couchcryptid/parkwise/internal/observability"
)

// Options selects what to fetch and how politely.
type Options struct {
	BaseURL   string
	AppToken  string
	StartDate string // YYYY-MM-DD, inclusive
	EndDate   string // YYYY-MM-DD, inclusive
	PageSize  int
	MaxPages  int
	PageDelay time.Duration
	BBox      *config.BBox
}

// OptionsFromConfig maps the scraper settings onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseURL:   cfg.SocrataBaseURL,
		AppToken:  cfg.SocrataAppToken,
		StartDate: cfg.ScrapeStartDate,
		EndDate:   cfg.ScrapeEndDate,
		PageSize:  cfg.ScrapePageSize,
		MaxPages:  cfg.ScrapeMaxPages,
		PageDelay: cfg.ScrapePageDelay,
		BBox:      cfg.ScrapeBBox,
	}
}

// Client fetches violation records with offset pagination.
type Client struct {
	opts       Options
	httpClient *http.Client
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a Socrata client. The clock drives the delay between pages.
func NewClient(opts Options, timeout time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		opts:       opts,
		httpClient: &http.Client{Timeout: timeout},
		clock:      clock,
		logger:     logger,
		metrics:    metrics,
	}
}

// FetchViolations pages through the dataset, newest first, until a page
// comes back empty or MaxPages pages have been read. A failed page stops
// pagination; the records collected so far are returned with the error.
func (c *Client) FetchViolations(ctx context.Context) ([]domain.RawViolation, error) {
	var all []domain.RawViolation
	for page := 0; page < c.opts.MaxPages; page++ {
		offset := page * c.opts.PageSize
		records, err := c.FetchPage(ctx, offset)
		if err != nil {
			c.metrics.ScrapeErrors.Inc()
			c.logger.Error("fetch page failed", "page", page, "offset", offset, "error", err)
			return all, fmt.Errorf("page %d: %w", page, err)
		}
		if len(records) == 0 {
			c.logger.Info("no more records", "page", page)
			break
		}
		all = append(all, records...)
		c.metrics.ScrapePages.Inc()
		c.metrics.ScrapeRecords.Add(float64(len(records)))
		c.logger.Info("fetched page", "page", page, "records", len(records), "total", len(all))

		if page+1 < c.opts.MaxPages && !c.sleep(ctx) {
			return all, ctx.Err()
		}
	}
	return all, nil
}

// FetchPage fetches one page starting at offset.
func (c *Client) FetchPage(ctx context.Context, offset int) ([]domain.RawViolation, error) {
	u := c.opts.BaseURL + "?" + c.query(offset).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.AppToken != "" {
		req.Header.Set("X-App-Token", c.opts.AppToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("socrata request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("socrata API error: status %d: %s", resp.StatusCode, body)
	}

	var records []domain.RawViolation
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return records, nil
}

// query builds the SoQL parameters for one page.
func (c *Client) query(offset int) url.Values {
	where := fmt.Sprintf("violation_date >= '%s' and violation_date <= '%s'", c.opts.StartDate, c.opts.EndDate)
	if b := c.opts.BBox; b != nil {
		where += fmt.Sprintf(" and within_box(location, %s, %s, %s, %s)",
			ftoa(b.South), ftoa(b.West), ftoa(b.North), ftoa(b.East))
	}
	return url.Values{
		"$limit":  {strconv.Itoa(c.opts.PageSize)},
		"$offset": {strconv.Itoa(offset)},
		"$order":  {"violation_date DESC"},
		"$where":  {where},
	}
}

func (c *Client) sleep(ctx context.Context) bool {
	if c.opts.PageDelay <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-c.clock.After(c.opts.PageDelay):
		return true
	}
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
