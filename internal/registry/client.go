// Package registry reads the remote site registry that maps site names to
// redirect URLs.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	collyfetcher "github.com/JakeFAU/guc-preloader/internal/fetcher/colly"
	"github.com/JakeFAU/guc-preloader/internal/metrics"
)

// ErrMissingWebsites signals a response without a websites list.
var ErrMissingWebsites = errors.New("registry response missing websites")

// Website is a single registry entry. URL is returned as published, including
// any surrounding whitespace.
type Website struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type listResponse struct {
	Websites *[]Website `json:"websites"`
}

// Fetcher performs the HTTP GET for the registry document.
type Fetcher interface {
	Fetch(ctx context.Context, request collyfetcher.Request) (collyfetcher.Response, error)
}

// Client downloads and decodes the registry. Every call fetches a fresh copy.
type Client struct {
	url     string
	fetcher Fetcher
	logger  *zap.Logger
}

// NewClient wires the registry URL to a fetcher.
func NewClient(url string, fetcher Fetcher, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{url: url, fetcher: fetcher, logger: logger}
}

// Websites fetches the registry and returns its entries in published order.
func (c *Client) Websites(ctx context.Context) (sites []Website, err error) {
	if c.fetcher == nil {
		return nil, errors.New("registry fetcher is not configured")
	}
	start := time.Now()
	defer func() { metrics.ObserveRegistryFetch(err, time.Since(start)) }()
	resp, err := c.fetcher.Fetch(ctx, collyfetcher.Request{
		URL:     c.url,
		Headers: http.Header{"Accept": {"application/json"}},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch registry: %w", err)
	}
	sites, err = Decode(resp.Body)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("registry fetched",
		zap.String("url", c.url),
		zap.Int("websites", len(sites)),
		zap.Duration("dur", resp.Duration),
	)
	return sites, nil
}

// Decode parses a registry document.
func Decode(body []byte) ([]Website, error) {
	var payload listResponse
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	if payload.Websites == nil {
		return nil, ErrMissingWebsites
	}
	return *payload.Websites, nil
}
