// Package catalog searches an external branded-food catalog. The default
// upstream is the Open Food Facts search API.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dukerupert/pantrytracker/internal/metrics"
)

const DefaultBaseURL = "https://world.openfoodfacts.org"

// ErrUnavailable is returned when the upstream catalog cannot be queried.
var ErrUnavailable = errors.New("catalog unavailable")

// Cache stores encoded search results. A nil Cache disables caching.
type Cache interface {
	Get(ctx context.Context, key string) []byte
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

type Item struct {
	Barcode  string `json:"barcode"`
	Name     string `json:"name"`
	Brand    string `json:"brand"`
	Quantity string `json:"quantity"`
}

type Result struct {
	Items []Item `json:"items"`
	Page  int    `json:"page"`
	Total int    `json:"total"`
}

type Config struct {
	BaseURL  string
	CacheTTL time.Duration
}

type Client struct {
	client   *http.Client
	baseURL  string
	cache    Cache
	cacheTTL time.Duration
	logger   *slog.Logger
}

func NewClient(cfg Config, cache Cache, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	return &Client{
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		cache:    cache,
		cacheTTL: cfg.CacheTTL,
		logger:   logger.With("component", "catalog"),
	}
}

func cacheKey(query string, limit, page int) string {
	return fmt.Sprintf("catalog:search:%s:%d:%d", strings.ToLower(query), limit, page)
}

// Search looks up branded products matching query. Results are served from
// the cache when present.
func (c *Client) Search(ctx context.Context, query string, limit, page int) (*Result, error) {
	key := cacheKey(query, limit, page)
	if c.cache != nil {
		if b := c.cache.Get(ctx, key); b != nil {
			var res Result
			if err := json.Unmarshal(b, &res); err == nil {
				metrics.ObserveCatalogRequest("hit")
				return &res, nil
			}
		}
	}

	res, err := c.fetch(ctx, query, limit, page)
	if err != nil {
		metrics.ObserveCatalogRequest("error")
		c.logger.Warn("catalog search failed", "query", query, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	metrics.ObserveCatalogRequest("miss")

	if c.cache != nil {
		if b, err := json.Marshal(res); err == nil {
			c.cache.Set(ctx, key, b, c.cacheTTL)
		}
	}
	return res, nil
}

type apiResponse struct {
	Count    json.Number `json:"count"`
	Page     json.Number `json:"page"`
	Products []struct {
		Code        string `json:"code"`
		ProductName string `json:"product_name"`
		Brands      string `json:"brands"`
		Quantity    string `json:"quantity"`
	} `json:"products"`
}

func (c *Client) fetch(ctx context.Context, query string, limit, page int) (*Result, error) {
	q := url.Values{}
	q.Set("search_terms", query)
	q.Set("search_simple", "1")
	q.Set("action", "process")
	q.Set("json", "1")
	q.Set("page_size", strconv.Itoa(limit))
	q.Set("page", strconv.Itoa(page))
	q.Set("fields", "code,product_name,brands,quantity")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/cgi/search.pl?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "PantryTracker/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog API returned status %d", resp.StatusCode)
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}

	res := &Result{Items: []Item{}, Page: page}
	if n, err := apiResp.Count.Int64(); err == nil {
		res.Total = int(n)
	}
	for _, p := range apiResp.Products {
		if p.ProductName == "" {
			continue
		}
		res.Items = append(res.Items, Item{
			Barcode:  p.Code,
			Name:     p.ProductName,
			Brand:    firstBrand(p.Brands),
			Quantity: p.Quantity,
		})
	}
	return res, nil
}

// firstBrand returns the first entry of a comma-separated brand list.
func firstBrand(brands string) string {
	first, _, _ := strings.Cut(brands, ",")
	return strings.TrimSpace(first)
}
