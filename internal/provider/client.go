package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/richxcame/visitorguard/pkg/config"
	"github.com/richxcame/visitorguard/pkg/logger"
	"github.com/richxcame/visitorguard/pkg/redis"
)

// regionEndpoints maps provider regions to their server-API base URLs
var regionEndpoints = map[string]string{
	"us": "https://api.fpjs.io",
	"eu": "https://eu.api.fpjs.io",
	"ap": "https://ap.api.fpjs.io",
}

// Client fetches server-side event details from the fingerprinting
// provider. All failures are reported to the caller, which degrades to an
// empty signal bundle; the client never retries.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	cache      *redis.Client
	cacheTTL   time.Duration
}

// NewClient builds a provider client from explicit configuration. The cache
// is optional; pass nil to disable event-detail caching.
func NewClient(cfg config.ProviderConfig, cache *redis.Client) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider api key is not configured")
	}

	baseURL, ok := regionEndpoints[cfg.Region]
	if !ok {
		return nil, fmt.Errorf("unknown provider region %q", cfg.Region)
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "fingerprint-events",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("provider circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		cache:      cache,
		cacheTTL:   time.Duration(cfg.CacheTTL) * time.Second,
	}, nil
}

// EventDetail fetches the server-side event detail for a request id. The
// caller's context deadline bounds the call; there is no internal retry.
func (c *Client) EventDetail(ctx context.Context, requestID string) (*EventDetail, error) {
	if requestID == "" {
		return nil, fmt.Errorf("request id is empty")
	}

	if cached := c.fromCache(ctx, requestID); cached != nil {
		return cached, nil
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, requestID)
	})
	if err != nil {
		return nil, err
	}

	detail := result.(*EventDetail)
	c.toCache(ctx, requestID, detail)
	return detail, nil
}

func (c *Client) fetch(ctx context.Context, requestID string) (*EventDetail, error) {
	endpoint := fmt.Sprintf("%s/events/%s", c.baseURL, url.PathEscape(requestID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build event detail request: %w", err)
	}
	req.Header.Set("Auth-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("event detail request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("event detail request returned %d: %s", resp.StatusCode, string(body))
	}

	var detail EventDetail
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return nil, fmt.Errorf("decode event detail: %w", err)
	}

	return &detail, nil
}

func cacheKey(requestID string) string {
	return "fp:event:" + requestID
}

func (c *Client) fromCache(ctx context.Context, requestID string) *EventDetail {
	if c.cache == nil {
		return nil
	}

	raw, err := c.cache.GetString(ctx, cacheKey(requestID))
	if err != nil {
		return nil
	}

	var detail EventDetail
	if err := json.Unmarshal([]byte(raw), &detail); err != nil {
		return nil
	}
	return &detail
}

func (c *Client) toCache(ctx context.Context, requestID string, detail *EventDetail) {
	if c.cache == nil || c.cacheTTL <= 0 {
		return
	}

	raw, err := json.Marshal(detail)
	if err != nil {
		return
	}

	// Cache failures only lose the cache, never the request
	if err := c.cache.SetWithExpiration(ctx, cacheKey(requestID), raw, c.cacheTTL); err != nil {
		logger.WithContext(ctx).Debug("event detail cache write failed", zap.Error(err))
	}
}
