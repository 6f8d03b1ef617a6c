package api

import (
	"context"
	"net/http"

	"go.uber.org/zap"
	"substore-client/internal/usage"
)

// GetUsage returns the subscription-userinfo mapping for a subscription
// URL. Results are cached for the store's TTL; a hit makes no request.
func (c *Client) GetUsage(ctx context.Context, url string) (map[string]string, error) {
	if info, ok := c.cache.Get(url, c.now()); ok {
		c.metrics.RecordCacheLookup(true)
		return info, nil
	}
	c.metrics.RecordCacheLookup(false)

	resp, _, err := c.do(ctx, http.MethodHead, url, nil)
	if err != nil {
		c.metrics.RecordUsageLookup(false)
		return nil, err
	}

	info := usage.ParseHeader(resp.Header.Get(usage.HeaderName))
	c.cache.Set(url, info, c.now())
	c.metrics.RecordUsageLookup(true)
	c.logger.Debug("usage fetched",
		zap.String("url", url),
		zap.Int("fields", len(info)))

	return info, nil
}

// Usage is GetUsage decoded into a typed record.
func (c *Client) Usage(ctx context.Context, url string) (usage.Usage, error) {
	info, err := c.GetUsage(ctx, url)
	if err != nil {
		return usage.Usage{}, err
	}
	return usage.Parse(info)
}

// ClearCache drops every cached usage entry. Used on a forced refresh.
func (c *Client) ClearCache() {
	c.cache.Clear()
	c.logger.Debug("usage cache cleared")
}
