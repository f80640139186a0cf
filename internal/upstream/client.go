// Package upstream posts command results back to the party that issued the
// command, matching the result to the original request via correlation
// headers.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"ocpihub/internal/models"
)

type Client struct {
	http *resty.Client
}

// New builds the forwarding client. The bearer token is sent on every call
// when set; the timeout is a hard upper bound even when the caller's
// context lives longer.
func New(token string, timeout time.Duration) *Client {
	c := resty.New()
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	if token != "" {
		c.SetAuthToken(token)
	}
	return &Client{http: c}
}

// ForwardResult delivers the result body to the recorded response address.
// Exactly one attempt: retry policy, if any, belongs to the caller.
func (c *Client) ForwardResult(ctx context.Context, ref models.UpstreamRef, result json.RawMessage) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Request-ID", ref.RequestID).
		SetHeader("X-Correlation-ID", ref.CorrelationID).
		SetBody([]byte(result)).
		Post(ref.ResponseURL)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("upstream %s responded %d", ref.ResponseURL, resp.StatusCode())
	}
	return nil
}
