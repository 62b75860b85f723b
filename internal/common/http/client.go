// internal/common/http/client.go
package http

import (
	"net/http"
	"time"
)

const userAgent = "esign-engine-webhooks/1.0"

// Client is the outbound HTTP client used for webhook delivery.
type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			// A redirect would re-send the signed body to a host the
			// subscriber never registered.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}
	return c.httpClient.Do(req)
}
