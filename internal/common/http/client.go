// Package http wraps the standard client with a fixed per-request
// timeout so every backend call shares the same deadline policy.
package http

import (
	"net/http"
	"time"
)

// Client is a timeout-scoped HTTP client shared by the backend API
// calls.
type Client struct {
	httpClient *http.Client
}

// NewClient returns a client whose requests time out after the given
// duration. Request contexts still apply on top of the timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Do executes the request with the client's timeout.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}
