package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/oogsj/coastwatch/internal/domain"
)

// Client is the rate-limited HTTP client shared by the JSON/CSV adapters.
// The token bucket keeps the service a polite consumer of third-party
// endpoints even when several tasks fire at once.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient builds a client with a per-request timeout and a global
// requests-per-second cap across all adapters using it.
func NewClient(timeout time.Duration, rps float64) *Client {
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Get performs a rate-limited GET and returns the response body.
func (c *Client) Get(ctx context.Context, sourceName, rawURL string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &domain.FormatError{Source: sourceName, Err: err}
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return c.do(sourceName, req)
}

// PostForm performs a rate-limited form POST and returns the response body.
func (c *Client) PostForm(ctx context.Context, sourceName, rawURL string, header http.Header, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &domain.FormatError{Source: sourceName, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return c.do(sourceName, req)
}

func (c *Client) do(sourceName string, req *http.Request) ([]byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, &domain.NetworkError{Source: sourceName, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{Source: sourceName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.NetworkError{
			Source: sourceName,
			Err:    fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.NetworkError{Source: sourceName, Err: err}
	}
	return body, nil
}
