package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultTimeout bounds a single feed request.
	DefaultTimeout = 20 * time.Second

	// UserAgent is sent with every request; some hosts refuse non-browser agents.
	UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	feedAccept   = "application/rss+xml,application/atom+xml,application/xml,text/xml,text/html;q=0.8,*/*;q=0.5"
	maxBodyBytes = 10 << 20
)

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
}

// headerTransport sets default request headers the caller did not set.
type headerTransport struct {
	base   http.RoundTripper
	accept string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", UserAgent)
	if req.Header.Get("Accept") == "" && t.accept != "" {
		req.Header.Set("Accept", t.accept)
	}
	return t.base.RoundTrip(req)
}

// newClient returns an HTTP client that sends the browser-like headers.
func newClient(timeout time.Duration, accept string) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &headerTransport{base: http.DefaultTransport, accept: accept},
	}
}

// Fetcher downloads feed documents. Each call makes exactly one request.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a fetcher whose requests time out after timeout
// (DefaultTimeout when <= 0).
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{client: newClient(timeout, feedAccept)}
}

// Fetch GETs url and returns the body. Responses outside 2xx yield *StatusError.
// Bodies larger than 10 MiB are rejected.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("fetch %s: body exceeds %d bytes", url, maxBodyBytes)
	}
	return body, nil
}
