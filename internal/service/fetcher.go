package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
)

const fetchTimeout = 30 * time.Second

// HTTPFetcher retrieves atmospheric model files, such as Wyoming soundings,
// over HTTP.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher returns a fetcher using client. A nil client gets a
// gzip-aware transport and a 30s timeout.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{
			Transport: gzhttp.Transport(http.DefaultTransport),
			Timeout:   fetchTimeout,
		}
	}
	return &HTTPFetcher{client: client}
}

// Fetch issues a GET for ref. The caller closes the body.
func (f *HTTPFetcher) Fetch(ctx context.Context, ref string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ref, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %s", ref, resp.Status)
	}
	return resp.Body, nil
}
