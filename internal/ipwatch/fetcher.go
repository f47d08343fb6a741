package ipwatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/evanofslack/cloudflare-ddns/internal/metrics"
)

// maxBodySize bounds the lookup response; an address is a few dozen bytes.
const maxBodySize = 1 << 10

type Httper interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPFetcher reads the public IP from a plain-text web service.
type HTTPFetcher struct {
	http    Httper
	metrics *metrics.Metrics
}

// NewHTTPFetcher uses client for every lookup; nil means http.DefaultClient.
func NewHTTPFetcher(client Httper, metrics *metrics.Metrics) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{http: client, metrics: metrics}
}

func (f *HTTPFetcher) FetchPublicIP(ctx context.Context, endpoint string) (string, error) {
	text, err := f.fetch(ctx, endpoint)
	if f.metrics != nil {
		f.metrics.IncIPLookup(err == nil)
	}
	if err != nil {
		return "", err
	}
	slog.Debug("Fetched public IP", "endpoint", endpoint, "body", text)
	return text, nil
}

func (f *HTTPFetcher) fetch(ctx context.Context, endpoint string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := f.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ip lookup request, status=%d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}
	return string(body), nil
}
