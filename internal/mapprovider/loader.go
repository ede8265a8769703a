package mapprovider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPImageLoader fetches an image URL and accepts it when it answers 200 with an image content type.
type HTTPImageLoader struct {
	httpClient *http.Client
}

// NewHTTPImageLoader creates a loader with the given per-load timeout.
func NewHTTPImageLoader(timeout time.Duration) *HTTPImageLoader {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPImageLoader{httpClient: &http.Client{Timeout: timeout}}
}

// Load performs the request and discards the body.
func (l *HTTPImageLoader) Load(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("invalid image url: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("image request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("image load returned HTTP %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return fmt.Errorf("image load returned content type %q", ct)
	}
	return nil
}
