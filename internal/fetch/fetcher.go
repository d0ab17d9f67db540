package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetcher retrieves a raw tile payload from a URL. Implementations report
// failures as *Error so callers can distinguish missing tiles from transport
// trouble.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Error describes a failed tile fetch. StatusCode is zero when no HTTP
// response was received (connection failure, timeout, cancellation).
type Error struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status code %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound reports whether the remote server said the tile does not exist.
func (e *Error) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// HTTPFetcher fetches tiles over HTTP(S) with a shared client.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}

	// Some public tile servers reject requests without a user agent
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "image/webp,image/png,application/x-protobuf,*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &Error{URL: url, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}

	return data, nil
}
