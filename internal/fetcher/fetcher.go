// Package fetcher retrieves raw file payloads from the GDC data endpoint.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// FetchError reports a failed payload retrieval: network failure, timeout,
// or non-success status.
type FetchError struct {
	FileID string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch file %s: %v", e.FileID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher downloads complete payloads keyed by file id.
type Fetcher struct {
	endpoint string
	client   *http.Client
}

// New creates a Fetcher for the given data endpoint with a bounded
// per-request timeout.
func New(endpoint string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves the complete byte payload for one file id. Failures are
// returned as *FetchError and are not retried; the caller treats them as
// "this sample is unavailable".
func (f *Fetcher) Fetch(ctx context.Context, fileID string) ([]byte, error) {
	url := f.endpoint + "/" + fileID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{FileID: fileID, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{FileID: fileID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &FetchError{
			FileID: fileID,
			Err:    fmt.Errorf("bad status '%s' fetching %s: %s", resp.Status, url, string(preview)),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{FileID: fileID, Err: fmt.Errorf("read body: %w", err)}
	}
	return data, nil
}
