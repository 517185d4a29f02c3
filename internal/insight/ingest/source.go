package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Fetcher opens CSV sources addressed by a file path or an http(s) URL.
type Fetcher struct {
	Client *http.Client
}

// NewFetcher returns a Fetcher with a bounded HTTP timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{Client: &http.Client{Timeout: 30 * time.Second}}
}

// Open returns a reader for the descriptor.
func (f *Fetcher) Open(ctx context.Context, descriptor string) (io.ReadCloser, error) {
	if !isURL(descriptor) {
		file, err := os.Open(descriptor)
		if err != nil {
			return nil, fmt.Errorf("open %q: %w", descriptor, err)
		}
		return file, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, descriptor, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request for %q: %w", descriptor, err)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", descriptor, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %q: unexpected status %d", descriptor, resp.StatusCode)
	}
	return resp.Body, nil
}

// LoadTable opens and parses the CSV at descriptor.
func (f *Fetcher) LoadTable(ctx context.Context, descriptor string) (*Table, error) {
	rc, err := f.Open(ctx, descriptor)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return ReadCSV(rc)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
