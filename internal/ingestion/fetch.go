package ingestion

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/skyward-data/quality.report/internal/httputil"
	"github.com/skyward-data/quality.report/internal/monitoring"
	"github.com/skyward-data/quality.report/internal/quality"
)

// maxPayloadBytes bounds a single feed response. A full /states/all payload
// is a few megabytes; anything past this is a broken upstream.
const maxPayloadBytes = 64 << 20

// Fetcher polls a states URL and hands parsed batches to a callback. It is
// the live counterpart of the dev-mode fixtures replay: transport errors are
// logged and retried on the next tick, never fatal.
type Fetcher struct {
	url    string
	client httputil.Client
	parser *Parser
}

// NewFetcher builds a feed poller for url. A nil client falls back to the
// standard HTTP client.
func NewFetcher(url string, client httputil.Client, parser *Parser) *Fetcher {
	if client == nil {
		client = httputil.NewStandardClient(nil)
	}
	return &Fetcher{url: url, client: client, parser: parser}
}

// FetchBatch retrieves and parses one payload.
func (f *Fetcher) FetchBatch(ctx context.Context) ([]quality.RawStateVector, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", f.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("fetching %s: unexpected status %d", f.url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("reading feed response: %w", err)
	}
	return f.parser.ParsePayload(body)
}

// Poll fetches on a fixed interval and passes each batch to process until
// ctx is cancelled. The first fetch happens immediately.
func (f *Fetcher) Poll(ctx context.Context, every time.Duration, process func(context.Context, []quality.RawStateVector)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		batch, err := f.FetchBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			monitoring.Logf("feed fetch failed: %v", err)
		} else {
			process(ctx, batch)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
