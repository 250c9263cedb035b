package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyward-data/quality.report/internal/httputil"
	"github.com/skyward-data/quality.report/internal/monitoring"
	"github.com/skyward-data/quality.report/internal/quality"
)

func TestFetchBatch(t *testing.T) {
	t.Parallel()

	t.Run("parses a successful response", func(t *testing.T) {
		t.Parallel()
		client := httputil.NewMockClient().AddResponse(200, samplePayload)
		f := NewFetcher("https://feed.example/states/all", client, NewParser())

		batch, err := f.FetchBatch(context.Background())
		require.NoError(t, err)
		require.Len(t, batch, 2)
		assert.Equal(t, "4ca7b4", batch[0].ICAO24)

		req := client.Request(0)
		require.NotNil(t, req)
		assert.Equal(t, "https://feed.example/states/all", req.URL.String())
		assert.Equal(t, "application/json", req.Header.Get("Accept"))
	})

	t.Run("transport error surfaces", func(t *testing.T) {
		t.Parallel()
		client := httputil.NewMockClient().AddError(errors.New("connection refused"))
		f := NewFetcher("https://feed.example/states/all", client, NewParser())

		_, err := f.FetchBatch(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("non-200 status is an error", func(t *testing.T) {
		t.Parallel()
		client := httputil.NewMockClient().AddResponse(502, "upstream down")
		f := NewFetcher("https://feed.example/states/all", client, NewParser())

		_, err := f.FetchBatch(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("garbage body is a parse error", func(t *testing.T) {
		t.Parallel()
		client := httputil.NewMockClient().AddResponse(200, "{nope")
		f := NewFetcher("https://feed.example/states/all", client, NewParser())

		_, err := f.FetchBatch(context.Background())
		assert.Error(t, err)
	})
}

func TestPoll(t *testing.T) {
	monitoring.SetLogger(nil)
	defer monitoring.SetLogger(nil)

	// One good payload, one failure, then a payload with no states.
	client := httputil.NewMockClient().
		AddResponse(200, samplePayload).
		AddError(errors.New("connection refused")).
		AddResponse(200, `{"time":1700000010,"states":[]}`)
	f := NewFetcher("https://feed.example/states/all", client, NewParser())

	ctx, cancel := context.WithCancel(context.Background())
	var batches [][]quality.RawStateVector
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.Poll(ctx, time.Millisecond, func(_ context.Context, batch []quality.RawStateVector) {
			batches = append(batches, batch)
			if len(batches) >= 2 {
				cancel()
			}
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not stop")
	}
	cancel()

	// First tick delivered the sample payload, the failed tick was skipped,
	// later ticks delivered empty batches.
	require.GreaterOrEqual(t, len(batches), 2)
	assert.Len(t, batches[0], 2)
	assert.Empty(t, batches[1])
	assert.GreaterOrEqual(t, client.RequestCount(), 3)
}
