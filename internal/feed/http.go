// Package feed fetches the station list from the public YouBike endpoint.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"bikemap/internal/station"
)

// DefaultURL is the Taipei YouBike 2.0 immediate availability feed.
const DefaultURL = "https://tcgbusfs.blob.core.windows.net/dotapp/youbike/v2/youbike_immediate.json"

// Metrics receives fetch outcomes. A nil Metrics is allowed.
type Metrics interface {
	FetchObserve(d time.Duration, err error)
}

// HTTPFetcher performs a single GET per call and decodes a JSON array of
// stations. It does not retry.
type HTTPFetcher struct {
	url     string
	client  *http.Client
	metrics Metrics
}

func NewHTTPFetcher(url string, timeout time.Duration, m Metrics) *HTTPFetcher {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPFetcher{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		metrics: m,
	}
}

func (f *HTTPFetcher) Name() string { return f.url }

func (f *HTTPFetcher) FetchStations(ctx context.Context) (stations []station.Station, err error) {
	start := time.Now()
	defer func() {
		if f.metrics != nil {
			f.metrics.FetchObserve(time.Since(start), err)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(&stations); err != nil {
		return nil, fmt.Errorf("decode stations: %w", err)
	}
	return stations, nil
}
