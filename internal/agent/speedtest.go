package agent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SpeedResult — итог замера канала.
type SpeedResult struct {
	DownloadMbps float64
	Bytes        int64
	Duration     time.Duration
}

// HTTPSpeedTester меряет скорость скачиванием с заданного URL:
// читаем до maxBytes и считаем мегабиты в секунду.
type HTTPSpeedTester struct {
	url      string
	maxBytes int64
	client   *http.Client
}

func NewHTTPSpeedTester(url string) *HTTPSpeedTester {
	return &HTTPSpeedTester{
		url:      url,
		maxBytes: 32 << 20, // 32 MiB хватает для оценки
		client:   &http.Client{Timeout: 90 * time.Second},
	}
}

func (s *HTTPSpeedTester) Run(ctx context.Context) (SpeedResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return SpeedResult{}, err
	}

	start := time.Now()
	res, err := s.client.Do(req)
	if err != nil {
		return SpeedResult{}, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return SpeedResult{}, fmt.Errorf("speed test url: %s", res.Status)
	}

	n, err := io.Copy(io.Discard, io.LimitReader(res.Body, s.maxBytes))
	if err != nil {
		return SpeedResult{}, err
	}
	elapsed := time.Since(start)
	if elapsed <= 0 || n == 0 {
		return SpeedResult{}, fmt.Errorf("speed test: no data")
	}

	mbps := float64(n) * 8 / 1e6 / elapsed.Seconds()
	return SpeedResult{DownloadMbps: mbps, Bytes: n, Duration: elapsed}, nil
}
