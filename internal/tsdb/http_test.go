package tsdb

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pulse/internal/keyreg"
	"pulse/internal/models"
	"pulse/internal/series"

	"github.com/gorilla/mux"
)

func newSeriesAPI(t *testing.T) (*keyreg.Registry, Store, *mux.Router, string) {
	t.Helper()
	reg := keyreg.New(nil)
	secret, err := reg.Create("alice", "desk")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	store := NewMemStore()
	r := mux.NewRouter()
	NewHTTP(store, reg).RegisterRoutes(r)
	return reg, store, r, secret
}

func getSeries(t *testing.T, r http.Handler, path, user string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if user != "" {
		req.Header.Set("X-User-Id", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetSeries_AuthMapping(t *testing.T) {
	t.Parallel()

	_, _, r, secret := newSeriesAPI(t)

	w := getSeries(t, r, "/api/v1/metrics/"+secret+"/series", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no header status=%d", w.Code)
	}
	w = getSeries(t, r, "/api/v1/metrics/nope/series", "alice")
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing key status=%d", w.Code)
	}
	w = getSeries(t, r, "/api/v1/metrics/"+secret+"/series", "mallory")
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign key status=%d", w.Code)
	}
}

func TestGetSeries_EmptyIsArrays(t *testing.T) {
	t.Parallel()

	_, _, r, secret := newSeriesAPI(t)

	w := getSeries(t, r, "/api/v1/metrics/"+secret+"/series", "alice")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var resp struct {
		Buckets  []series.Bucket  `json:"buckets"`
		Segments []series.Segment `json:"segments"`
		Gaps     []series.Gap     `json:"gaps"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Buckets == nil || resp.Segments == nil || resp.Gaps == nil {
		t.Fatalf("null arrays in %s", w.Body.String())
	}
}

func TestGetSeries_BucketsAndGaps(t *testing.T) {
	t.Parallel()

	_, store, r, secret := newSeriesAPI(t)

	// два плотных участка с провалом посередине, всё в пределах окна запроса
	base := time.Now().UTC().Add(-10 * time.Minute)
	for _, off := range []time.Duration{0, 30 * time.Second, 60 * time.Second,
		5 * time.Minute, 5*time.Minute + 30*time.Second} {
		if err := store.Record(sampleAt(secret, base.Add(off))); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	w := getSeries(t, r, "/api/v1/metrics/"+secret+"/series?since_sec=3600&width_sec=30&factor=2", "alice")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Buckets  []series.Bucket  `json:"buckets"`
		Segments []series.Segment `json:"segments"`
		Gaps     []series.Gap     `json:"gaps"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Buckets) != 5 {
		t.Fatalf("buckets=%d", len(resp.Buckets))
	}
	if len(resp.Gaps) != 1 || len(resp.Segments) != 2 {
		t.Fatalf("gaps=%d segments=%d", len(resp.Gaps), len(resp.Segments))
	}
}

func sampleAt(secret string, ts time.Time) models.MetricSample {
	return models.MetricSample{Secret: secret, Timestamp: ts, CPU: 10, RAM: 50}
}
