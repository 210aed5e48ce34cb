package tsdb

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pulse/internal/keyreg"
	"pulse/internal/models"
	"pulse/internal/series"

	"github.com/gorilla/mux"
)

// Authorizer — проверка владения перед выдачей чужих метрик.
type Authorizer interface {
	Authorize(secret, user string) error
}

// HTTP — выдача агрегированного ряда для рендера графиков.
// Числа и границы разрывов; картинку рисует фронт.
type HTTP struct {
	store Store
	auth  Authorizer
}

func NewHTTP(store Store, auth Authorizer) *HTTP {
	return &HTTP{store: store, auth: auth}
}

func (h *HTTP) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()

	// GET /api/v1/metrics/{secret}/series?since_sec=3600&width_sec=30&factor=2
	api.HandleFunc("/metrics/{secret}/series", h.getSeries).Methods(http.MethodGet)
}

type seriesResponse struct {
	Buckets  []series.Bucket  `json:"buckets"`
	Segments []series.Segment `json:"segments"`
	Gaps     []series.Gap     `json:"gaps"`
}

func (h *HTTP) getSeries(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if user == "" {
		models.WriteProblem(w, http.StatusUnauthorized, "Unauthorized", "X-User-Id header required", nil)
		return
	}
	secret := mux.Vars(r)["secret"]

	if err := h.auth.Authorize(secret, user); err != nil {
		switch {
		case errors.Is(err, keyreg.ErrNotFound):
			models.WriteProblem(w, http.StatusNotFound, "Not found", "key not found", nil)
		case errors.Is(err, keyreg.ErrNoAccess):
			models.WriteProblem(w, http.StatusForbidden, "Forbidden", "no access to key", nil)
		default:
			models.WriteProblem(w, http.StatusInternalServerError, "Internal", err.Error(), nil)
		}
		return
	}

	sinceSec := queryInt(r, "since_sec", 3600)
	widthSec := queryInt(r, "width_sec", int(series.DefaultBucketWidth/time.Second))
	factor := queryFloat(r, "factor", series.DefaultGapFactor)

	samples, err := h.store.Query(secret, time.Now().Add(-time.Duration(sinceSec)*time.Second).UTC())
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Store failed", err.Error(), nil)
		return
	}

	buckets := series.BucketSamples(samples, time.Duration(widthSec)*time.Second)
	timestamps := make([]time.Time, 0, len(samples))
	for _, s := range samples {
		timestamps = append(timestamps, s.Timestamp)
	}
	segments, gaps := series.FindGaps(timestamps, factor)

	resp := seriesResponse{Buckets: buckets, Segments: segments, Gaps: gaps}
	if resp.Buckets == nil {
		resp.Buckets = []series.Bucket{}
	}
	if resp.Segments == nil {
		resp.Segments = []series.Segment{}
	}
	if resp.Gaps == nil {
		resp.Gaps = []series.Gap{}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(resp)
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func queryFloat(r *http.Request, key string, def float64) float64 {
	v, err := strconv.ParseFloat(r.URL.Query().Get(key), 64)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
