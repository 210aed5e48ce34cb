package tsdb

import (
	"sync"
	"time"

	"pulse/internal/models"
)

// Store — append-only лог метрик по секретам. Update/delete в контракте
// нет: ретеншен — эксплуатационный вопрос, не наш.
type Store interface {
	Record(sample models.MetricSample) error
	// Query возвращает сэмплы секрета с timestamp >= since,
	// отсортированные по времени по возрастанию.
	Query(secret string, since time.Time) ([]models.MetricSample, error)
}

// ─────────────────────────── in-memory store (fallback) ───────────────────────────

type memSeries struct {
	mu      sync.Mutex
	samples []models.MetricSample
}

// memStore держит отдельный мьютекс на серию: запись одного секрета
// не блокирует запись другого.
type memStore struct {
	mu     sync.RWMutex
	series map[string]*memSeries
}

func NewMemStore() *memStore {
	return &memStore{series: make(map[string]*memSeries)}
}

func (m *memStore) Record(sample models.MetricSample) error {
	m.mu.RLock()
	s, ok := m.series[sample.Secret]
	m.mu.RUnlock()
	if !ok {
		m.mu.Lock()
		s, ok = m.series[sample.Secret]
		if !ok {
			s = &memSeries{}
			m.series[sample.Secret] = s
		}
		m.mu.Unlock()
	}
	s.mu.Lock()
	s.samples = append(s.samples, sample)
	s.mu.Unlock()
	return nil
}

func (m *memStore) Query(secret string, since time.Time) ([]models.MetricSample, error) {
	m.mu.RLock()
	s, ok := m.series[secret]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// снапшот на момент вызова; порядок вставки уже по времени
	// (timestamp ставит сервер)
	out := make([]models.MetricSample, 0, len(s.samples))
	for _, sm := range s.samples {
		if sm.Timestamp.Before(since) {
			continue
		}
		out = append(out, sm)
	}
	return out, nil
}
