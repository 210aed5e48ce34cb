package repo

import (
	"time"

	"pulse/internal/models"
	"pulse/internal/tsdb"

	"gorm.io/gorm"
)

// MetricStore — gorm-реализация tsdb.Store. Вставки независимых секретов
// не сериализуются нами: конкуренцию разруливает сама БД.
type MetricStore struct {
	db *gorm.DB
}

func NewMetricStore(db *gorm.DB) *MetricStore {
	return &MetricStore{db: db}
}

var _ tsdb.Store = (*MetricStore)(nil)

func (s *MetricStore) Record(sample models.MetricSample) error {
	return s.db.Create(&sample).Error
}

func (s *MetricStore) Query(secret string, since time.Time) ([]models.MetricSample, error) {
	var out []models.MetricSample
	err := s.db.
		Where("secret = ? AND timestamp >= ?", secret, since).
		Order("timestamp ASC, id ASC").
		Find(&out).Error
	return out, err
}
