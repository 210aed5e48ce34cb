// internal/db/migrations.go
package db

import (
	"fmt"

	"gorm.io/gorm"
)

// MigrateSampleIndex — составной индекс (secret, timestamp) для range-сканов
// выборки метрик. AutoMigrate создаёт его сам, но на старых базах индекса
// может не быть — досоздаём по диалекту.
func MigrateSampleIndex(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	if db.Migrator().HasIndex("metric_samples", "idx_sample_secret_ts") {
		return nil
	}
	dialect := db.Dialector.Name()

	switch dialect {
	case "mysql":
		return db.Exec("CREATE INDEX `idx_sample_secret_ts` ON `metric_samples` (`secret`, `timestamp`)").Error

	case "postgres":
		return db.Exec(`CREATE INDEX IF NOT EXISTS idx_sample_secret_ts ON "metric_samples" ("secret", "timestamp")`).Error

	case "sqlite":
		return db.Exec(`CREATE INDEX IF NOT EXISTS idx_sample_secret_ts ON metric_samples (secret, timestamp)`).Error

	default:
		return fmt.Errorf("unsupported dialect: %s", dialect)
	}
}
