package models

import "time"

// MetricSample — одна точка телеметрии. Append-only; timestamp ставит
// сервер в момент приёма, не клиент.
type MetricSample struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Secret    string    `gorm:"size:64;index:idx_sample_secret_ts,priority:1" json:"-"`
	Timestamp time.Time `gorm:"index:idx_sample_secret_ts,priority:2" json:"timestamp"`

	CPU       float64  `json:"cpu"`  // percent 0-100
	RAM       float64  `json:"ram"`  // percent 0-100
	GPU       *float64 `json:"gpu,omitempty"`
	VRAM      *float64 `json:"vram,omitempty"`
	CPUTemp   *float64 `json:"cpu_temp,omitempty"` // °C
	UptimeSec float64  `json:"uptime"`
}
