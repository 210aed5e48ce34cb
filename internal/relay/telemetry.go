package relay

import (
	"fmt"
	"strings"
)

// Telemetry — снапшот метрик, который агент шлёт в push.
// Проценты 0..100, байтовые поля в байтах, uptime в секундах.
type Telemetry struct {
	CPU       float64 `json:"cpu"`
	RAM       float64 `json:"ram"`
	RAMUsed   float64 `json:"ram_used"`
	RAMTotal  float64 `json:"ram_total"`
	Swap      float64 `json:"swap"`
	SwapUsed  float64 `json:"swap_used"`
	SwapTotal float64 `json:"swap_total"`
	Uptime    float64 `json:"uptime"`

	CPUTemp   *float64 `json:"cpu_temp,omitempty"`
	GPU       *float64 `json:"gpu,omitempty"`
	VRAM      *float64 `json:"vram,omitempty"`
	VRAMUsed  *float64 `json:"vram_used,omitempty"`
	VRAMTotal *float64 `json:"vram_total,omitempty"`
	GPUTemp   *float64 `json:"gpu_temp,omitempty"`

	Disks []Disk `json:"disks"`
}

// Disk — использование одной точки монтирования.
type Disk struct {
	Mount   string  `json:"mount"`
	Used    float64 `json:"used"`
	Total   float64 `json:"total"`
	Percent float64 `json:"percent"`
}

// Validate отбраковывает кривой payload до любой записи в сторы:
// сторы никогда не видят частично применённый сэмпл.
func (t Telemetry) Validate() error {
	if err := percent("cpu", t.CPU); err != nil {
		return err
	}
	if err := percent("ram", t.RAM); err != nil {
		return err
	}
	if err := percent("swap", t.Swap); err != nil {
		return err
	}
	if t.Uptime < 0 {
		return fmt.Errorf("uptime must be >= 0")
	}
	if t.RAMUsed < 0 || t.RAMTotal < 0 || t.RAMUsed > t.RAMTotal {
		return fmt.Errorf("ram_used/ram_total inconsistent")
	}
	if t.SwapUsed < 0 || t.SwapTotal < 0 || t.SwapUsed > t.SwapTotal {
		return fmt.Errorf("swap_used/swap_total inconsistent")
	}
	if t.GPU != nil {
		if err := percent("gpu", *t.GPU); err != nil {
			return err
		}
	}
	if t.VRAM != nil {
		if err := percent("vram", *t.VRAM); err != nil {
			return err
		}
	}
	for i, d := range t.Disks {
		if strings.TrimSpace(d.Mount) == "" {
			return fmt.Errorf("disks[%d]: mount required", i)
		}
		if err := percent(fmt.Sprintf("disks[%d].percent", i), d.Percent); err != nil {
			return err
		}
		if d.Used < 0 || d.Total < 0 || d.Used > d.Total {
			return fmt.Errorf("disks[%d]: used/total inconsistent", i)
		}
	}
	return nil
}

func percent(field string, v float64) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("%s must be within 0..100, got %g", field, v)
	}
	return nil
}
