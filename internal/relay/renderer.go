package relay

import (
	"fmt"
	"strings"
	"time"
)

// TextRenderer — дефолтный рендер статуса: компактный текст для чата.
type TextRenderer struct{}

func NewTextRenderer() *TextRenderer { return &TextRenderer{} }

func (r *TextRenderer) Render(t Telemetry) string {
	lines := []string{
		"💻 PC stats",
		"⏳ Uptime: " + formatUptime(t.Uptime),
		"━━━━━━━━━━━CPU━━━━━━━━━━━",
		fmt.Sprintf("🖥️ CPU: %.1f%%", t.CPU),
		"🌡️ CPU Temp: " + formatTemp(t.CPUTemp),
		"━━━━━━━━━━━RAM━━━━━━━━━━━",
		fmt.Sprintf("🧠 RAM: %s / %s (%.1f%%)", humanBytes(t.RAMUsed), humanBytes(t.RAMTotal), t.RAM),
		fmt.Sprintf("🧠 SWAP: %s / %s (%.1f%%)", humanBytes(t.SwapUsed), humanBytes(t.SwapTotal), t.Swap),
	}

	if t.GPU != nil {
		lines = append(lines,
			"━━━━━━━━━━━GPU━━━━━━━━━━━",
			fmt.Sprintf("🎮 GPU: %.1f%%", *t.GPU),
		)
		if t.VRAMUsed != nil && t.VRAMTotal != nil && *t.VRAMTotal > 0 {
			lines = append(lines, fmt.Sprintf("🗄️ VRAM: %.0f / %.0f MiB (%.1f%%)",
				*t.VRAMUsed/(1<<20), *t.VRAMTotal/(1<<20), *t.VRAMUsed / *t.VRAMTotal*100))
		}
		if t.GPUTemp != nil {
			lines = append(lines, fmt.Sprintf("🌡️ GPU Temp: %.0f °C", *t.GPUTemp))
		}
	}

	if len(t.Disks) > 0 {
		lines = append(lines, "━━━━━━━━━━━DISKS━━━━━━━━━━")
		for _, d := range t.Disks {
			line := fmt.Sprintf("💾 %s: %s %.0f%% (%s / %s)",
				d.Mount, diskBar(d.Percent, 10), d.Percent, humanBytes(d.Used), humanBytes(d.Total))
			if d.Percent >= 90 {
				line += "❗"
			}
			lines = append(lines, line)
		}
	}

	return strings.Join(lines, "\n")
}

var unitNames = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

func humanBytes(num float64) string {
	for _, unit := range unitNames {
		if num < 1024 {
			return fmt.Sprintf("%.1f %s", num, unit)
		}
		num /= 1024
	}
	return fmt.Sprintf("%.1f EiB", num)
}

func diskBar(p float64, length int) string {
	filled := int(p*float64(length)/100 + 0.5)
	if filled < 0 {
		filled = 0
	}
	if filled > length {
		filled = length
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", length-filled)
}

func formatUptime(seconds float64) string {
	return (time.Duration(seconds) * time.Second).String()
}

func formatTemp(t *float64) string {
	if t == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f °C", *t)
}
