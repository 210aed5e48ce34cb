package main

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"strings"
	"syscall"

	"pulse/internal/relay"
)

// procCollector — минимальный сборщик метрик по /proc (linux).
// Датчики температур и GPU здесь не читаем: это зона внешних
// коллекторов, агенту достаточно интерфейса agent.Collector.
type procCollector struct {
	prevIdle  uint64
	prevTotal uint64
}

func newProcCollector() *procCollector { return &procCollector{} }

func (c *procCollector) Collect(_ context.Context) (relay.Telemetry, error) {
	var t relay.Telemetry

	t.CPU = c.cpuPercent()
	c.fillMemory(&t)
	t.Uptime = readUptime()
	t.Disks = gatherDisks()

	return t, nil
}

// cpuPercent — загрузка по дельте /proc/stat между вызовами.
// Первый вызов вернёт 0: дельты ещё нет.
func (c *procCollector) cpuPercent() float64 {
	line := firstLine("/proc/stat")
	fields := strings.Fields(line)
	if len(fields) < 5 || fields[0] != "cpu" {
		return 0
	}
	var total, idle uint64
	for i, f := range fields[1:] {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			continue
		}
		total += v
		if i == 3 { // idle
			idle = v
		}
	}
	defer func() { c.prevIdle, c.prevTotal = idle, total }()
	dTotal := total - c.prevTotal
	dIdle := idle - c.prevIdle
	if c.prevTotal == 0 || dTotal == 0 {
		return 0
	}
	return float64(dTotal-dIdle) / float64(dTotal) * 100
}

func (c *procCollector) fillMemory(t *relay.Telemetry) {
	mem := readMeminfo()
	total := mem["MemTotal"]
	avail := mem["MemAvailable"]
	if total > 0 {
		t.RAMTotal = float64(total)
		t.RAMUsed = float64(total - avail)
		t.RAM = t.RAMUsed / t.RAMTotal * 100
	}
	swapTotal := mem["SwapTotal"]
	swapFree := mem["SwapFree"]
	if swapTotal > 0 {
		t.SwapTotal = float64(swapTotal)
		t.SwapUsed = float64(swapTotal - swapFree)
		t.Swap = t.SwapUsed / t.SwapTotal * 100
	}
}

func gatherDisks() []relay.Disk {
	var out []relay.Disk
	for _, mount := range []string{"/", "/home"} {
		var st syscall.Statfs_t
		if err := syscall.Statfs(mount, &st); err != nil {
			continue
		}
		total := float64(st.Blocks) * float64(st.Bsize)
		free := float64(st.Bavail) * float64(st.Bsize)
		if total == 0 {
			continue
		}
		used := total - free
		out = append(out, relay.Disk{
			Mount:   mount,
			Used:    used,
			Total:   total,
			Percent: used / total * 100,
		})
	}
	return out
}

func readUptime() float64 {
	fields := strings.Fields(firstLine("/proc/uptime"))
	if len(fields) == 0 {
		return 0
	}
	v, _ := strconv.ParseFloat(fields[0], 64)
	return v
}

// readMeminfo — значения /proc/meminfo в байтах.
func readMeminfo() map[string]uint64 {
	out := map[string]uint64{}
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return out
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		key := strings.TrimSuffix(fields[0], ":")
		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		out[key] = v * 1024 // kB
	}
	return out
}

func firstLine(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	if sc.Scan() {
		return sc.Text()
	}
	return ""
}
