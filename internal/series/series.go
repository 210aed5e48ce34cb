// Package series превращает сырые метрики в данные для графика:
// ведёрная агрегация фиксированной ширины и классификация разрывов
// сбора, чтобы офлайн-периоды рисовались обрывом линии, а не
// интерполяцией через полчаса тишины.
package series

import (
	"sort"
	"time"

	"pulse/internal/models"
)

const (
	// DefaultBucketWidth — ширина ведра для усреднения при отрисовке.
	DefaultBucketWidth = 30 * time.Second

	// DefaultGapFactor — во сколько раз интервал должен превышать
	// медианный, чтобы считаться разрывом.
	DefaultGapFactor = 2.0

	// fallbackInterval — базовый интервал, когда выборка слишком
	// мала, чтобы оценить медиану.
	fallbackInterval = 60 * time.Second
)

// Bucket — усреднённые значения одного временного окна.
// Поле, отсутствующее во всех сэмплах окна, остаётся nil, не нулём.
type Bucket struct {
	Start   time.Time `json:"start"`
	Count   int       `json:"count"`
	CPU     *float64  `json:"cpu,omitempty"`
	RAM     *float64  `json:"ram,omitempty"`
	GPU     *float64  `json:"gpu,omitempty"`
	VRAM    *float64  `json:"vram,omitempty"`
	CPUTemp *float64  `json:"cpu_temp,omitempty"`
}

// Segment — непрерывный участок ряда (между разрывами).
type Segment struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Gap — интервал между сэмплами, классифицированный как разрыв сбора.
type Gap struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// BucketSamples группирует сэмплы в окна ширины width по ключу
// timestamp - (timestamp mod width) и усредняет каждое числовое поле.
// Вход должен быть отсортирован по времени (так отдаёт tsdb.Store);
// результат упорядочен по началу окна.
func BucketSamples(samples []models.MetricSample, width time.Duration) []Bucket {
	if width <= 0 {
		width = DefaultBucketWidth
	}
	if len(samples) == 0 {
		return nil
	}

	type acc struct {
		count int
		cpu   float64
		ram   float64
		gpu     *sumCount
		vram    *sumCount
		cpuTemp *sumCount
	}

	w := width.Nanoseconds()
	byStart := make(map[int64]*acc)
	starts := make([]int64, 0, 8)

	for _, s := range samples {
		ts := s.Timestamp.UnixNano()
		start := ts - ts%w
		a, ok := byStart[start]
		if !ok {
			a = &acc{gpu: &sumCount{}, vram: &sumCount{}, cpuTemp: &sumCount{}}
			byStart[start] = a
			starts = append(starts, start)
		}
		a.count++
		a.cpu += s.CPU
		a.ram += s.RAM
		a.gpu.add(s.GPU)
		a.vram.add(s.VRAM)
		a.cpuTemp.add(s.CPUTemp)
	}

	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	out := make([]Bucket, 0, len(starts))
	for _, start := range starts {
		a := byStart[start]
		n := float64(a.count)
		cpu := a.cpu / n
		ram := a.ram / n
		out = append(out, Bucket{
			Start:   time.Unix(0, start).UTC(),
			Count:   a.count,
			CPU:     &cpu,
			RAM:     &ram,
			GPU:     a.gpu.avg(),
			VRAM:    a.vram.avg(),
			CPUTemp: a.cpuTemp.avg(),
		})
	}
	return out
}

// FindGaps делит упорядоченный ряд таймстемпов на сегменты.
// Порог — медиана соседних интервалов, умноженная на factor; медиана
// (а не среднее) держит порог устойчивым к одному длинному интервалу
// на старте. Меньше двух сэмплов — медиану взять неоткуда, берём 60s.
func FindGaps(timestamps []time.Time, factor float64) ([]Segment, []Gap) {
	if factor <= 0 {
		factor = DefaultGapFactor
	}
	if len(timestamps) == 0 {
		return nil, nil
	}
	if len(timestamps) == 1 {
		return []Segment{{From: timestamps[0], To: timestamps[0]}}, nil
	}

	deltas := make([]time.Duration, 0, len(timestamps)-1)
	for i := 1; i < len(timestamps); i++ {
		deltas = append(deltas, timestamps[i].Sub(timestamps[i-1]))
	}

	median := medianDuration(deltas)
	if median <= 0 {
		// вырожденный ряд: все интервалы нулевые — берём максимум,
		// иначе 60s
		median = maxDuration(deltas)
		if median <= 0 {
			median = fallbackInterval
		}
	}
	threshold := time.Duration(float64(median) * factor)

	var segments []Segment
	var gaps []Gap
	segStart := timestamps[0]
	for i := 1; i < len(timestamps); i++ {
		if timestamps[i].Sub(timestamps[i-1]) > threshold {
			segments = append(segments, Segment{From: segStart, To: timestamps[i-1]})
			gaps = append(gaps, Gap{From: timestamps[i-1], To: timestamps[i]})
			segStart = timestamps[i]
		}
	}
	segments = append(segments, Segment{From: segStart, To: timestamps[len(timestamps)-1]})
	return segments, gaps
}

type sumCount struct {
	sum   float64
	count int
}

func (s *sumCount) add(v *float64) {
	if v == nil {
		return
	}
	s.sum += *v
	s.count++
}

func (s *sumCount) avg() *float64 {
	if s.count == 0 {
		return nil
	}
	v := s.sum / float64(s.count)
	return &v
}

func medianDuration(ds []time.Duration) time.Duration {
	sorted := make([]time.Duration, len(ds))
	copy(sorted, ds)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func maxDuration(ds []time.Duration) time.Duration {
	var max time.Duration
	for _, d := range ds {
		if d > max {
			max = d
		}
	}
	return max
}
