package app

import "time"

const (
	timerWindow     = 30
	timerMinSamples = 10
)

// FrameTimer скользящее окно длительностей кадров.
type FrameTimer struct {
	window []time.Duration
	next   int
	count  int
}

// NewFrameTimer создаёт окно на size кадров.
func NewFrameTimer(size int) *FrameTimer {
	if size <= 0 {
		size = timerWindow
	}
	return &FrameTimer{window: make([]time.Duration, size)}
}

// Add добавляет длительность кадра и возвращает текущий FPS.
func (t *FrameTimer) Add(d time.Duration) float64 {
	t.window[t.next] = d
	t.next = (t.next + 1) % len(t.window)
	if t.count < len(t.window) {
		t.count++
	}
	return t.FPS()
}

// FPS средняя частота по окну. Ноль, пока кадров меньше десяти.
func (t *FrameTimer) FPS() float64 {
	if t.count < timerMinSamples {
		return 0
	}
	var sum time.Duration
	for i := 0; i < t.count; i++ {
		sum += t.window[i]
	}
	if sum <= 0 {
		return 0
	}
	return float64(t.count) / sum.Seconds()
}
