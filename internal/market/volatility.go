package market

// VolatilityTracker keeps a bounded window of price samples and reports the
// mean absolute first difference over the window, an ATR-like estimate.
// It is written from the single cycle goroutine and needs no locking.
type VolatilityTracker struct {
	capacity int
	samples  []float64
}

func NewVolatilityTracker(capacity int) *VolatilityTracker {
	if capacity < 2 {
		capacity = 2
	}
	return &VolatilityTracker{capacity: capacity}
}

// Record appends a price sample, evicting the oldest once at capacity.
func (t *VolatilityTracker) Record(price float64) {
	t.samples = append(t.samples, price)
	if len(t.samples) > t.capacity {
		t.samples = t.samples[len(t.samples)-t.capacity:]
	}
}

// Current returns 0 until at least two samples have been recorded.
func (t *VolatilityTracker) Current() float64 {
	if len(t.samples) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(t.samples); i++ {
		diff := t.samples[i] - t.samples[i-1]
		if diff < 0 {
			diff = -diff
		}
		sum += diff
	}
	return sum / float64(len(t.samples)-1)
}

// Len reports how many samples the window currently holds.
func (t *VolatilityTracker) Len() int {
	return len(t.samples)
}
