package market

import (
	"math"
	"testing"
)

func TestVolatilityEmptyAndSingle(t *testing.T) {
	tracker := NewVolatilityTracker(5)
	if got := tracker.Current(); got != 0 {
		t.Fatalf("expected 0 with no samples, got %g", got)
	}
	tracker.Record(100)
	if got := tracker.Current(); got != 0 {
		t.Fatalf("expected 0 with one sample, got %g", got)
	}
}

func TestVolatilityMeanAbsDiff(t *testing.T) {
	tracker := NewVolatilityTracker(10)
	for _, p := range []float64{100, 102, 101} {
		tracker.Record(p)
	}
	want := (2.0 + 1.0) / 2.0
	if got := tracker.Current(); math.Abs(got-want) > 1e-12 {
		t.Fatalf("expected %g, got %g", want, got)
	}
}

func TestVolatilityWindowEviction(t *testing.T) {
	tracker := NewVolatilityTracker(3)
	for _, p := range []float64{10, 12, 11, 15} {
		tracker.Record(p)
	}
	if tracker.Len() != 3 {
		t.Fatalf("expected window of 3, got %d", tracker.Len())
	}
	// window holds [12, 11, 15]: diffs 1 and 4
	want := 2.5
	if got := tracker.Current(); math.Abs(got-want) > 1e-12 {
		t.Fatalf("expected %g, got %g", want, got)
	}
}

func TestVolatilityMinimumCapacity(t *testing.T) {
	tracker := NewVolatilityTracker(0)
	tracker.Record(1)
	tracker.Record(3)
	tracker.Record(7)
	// capacity clamps to 2, window holds [3, 7]
	if got := tracker.Current(); got != 4 {
		t.Fatalf("expected 4, got %g", got)
	}
}
