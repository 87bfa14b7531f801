package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/kaislahattu/icmond/internal/store"
)

// fakeStore is a minimal in-memory store.Store used by the Welford
// latency test below; it never fails, since only timing is under test.
type fakeStore struct{}

func (f *fakeStore) InsertSample(ctx context.Context, s store.Sample) error { return nil }
func (f *fakeStore) Close() error                                          { return nil }

func TestMeasureInsertLatencyAccumulatesAllSamples(t *testing.T) {
	w := measureInsertLatency(context.Background(), &fakeStore{}, 20)
	if w.n != 20 {
		t.Fatalf("n = %d, want 20", w.n)
	}
	if w.mean < 0 {
		t.Fatalf("mean must not be negative, got %v", w.mean)
	}
}

func TestShouldEnableStagingCrossesMeanThreshold(t *testing.T) {
	w := welford{n: 10, mean: float64(50 * time.Millisecond)}
	if !shouldEnableStaging(w, 10*time.Millisecond, time.Second) {
		t.Fatal("expected staging to be recommended once mean exceeds threshold")
	}
}

func TestShouldEnableStagingStaysOffBelowThresholds(t *testing.T) {
	w := welford{n: 10, mean: float64(2 * time.Millisecond), max: 5 * time.Millisecond}
	if shouldEnableStaging(w, 10*time.Millisecond, time.Second) {
		t.Fatal("staging should not be recommended when both thresholds are unmet")
	}
}

func TestFormatRuntimeBreakdown(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(400*24*time.Hour + 3*time.Hour + 5*time.Minute + 9*time.Second)
	s := Stats{Start: start, End: end}
	got := s.FormatRuntime()
	want := "1y 35d 3h 5m 9s"
	if got != want {
		t.Fatalf("FormatRuntime() = %q, want %q", got, want)
	}
}
