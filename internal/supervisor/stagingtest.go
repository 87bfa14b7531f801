package supervisor

import (
	"context"
	"math"
	"time"

	"github.com/kaislahattu/icmond/internal/store"
)

// welford accumulates mean and variance of a stream of durations in one
// pass using Welford's online algorithm.
type welford struct {
	n    int
	mean float64
	m2   float64
	max  time.Duration
}

func (w *welford) add(d time.Duration) {
	w.n++
	x := float64(d)
	delta := x - w.mean
	w.mean += delta / float64(w.n)
	delta2 := x - w.mean
	w.m2 += delta * delta2
	if d > w.max {
		w.max = d
	}
}

func (w *welford) stddev() time.Duration {
	if w.n < 2 {
		return 0
	}
	return time.Duration(math.Sqrt(w.m2 / float64(w.n-1)))
}

// measureInsertLatency runs n insert-then-discard probes against s and
// returns the accumulated latency statistics.
func measureInsertLatency(ctx context.Context, s store.Store, n int) welford {
	var w welford
	for i := 0; i < n; i++ {
		start := time.Now()
		_ = s.InsertSample(ctx, store.Sample{Timestamp: time.Now()})
		w.add(time.Since(start))
	}
	return w
}

// shouldEnableStaging reports whether the measured latency distribution
// crosses meanThreshold or maxThreshold.
func shouldEnableStaging(w welford, meanThreshold, maxThreshold time.Duration) bool {
	return time.Duration(w.mean) > meanThreshold || w.max > maxThreshold
}

// StagingTestResult is the exported summary of a staging latency test.
type StagingTestResult struct {
	Samples          int
	Mean             time.Duration
	StdDev           time.Duration
	Max              time.Duration
	RecommendStaging bool
}

// Default latency thresholds: a persistent store slower than these on
// average, or with a worst-case outlier this large, is judged unsuitable
// for direct per-tick writes and the daemon should stage to tmpfs
// instead.
const (
	DefaultMeanLatencyThreshold = 50 * time.Millisecond
	DefaultMaxLatencyThreshold  = 250 * time.Millisecond
)

// DefaultStagingTestSamples is the sample count used for the latency
// test run automatically at startup when Ramdisk is AUTO; the
// -testdbwrite admin command takes its own count from the command line
// instead.
const DefaultStagingTestSamples = 20

// RunStagingTest measures n insert latencies against s and reports
// whether ramdisk staging should be recommended. This is the shared
// entry point for both the -testdbwrite admin command and the automatic
// check performed at startup when Ramdisk is AUTO.
func RunStagingTest(ctx context.Context, s store.Store, n int) StagingTestResult {
	w := measureInsertLatency(ctx, s, n)
	return StagingTestResult{
		Samples:          w.n,
		Mean:             time.Duration(w.mean),
		StdDev:           w.stddev(),
		Max:              w.max,
		RecommendStaging: shouldEnableStaging(w, DefaultMeanLatencyThreshold, DefaultMaxLatencyThreshold),
	}
}
