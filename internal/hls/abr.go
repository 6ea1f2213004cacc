package hls

import "sync"

const (
	defaultEWMAAlpha      = 0.3
	defaultBandwidthGuard = 0.8
)

// bandwidthEstimator keeps an exponentially weighted moving average of download throughput in bits per second.
type bandwidthEstimator struct {
	mu       sync.Mutex
	alpha    float64
	estimate float64
	samples  int
}

func newBandwidthEstimator(alpha float64) *bandwidthEstimator {
	if alpha <= 0 || alpha > 1 {
		alpha = defaultEWMAAlpha
	}
	return &bandwidthEstimator{alpha: alpha}
}

// Sample records a download of n bytes taking seconds.
func (b *bandwidthEstimator) Sample(n int, seconds float64) {
	if n <= 0 || seconds <= 0 {
		return
	}
	bps := float64(n*8) / seconds

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.samples == 0 {
		b.estimate = bps
	} else {
		b.estimate = b.alpha*bps + (1-b.alpha)*b.estimate
	}
	b.samples++
}

// Estimate returns the current estimate and whether any sample has been taken.
func (b *bandwidthEstimator) Estimate() (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.estimate, b.samples > 0
}

// selectLevel returns the index of the highest-bandwidth level that fits within guard*estimate.
//
// levels must be sorted by ascending bandwidth. Without an estimate, fallback is returned.
func selectLevel(levels []Level, estimate float64, ok bool, guard float64, fallback int) int {
	if len(levels) == 0 {
		return 0
	}
	if !ok {
		if fallback < 0 || fallback >= len(levels) {
			return 0
		}
		return fallback
	}

	budget := estimate * guard
	chosen := 0
	for i, l := range levels {
		if float64(l.Bandwidth) <= budget {
			chosen = i
		}
	}
	return chosen
}
