package detection

import (
	"math"
	"sync"
)

// Stats counts judged and anomalous samples. The zero value is ready to use.
// Judge is the single writer; Certainty may be called from any goroutine.
type Stats struct {
	mu        sync.RWMutex
	judged    uint64
	anomalous uint64
}

// Judge records one judged sample.
func (s *Stats) Judge(anomalous bool) {
	s.mu.Lock()
	s.judged++
	if anomalous {
		s.anomalous++
	}
	s.mu.Unlock()
}

// Totals returns the judged and anomalous counts.
func (s *Stats) Totals() (judged, anomalous uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.judged, s.anomalous
}

// Certainty is anomalous/judged*100, or NoSamples when nothing was judged.
func (s *Stats) Certainty() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.judged == 0 {
		return NoSamples
	}
	return float64(s.anomalous) / float64(s.judged) * 100
}

// Displacement accumulates a continuous quantity that should have been lost
// against the share of it that was not. The ratio is clamped to [0,100].
type Displacement struct {
	mu        sync.RWMutex
	expected  float64
	displaced float64
}

// Observe records one sample where expected units should have been lost and
// actual were. Non-positive expectations carry no information and are skipped.
func (d *Displacement) Observe(expected, actual float64) {
	if expected <= 0 || math.IsNaN(expected) || math.IsNaN(actual) {
		return
	}
	missing := math.Max(0, math.Min(expected-actual, expected))
	d.mu.Lock()
	d.expected += expected
	d.displaced += missing
	d.mu.Unlock()
}

// Ratio returns displaced/expected*100, or NoSamples before any observation.
func (d *Displacement) Ratio() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.expected == 0 {
		return NoSamples
	}
	return math.Max(0, math.Min(d.displaced/d.expected*100, 100))
}
