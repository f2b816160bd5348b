package sink

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/okian/warden/internal/domain/detection"
)

const (
	defaultLedgerTTL      = 10 * time.Minute
	defaultCleanupPeriod  = time.Minute
	maxDetectionsPerEntry = 64
)

// Ledger keeps recent detections per entity for a TTL window, independent
// of whether the entity is still online.
type Ledger struct {
	ttl    time.Duration
	period time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	entries map[uuid.UUID]*LedgerEntry
}

// LedgerEntry is the recent detection history of one entity.
type LedgerEntry struct {
	Entity     uuid.UUID             `json:"entity"`
	Detections []detection.Detection `json:"detections"`
	Total      int                   `json:"total"`
	Recorded   time.Time             `json:"recorded"`
}

// LedgerSummary aggregates the live window.
type LedgerSummary struct {
	ByCheck         map[string]int `json:"byCheck"`
	ActiveEntities  int            `json:"activeEntities"`
	TotalDetections int            `json:"totalDetections"`
	MaxCertainty    float64        `json:"maxCertainty"`
	LastUpdated     time.Time      `json:"lastUpdated"`
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithTTL sets how long an entity stays in the ledger after its last detection.
func WithTTL(ttl time.Duration) LedgerOption {
	return func(l *Ledger) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithCleanupPeriod sets how often Serve evicts expired entries.
func WithCleanupPeriod(d time.Duration) LedgerOption {
	return func(l *Ledger) {
		if d > 0 {
			l.period = d
		}
	}
}

// WithLedgerClock overrides the ledger clock.
func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLedger creates an empty ledger.
func NewLedger(opts ...LedgerOption) *Ledger {
	l := &Ledger{
		ttl:     defaultLedgerTTL,
		period:  defaultCleanupPeriod,
		now:     time.Now,
		entries: make(map[uuid.UUID]*LedgerEntry),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Publish implements Sink.
func (l *Ledger) Publish(_ context.Context, d detection.Detection) {
	if d.Entity == uuid.Nil {
		return
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[d.Entity]
	if !ok || now.Sub(e.Recorded) > l.ttl {
		e = &LedgerEntry{Entity: d.Entity}
		l.entries[d.Entity] = e
	}
	e.Detections = append(e.Detections, d)
	if len(e.Detections) > maxDetectionsPerEntry {
		e.Detections = append([]detection.Detection(nil), e.Detections[len(e.Detections)-maxDetectionsPerEntry:]...)
	}
	e.Total++
	e.Recorded = now
}

// Snapshot returns copies of the live entries, most recent first.
func (l *Ledger) Snapshot() []LedgerEntry {
	now := l.now()
	l.mu.RLock()
	out := make([]LedgerEntry, 0, len(l.entries))
	for _, e := range l.entries {
		if now.Sub(e.Recorded) > l.ttl {
			continue
		}
		cp := *e
		cp.Detections = append([]detection.Detection(nil), e.Detections...)
		out = append(out, cp)
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Recorded.After(out[j].Recorded) })
	return out
}

// Entry returns the live entry for id.
func (l *Ledger) Entry(id uuid.UUID) (LedgerEntry, bool) {
	now := l.now()
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[id]
	if !ok || now.Sub(e.Recorded) > l.ttl {
		return LedgerEntry{}, false
	}
	cp := *e
	cp.Detections = append([]detection.Detection(nil), e.Detections...)
	return cp, true
}

// Summary aggregates the live window.
func (l *Ledger) Summary() LedgerSummary {
	s := LedgerSummary{ByCheck: make(map[string]int)}
	for _, e := range l.Snapshot() {
		s.ActiveEntities++
		for _, d := range e.Detections {
			s.ByCheck[d.Check.String()]++
			if d.Certainty > s.MaxCertainty {
				s.MaxCertainty = d.Certainty
			}
		}
		s.TotalDetections += e.Total
		if e.Recorded.After(s.LastUpdated) {
			s.LastUpdated = e.Recorded
		}
	}
	return s
}

// Cleanup evicts expired entries and returns how many were removed.
func (l *Ledger) Cleanup() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for id, e := range l.entries {
		if now.Sub(e.Recorded) > l.ttl {
			delete(l.entries, id)
			removed++
		}
	}
	return removed
}

// Export writes the live entries as JSON.
func (l *Ledger) Export(w io.Writer) error {
	return json.NewEncoder(w).Encode(l.Snapshot())
}

// Serve evicts expired entries periodically until ctx is done. It satisfies
// suture.Service.
func (l *Ledger) Serve(ctx context.Context) error {
	ticker := time.NewTicker(l.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.Cleanup()
		}
	}
}
