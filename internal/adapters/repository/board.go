package repository

import (
	"bytes"
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/warden/internal/domain/detection"
	"github.com/okian/warden/pkg/metrics"
)

// Treap-based suspect board.
//
// Ordering: certainty DESC, then entity id ASC (deterministic). "less" means
// ranks earlier, so in-order traversal lists the most suspicious first.
// Node priorities are random, which keeps the tree balanced in expectation.

// certaintyScale converts certainty percentages to fixed point so ties
// compare exactly.
const certaintyScale = 1_000_000

type certFP int64

func toFixedPoint(x float64) certFP {
	if math.IsNaN(x) {
		return 0
	}
	x = math.Max(0, math.Min(x, 100))
	return certFP(math.Round(x * certaintyScale))
}

func toFloat(x certFP) float64 { return float64(x) / certaintyScale }

// Suspect is one ranked entity.
type Suspect struct {
	Rank       int
	Entity     uuid.UUID
	Certainty  float64
	Check      detection.CheckType
	Detections int
	UpdatedAt  time.Time
}

// record is the stored state behind a Suspect.
type record struct {
	certainty  certFP
	check      detection.CheckType
	detections int
	updatedAt  time.Time
}

type node struct {
	id        uuid.UUID
	certainty certFP
	prio      uint64
	left      *node
	right     *node
	size      int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func idLess(a, b uuid.UUID) bool { return bytes.Compare(a[:], b[:]) < 0 }

// less returns true if (aC, aID) ranks before (bC, bID).
func less(aC certFP, aID uuid.UUID, bC certFP, bID uuid.UUID) bool {
	if aC != bC {
		return aC > bC
	}
	return idLess(aID, bID)
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id uuid.UUID, c certFP, prio uint64) *node {
	if n == nil {
		return &node{id: id, certainty: c, prio: prio, size: 1}
	}
	if less(c, id, n.certainty, n.id) {
		n.left = insert(n.left, id, c, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, c, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id uuid.UUID, c certFP) *node {
	if n == nil {
		return nil
	}
	switch {
	case c == n.certainty && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, c)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, c)
		}
	case less(c, id, n.certainty, n.id):
		n.left = deleteNode(n.left, id, c)
	default:
		n.right = deleteNode(n.right, id, c)
	}
	fix(n)
	return n
}

// countHigher returns how many entries have a strictly higher certainty.
func countHigher(n *node, c certFP) int {
	count := 0
	for n != nil {
		if n.certainty > c {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectTopN appends up to limit entries in rank order.
func collectTopN(n *node, limit int, byID map[uuid.UUID]record, out *[]Suspect) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, byID, out)
	if len(*out) < limit {
		if rec, ok := byID[n.id]; ok {
			*out = append(*out, rec.suspect(n.id))
		}
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, byID, out)
	}
}

func (r record) suspect(id uuid.UUID) Suspect {
	return Suspect{
		Entity:     id,
		Certainty:  toFloat(r.certainty),
		Check:      r.check,
		Detections: r.detections,
		UpdatedAt:  r.updatedAt,
	}
}

// assignRanks uses competition ranking: equal certainty shares a rank and
// the next distinct certainty ranks at its position.
func assignRanks(entries []Suspect, first int) {
	for i := range entries {
		if i > 0 && entries[i].Certainty == entries[i-1].Certainty {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = first + i
	}
}

// SuspectBoard ranks entities by their highest category certainty.
type SuspectBoard struct {
	mu   sync.RWMutex
	root *node
	byID map[uuid.UUID]record
	rng  *rand.Rand
}

// NewSuspectBoard constructs an empty board.
func NewSuspectBoard(opts ...BoardOption) *SuspectBoard {
	b := &SuspectBoard{
		byID: make(map[uuid.UUID]record),
		rng:  rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Upsert sets the entry for s.Entity, replacing any previous one. Certainty
// is clamped into [0,100].
func (b *SuspectBoard) Upsert(_ context.Context, s Suspect) {
	c := toFixedPoint(s.Certainty)
	updated := s.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	b.mu.Lock()
	if old, ok := b.byID[s.Entity]; ok {
		b.root = deleteNode(b.root, s.Entity, old.certainty)
	}
	b.byID[s.Entity] = record{certainty: c, check: s.Check, detections: s.Detections, updatedAt: updated}
	b.root = insert(b.root, s.Entity, c, b.rng.Uint64())
	count := len(b.byID)
	b.mu.Unlock()

	metrics.UpdateSuspectBoardEntries(count)
}

// Remove deletes the entry for id and reports whether it existed.
func (b *SuspectBoard) Remove(_ context.Context, id uuid.UUID) bool {
	b.mu.Lock()
	old, ok := b.byID[id]
	if ok {
		b.root = deleteNode(b.root, id, old.certainty)
		delete(b.byID, id)
	}
	count := len(b.byID)
	b.mu.Unlock()

	if ok {
		metrics.UpdateSuspectBoardEntries(count)
	}
	return ok
}

// Rank returns the entry and rank for id in O(log n).
func (b *SuspectBoard) Rank(_ context.Context, id uuid.UUID) (Suspect, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.byID[id]
	if !ok {
		return Suspect{}, ErrNotFound
	}
	s := rec.suspect(id)
	s.Rank = countHigher(b.root, rec.certainty) + 1
	return s, nil
}

// TopN returns the n most suspicious entries.
func (b *SuspectBoard) TopN(_ context.Context, n int) ([]Suspect, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Suspect, 0, min(n, len(b.byID)))
	collectTopN(b.root, n, b.byID, &out)
	assignRanks(out, 1)
	return out, nil
}

// Count returns the number of ranked entities.
func (b *SuspectBoard) Count(_ context.Context) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byID)
}
