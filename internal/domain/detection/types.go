// Package detection defines the generic check framework: cheat categories,
// the Version contract implemented by individual heuristics, running
// evidence statistics and the immutable Detection record.
package detection

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NoSamples is returned by certainty queries before any sample was judged.
const NoSamples = -1.0

// CheckType identifies a cheat category.
type CheckType uint8

const (
	// NoFall is damage suppression during falls.
	NoFall CheckType = iota + 1
)

// catalogue lists every known category in registration order.
var catalogue = []CheckType{NoFall}

// Catalogue returns every known category.
func Catalogue() []CheckType {
	return append([]CheckType(nil), catalogue...)
}

// CatalogueSize is the number of categories, which bounds a profile's checks.
func CatalogueSize() int { return len(catalogue) }

func (t CheckType) String() string {
	switch t {
	case NoFall:
		return "nofall"
	default:
		return "unknown"
	}
}

// Valid reports whether t belongs to the catalogue.
func (t CheckType) Valid() bool {
	for _, c := range catalogue {
		if c == t {
			return true
		}
	}
	return false
}

// MarshalText encodes the category by name.
func (t CheckType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, ErrUnknownCheckType
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes a category name.
func (t *CheckType) UnmarshalText(b []byte) error {
	parsed, ok := ParseCheckType(string(b))
	if !ok {
		return ErrUnknownCheckType
	}
	*t = parsed
	return nil
}

// ParseCheckType maps a category name to its CheckType.
func ParseCheckType(s string) (CheckType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range catalogue {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// Detection is an immutable record of one confirmed violation.
type Detection struct {
	ID        uuid.UUID `json:"id"`
	Entity    uuid.UUID `json:"entity"`
	Check     CheckType `json:"check"`
	Version   string    `json:"version"`
	Certainty float64   `json:"certainty"`
	At        time.Time `json:"at"`
}

// Version is one heuristic accumulating evidence for a category.
type Version interface {
	// Name is the short version label, e.g. "A".
	Name() string
	Description() string

	// Call consumes one event for the owning entity. Events a version does
	// not understand are ignored.
	Call(ctx context.Context, event any)

	// CheckCurrentCertainty returns a value in [0,100], or NoSamples. It
	// never mutates state.
	CheckCurrentCertainty() float64
}

// Recorder receives detections filed by a Check.
type Recorder interface {
	AddDetection(ctx context.Context, d Detection)
}
