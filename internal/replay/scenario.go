// Package replay runs scripted movement scenarios through the detection
// service against an in-memory world and reports what was flagged.
package replay

import (
	"fmt"
	"io"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/okian/warden/internal/domain/model"
	"gopkg.in/yaml.v3"
)

// Vec is a position written as a three element YAML sequence.
type Vec [3]float64

func (v Vec) vec3() mgl64.Vec3 { return mgl64.Vec3{v[0], v[1], v[2]} }

// Scenario is a scripted world: blocks, entities and the steps they take.
type Scenario struct {
	Name     string       `yaml:"name"`
	Blocks   []Box        `yaml:"blocks"`
	Entities []EntitySpec `yaml:"entities"`
	Steps    []Step       `yaml:"steps"`
}

// Box fills the inclusive block range From..To with Material.
type Box struct {
	From     Vec    `yaml:"from"`
	To       Vec    `yaml:"to"`
	Material string `yaml:"material"`
}

// EntitySpec describes one player at the start of the scenario.
type EntitySpec struct {
	Name               string         `yaml:"name"`
	ID                 string         `yaml:"id"`
	Position           Vec            `yaml:"position"`
	GameMode           string         `yaml:"gamemode"`
	Health             *float64       `yaml:"health"`
	MaxHealth          *float64       `yaml:"max_health"`
	SuppressFallDamage bool           `yaml:"suppress_fall_damage"`
	Boots              map[string]int `yaml:"boots"`
	Effects            []EffectSpec   `yaml:"effects"`
}

// EffectSpec is an active status effect.
type EffectSpec struct {
	Type      string `yaml:"type"`
	Amplifier int    `yaml:"amplifier"`
}

// Step is one scripted action. Exactly one action field is set; every
// action except tick names an entity.
type Step struct {
	Entity string `yaml:"entity"`

	Move      *Vec     `yaml:"move"`
	FallTo    *float64 `yaml:"fall_to"`
	Land      bool     `yaml:"land"`
	SetHealth *float64 `yaml:"set_health"`
	GameMode  string   `yaml:"gamemode"`
	Mount     *bool    `yaml:"mount"`
	Sleep     *bool    `yaml:"sleep"`
	Leave     bool     `yaml:"leave"`
	Tick      int      `yaml:"tick"`
}

func (s *Step) actions() int {
	n := 0
	for _, set := range []bool{
		s.Move != nil, s.FallTo != nil, s.Land, s.SetHealth != nil,
		s.GameMode != "", s.Mount != nil, s.Sleep != nil, s.Leave, s.Tick != 0,
	} {
		if set {
			n++
		}
	}
	return n
}

// Load decodes and validates a scenario.
func Load(r io.Reader) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// LoadFile reads a scenario from path.
func LoadFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

// Validate checks names, enum values and step shapes.
func (sc *Scenario) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidScenario, fmt.Sprintf(format, args...))
	}

	for i, b := range sc.Blocks {
		if _, ok := model.ParseMaterial(b.Material); !ok {
			return invalid("block %d: unknown material %q", i, b.Material)
		}
	}

	names := make(map[string]struct{}, len(sc.Entities))
	for i, e := range sc.Entities {
		if e.Name == "" {
			return invalid("entity %d: missing name", i)
		}
		if _, dup := names[e.Name]; dup {
			return invalid("entity %q: duplicate name", e.Name)
		}
		names[e.Name] = struct{}{}
		if e.ID != "" {
			if _, err := uuid.Parse(e.ID); err != nil {
				return invalid("entity %q: bad id: %v", e.Name, err)
			}
		}
		if _, ok := model.ParseGameMode(e.GameMode); !ok {
			return invalid("entity %q: unknown gamemode %q", e.Name, e.GameMode)
		}
		for name := range e.Boots {
			if _, ok := model.ParseEnchantment(name); !ok {
				return invalid("entity %q: unknown enchantment %q", e.Name, name)
			}
		}
	}

	for i := range sc.Steps {
		s := &sc.Steps[i]
		if n := s.actions(); n != 1 {
			return invalid("step %d: want exactly one action, got %d", i, n)
		}
		if s.Tick < 0 {
			return invalid("step %d: negative tick", i)
		}
		if s.Tick > 0 {
			continue
		}
		if _, ok := names[s.Entity]; !ok {
			return invalid("step %d: unknown entity %q", i, s.Entity)
		}
		if s.GameMode != "" {
			if _, ok := model.ParseGameMode(s.GameMode); !ok {
				return invalid("step %d: unknown gamemode %q", i, s.GameMode)
			}
		}
	}
	return nil
}
