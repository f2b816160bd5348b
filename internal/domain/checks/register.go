// Package checks registers the full catalogue of checks on a profile.
package checks

import (
	"fmt"
	"time"

	"github.com/okian/warden/internal/domain/checks/nofall"
	"github.com/okian/warden/internal/domain/detection"
	"github.com/okian/warden/internal/domain/profile"
	"github.com/okian/warden/internal/domain/world"
	"github.com/okian/warden/pkg/logger"
)

// Deps are the shared host capabilities every version may need.
type Deps struct {
	Scheduler world.Scheduler
	Logger    logger.Logger
	// Clock stamps detections; defaults to time.Now.
	Clock func() time.Time
}

// builder creates the versions of one category for a profile, in dispatch
// order.
type builder func(c *detection.Check, p *profile.Profile, deps Deps) ([]detection.Version, error)

var builders = map[detection.CheckType]builder{
	detection.NoFall: func(c *detection.Check, p *profile.Profile, deps Deps) ([]detection.Version, error) {
		a, err := nofall.NewA(c, p, nofall.Deps{
			Scheduler: deps.Scheduler,
			Logger:    named(deps.Logger, "nofall"),
		})
		if err != nil {
			return nil, err
		}
		return []detection.Version{a}, nil
	},
}

func named(l logger.Logger, name string) logger.Logger {
	if l == nil {
		return nil
	}
	return l.Named(name)
}

// Register adds one check per catalogue category to p, each with all of its
// versions.
func Register(p *profile.Profile, deps Deps) error {
	for _, t := range detection.Catalogue() {
		build, ok := builders[t]
		if !ok {
			return fmt.Errorf("register %s: %w", t, detection.ErrUnknownCheckType)
		}
		c := detection.NewCheck(t, p.ID(), p, detection.WithClock(deps.Clock))
		versions, err := build(c, p, deps)
		if err != nil {
			return fmt.Errorf("register %s: %w", t, err)
		}
		for _, v := range versions {
			if err := c.AddVersion(v); err != nil {
				return fmt.Errorf("register %s: %w", t, err)
			}
		}
		if err := p.AddCheck(c); err != nil {
			return fmt.Errorf("register %s: %w", t, err)
		}
	}
	return nil
}
