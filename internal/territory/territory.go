package territory

import (
	"context"
	"errors"
	"strings"
)

var ErrNotFound = errors.New("territory region not found")

// Resolver maps a raw territory name to a canonical region name.
type Resolver interface {
	Resolve(ctx context.Context, territory string) (region string, confidence float64, err error)
}

// StaticResolver answers from a fixed territory→region table.
type StaticResolver struct {
	Mappings map[string]string
}

func (s StaticResolver) Resolve(ctx context.Context, territory string) (string, float64, error) {
	key := NormalizeTerritory(territory)
	for t, region := range s.Mappings {
		if NormalizeTerritory(t) == key {
			return region, 1.0, nil
		}
	}
	return "", 0, ErrNotFound
}

func NormalizeTerritory(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

// ShouldResolve reports whether a territory still needs region lookup
// given the static mapping table.
func ShouldResolve(territory string, mappings map[string]string, force bool) bool {
	if force {
		return true
	}
	if strings.TrimSpace(territory) == "" {
		return false
	}
	_, ok := mappings[territory]
	return !ok
}
