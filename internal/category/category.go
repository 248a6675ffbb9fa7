// Package category derives the display category for a record from its
// source identity. The mapping is a fixed lookup built from configuration
// with a fallback for unlisted sources.
package category

import "github.com/edgard/leadscout/internal/config"

// Map is a source-name to category lookup. Derivation is pure: the same
// source always yields the same category for a given Map.
type Map struct {
	bySource map[string]string
	fallback string
}

// NewMap builds the lookup from the configured sources. Sources without an
// explicit category resolve to the fallback.
func NewMap(sources []config.Source, fallback string) *Map {
	bySource := make(map[string]string, len(sources))
	for _, s := range sources {
		if s.Category != "" {
			bySource[s.Name] = s.Category
		}
	}
	return &Map{bySource: bySource, fallback: fallback}
}

// Derive returns the category for the given source name, or the fallback
// when the source has no explicit category.
func (m *Map) Derive(source string) string {
	if c, ok := m.bySource[source]; ok {
		return c
	}
	return m.fallback
}
