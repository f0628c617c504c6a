package tilepack

import (
	"slices"
)

// LayerSet is an unordered set of unique layer names.
type LayerSet map[string]struct{}

// NewLayerSet builds a set from names, dropping duplicates.
func NewLayerSet(names ...string) LayerSet {
	s := make(LayerSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s LayerSet) Add(name string) {
	s[name] = struct{}{}
}

func (s LayerSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the names in lexical order. Anything emitting one event per
// name iterates in this order so that runs are reproducible.
func (s LayerSet) Sorted() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Difference returns the names in s that are not in other, sorted.
func (s LayerSet) Difference(other LayerSet) []string {
	var missing []string
	for _, n := range s.Sorted() {
		if !other.Contains(n) {
			missing = append(missing, n)
		}
	}
	return missing
}

// Clone returns an independent copy, so a request never shares its set with
// the coordinator that built it.
func (s LayerSet) Clone() LayerSet {
	c := make(LayerSet, len(s))
	for n := range s {
		c[n] = struct{}{}
	}
	return c
}

// TileRequest asks for the given layers of one tile.
type TileRequest struct {
	Coords TileCoordinates
	Layers LayerSet
}
