package tilepack

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// MbtilesMetadata wraps the name/value pairs of an archive's metadata table.
type MbtilesMetadata struct {
	metadata map[string]string
}

func NewMbtilesMetadata(metadata map[string]string) *MbtilesMetadata {
	if metadata == nil {
		metadata = make(map[string]string)
	}
	return &MbtilesMetadata{metadata: metadata}
}

func (m *MbtilesMetadata) Get(k string) (string, bool) {
	v, exists := m.metadata[k]
	return v, exists
}

func (m *MbtilesMetadata) Set(key string, value string) {
	m.metadata[key] = value
}

func (m *MbtilesMetadata) Keys() []string {
	keys := make([]string, 0, len(m.metadata))
	for k := range m.metadata {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (m *MbtilesMetadata) floats(key string, n int) ([]float64, error) {
	str, exists := m.Get(key)
	if !exists {
		return nil, fmt.Errorf("Metadata is missing %s", key)
	}

	parts := strings.Split(str, ",")
	if len(parts) < n {
		return nil, fmt.Errorf("Invalid %s metadata", key)
	}

	values := make([]float64, n)
	for i := range values {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return nil, fmt.Errorf("Failed to parse %s value %d, %w", key, i, err)
		}
		values[i] = v
	}
	return values, nil
}

func (m *MbtilesMetadata) Bounds() (orb.Bound, error) {
	v, err := m.floats("bounds", 4)
	if err != nil {
		return orb.Bound{}, err
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}

// Center returns the center point and, when the metadata carries a third
// value, the suggested zoom.
func (m *MbtilesMetadata) Center() (orb.Point, float64, error) {
	v, err := m.floats("center", 2)
	if err != nil {
		return orb.Point{}, 0, err
	}

	zoom := 0.0
	if z, err := m.floats("center", 3); err == nil {
		zoom = z[2]
	}
	return orb.Point{v[0], v[1]}, zoom, nil
}

func (m *MbtilesMetadata) zoom(key string) (maptile.Zoom, error) {
	str, exists := m.Get(key)
	if !exists {
		return 0, fmt.Errorf("Metadata is missing %s", key)
	}

	i, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("Failed to parse %s value, %w", key, err)
	}
	if i < 0 || maptile.Zoom(i) > MaxZoom {
		return 0, fmt.Errorf("%s %d out of range", key, i)
	}
	return maptile.Zoom(i), nil
}

func (m *MbtilesMetadata) MinZoom() (maptile.Zoom, error) {
	return m.zoom("minzoom")
}

func (m *MbtilesMetadata) MaxZoom() (maptile.Zoom, error) {
	return m.zoom("maxzoom")
}

func (m *MbtilesMetadata) Format() string {
	return m.metadata["format"]
}

func (m *MbtilesMetadata) Name() string {
	return m.metadata["name"]
}

// SourceType derives the source type from the archive's format.
func (m *MbtilesMetadata) SourceType() (SourceType, error) {
	format := m.Format()
	if format == "" {
		return DefaultSourceType(VectorSource), nil
	}

	kind, err := ParseSourceKind(format)
	if err != nil {
		return SourceType{}, err
	}
	return SourceType{Kind: kind, Format: format}, nil
}
