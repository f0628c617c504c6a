// Package style reads the subset of a map style the tile pipeline needs: the
// layers and the source layers they draw from.
package style

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/tilezen/go-tilepipe/tilepack"
)

// Layer is one style layer. Layers without a source layer (backgrounds)
// do not require any tile data.
type Layer struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Source      string   `json:"source,omitempty"`
	SourceLayer string   `json:"source-layer,omitempty"`
	MinZoom     *float64 `json:"minzoom,omitempty"`
	MaxZoom     *float64 `json:"maxzoom,omitempty"`
}

type Style struct {
	Version int     `json:"version"`
	Name    string  `json:"name,omitempty"`
	Layers  []Layer `json:"layers"`
}

// Decode reads a style document.
func Decode(r io.Reader) (*Style, error) {
	var s Style
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("couldn't decode style: %w", err)
	}
	return &s, nil
}

// Load reads a style document from path.
func Load(path string) (*Style, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// SourceLayers returns the union of the source layers referenced by any
// style layer.
func (s *Style) SourceLayers() tilepack.LayerSet {
	layers := tilepack.NewLayerSet()
	if s == nil {
		return layers
	}
	for _, l := range s.Layers {
		if l.SourceLayer != "" {
			layers.Add(l.SourceLayer)
		}
	}
	return layers
}

// Default returns a style drawing the layers of a Tilezen vector tile.
func Default() *Style {
	s := &Style{Version: 8, Name: "default"}
	s.Layers = append(s.Layers, Layer{ID: "background", Type: "background"})
	for _, name := range []string{"earth", "landuse", "water", "roads", "buildings", "boundaries", "transit", "places", "pois"} {
		typ := "fill"
		switch name {
		case "roads", "boundaries", "transit":
			typ = "line"
		case "places", "pois":
			typ = "symbol"
		}
		s.Layers = append(s.Layers, Layer{
			ID:          name,
			Type:        typ,
			Source:      "tilezen",
			SourceLayer: name,
		})
	}
	return s
}
