package tilepack

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// TileExtent is the bound and zoom range covered by a set of tiles.
type TileExtent struct {
	Bound   orb.Bound
	MinZoom maptile.Zoom
	MaxZoom maptile.Zoom
	Count   int
}

// Add grows the extent to cover t.
func (e *TileExtent) Add(t maptile.Tile) {
	tb := t.Bound()
	if e.Count == 0 {
		e.Bound = tb
		e.MinZoom = t.Z
		e.MaxZoom = t.Z
	} else {
		e.Bound = e.Bound.Union(tb)
		e.MinZoom = min(e.MinZoom, t.Z)
		e.MaxZoom = max(e.MaxZoom, t.Z)
	}
	e.Count++
}

// ReadTileExtent visits every tile of reader and returns their extent.
func ReadTileExtent(reader MbtilesReader) (TileExtent, error) {
	var extent TileExtent
	err := reader.VisitAllTiles(func(t maptile.Tile, data []byte) {
		extent.Add(t)
	})
	if err != nil {
		return TileExtent{}, err
	}
	if extent.Count == 0 {
		return TileExtent{}, fmt.Errorf("archive has no tiles")
	}
	return extent, nil
}

// AssignTo writes the extent as the spatial metadata of outputter.
func (e TileExtent) AssignTo(outputter TileOutputter) error {
	return outputter.AssignSpatialMetadata(e.Bound, e.MinZoom, e.MaxZoom)
}
