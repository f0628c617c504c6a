package tilepack

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// TileOutputter persists raw tile payloads addressed in the XYZ scheme.
// Implementations are not safe for concurrent use.
type TileOutputter interface {
	CreateTiles() error
	Save(tile maptile.Tile, data []byte) error
	// AssignSpatialMetadata records the extent of the saved tiles.
	AssignSpatialMetadata(bound orb.Bound, minZoom maptile.Zoom, maxZoom maptile.Zoom) error
	Close() error
}

// NewOutputter creates the outputter for mode ("disk", "mbtiles" or "pmtiles").
func NewOutputter(mode string, dsn string, source SourceType) (TileOutputter, error) {
	switch mode {
	case "disk":
		return NewDiskOutputter(dsn, source.Format)
	case "mbtiles":
		return NewMbtilesOutputter(dsn, source)
	case "pmtiles":
		return NewPmtilesOutputter(dsn, source)
	}
	return nil, fmt.Errorf("unknown outputter: %s", mode)
}
