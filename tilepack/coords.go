package tilepack

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb/maptile"
)

// MaxZoom is the deepest zoom level for which tiles can be addressed.
const MaxZoom maptile.Zoom = 30

// TileCoordinates addresses a tile in the XYZ scheme. X and Y are signed
// because a view region may extend past the edges of the world; such
// coordinates have no quad key and are never requested.
type TileCoordinates struct {
	X int32
	Y int32
	Z maptile.Zoom
}

// NewTileCoordinates creates coordinates for column x, row y at zoom z.
func NewTileCoordinates(x, y int32, z maptile.Zoom) TileCoordinates {
	return TileCoordinates{X: x, Y: y, Z: z}
}

// FromTile converts an orb tile into coordinates.
func FromTile(t maptile.Tile) TileCoordinates {
	return TileCoordinates{X: int32(t.X), Y: int32(t.Y), Z: t.Z}
}

// Valid reports whether the coordinates address a real tile.
func (c TileCoordinates) Valid() bool {
	if c.Z > MaxZoom || c.X < 0 || c.Y < 0 {
		return false
	}
	return maptile.New(uint32(c.X), uint32(c.Y), c.Z).Valid()
}

// Tile returns the orb tile for the coordinates, if they address one.
func (c TileCoordinates) Tile() (maptile.Tile, bool) {
	if !c.Valid() {
		return maptile.Tile{}, false
	}
	return maptile.New(uint32(c.X), uint32(c.Y), c.Z), true
}

// QuadKey returns the packed quad key of the tile. Coordinates outside the
// world or deeper than MaxZoom have none.
func (c TileCoordinates) QuadKey() (uint64, bool) {
	t, ok := c.Tile()
	if !ok {
		return 0, false
	}
	return t.Quadkey(), true
}

// QuadKeyString returns the quad key as a string of base-4 digits, most
// significant level first. The zoom 0 tile has the empty key.
func (c TileCoordinates) QuadKeyString() (string, bool) {
	t, ok := c.Tile()
	if !ok {
		return "", false
	}

	var sb strings.Builder
	sb.Grow(int(t.Z))
	for i := int(t.Z); i > 0; i-- {
		digit := byte('0')
		mask := uint32(1) << (i - 1)
		if t.X&mask != 0 {
			digit++
		}
		if t.Y&mask != 0 {
			digit += 2
		}
		sb.WriteByte(digit)
	}
	return sb.String(), true
}

// FlipY returns the row in the TMS scheme, which counts from the south.
func (c TileCoordinates) FlipY() int32 {
	return int32((1<<uint(c.Z))-1) - c.Y
}

func (c TileCoordinates) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}
