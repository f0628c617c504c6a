package tilepack

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

const webMercatorLatLimit float64 = 85.05112877980659

type GenerateRangesConsumerFunc func(min TileCoordinates, max TileCoordinates, z maptile.Zoom)

type GenerateRangesOptions struct {
	Bounds       orb.Bound
	Zooms        []maptile.Zoom
	ConsumerFunc GenerateRangesConsumerFunc
}

type GenerateTilesConsumerFunc func(coords TileCoordinates)

type GenerateTilesOptions struct {
	Bounds       orb.Bound
	Zooms        []maptile.Zoom
	ConsumerFunc GenerateTilesConsumerFunc
}

// clampedBoxes splits bounds crossing the antimeridian in two and clamps each
// part to the web mercator limits.
func clampedBoxes(bounds orb.Bound) []orb.Bound {
	var boxes []orb.Bound
	if bounds.Min.X() > bounds.Max.X() {
		boxes = []orb.Bound{
			{
				Min: orb.Point{-180.0, bounds.Min.Y()},
				Max: bounds.Max,
			},
			{
				Min: bounds.Min,
				Max: orb.Point{180.0, bounds.Max.Y()},
			},
		}
	} else {
		boxes = []orb.Bound{bounds}
	}

	for i, box := range boxes {
		boxes[i] = orb.Bound{
			Min: orb.Point{
				math.Max(-180.0, box.Min.X()),
				math.Max(-webMercatorLatLimit, box.Min.Y()),
			},
			Max: orb.Point{
				math.Min(180.0-0.00000001, box.Max.X()),
				math.Min(webMercatorLatLimit, box.Max.Y()),
			},
		}
	}
	return boxes
}

// GenerateTileRanges calls the consumer with the inclusive XYZ tile range
// covering the bounds, once per zoom and box.
func GenerateTileRanges(opts *GenerateRangesOptions) {
	for _, box := range clampedBoxes(opts.Bounds) {
		for _, z := range opts.Zooms {
			minTile := maptile.At(box.Min, z)
			maxTile := maptile.At(box.Max, z)

			// Flip Y because the XYZ tiling scheme has an inverted Y compared to lat/lon
			maxTile.Y, minTile.Y = minTile.Y, maxTile.Y

			opts.ConsumerFunc(FromTile(minTile), FromTile(maxTile), z)
		}
	}
}

// GenerateTiles calls the consumer for every tile covering the bounds at the
// given zooms.
func GenerateTiles(opts *GenerateTilesOptions) {
	GenerateTileRanges(&GenerateRangesOptions{
		Bounds: opts.Bounds,
		Zooms:  opts.Zooms,
		ConsumerFunc: func(minTile TileCoordinates, maxTile TileCoordinates, z maptile.Zoom) {
			for x := minTile.X; x <= maxTile.X; x++ {
				for y := minTile.Y; y <= maxTile.Y; y++ {
					opts.ConsumerFunc(NewTileCoordinates(x, y, z))
				}
			}
		},
	})
}

// CountTiles returns how many tiles GenerateTiles would produce.
func CountTiles(bounds orb.Bound, zooms []maptile.Zoom) uint32 {
	var total uint32
	GenerateTileRanges(&GenerateRangesOptions{
		Bounds: bounds,
		Zooms:  zooms,
		ConsumerFunc: func(minTile TileCoordinates, maxTile TileCoordinates, z maptile.Zoom) {
			total += uint32(maxTile.X-minTile.X+1) * uint32(maxTile.Y-minTile.Y+1)
		},
	})
	return total
}
