package tilepack

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

func TestCountTiles(t *testing.T) {
	tests := []struct {
		name   string
		bounds orb.Bound
		zooms  []maptile.Zoom
		want   uint32
	}{
		{
			name:   "whole world to z2",
			bounds: orb.Bound{Min: orb.Point{-180.0, -90.0}, Max: orb.Point{180.0, 90.0}},
			zooms:  []maptile.Zoom{0, 1, 2},
			want:   21,
		},
		{
			name:   "twin cities to z5",
			bounds: orb.Bound{Min: orb.Point{-93.5778, 44.6848}, Max: orb.Point{-92.7482, 45.202}},
			zooms:  []maptile.Zoom{0, 1, 2, 3, 4, 5},
			want:   6,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountTiles(tt.bounds, tt.zooms); got != tt.want {
				t.Errorf("CountTiles() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGenerateTiles(t *testing.T) {
	bounds := orb.Bound{Min: orb.Point{-180.0, -90.0}, Max: orb.Point{180.0, 90.0}}
	zooms := []maptile.Zoom{0, 1, 2}

	seen := map[TileCoordinates]bool{}
	GenerateTiles(&GenerateTilesOptions{
		Bounds: bounds,
		Zooms:  zooms,
		ConsumerFunc: func(c TileCoordinates) {
			if !c.Valid() {
				t.Errorf("generated invalid tile %s", c)
			}
			seen[c] = true
		},
	})

	if got, want := uint32(len(seen)), CountTiles(bounds, zooms); got != want {
		t.Errorf("GenerateTiles() produced %d distinct tiles, want %d", got, want)
	}
}
