package tilepack

import (
	"testing"

	"github.com/paulmach/orb/maptile"
)

func TestTileCoordinates_QuadKey(t *testing.T) {
	tests := []struct {
		name    string
		coords  TileCoordinates
		want    string
		wantKey bool
	}{
		{"z0 world", NewTileCoordinates(0, 0, 0), "", true},
		{"z1 south east", NewTileCoordinates(1, 1, 1), "3", true},
		{"z3", NewTileCoordinates(3, 5, 3), "213", true},
		{"negative column", NewTileCoordinates(-1, 0, 2), "", false},
		{"column past the edge", NewTileCoordinates(4, 0, 2), "", false},
		{"row past the edge", NewTileCoordinates(0, 4, 2), "", false},
		{"beyond max zoom", NewTileCoordinates(0, 0, MaxZoom+1), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.coords.QuadKeyString()
			if ok != tt.wantKey {
				t.Fatalf("QuadKeyString() ok = %v, want %v", ok, tt.wantKey)
			}
			if got != tt.want {
				t.Errorf("QuadKeyString() = %q, want %q", got, tt.want)
			}

			_, ok = tt.coords.QuadKey()
			if ok != tt.wantKey {
				t.Errorf("QuadKey() ok = %v, want %v", ok, tt.wantKey)
			}
		})
	}
}

func TestTileCoordinates_QuadKeyRoundTrip(t *testing.T) {
	coords := NewTileCoordinates(2, 3, 4)

	key, ok := coords.QuadKey()
	if !ok {
		t.Fatalf("QuadKey() has no key for %s", coords)
	}

	if got := FromTile(maptile.FromQuadkey(key, coords.Z)); got != coords {
		t.Errorf("FromQuadkey(%d) = %s, want %s", key, got, coords)
	}
}

func TestTileCoordinates_MapKey(t *testing.T) {
	seen := map[TileCoordinates]int{}
	seen[NewTileCoordinates(2, 3, 4)]++
	seen[NewTileCoordinates(2, 3, 4)]++
	seen[NewTileCoordinates(3, 2, 4)]++

	if len(seen) != 2 {
		t.Errorf("len(seen) = %d, want 2", len(seen))
	}
	if seen[NewTileCoordinates(2, 3, 4)] != 2 {
		t.Errorf("equal coordinates did not collapse to one key")
	}
}

func TestFormatTemplate(t *testing.T) {
	coords := NewTileCoordinates(3, 5, 3)
	source := SourceType{Kind: VectorSource, Format: "mvt"}

	got, err := FormatTemplate("https://tiles.example.com/{z}/{x}/{y}.{ext}?q={q}&tms={-y}", coords, source)
	if err != nil {
		t.Fatalf("FormatTemplate() error = %v", err)
	}

	want := "https://tiles.example.com/3/3/5.mvt?q=213&tms=2"
	if got != want {
		t.Errorf("FormatTemplate() = %q, want %q", got, want)
	}

	if _, err := FormatTemplate("{z}/{x}/{y}", NewTileCoordinates(-1, 0, 1), source); err == nil {
		t.Errorf("FormatTemplate() accepted coordinates outside the world")
	}
}
