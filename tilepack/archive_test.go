package tilepack

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/require"
)

func testTiles() map[TileCoordinates][]byte {
	return map[TileCoordinates][]byte{
		NewTileCoordinates(0, 0, 0): []byte("world"),
		NewTileCoordinates(1, 0, 1): []byte("north east"),
		NewTileCoordinates(2, 3, 4): []byte("water and roads"),
		NewTileCoordinates(3, 3, 4): []byte("water and roads"),
	}
}

func TestMbtiles_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiles.mbtiles")
	source := DefaultSourceType(VectorSource)

	outputter, err := NewMbtilesOutputter(path, source)
	require.NoError(t, err)
	require.NoError(t, outputter.CreateTiles())

	for coords, data := range testTiles() {
		tile, ok := coords.Tile()
		require.True(t, ok)
		require.NoError(t, outputter.Save(tile, data))
	}
	bound := orb.Bound{Min: orb.Point{-10, -10}, Max: orb.Point{10, 10}}
	require.NoError(t, outputter.AssignSpatialMetadata(bound, 0, 4))
	require.NoError(t, outputter.Close())

	reader, err := NewMbtilesReader(path)
	require.NoError(t, err)
	defer reader.Close()

	client := NewMbtilesClient(reader)
	for coords, want := range testTiles() {
		got, err := client.Fetch(context.Background(), coords, source)
		require.NoError(t, err, "fetching %s", coords)
		require.Equal(t, want, got, "payload of %s", coords)
	}

	_, err = client.Fetch(context.Background(), NewTileCoordinates(1, 1, 1), source)
	require.True(t, errors.Is(err, ErrTileNotFound), "err = %v", err)

	visited := map[TileCoordinates][]byte{}
	require.NoError(t, reader.VisitAllTiles(func(tile maptile.Tile, data []byte) {
		visited[FromTile(tile)] = data
	}))
	if diff := cmp.Diff(testTiles(), visited); diff != "" {
		t.Errorf("VisitAllTiles mismatch (-want +got):\n%s", diff)
	}

	metadata, err := reader.Metadata()
	require.NoError(t, err)

	gotSource, err := metadata.SourceType()
	require.NoError(t, err)
	require.Equal(t, source, gotSource)

	maxZoom, err := metadata.MaxZoom()
	require.NoError(t, err)
	require.Equal(t, maptile.Zoom(4), maxZoom)

	gotBound, err := metadata.Bounds()
	require.NoError(t, err)
	require.True(t, bound.Equal(gotBound), "Bounds() = %v", gotBound)
}

func TestDiskOutputter_FileClient(t *testing.T) {
	root := t.TempDir()
	source := DefaultSourceType(RasterSource)

	outputter, err := NewDiskOutputter(root, source.Format)
	require.NoError(t, err)

	recorder, err := NewRecordingClient(ClientFunc(func(ctx context.Context, coords TileCoordinates, source SourceType) ([]byte, error) {
		return []byte(coords.String()), nil
	}), outputter)
	require.NoError(t, err)

	for coords := range testTiles() {
		_, err := recorder.Fetch(context.Background(), coords, source)
		require.NoError(t, err)
	}
	require.Equal(t, len(testTiles()), recorder.Saved())
	require.NoError(t, recorder.Close())

	client, err := NewFileClient(root, "file://{z}/{x}/{y}.{ext}")
	require.NoError(t, err)

	for coords := range testTiles() {
		got, err := client.Fetch(context.Background(), coords, source)
		require.NoError(t, err)
		require.Equal(t, coords.String(), string(got))
	}

	_, err = client.Fetch(context.Background(), NewTileCoordinates(7, 7, 3), source)
	require.True(t, errors.Is(err, ErrTileNotFound), "err = %v", err)
}

func TestPmtilesOutputter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiles.pmtiles")

	outputter, err := NewPmtilesOutputter(path, DefaultSourceType(VectorSource))
	require.NoError(t, err)

	for coords, data := range testTiles() {
		tile, _ := coords.Tile()
		require.NoError(t, outputter.Save(tile, data))
	}
	require.NoError(t, outputter.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("PMTiles")), "missing pmtiles magic")
	require.Equal(t, uint8(0), outputter.header.MinZoom)
	require.Equal(t, uint8(4), outputter.header.MaxZoom)
	// Two tiles share a payload.
	require.EqualValues(t, 3, outputter.header.TileContentsCount)
	require.EqualValues(t, 4, outputter.header.TileEntriesCount)
}

func TestMetatileFor(t *testing.T) {
	tests := []struct {
		name   string
		coords TileCoordinates
		size   uint
		max    maptile.Zoom
		want   Metatile
	}{
		{
			name:   "below the metatile delta",
			coords: NewTileCoordinates(1, 1, 1),
			size:   8,
			want:   Metatile{Coords: NewTileCoordinates(0, 0, 0), OffsetZ: 1, OffsetX: 1, OffsetY: 1},
		},
		{
			name:   "regular zoom",
			coords: NewTileCoordinates(13, 6, 5),
			size:   8,
			want:   Metatile{Coords: NewTileCoordinates(3, 1, 3), OffsetZ: 2, OffsetX: 1, OffsetY: 2},
		},
		{
			name:   "beyond max detail zoom",
			coords: NewTileCoordinates(40, 20, 6),
			size:   8,
			max:    3,
			want:   Metatile{Coords: NewTileCoordinates(5, 2, 3), OffsetZ: 3, OffsetX: 0, OffsetY: 4},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, MetatileFor(tt.coords, tt.size, tt.max)); diff != "" {
				t.Errorf("MetatileFor() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtractMetatileEntry(t *testing.T) {
	var b bytes.Buffer
	zw := zip.NewWriter(&b)
	for name, data := range map[string]string{"0/0/0.mvt": "meta", "1/1/0.mvt": "child", "1/1/0.json": "json"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		w.Write([]byte(data))
	}
	require.NoError(t, zw.Close())

	got, err := ExtractMetatileEntry(b.Bytes(), "1/1/0.mvt")
	require.NoError(t, err)
	require.Equal(t, "child", string(got))

	_, err = ExtractMetatileEntry(b.Bytes(), "1/0/0.mvt")
	require.True(t, errors.Is(err, ErrTileNotFound), "err = %v", err)
}
