package tilepack

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name      string
		generator string
		opts      ClientOptions
		wantErr   bool
	}{
		{name: "http", generator: "xyz", opts: ClientOptions{URLTemplate: "https://tiles.example.com/{z}/{x}/{y}.{ext}"}},
		{name: "file", generator: "xyz", opts: ClientOptions{URLTemplate: "file://{z}/{x}/{y}.{ext}", FileRoot: os.TempDir()}},
		{name: "missing template", generator: "xyz", wantErr: true},
		{name: "missing file root", generator: "xyz", opts: ClientOptions{URLTemplate: "file://{z}/{x}/{y}.{ext}"}, wantErr: true},
		{name: "missing bucket", generator: "s3", opts: ClientOptions{S3: S3ClientOptions{PathTemplate: "{z}/{x}/{y}.{ext}"}}, wantErr: true},
		{name: "missing mbtiles path", generator: "mbtiles", wantErr: true},
		{name: "unknown", generator: "tapalcatl2", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, closeClient, err := NewClient(tt.generator, tt.opts)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, client)
			require.NoError(t, closeClient())
		})
	}
}

func TestNewClient_Mbtiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiles.mbtiles")
	source := DefaultSourceType(VectorSource)

	outputter, err := NewMbtilesOutputter(path, source)
	require.NoError(t, err)
	for coords, data := range testTiles() {
		tile, _ := coords.Tile()
		require.NoError(t, outputter.Save(tile, data))
	}
	require.NoError(t, outputter.Close())

	client, closeClient, err := NewClient("mbtiles", ClientOptions{MbtilesPath: path})
	require.NoError(t, err)
	defer closeClient()

	data, err := client.Fetch(context.Background(), NewTileCoordinates(2, 3, 4), source)
	require.NoError(t, err)
	require.Equal(t, []byte("water and roads"), data)
}
