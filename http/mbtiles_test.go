package http

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	gohttp "net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/require"

	"github.com/tilezen/go-tilepipe/tilepack"
)

func gzipped(t *testing.T, data string) []byte {
	t.Helper()
	var b bytes.Buffer
	gz := gzip.NewWriter(&b)
	_, err := gz.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return b.Bytes()
}

func testServer(t *testing.T) *httptest.Server {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tiles.mbtiles")
	outputter, err := tilepack.NewMbtilesOutputter(path, tilepack.DefaultSourceType(tilepack.VectorSource))
	require.NoError(t, err)
	require.NoError(t, outputter.CreateTiles())
	require.NoError(t, outputter.Save(maptile.New(2, 3, 4), gzipped(t, "water")))
	require.NoError(t, outputter.AssignSpatialMetadata(orb.Bound{Min: orb.Point{-1, -1}, Max: orb.Point{1, 1}}, 0, 4))
	require.NoError(t, outputter.Close())

	reader, err := tilepack.NewMbtilesReader(path)
	require.NoError(t, err)
	t.Cleanup(func() { reader.Close() })

	mux := gohttp.NewServeMux()
	mux.Handle("/tiles/", MbtilesHandler(reader))
	mux.Handle("/metadata.json", MetadataHandler(reader))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, url string, acceptGzip bool) (*gohttp.Response, []byte) {
	t.Helper()

	req, err := gohttp.NewRequest(gohttp.MethodGet, url, nil)
	require.NoError(t, err)
	if acceptGzip {
		req.Header.Set("Accept-Encoding", "gzip")
	}

	transport := &gohttp.Transport{DisableCompression: true}
	resp, err := (&gohttp.Client{Transport: transport}).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestMbtilesHandler(t *testing.T) {
	server := testServer(t)

	resp, body := get(t, server.URL+"/tiles/4/2/3.mvt", true)
	require.Equal(t, gohttp.StatusOK, resp.StatusCode)
	require.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
	require.Equal(t, "application/x-protobuf", resp.Header.Get("Content-Type"))
	require.Equal(t, gzipped(t, "water"), body)

	resp, body = get(t, server.URL+"/tiles/4/2/3.mvt", false)
	require.Equal(t, gohttp.StatusOK, resp.StatusCode)
	require.Empty(t, resp.Header.Get("Content-Encoding"))
	require.Equal(t, "water", string(body))

	resp, _ = get(t, server.URL+"/tiles/4/3/3.mvt", true)
	require.Equal(t, gohttp.StatusNotFound, resp.StatusCode)

	resp, _ = get(t, server.URL+"/tiles/1/5/0.mvt", true)
	require.Equal(t, gohttp.StatusNotFound, resp.StatusCode)

	resp, _ = get(t, server.URL+"/tiles/nope", true)
	require.Equal(t, gohttp.StatusNotFound, resp.StatusCode)
}

func TestMetadataHandler(t *testing.T) {
	server := testServer(t)

	resp, body := get(t, server.URL+"/metadata.json", false)
	require.Equal(t, gohttp.StatusOK, resp.StatusCode)

	var metadata map[string]string
	require.NoError(t, json.Unmarshal(body, &metadata))
	require.Equal(t, "mvt", metadata["format"])
	require.Equal(t, "4", metadata["maxzoom"])
}

func TestParseTileFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    maptile.Tile
		ext     string
		wantErr bool
	}{
		{path: "/tiles/0/0/0.mvt", want: maptile.New(0, 0, 0), ext: "mvt"},
		{path: "/a/b/14/8192/5461.png", want: maptile.New(8192, 5461, 14), ext: "png"},
		{path: "/tiles/2/4/0.mvt", wantErr: true},
		{path: "/tiles/31/0/0.mvt", wantErr: true},
		{path: "/tiles/0/0.mvt", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ext, err := parseTileFromPath(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.ext, ext)
		})
	}
}
