package main

import (
	"bytes"
	"log/slog"
	gohttp "net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/require"

	"github.com/tilezen/go-tilepipe/tilepack"
)

func testArchive(t *testing.T) tilepack.MbtilesReader {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tiles.mbtiles")
	outputter, err := tilepack.NewMbtilesOutputter(path, tilepack.DefaultSourceType(tilepack.VectorSource))
	require.NoError(t, err)
	require.NoError(t, outputter.CreateTiles())
	require.NoError(t, outputter.Save(maptile.New(2, 3, 4), []byte("water")))
	require.NoError(t, outputter.AssignSpatialMetadata(orb.Bound{Min: orb.Point{-1, -1}, Max: orb.Point{1, 1}}, 0, 4))
	require.NoError(t, outputter.Close())

	reader, err := tilepack.NewMbtilesReader(path)
	require.NoError(t, err)
	t.Cleanup(func() { reader.Close() })
	return reader
}

func TestNewHandler(t *testing.T) {
	var logs bytes.Buffer
	handler := newHandler(testArchive(t), slog.New(slog.NewTextHandler(&logs, nil)))

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{path: "/tiles/4/2/3.mvt", status: gohttp.StatusOK, body: "water"},
		{path: "/tiles/4/3/3.mvt", status: gohttp.StatusNotFound},
		{path: "/metadata.json", status: gohttp.StatusOK},
		{path: "/elsewhere", status: gohttp.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			logs.Reset()

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(gohttp.MethodGet, tt.path, nil))

			require.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				require.Equal(t, tt.body, rec.Body.String())
			}
			require.Contains(t, logs.String(), "path="+tt.path)
			require.Contains(t, logs.String(), "status="+strconv.Itoa(tt.status))
		})
	}
}

func TestURLTemplate(t *testing.T) {
	tests := []struct {
		addr     string
		format   string
		expected string
	}{
		{addr: ":8080", format: "mvt", expected: "http://localhost:8080/tiles/{z}/{x}/{y}.mvt"},
		{addr: "0.0.0.0:9000", format: "pbf", expected: "http://localhost:9000/tiles/{z}/{x}/{y}.pbf"},
		{addr: "127.0.0.1:8000", format: "png", expected: "http://127.0.0.1:8000/tiles/{z}/{x}/{y}.png"},
		{addr: "tiles.local", expected: "http://tiles.local:80/tiles/{z}/{x}/{y}.mvt"},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			metadata := tilepack.NewMbtilesMetadata(map[string]string{"format": tt.format})
			require.Equal(t, tt.expected, urlTemplate(tt.addr, metadata))
		})
	}
}

func TestDescribe(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	require.NoError(t, describe(logger, testArchive(t), ":8080"))
	require.Contains(t, logs.String(), "format=mvt")
	require.Contains(t, logs.String(), "maxzoom=4")
	require.Contains(t, logs.String(), "url_template=http://localhost:8080/tiles/{z}/{x}/{y}.mvt")
}
