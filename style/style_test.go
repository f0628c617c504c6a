package style

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const testStyle = `{
  "version": 8,
  "name": "test",
  "layers": [
    {"id": "background", "type": "background"},
    {"id": "water-fill", "type": "fill", "source": "osm", "source-layer": "water"},
    {"id": "water-outline", "type": "line", "source": "osm", "source-layer": "water"},
    {"id": "roads", "type": "line", "source": "osm", "source-layer": "roads", "minzoom": 5}
  ]
}`

func TestSourceLayers(t *testing.T) {
	s, err := Decode(strings.NewReader(testStyle))
	require.NoError(t, err)
	require.Len(t, s.Layers, 4)
	require.NotNil(t, s.Layers[3].MinZoom)
	require.Equal(t, 5.0, *s.Layers[3].MinZoom)

	if diff := cmp.Diff([]string{"roads", "water"}, s.SourceLayers().Sorted()); diff != "" {
		t.Errorf("SourceLayers() mismatch (-want +got):\n%s", diff)
	}
}

func TestSourceLayers_Nil(t *testing.T) {
	var s *Style
	require.Empty(t, s.SourceLayers())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "style.json")
	require.NoError(t, os.WriteFile(path, []byte(testStyle), 0644))

	s, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "test", s.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"layers": [`))
	require.Error(t, err)
}

func TestDefault(t *testing.T) {
	layers := Default().SourceLayers()
	require.True(t, layers.Contains("water"))
	require.True(t, layers.Contains("roads"))
	require.False(t, layers.Contains("background"))
}
