package tilepack

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTileNotFound is returned by clients when the source has no data for a tile.
	ErrTileNotFound = errors.New("tilepack: tile not found")

	// ErrNoQuadKey is returned when coordinates cannot be addressed by a source.
	ErrNoQuadKey = errors.New("tilepack: coordinates have no quad key")
)

// SourceKind selects how a source's payloads are interpreted.
type SourceKind int

const (
	VectorSource SourceKind = iota
	RasterSource
)

func (k SourceKind) String() string {
	switch k {
	case VectorSource:
		return "vector"
	case RasterSource:
		return "raster"
	default:
		return fmt.Sprintf("SourceKind(%d)", int(k))
	}
}

// ParseSourceKind parses "vector" or "raster".
func ParseSourceKind(s string) (SourceKind, error) {
	switch strings.ToLower(s) {
	case "vector", "mvt", "pbf":
		return VectorSource, nil
	case "raster", "png", "jpg", "webp":
		return RasterSource, nil
	}
	return 0, fmt.Errorf("unknown source kind %q", s)
}

// SourceType describes the tile source a request is fetched from.
type SourceType struct {
	Kind SourceKind
	// Format is the file extension substituted for {ext} in templates.
	Format string
}

// DefaultSourceType returns the conventional format for kind.
func DefaultSourceType(kind SourceKind) SourceType {
	if kind == RasterSource {
		return SourceType{Kind: RasterSource, Format: "png"}
	}
	return SourceType{Kind: VectorSource, Format: "mvt"}
}

// Client fetches the raw payload of a tile. Implementations must be safe for
// concurrent use.
type Client interface {
	Fetch(ctx context.Context, coords TileCoordinates, source SourceType) ([]byte, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, coords TileCoordinates, source SourceType) ([]byte, error)

func (f ClientFunc) Fetch(ctx context.Context, coords TileCoordinates, source SourceType) ([]byte, error) {
	return f(ctx, coords, source)
}

// FormatTemplate substitutes {x}, {y}, {z}, {-y} (TMS row), {q} (quad key)
// and {ext} in a URL or path template.
func FormatTemplate(template string, coords TileCoordinates, source SourceType) (string, error) {
	quadKey, ok := coords.QuadKeyString()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoQuadKey, coords)
	}

	return strings.NewReplacer(
		"{x}", fmt.Sprintf("%d", coords.X),
		"{y}", fmt.Sprintf("%d", coords.Y),
		"{z}", fmt.Sprintf("%d", coords.Z),
		"{-y}", fmt.Sprintf("%d", coords.FlipY()),
		"{q}", quadKey,
		"{ext}", source.Format).Replace(template), nil
}
