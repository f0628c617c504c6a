package pipeline

import (
	"fmt"
	"image"

	"github.com/paulmach/orb/encoding/mvt"
	"github.com/tilezen/go-tilepipe/geometry"
	"github.com/tilezen/go-tilepipe/tilepack"
)

// Message is one result of a run, delivered to the consumer. The set of
// messages is closed.
type Message interface {
	Coordinates() tilepack.TileCoordinates
	isMessage()
}

// LayerReady carries the tessellated geometry of a requested layer.
type LayerReady struct {
	Coords    tilepack.TileCoordinates
	LayerName string
	Buffers   *geometry.Buffers
	// Layer is the decoded source layer, for its extent, version and
	// feature properties.
	Layer *mvt.Layer
}

// LayerUnavailable reports that a requested layer will not arrive for a
// tile, because the tile lacks it or it could not be fetched, decoded or
// tessellated.
type LayerUnavailable struct {
	Coords    tilepack.TileCoordinates
	LayerName string
}

type LayerRasterFinished struct {
	Coords    tilepack.TileCoordinates
	LayerName string
	Image     *image.RGBA
}

type IndexingFinished struct {
	Coords     tilepack.TileCoordinates
	Geometries []*geometry.IndexedGeometry
}

// TileFinished is the last message of a successful run.
type TileFinished struct {
	Coords tilepack.TileCoordinates
}

func (m LayerReady) Coordinates() tilepack.TileCoordinates          { return m.Coords }
func (m LayerUnavailable) Coordinates() tilepack.TileCoordinates    { return m.Coords }
func (m LayerRasterFinished) Coordinates() tilepack.TileCoordinates { return m.Coords }
func (m IndexingFinished) Coordinates() tilepack.TileCoordinates    { return m.Coords }
func (m TileFinished) Coordinates() tilepack.TileCoordinates        { return m.Coords }

func (LayerReady) isMessage()          {}
func (LayerUnavailable) isMessage()    {}
func (LayerRasterFinished) isMessage() {}
func (IndexingFinished) isMessage()    {}
func (TileFinished) isMessage()        {}

func (m LayerReady) String() string {
	return fmt.Sprintf("layer ready %s at %s", m.LayerName, m.Coords)
}

func (m LayerUnavailable) String() string {
	return fmt.Sprintf("layer unavailable %s at %s", m.LayerName, m.Coords)
}

func (m LayerRasterFinished) String() string {
	return fmt.Sprintf("layer raster finished %s at %s", m.LayerName, m.Coords)
}

func (m IndexingFinished) String() string {
	return fmt.Sprintf("indexing finished at %s", m.Coords)
}

func (m TileFinished) String() string {
	return fmt.Sprintf("tile finished at %s", m.Coords)
}
