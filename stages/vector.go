// Package stages holds the stages tiles are processed with and the builders
// for the vector and raster pipelines.
package stages

import (
	"fmt"

	"github.com/paulmach/orb/encoding/mvt"
	"github.com/tilezen/go-tilepipe/geometry"
	"github.com/tilezen/go-tilepipe/pipeline"
	"github.com/tilezen/go-tilepipe/tilepack"
)

// DecodeError is returned when a payload is not a well-formed tile of the
// expected format.
type DecodeError struct {
	Coords tilepack.TileCoordinates
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("couldn't decode %s tile %s: %v", e.Format, e.Coords, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode parses a vector tile, gzipped or not.
type Decode struct{}

func (Decode) Name() string          { return "decode" }
func (Decode) Input() pipeline.Kind  { return pipeline.KindRaw }
func (Decode) Output() pipeline.Kind { return pipeline.KindVector }

func (Decode) Process(ctx *pipeline.Context, v pipeline.Value) (pipeline.Value, error) {
	data := v.Tile.Raw()

	var (
		layers mvt.Layers
		err    error
	)
	if tilepack.IsGzipped(data) {
		layers, err = mvt.UnmarshalGzipped(data)
	} else {
		layers, err = mvt.Unmarshal(data)
	}
	if err != nil {
		return pipeline.Value{}, &DecodeError{Coords: v.Request.Coords, Format: "mvt", Err: err}
	}

	ctx.Logger().Debug("decoded tile", "coords", v.Request.Coords, "layers", len(layers))
	return pipeline.Value{Request: v.Request, Tile: pipeline.VectorTile(layers)}, nil
}

// Index collects the features of every layer, requested or not, and reports
// them.
type Index struct{}

func (Index) Name() string          { return "index" }
func (Index) Input() pipeline.Kind  { return pipeline.KindVector }
func (Index) Output() pipeline.Kind { return pipeline.KindVector }

func (Index) Process(ctx *pipeline.Context, v pipeline.Value) (pipeline.Value, error) {
	index := geometry.NewIndexProcessor()
	for _, layer := range v.Tile.Vector() {
		index.ProcessLayer(layer)
	}

	if err := ctx.Processor().IndexingFinished(v.Request.Coords, index.Geometries()); err != nil {
		return pipeline.Value{}, err
	}
	return v, nil
}

// Tessellate tessellates the requested layers. A layer that fails is
// reported unavailable and the remaining layers are still tessellated.
// Layers sharing a name are tessellated together and reported once.
type Tessellate struct {
	Tessellator geometry.Tessellator
}

func (Tessellate) Name() string          { return "tessellate" }
func (Tessellate) Input() pipeline.Kind  { return pipeline.KindVector }
func (Tessellate) Output() pipeline.Kind { return pipeline.KindVector }

func (s Tessellate) Process(ctx *pipeline.Context, v pipeline.Value) (pipeline.Value, error) {
	tessellator := s.Tessellator
	if tessellator == nil {
		tessellator = geometry.FanTessellator{}
	}
	coords := v.Request.Coords

	for _, layer := range mergeLayers(v.Tile.Vector()) {
		if !v.Request.Layers.Contains(layer.Name) {
			continue
		}

		buffers, err := tessellator.Tessellate(layer)
		if err != nil {
			ctx.Logger().Warn("layer tessellation failed", "coords", coords, "layer", layer.Name, "error", err)
			if err := ctx.Processor().LayerUnavailable(coords, layer.Name); err != nil {
				return pipeline.Value{}, err
			}
			continue
		}

		ctx.Logger().Debug("layer ready", "coords", coords, "layer", layer.Name, "triangles", buffers.Triangles())
		if err := ctx.Processor().LayerReady(coords, layer.Name, buffers, layer); err != nil {
			return pipeline.Value{}, err
		}
	}

	return v, nil
}

// mergeLayers joins the features of layers with the same name into the first
// of them, keeping the order names first appear in. The input is not
// modified.
func mergeLayers(layers mvt.Layers) mvt.Layers {
	merged := make(mvt.Layers, 0, len(layers))
	byName := make(map[string]int, len(layers))
	for _, layer := range layers {
		i, ok := byName[layer.Name]
		if !ok {
			byName[layer.Name] = len(merged)
			merged = append(merged, layer)
			continue
		}

		first := merged[i]
		joined := *first
		n := len(first.Features)
		joined.Features = append(first.Features[:n:n], layer.Features...)
		merged[i] = &joined
	}
	return merged
}

// Reconcile reports the requested layers the tile does not contain.
type Reconcile struct{}

func (Reconcile) Name() string          { return "reconcile" }
func (Reconcile) Input() pipeline.Kind  { return pipeline.KindVector }
func (Reconcile) Output() pipeline.Kind { return pipeline.KindVector }

func (Reconcile) Process(ctx *pipeline.Context, v pipeline.Value) (pipeline.Value, error) {
	present := tilepack.NewLayerSet()
	for _, layer := range v.Tile.Vector() {
		present.Add(layer.Name)
	}

	for _, missing := range v.Request.Layers.Difference(present) {
		ctx.Logger().Info("requested layer not found in tile", "coords", v.Request.Coords, "layer", missing)
		if err := ctx.Processor().LayerUnavailable(v.Request.Coords, missing); err != nil {
			return pipeline.Value{}, err
		}
	}
	return v, nil
}

// Finalize reports that the tile is finished.
type Finalize struct{}

func (Finalize) Name() string          { return "finalize" }
func (Finalize) Input() pipeline.Kind  { return pipeline.KindDecoded }
func (Finalize) Output() pipeline.Kind { return pipeline.KindDecoded }

func (Finalize) Process(ctx *pipeline.Context, v pipeline.Value) (pipeline.Value, error) {
	ctx.Logger().Info("tile finished", "coords", v.Request.Coords)
	if err := ctx.Processor().TileFinished(v.Request.Coords); err != nil {
		return pipeline.Value{}, err
	}
	return v, nil
}
