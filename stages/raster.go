package stages

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/tilezen/go-tilepipe/pipeline"
)

// DefaultRasterLayer names the layer of a raster tile.
const DefaultRasterLayer = "raster"

// RasterDecode decodes a png, jpeg or webp payload into RGBA and reports it.
type RasterDecode struct {
	LayerName string
}

func (RasterDecode) Name() string          { return "raster-decode" }
func (RasterDecode) Input() pipeline.Kind  { return pipeline.KindRaw }
func (RasterDecode) Output() pipeline.Kind { return pipeline.KindRaster }

func (s RasterDecode) Process(ctx *pipeline.Context, v pipeline.Value) (pipeline.Value, error) {
	src, format, err := image.Decode(bytes.NewReader(v.Tile.Raw()))
	if err != nil {
		return pipeline.Value{}, &DecodeError{Coords: v.Request.Coords, Format: "raster", Err: err}
	}

	rgba, ok := src.(*image.RGBA)
	if !ok {
		bounds := src.Bounds()
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), src, bounds.Min, draw.Src)
	}

	name := s.LayerName
	if name == "" {
		name = DefaultRasterLayer
	}

	ctx.Logger().Debug("layer raster finished", "coords", v.Request.Coords, "layer", name, "format", format)
	if err := ctx.Processor().LayerRasterFinished(v.Request.Coords, name, rgba); err != nil {
		return pipeline.Value{}, err
	}
	return pipeline.Value{Request: v.Request, Tile: pipeline.RasterTile(rgba)}, nil
}
