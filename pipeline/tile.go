package pipeline

import (
	"fmt"
	"image"

	"github.com/paulmach/orb/encoding/mvt"
	"github.com/tilezen/go-tilepipe/tilepack"
)

// Kind tags the representation a stage consumes or produces.
type Kind int

const (
	KindRaw Kind = iota
	KindVector
	KindRaster
	// KindDecoded is either KindVector or KindRaster. Stages that only
	// report on a tile, like the finalizer, take and return it.
	KindDecoded
)

func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindVector:
		return "vector"
	case KindRaster:
		return "raster"
	case KindDecoded:
		return "decoded"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Accepts reports whether a stage declaring k as its input can consume
// values of kind v.
func (k Kind) Accepts(v Kind) bool {
	if k == v {
		return true
	}
	return k == KindDecoded && (v == KindVector || v == KindRaster)
}

// Variant is the closed set of pipelines a tile can be processed with.
type Variant int

const (
	VectorPipeline Variant = iota
	RasterPipeline
)

func (v Variant) String() string {
	switch v {
	case VectorPipeline:
		return "vector"
	case RasterPipeline:
		return "raster"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// Output returns the kind every pipeline of the variant must produce.
func (v Variant) Output() Kind {
	if v == RasterPipeline {
		return KindRaster
	}
	return KindVector
}

// VariantFor returns the pipeline variant that processes tiles of a source.
func VariantFor(kind tilepack.SourceKind) Variant {
	if kind == tilepack.RasterSource {
		return RasterPipeline
	}
	return VectorPipeline
}

// Tile is the value flowing between stages: the raw payload, or the decoded
// vector layers or raster image.
type Tile struct {
	kind   Kind
	raw    []byte
	vector mvt.Layers
	raster *image.RGBA
}

func RawTile(data []byte) Tile {
	return Tile{kind: KindRaw, raw: data}
}

func VectorTile(layers mvt.Layers) Tile {
	return Tile{kind: KindVector, vector: layers}
}

func RasterTile(img *image.RGBA) Tile {
	return Tile{kind: KindRaster, raster: img}
}

func (t Tile) Kind() Kind {
	return t.kind
}

func (t Tile) Raw() []byte {
	return t.raw
}

func (t Tile) Vector() mvt.Layers {
	return t.vector
}

func (t Tile) Raster() *image.RGBA {
	return t.raster
}

// Value pairs a tile with the request it answers.
type Value struct {
	Request tilepack.TileRequest
	Tile    Tile
}
