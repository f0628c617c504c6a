package stages

import (
	"fmt"

	"github.com/tilezen/go-tilepipe/geometry"
	"github.com/tilezen/go-tilepipe/pipeline"
)

// Options configures the pipelines built by Build.
type Options struct {
	// Tessellator defaults to geometry.FanTessellator.
	Tessellator geometry.Tessellator
	// RasterLayerName defaults to DefaultRasterLayer.
	RasterLayerName string
}

// Build returns the pipeline for variant.
func Build(variant pipeline.Variant, opts Options) (*pipeline.Pipeline, error) {
	switch variant {
	case pipeline.VectorPipeline:
		tessellator := opts.Tessellator
		if tessellator == nil {
			tessellator = geometry.FanTessellator{}
		}
		return pipeline.New(variant,
			Decode{},
			Index{},
			Tessellate{Tessellator: tessellator},
			Reconcile{},
			Finalize{},
		)
	case pipeline.RasterPipeline:
		return pipeline.New(variant,
			RasterDecode{LayerName: opts.RasterLayerName},
			Finalize{},
		)
	}
	return nil, fmt.Errorf("unknown pipeline variant %s", variant)
}

// BuildVectorPipeline returns decode, index, tessellate, reconcile and
// finalize.
func BuildVectorPipeline(t geometry.Tessellator) *pipeline.Pipeline {
	p, err := Build(pipeline.VectorPipeline, Options{Tessellator: t})
	if err != nil {
		panic(err)
	}
	return p
}

// BuildRasterPipeline returns raster decode and finalize.
func BuildRasterPipeline() *pipeline.Pipeline {
	p, err := Build(pipeline.RasterPipeline, Options{})
	if err != nil {
		panic(err)
	}
	return p
}
