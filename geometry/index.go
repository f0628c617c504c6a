package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/quadtree"
)

// IndexedGeometry is one feature of a decoded tile in tile units. It
// implements orb.Pointer through its centroid.
type IndexedGeometry struct {
	Layer      string
	ID         interface{}
	Extent     uint32
	Geometry   orb.Geometry
	Bound      orb.Bound
	Properties geojson.Properties

	center orb.Point
}

func (g *IndexedGeometry) Point() orb.Point {
	return g.center
}

// Contains reports whether p lies inside a polygonal geometry. Lines and
// points contain nothing.
func (g *IndexedGeometry) Contains(p orb.Point) bool {
	if !g.Bound.Contains(p) {
		return false
	}
	switch geom := g.Geometry.(type) {
	case orb.Polygon:
		return planar.PolygonContains(geom, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geom, p)
	case orb.Ring:
		return planar.RingContains(geom, p)
	case orb.Bound:
		return true
	}
	return false
}

// Distance returns the distance from p to the boundary of the geometry.
func (g *IndexedGeometry) Distance(p orb.Point) float64 {
	return planar.DistanceFrom(g.Geometry, p)
}

// IndexProcessor collects the features of every layer it is given.
type IndexProcessor struct {
	geometries []*IndexedGeometry
}

func NewIndexProcessor() *IndexProcessor {
	return &IndexProcessor{}
}

// ProcessLayer adds every feature of layer that has a geometry.
func (p *IndexProcessor) ProcessLayer(layer *mvt.Layer) {
	if layer == nil {
		return
	}
	for _, f := range layer.Features {
		if f == nil || f.Geometry == nil {
			continue
		}

		bound := f.Geometry.Bound()
		center, _ := planar.CentroidArea(f.Geometry)
		if math.IsNaN(center[0]) || math.IsNaN(center[1]) {
			center = bound.Center()
		}

		p.geometries = append(p.geometries, &IndexedGeometry{
			Layer:      layer.Name,
			ID:         f.ID,
			Extent:     layer.Extent,
			Geometry:   f.Geometry,
			Bound:      bound,
			Properties: f.Properties,
			center:     center,
		})
	}
}

// Geometries returns the collected features, in layer and feature order.
func (p *IndexProcessor) Geometries() []*IndexedGeometry {
	return p.geometries
}

// GeometryIndex answers spatial queries over the features of one tile.
type GeometryIndex struct {
	tree       *quadtree.Quadtree
	geometries []*IndexedGeometry
	extent     uint32
}

// NewGeometryIndex indexes geometries by centroid. Features whose centroid
// lies further than one tile extent outside the tile are left out.
func NewGeometryIndex(geometries []*IndexedGeometry) *GeometryIndex {
	extent := float64(mvt.DefaultExtent)
	for _, g := range geometries {
		extent = math.Max(extent, float64(g.Extent))
	}

	idx := &GeometryIndex{
		tree: quadtree.New(orb.Bound{
			Min: orb.Point{-extent, -extent},
			Max: orb.Point{2 * extent, 2 * extent},
		}),
	}
	idx.extent = uint32(extent)
	for _, g := range geometries {
		if err := idx.tree.Add(g); err != nil {
			continue
		}
		idx.geometries = append(idx.geometries, g)
	}
	return idx
}

func (i *GeometryIndex) Len() int {
	return len(i.geometries)
}

// Extent is the largest extent of the indexed layers, at least
// mvt.DefaultExtent.
func (i *GeometryIndex) Extent() uint32 {
	return i.extent
}

// Nearest returns up to k features whose centroids are closest to p,
// nearest first.
func (i *GeometryIndex) Nearest(p orb.Point, k int) []*IndexedGeometry {
	if k <= 0 {
		return nil
	}
	return toGeometries(i.tree.KNearest(nil, p, k))
}

// InBound returns the features whose centroids lie in b.
func (i *GeometryIndex) InBound(b orb.Bound) []*IndexedGeometry {
	return toGeometries(i.tree.InBound(nil, b))
}

// Containing returns the polygonal features containing p, in index order.
func (i *GeometryIndex) Containing(p orb.Point) []*IndexedGeometry {
	var result []*IndexedGeometry
	for _, g := range i.geometries {
		if g.Contains(p) {
			result = append(result, g)
		}
	}
	return result
}

func toGeometries(pointers []orb.Pointer) []*IndexedGeometry {
	result := make([]*IndexedGeometry, 0, len(pointers))
	for _, p := range pointers {
		result = append(result, p.(*IndexedGeometry))
	}
	return result
}

// TilePoint converts a longitude/latitude into the tile-unit coordinates of
// tile, whose features use the given extent.
func TilePoint(tile maptile.Tile, extent uint32, ll orb.Point) orb.Point {
	f := maptile.Fraction(ll, tile.Z)
	return orb.Point{
		(f[0] - float64(tile.X)) * float64(extent),
		(f[1] - float64(tile.Y)) * float64(extent),
	}
}
