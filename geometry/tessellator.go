// Package geometry turns decoded vector tile layers into render buffers and
// spatially indexed features.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
)

var (
	ErrDegenerateGeometry = errors.New("geometry: degenerate geometry")
	ErrNonFiniteGeometry  = errors.New("geometry: non-finite coordinate")
	ErrTooManyVertices    = errors.New("geometry: too many vertices")
)

// Vertex is a position in tile units plus the unit normal a line vertex was
// extruded along. Fill vertices have a zero normal.
type Vertex struct {
	Position [2]float32
	Normal   [2]float32
}

// Buffers holds the triangle list of one layer.
type Buffers struct {
	Vertices []Vertex
	Indices  []uint32
	// FeatureIndices holds, per feature in layer order, the number of
	// indices the feature contributed.
	FeatureIndices []uint32
}

// Triangles returns the number of triangles in the buffers.
func (b *Buffers) Triangles() int {
	return len(b.Indices) / 3
}

// Tessellator converts the geometry of one layer into buffers. It must not
// modify the layer.
type Tessellator interface {
	Tessellate(layer *mvt.Layer) (*Buffers, error)
}

// TessellatorFunc adapts a function to the Tessellator interface.
type TessellatorFunc func(layer *mvt.Layer) (*Buffers, error)

func (f TessellatorFunc) Tessellate(layer *mvt.Layer) (*Buffers, error) {
	return f(layer)
}

// FanTessellator fills the exterior ring of every polygon with a triangle
// fan and extrudes every line segment into a quad. Points produce no
// triangles. It is a reference tessellator: concave polygons and holes are
// not handled correctly.
type FanTessellator struct {
	// LineWidth is the width of extruded lines in tile units. Zero means 1.
	LineWidth float64
	// MaxVertices bounds the vertices of one layer. Zero means the index
	// type's limit.
	MaxVertices int
}

func (t FanTessellator) Tessellate(layer *mvt.Layer) (*Buffers, error) {
	if layer == nil {
		return nil, fmt.Errorf("%w: nil layer", ErrDegenerateGeometry)
	}

	b := &Buffers{FeatureIndices: make([]uint32, 0, len(layer.Features))}
	for i, f := range layer.Features {
		before := len(b.Indices)
		if err := t.geometry(b, f.Geometry); err != nil {
			return nil, fmt.Errorf("feature %d of layer %s: %w", i, layer.Name, err)
		}
		b.FeatureIndices = append(b.FeatureIndices, uint32(len(b.Indices)-before))
	}
	return b, nil
}

func (t FanTessellator) geometry(b *Buffers, g orb.Geometry) error {
	switch g := g.(type) {
	case nil:
		return nil
	case orb.Point:
		return checkFinite(g)
	case orb.MultiPoint:
		for _, p := range g {
			if err := checkFinite(p); err != nil {
				return err
			}
		}
		return nil
	case orb.LineString:
		return t.line(b, g)
	case orb.MultiLineString:
		for _, ls := range g {
			if err := t.line(b, ls); err != nil {
				return err
			}
		}
		return nil
	case orb.Ring:
		return t.fill(b, g)
	case orb.Polygon:
		if len(g) == 0 {
			return fmt.Errorf("%w: polygon without rings", ErrDegenerateGeometry)
		}
		return t.fill(b, g[0])
	case orb.MultiPolygon:
		for _, p := range g {
			if err := t.geometry(b, p); err != nil {
				return err
			}
		}
		return nil
	case orb.Bound:
		return t.fill(b, g.ToRing())
	case orb.Collection:
		for _, child := range g {
			if err := t.geometry(b, child); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unsupported geometry type %T", g)
}

func (t FanTessellator) reserve(b *Buffers, n int) error {
	limit := int64(math.MaxUint32)
	if t.MaxVertices > 0 && int64(t.MaxVertices) < limit {
		limit = int64(t.MaxVertices)
	}
	if int64(len(b.Vertices)+n) > limit {
		return fmt.Errorf("%w: %d > %d", ErrTooManyVertices, len(b.Vertices)+n, limit)
	}
	return nil
}

func (t FanTessellator) fill(b *Buffers, r orb.Ring) error {
	points := []orb.Point(r)
	if r.Closed() {
		points = points[:len(points)-1]
	}
	if len(points) < 3 {
		return fmt.Errorf("%w: ring with %d points", ErrDegenerateGeometry, len(points))
	}
	for _, p := range points {
		if err := checkFinite(p); err != nil {
			return err
		}
	}
	if err := t.reserve(b, len(points)); err != nil {
		return err
	}

	base := uint32(len(b.Vertices))
	for _, p := range points {
		b.Vertices = append(b.Vertices, Vertex{Position: position(p)})
	}
	for i := 1; i < len(points)-1; i++ {
		b.Indices = append(b.Indices, base, base+uint32(i), base+uint32(i+1))
	}
	return nil
}

func (t FanTessellator) line(b *Buffers, ls orb.LineString) error {
	if len(ls) < 2 {
		return fmt.Errorf("%w: line with %d points", ErrDegenerateGeometry, len(ls))
	}
	for _, p := range ls {
		if err := checkFinite(p); err != nil {
			return err
		}
	}

	halfWidth := t.LineWidth / 2
	if halfWidth <= 0 {
		halfWidth = 0.5
	}

	segments := 0
	for i := 1; i < len(ls); i++ {
		from, to := ls[i-1], ls[i]
		if from.Equal(to) {
			continue
		}
		if err := t.reserve(b, 4); err != nil {
			return err
		}

		dx, dy := to[0]-from[0], to[1]-from[1]
		length := math.Hypot(dx, dy)
		nx, ny := -dy/length, dx/length

		base := uint32(len(b.Vertices))
		for _, p := range []orb.Point{from, to} {
			for _, side := range []float64{1, -1} {
				b.Vertices = append(b.Vertices, Vertex{
					Position: position(orb.Point{p[0] + side*nx*halfWidth, p[1] + side*ny*halfWidth}),
					Normal:   [2]float32{float32(side * nx), float32(side * ny)},
				})
			}
		}
		b.Indices = append(b.Indices,
			base, base+1, base+2,
			base+1, base+3, base+2)
		segments++
	}

	if segments == 0 {
		return fmt.Errorf("%w: zero length line", ErrDegenerateGeometry)
	}
	return nil
}

func checkFinite(p orb.Point) error {
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %v", ErrNonFiniteGeometry, p)
		}
	}
	return nil
}

func position(p orb.Point) [2]float32 {
	return [2]float32{float32(p[0]), float32(p[1])}
}
