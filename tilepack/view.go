package tilepack

import (
	"iter"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

const (
	// DefaultTileSize is the rendered size of a tile in pixels at its own zoom.
	DefaultTileSize = 512.0
	// DefaultViewPadding is the number of extra tiles requested around the view.
	DefaultViewPadding = 1
)

// Camera is the part of the renderer's camera the request logic depends on.
type Camera struct {
	// Center is the lon/lat the viewport is centered on.
	Center orb.Point
	Zoom   float64
	// Width and Height are the viewport size in pixels.
	Width  int
	Height int
}

// ViewState tracks the camera and the camera last seen by the request logic,
// so that tiles are only recomputed when something moved.
type ViewState struct {
	camera   Camera
	tileSize float64
	padding  int32

	reference *Camera
}

func NewViewState(camera Camera) *ViewState {
	return &ViewState{
		camera:   camera,
		tileSize: DefaultTileSize,
		padding:  DefaultViewPadding,
	}
}

// WithTileSize sets the rendered tile size in pixels.
func (v *ViewState) WithTileSize(size float64) *ViewState {
	if size > 0 {
		v.tileSize = size
	}
	return v
}

// WithPadding sets how many tiles are added around the visible ones.
func (v *ViewState) WithPadding(tiles int32) *ViewState {
	if tiles >= 0 {
		v.padding = tiles
	}
	return v
}

func (v *ViewState) Camera() Camera {
	return v.camera
}

func (v *ViewState) SetCamera(camera Camera) {
	v.camera = camera
}

// Pan moves the camera center by the given lon/lat delta.
func (v *ViewState) Pan(dLon, dLat float64) {
	v.camera.Center = orb.Point{v.camera.Center.X() + dLon, v.camera.Center.Y() + dLat}
}

func (v *ViewState) SetZoom(zoom float64) {
	v.camera.Zoom = math.Max(0, math.Min(zoom, float64(MaxZoom)))
}

// DidCameraChange reports whether the center or the viewport moved since the
// last UpdateReferences. A fresh ViewState has always changed.
func (v *ViewState) DidCameraChange() bool {
	if v.reference == nil {
		return true
	}
	r := v.reference
	return !r.Center.Equal(v.camera.Center) || r.Width != v.camera.Width || r.Height != v.camera.Height
}

// DidZoomChange reports whether the zoom changed since the last UpdateReferences.
func (v *ViewState) DidZoomChange() bool {
	return v.reference == nil || v.reference.Zoom != v.camera.Zoom
}

// UpdateReferences remembers the current camera as the last one seen.
func (v *ViewState) UpdateReferences() {
	c := v.camera
	v.reference = &c
}

// ZoomLevel is the integer zoom tiles are requested at.
func (v *ViewState) ZoomLevel() maptile.Zoom {
	z := math.Floor(v.camera.Zoom)
	if z < 0 {
		return 0
	}
	if z > float64(MaxZoom) {
		return MaxZoom
	}
	return maptile.Zoom(z)
}

// CreateViewRegion returns the tiles covering the viewport. It reports false
// when the viewport is empty.
func (v *ViewState) CreateViewRegion() (ViewRegion, bool) {
	if v.camera.Width <= 0 || v.camera.Height <= 0 {
		return ViewRegion{}, false
	}

	z := v.ZoomLevel()
	scale := math.Pow(2, v.camera.Zoom-float64(z))
	tilePixels := v.tileSize * scale

	center := maptile.Fraction(v.camera.Center, z)
	halfWidth := float64(v.camera.Width) / 2 / tilePixels
	halfHeight := float64(v.camera.Height) / 2 / tilePixels

	return ViewRegion{
		Zoom: z,
		MinX: int32(math.Floor(center.X()-halfWidth)) - v.padding,
		MinY: int32(math.Floor(center.Y()-halfHeight)) - v.padding,
		MaxX: int32(math.Floor(center.X()+halfWidth)) + v.padding,
		MaxY: int32(math.Floor(center.Y()+halfHeight)) + v.padding,
	}, true
}

// ViewRegion is an inclusive rectangle of tiles at one zoom. It may reach
// outside the world; those coordinates have no quad key.
type ViewRegion struct {
	Zoom       maptile.Zoom
	MinX, MinY int32
	MaxX, MaxY int32
}

func (r ViewRegion) Contains(c TileCoordinates) bool {
	return c.Z == r.Zoom && c.X >= r.MinX && c.X <= r.MaxX && c.Y >= r.MinY && c.Y <= r.MaxY
}

// Len returns the number of coordinates in the region.
func (r ViewRegion) Len() int {
	if r.MaxX < r.MinX || r.MaxY < r.MinY {
		return 0
	}
	return int(r.MaxX-r.MinX+1) * int(r.MaxY-r.MinY+1)
}

// All yields every coordinate in the region, row by row.
func (r ViewRegion) All() iter.Seq[TileCoordinates] {
	return func(yield func(TileCoordinates) bool) {
		for y := r.MinY; y <= r.MaxY; y++ {
			for x := r.MinX; x <= r.MaxX; x++ {
				if !yield(NewTileCoordinates(x, y, r.Zoom)) {
					return
				}
			}
		}
	}
}
