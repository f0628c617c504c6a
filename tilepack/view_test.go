package tilepack

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
)

func TestViewState_CreateViewRegion(t *testing.T) {
	tests := []struct {
		name   string
		camera Camera
		want   ViewRegion
	}{
		{
			name:   "z0 world in a small viewport",
			camera: Camera{Center: orb.Point{0, 0}, Zoom: 0, Width: 256, Height: 256},
			want:   ViewRegion{Zoom: 0, MinX: -1, MinY: -1, MaxX: 1, MaxY: 1},
		},
		{
			name:   "z2 centered on the origin",
			camera: Camera{Center: orb.Point{0, 0}, Zoom: 2, Width: 512, Height: 512},
			want:   ViewRegion{Zoom: 2, MinX: 0, MinY: 0, MaxX: 3, MaxY: 3},
		},
		{
			name:   "fractional zoom uses the floor",
			camera: Camera{Center: orb.Point{0, 0}, Zoom: 2.5, Width: 512, Height: 512},
			want:   ViewRegion{Zoom: 2, MinX: 0, MinY: 0, MaxX: 3, MaxY: 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NewViewState(tt.camera).CreateViewRegion()
			if !ok {
				t.Fatalf("CreateViewRegion() reported an empty viewport")
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("CreateViewRegion() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestViewState_EmptyViewport(t *testing.T) {
	v := NewViewState(Camera{Zoom: 3})
	if _, ok := v.CreateViewRegion(); ok {
		t.Errorf("CreateViewRegion() on an empty viewport reported a region")
	}
}

func TestViewState_ChangeTracking(t *testing.T) {
	v := NewViewState(Camera{Center: orb.Point{10, 10}, Zoom: 4, Width: 800, Height: 600})

	if !v.DidCameraChange() || !v.DidZoomChange() {
		t.Fatalf("fresh view state reported no change")
	}

	v.UpdateReferences()
	if v.DidCameraChange() || v.DidZoomChange() {
		t.Fatalf("static camera reported a change")
	}

	v.Pan(1, 0)
	if !v.DidCameraChange() {
		t.Errorf("pan not reported as camera change")
	}
	if v.DidZoomChange() {
		t.Errorf("pan reported as zoom change")
	}

	v.UpdateReferences()
	v.SetZoom(5)
	if !v.DidZoomChange() {
		t.Errorf("zoom not reported as zoom change")
	}
}

func TestViewRegion_All(t *testing.T) {
	r := ViewRegion{Zoom: 1, MinX: -1, MinY: 0, MaxX: 1, MaxY: 1}

	var got []TileCoordinates
	for c := range r.All() {
		got = append(got, c)
	}

	if len(got) != r.Len() {
		t.Fatalf("All() yielded %d coordinates, Len() = %d", len(got), r.Len())
	}
	for _, c := range got {
		if !r.Contains(c) {
			t.Errorf("All() yielded %s outside the region", c)
		}
	}
	if got[0] != NewTileCoordinates(-1, 0, 1) {
		t.Errorf("All() started at %s", got[0])
	}
}
