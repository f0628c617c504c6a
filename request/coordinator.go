// Package request decides which tiles the view needs and submits the ones
// that have not been requested yet.
package request

import (
	"fmt"
	"iter"

	"github.com/tilezen/go-tilepipe/apc"
	"github.com/tilezen/go-tilepipe/repository"
	"github.com/tilezen/go-tilepipe/style"
	"github.com/tilezen/go-tilepipe/tilepack"
)

// Coordinator gates tile requests on the repository.
type Coordinator struct {
	repo       *repository.Repository
	dispatcher apc.AsyncProcedureCall
	procedure  apc.Procedure
}

func NewCoordinator(repo *repository.Repository, dispatcher apc.AsyncProcedureCall, procedure apc.Procedure) *Coordinator {
	return &Coordinator{
		repo:       repo,
		dispatcher: dispatcher,
		procedure:  procedure,
	}
}

// Run requests the tiles in view when the camera or zoom changed since the
// last run, and returns how many requests it submitted. The view's
// references are updated either way.
func (c *Coordinator) Run(view *tilepack.ViewState, st *style.Style) (int, error) {
	defer view.UpdateReferences()

	if !view.DidCameraChange() && !view.DidZoomChange() {
		return 0, nil
	}

	region, ok := view.CreateViewRegion()
	if !ok {
		return 0, nil
	}

	n, err := c.RequestTiles(region.All(), st.SourceLayers())
	tilepack.Logger().Debug("requested tiles in view", "zoom", region.Zoom, "region", region.Len(), "new", n)
	return n, err
}

// RequestTiles requests every coordinate in coords. It stops at the first
// submission failure.
func (c *Coordinator) RequestTiles(coords iter.Seq[tilepack.TileCoordinates], layers tilepack.LayerSet) (int, error) {
	n := 0
	for coord := range coords {
		requested, err := c.RequestTile(coord, layers)
		if err != nil {
			return n, err
		}
		if requested {
			n++
		}
	}
	return n, nil
}

// RequestTile submits a request for coords unless it has no quad key or
// already has a repository entry. The entry is created before the request is
// submitted and removed again if submitting fails.
func (c *Coordinator) RequestTile(coords tilepack.TileCoordinates, layers tilepack.LayerSet) (bool, error) {
	if _, ok := coords.QuadKey(); !ok {
		return false, nil
	}
	if !c.repo.TryCreateTile(coords) {
		return false, nil
	}

	tilepack.Logger().Info("new tile request", "coords", coords)
	req := tilepack.TileRequest{Coords: coords, Layers: layers.Clone()}
	if err := c.dispatcher.Call(req, c.procedure); err != nil {
		c.repo.Remove(coords)
		return false, fmt.Errorf("couldn't submit request for %s: %w", coords, err)
	}
	return true, nil
}
