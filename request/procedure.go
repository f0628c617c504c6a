package request

import (
	"context"
	"errors"
	"fmt"

	"github.com/tilezen/go-tilepipe/apc"
	"github.com/tilezen/go-tilepipe/pipeline"
	"github.com/tilezen/go-tilepipe/stages"
	"github.com/tilezen/go-tilepipe/tilepack"
)

// ProcedureError is returned by the tile procedure when a run failed.
type ProcedureError struct {
	Coords tilepack.TileCoordinates
	Err    error
}

func (e *ProcedureError) Error() string {
	return fmt.Sprintf("tile procedure failed for %s: %v", e.Coords, e.Err)
}

func (e *ProcedureError) Unwrap() error {
	return e.Err
}

// FetchAndProcess returns the procedure run for every tile request: fetch
// the payload from source, then run the variant's pipeline with its events
// sent back through the dispatcher.
//
// When the fetch fails the pipeline is not run and every requested layer is
// reported unavailable. A payload that can't be decoded is reported the same
// way and also fails the procedure.
func FetchAndProcess(variant pipeline.Variant, source tilepack.SourceType, opts stages.Options) (apc.Procedure, error) {
	p, err := stages.Build(variant, opts)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, req tilepack.TileRequest, c apc.Context) error {
		logger := tilepack.Logger()

		data, err := c.SourceClient().Fetch(ctx, req.Coords, source)
		if err != nil {
			logger.Warn("tile fetch failed", "coords", req.Coords, "error", err)
			return sendUnavailable(c, req)
		}

		pctx := pipeline.NewContext(pipeline.NewSendProcessor(c))
		if _, err := p.Process(pctx, req, data); err != nil {
			var decodeErr *stages.DecodeError
			if errors.As(err, &decodeErr) {
				if sendErr := sendUnavailable(c, req); sendErr != nil {
					return sendErr
				}
			}
			return &ProcedureError{Coords: req.Coords, Err: err}
		}
		return nil
	}, nil
}

func sendUnavailable(c apc.Context, req tilepack.TileRequest) error {
	for _, layer := range req.Layers.Sorted() {
		tilepack.Logger().Warn("layer unavailable", "coords", req.Coords, "layer", layer)
		if err := c.Send(pipeline.LayerUnavailable{Coords: req.Coords, LayerName: layer}); err != nil {
			return &ProcedureError{Coords: req.Coords, Err: err}
		}
	}
	return nil
}
