package pipeline

import (
	"errors"
	"fmt"

	"github.com/tilezen/go-tilepipe/tilepack"
)

var (
	// ErrIncompatibleStages is returned by New when adjacent stages do not
	// compose.
	ErrIncompatibleStages = errors.New("pipeline: incompatible stages")

	// ErrKindMismatch is returned when a stage produces a value of another
	// kind than it declares.
	ErrKindMismatch = errors.New("pipeline: stage produced unexpected kind")
)

// Error reports the stage that aborted a run.
type Error struct {
	Stage  string
	Coords tilepack.TileCoordinates
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("stage %s failed for %s: %v", e.Stage, e.Coords, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
