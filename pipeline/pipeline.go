// Package pipeline runs a tile through an ordered chain of stages. Stages
// report what happened to a tile through the run's Processor; their return
// value is only the next representation of the tile.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/tilezen/go-tilepipe/tilepack"
)

// Stage is one step of a pipeline.
type Stage interface {
	Name() string
	Input() Kind
	Output() Kind
	Process(ctx *Context, v Value) (Value, error)
}

type endStage struct{}

// End terminates every pipeline and passes its input through unchanged.
var End Stage = endStage{}

func (endStage) Name() string { return "end" }
func (endStage) Input() Kind  { return KindDecoded }
func (endStage) Output() Kind { return KindDecoded }

func (endStage) Process(ctx *Context, v Value) (Value, error) {
	return v, nil
}

// Pipeline is a validated chain of stages.
type Pipeline struct {
	variant Variant
	stages  []Stage
}

// New validates that the stages turn a raw payload into the variant's output
// and that every stage consumes what the previous one produces. End is
// appended when the chain does not already finish with it.
func New(variant Variant, stages ...Stage) (*Pipeline, error) {
	if len(stages) == 0 || stages[len(stages)-1] != End {
		stages = append(stages[:len(stages):len(stages)], End)
	}

	if first := stages[0]; first.Input() != KindRaw {
		return nil, fmt.Errorf("%w: %s takes %s, not a raw payload", ErrIncompatibleStages, first.Name(), first.Input())
	}

	for i := 1; i < len(stages); i++ {
		prev, next := stages[i-1], stages[i]
		if !next.Input().Accepts(prev.Output()) {
			return nil, fmt.Errorf("%w: %s produces %s but %s takes %s",
				ErrIncompatibleStages, prev.Name(), prev.Output(), next.Name(), next.Input())
		}
	}

	// The last real stage decides what the run produces; End passes it on.
	if len(stages) > 1 {
		last := stages[len(stages)-2]
		if out := last.Output(); out != variant.Output() && out != KindDecoded {
			return nil, fmt.Errorf("%w: %s pipeline ends with %s producing %s",
				ErrIncompatibleStages, variant, last.Name(), out)
		}
	}

	return &Pipeline{variant: variant, stages: stages}, nil
}

// MustNew is like New but panics on error. It is meant for static builders.
func MustNew(variant Variant, stages ...Stage) *Pipeline {
	p, err := New(variant, stages...)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Pipeline) Variant() Variant {
	return p.variant
}

// Stages returns the stage names in order, including End.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

func (p *Pipeline) String() string {
	return fmt.Sprintf("%s[%s]", p.variant, strings.Join(p.Stages(), " -> "))
}

// Process runs every stage in order on one payload. The first failing stage
// aborts the run; its error is returned as an *Error.
func (p *Pipeline) Process(ctx *Context, req tilepack.TileRequest, payload []byte) (Value, error) {
	v := Value{Request: req, Tile: RawTile(payload)}

	for _, stage := range p.stages {
		out, err := stage.Process(ctx, v)
		if err != nil {
			return Value{}, &Error{Stage: stage.Name(), Coords: req.Coords, Err: err}
		}

		if kind := out.Tile.Kind(); !stage.Output().Accepts(kind) {
			return Value{}, &Error{
				Stage:  stage.Name(),
				Coords: req.Coords,
				Err:    fmt.Errorf("%w: declared %s, produced %s", ErrKindMismatch, stage.Output(), kind),
			}
		}
		v = out
	}

	return v, nil
}
