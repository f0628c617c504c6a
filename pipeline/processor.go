package pipeline

import (
	"image"
	"sync"

	"github.com/paulmach/orb/encoding/mvt"
	"github.com/tilezen/go-tilepipe/geometry"
	"github.com/tilezen/go-tilepipe/tilepack"
)

// Processor receives the events of a run. An error aborts the rest of the
// run.
type Processor interface {
	LayerReady(coords tilepack.TileCoordinates, layerName string, buffers *geometry.Buffers, layer *mvt.Layer) error
	LayerUnavailable(coords tilepack.TileCoordinates, layerName string) error
	LayerRasterFinished(coords tilepack.TileCoordinates, layerName string, img *image.RGBA) error
	IndexingFinished(coords tilepack.TileCoordinates, geometries []*geometry.IndexedGeometry) error
	TileFinished(coords tilepack.TileCoordinates) error
}

// Sender delivers messages.
type Sender interface {
	Send(msg Message) error
}

// SendProcessor turns every event into a Message for a Sender.
type SendProcessor struct {
	sender Sender
}

func NewSendProcessor(sender Sender) *SendProcessor {
	return &SendProcessor{sender: sender}
}

func (p *SendProcessor) LayerReady(coords tilepack.TileCoordinates, layerName string, buffers *geometry.Buffers, layer *mvt.Layer) error {
	return p.sender.Send(LayerReady{Coords: coords, LayerName: layerName, Buffers: buffers, Layer: layer})
}

func (p *SendProcessor) LayerUnavailable(coords tilepack.TileCoordinates, layerName string) error {
	return p.sender.Send(LayerUnavailable{Coords: coords, LayerName: layerName})
}

func (p *SendProcessor) LayerRasterFinished(coords tilepack.TileCoordinates, layerName string, img *image.RGBA) error {
	return p.sender.Send(LayerRasterFinished{Coords: coords, LayerName: layerName, Image: img})
}

func (p *SendProcessor) IndexingFinished(coords tilepack.TileCoordinates, geometries []*geometry.IndexedGeometry) error {
	return p.sender.Send(IndexingFinished{Coords: coords, Geometries: geometries})
}

func (p *SendProcessor) TileFinished(coords tilepack.TileCoordinates) error {
	return p.sender.Send(TileFinished{Coords: coords})
}

// Recorder is a Processor and Sender that keeps every message it receives.
type Recorder struct {
	*SendProcessor

	mu       sync.Mutex
	messages []Message
}

func NewRecorder() *Recorder {
	r := &Recorder{}
	r.SendProcessor = NewSendProcessor(r)
	return r
}

func (r *Recorder) Send(msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

// Messages returns a copy of the messages received so far, in order.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}
