// Package world applies the messages of tile runs on the consumer side and
// keeps the results for the tiles finished most recently. Tiles still being
// processed are kept aside until their tile finished message arrives.
package world

import (
	"fmt"
	"image"

	lru "github.com/hashicorp/golang-lru"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/maptile"
	"github.com/tilezen/go-tilepipe/geometry"
	"github.com/tilezen/go-tilepipe/pipeline"
	"github.com/tilezen/go-tilepipe/repository"
	"github.com/tilezen/go-tilepipe/tilepack"
)

// DefaultMaxTiles is the number of tiles a World keeps by default.
const DefaultMaxTiles = 512

// Receiver is where messages come from, usually an apc.AsyncProcedureCall.
type Receiver interface {
	Receive() (pipeline.Message, bool)
}

// Layer is a tessellated layer of a tile.
type Layer struct {
	Buffers *geometry.Buffers
	Source  *mvt.Layer
}

// Tile is everything received for one tile so far.
type Tile struct {
	Coords      tilepack.TileCoordinates
	Layers      map[string]Layer
	Rasters     map[string]*image.RGBA
	Unavailable tilepack.LayerSet
	Index       *geometry.GeometryIndex
	Finished    bool
}

func newTile(coords tilepack.TileCoordinates) *Tile {
	return &Tile{
		Coords:      coords,
		Layers:      make(map[string]Layer),
		Rasters:     make(map[string]*image.RGBA),
		Unavailable: tilepack.NewLayerSet(),
	}
}

// Stats counts what a World has applied.
type Stats struct {
	Messages          int
	LayersReady       int
	LayersUnavailable int
	Rasters           int
	TilesFinished     int
	Evicted           int
}

type Options struct {
	// MaxTiles bounds the finished tiles kept. Defaults to DefaultMaxTiles.
	MaxTiles int
}

// World is driven from a single goroutine, the consumer's frame loop.
type World struct {
	repo *repository.Repository
	// pending holds tiles whose tile finished message has not arrived. They
	// are never evicted; their number is bounded by the Requested entries.
	pending map[tilepack.TileCoordinates]*Tile
	tiles   *lru.Cache
	stats   Stats
}

func New(repo *repository.Repository, opts Options) (*World, error) {
	if opts.MaxTiles <= 0 {
		opts.MaxTiles = DefaultMaxTiles
	}

	w := &World{
		repo:    repo,
		pending: make(map[tilepack.TileCoordinates]*Tile),
	}
	tiles, err := lru.NewWithEvict(opts.MaxTiles, w.evicted)
	if err != nil {
		return nil, fmt.Errorf("couldn't create tile cache: %w", err)
	}
	w.tiles = tiles
	return w, nil
}

// evicted releases the repository entry of an evicted tile, so the tile is
// requested again when it comes back into view. Only finished tiles are
// cached.
func (w *World) evicted(key interface{}, value interface{}) {
	w.repo.RemovePresent(value.(*Tile).Coords)
	w.stats.Evicted++
}

// Populate applies up to limit messages from rx, or every available message
// when limit is 0, and returns how many it applied.
func (w *World) Populate(rx Receiver, limit int) int {
	n := 0
	for limit <= 0 || n < limit {
		msg, ok := rx.Receive()
		if !ok {
			break
		}
		w.Apply(msg)
		n++
	}
	return n
}

// Apply applies one message. Messages for tiles that are out of view are
// applied all the same.
func (w *World) Apply(msg pipeline.Message) {
	tile := w.tile(msg.Coordinates())
	w.stats.Messages++

	switch m := msg.(type) {
	case pipeline.LayerReady:
		tile.Layers[m.LayerName] = Layer{Buffers: m.Buffers, Source: m.Layer}
		w.stats.LayersReady++
	case pipeline.LayerUnavailable:
		tile.Unavailable.Add(m.LayerName)
		w.stats.LayersUnavailable++
	case pipeline.LayerRasterFinished:
		tile.Rasters[m.LayerName] = m.Image
		w.stats.Rasters++
	case pipeline.IndexingFinished:
		tile.Index = geometry.NewGeometryIndex(m.Geometries)
	case pipeline.TileFinished:
		w.finish(tile)
		w.repo.MarkPresent(m.Coords)
		w.stats.TilesFinished++
	}
}

// finish moves tile from pending into the cache. Adding it may evict the
// least recently used finished tile.
func (w *World) finish(tile *Tile) {
	if tile.Finished {
		return
	}
	tile.Finished = true
	delete(w.pending, tile.Coords)
	w.tiles.Add(tile.Coords, tile)
}

func (w *World) tile(coords tilepack.TileCoordinates) *Tile {
	if tile, ok := w.Tile(coords); ok {
		return tile
	}
	tile := newTile(coords)
	w.pending[coords] = tile
	return tile
}

// Tile returns what was received for coords, finished or not.
func (w *World) Tile(coords tilepack.TileCoordinates) (*Tile, bool) {
	if tile, ok := w.pending[coords]; ok {
		return tile, true
	}
	v, ok := w.tiles.Get(coords)
	if !ok {
		return nil, false
	}
	return v.(*Tile), true
}

// Visible returns the finished tiles in region, row by row.
func (w *World) Visible(region tilepack.ViewRegion) []*Tile {
	var tiles []*Tile
	for coords := range region.All() {
		if tile, ok := w.Tile(coords); ok && tile.Finished {
			tiles = append(tiles, tile)
		}
	}
	return tiles
}

// Len returns the number of tiles kept, finished or not.
func (w *World) Len() int {
	return len(w.pending) + w.tiles.Len()
}

// Pending returns the number of tiles waiting for their tile finished
// message.
func (w *World) Pending() int {
	return len(w.pending)
}

func (w *World) Stats() Stats {
	return w.stats
}

// QueryPoint returns up to k features of the tile at coords nearest to p,
// given in tile units.
func (w *World) QueryPoint(coords tilepack.TileCoordinates, p orb.Point, k int) []*geometry.IndexedGeometry {
	tile, ok := w.Tile(coords)
	if !ok || tile.Index == nil {
		return nil
	}
	return tile.Index.Nearest(p, k)
}

// QueryLngLat returns up to k features nearest to ll in the tile covering it
// at zoom z.
func (w *World) QueryLngLat(ll orb.Point, z maptile.Zoom, k int) []*geometry.IndexedGeometry {
	t := maptile.At(ll, z)
	tile, ok := w.Tile(tilepack.FromTile(t))
	if !ok || tile.Index == nil {
		return nil
	}
	return tile.Index.Nearest(geometry.TilePoint(t, tile.Index.Extent(), ll), k)
}
