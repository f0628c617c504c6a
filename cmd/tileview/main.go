package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/schollz/progressbar/v3"

	"github.com/tilezen/go-tilepipe/apc"
	"github.com/tilezen/go-tilepipe/geometry"
	"github.com/tilezen/go-tilepipe/pipeline"
	"github.com/tilezen/go-tilepipe/repository"
	"github.com/tilezen/go-tilepipe/request"
	"github.com/tilezen/go-tilepipe/stages"
	"github.com/tilezen/go-tilepipe/style"
	"github.com/tilezen/go-tilepipe/tilepack"
	"github.com/tilezen/go-tilepipe/world"
)

// move is the camera change applied before a frame.
type move struct {
	Pan   orb.Point
	DZoom float64
}

// cameraPath returns frames moves, the first of which leaves the camera
// where it is.
func cameraPath(frames int, pan orb.Point, zoomStep float64) []move {
	moves := make([]move, frames)
	for i := 1; i < frames; i++ {
		moves[i] = move{Pan: pan, DZoom: zoomStep}
	}
	return moves
}

// viewer drives one simulated map view: move the camera, request what came
// into view, apply what arrived.
type viewer struct {
	view        *tilepack.ViewState
	style       *style.Style
	coordinator *request.Coordinator
	dispatcher  apc.AsyncProcedureCall
	world       *world.World
}

// frame applies m and runs one iteration of the request and populate loop.
func (v *viewer) frame(m move) (int, error) {
	if m.Pan[0] != 0 || m.Pan[1] != 0 {
		v.view.Pan(m.Pan[0], m.Pan[1])
	}
	if m.DZoom != 0 {
		v.view.SetZoom(v.view.Camera().Zoom + m.DZoom)
	}

	n, err := v.coordinator.Run(v.view, v.style)
	if err != nil {
		return n, err
	}
	v.world.Populate(v.dispatcher, 0)
	return n, nil
}

// run plays moves and closes the dispatcher, applying every message that
// arrives before it finishes.
func (v *viewer) run(moves []move, interval time.Duration, bar *progressbar.ProgressBar) (int, error) {
	requested := 0
	for _, m := range moves {
		n, err := v.frame(m)
		requested += n
		if err != nil {
			return requested, err
		}
		if bar != nil {
			bar.Add(1)
		}
		if interval > 0 {
			time.Sleep(interval)
		}
	}

	if err := v.dispatcher.Close(); err != nil {
		return requested, err
	}
	v.world.Populate(v.dispatcher, 0)
	return requested, nil
}

func parsePoint(s string) (orb.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return orb.Point{}, fmt.Errorf("point must be a comma-separated lon,lat pair")
	}

	var p orb.Point
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return orb.Point{}, fmt.Errorf("point could not be parsed as numbers: %w", err)
		}
		p[i] = f
	}
	return p, nil
}

func main() {
	generatorStr := flag.String("generator", "xyz", "Which tile source to use. Options are xyz, s3, metatile, mbtiles.")
	urlTemplateStr := flag.String("url-template", "", "(For xyz generator) URL template to make tile requests with. If URL template begins with file:// you must pass the -file-transport-root flag.")
	fileTransportRoot := flag.String("file-transport-root", "", "The root directory for tiles if -url-template defines a file:// URL scheme")
	inputStr := flag.String("input", "", "(For mbtiles generator) The mbtiles file to read tiles from.")
	bucketStr := flag.String("bucket", "", "(For s3, metatile generator) The name of the S3 bucket to request tiles from.")
	pathTemplateStr := flag.String("path-template", "", "(For s3, metatile generator) The template to use for the path part of the S3 key.")
	layerNameStr := flag.String("layer-name", "", "(For s3, metatile generator) The layer name substituted for {l} in the path template.")
	sourceKindStr := flag.String("source-kind", "vector", "The kind of tiles the source serves: vector or raster.")
	formatStr := flag.String("format", "", "The tile file extension. Defaults to mvt for vector and png for raster sources.")
	styleStr := flag.String("style", "", "A style JSON file selecting the layers to request. Defaults to the built-in style.")
	centerStr := flag.String("center", "0,0", "The lon,lat the camera starts at.")
	zoom := flag.Float64("zoom", 2, "The zoom the camera starts at.")
	width := flag.Int("width", 1024, "The viewport width in pixels.")
	height := flag.Int("height", 768, "The viewport height in pixels.")
	frames := flag.Int("frames", 1, "The number of frames to simulate.")
	panStr := flag.String("pan", "0,0", "The lon,lat delta the camera moves by every frame.")
	zoomStep := flag.Float64("zoom-step", 0, "The zoom delta applied every frame.")
	frameInterval := flag.Duration("frame-interval", 16*time.Millisecond, "The time between frames.")
	cooperative := flag.Bool("cooperative", false, "Run tile procedures on the frame loop instead of a worker pool.")
	numTileFetchWorkers := flag.Int("workers", 25, "Number of tile fetch workers to use.")
	maxTiles := flag.Int("max-tiles", world.DefaultMaxTiles, "The number of tiles kept in memory.")
	recordDSN := flag.String("record", "", "An mbtiles file every fetched tile is also written to.")
	queryStr := flag.String("query", "", "A lon,lat to list the nearest features of after the last frame.")
	requestTimeout := flag.Int("timeout", 60, "HTTP client timeout for tile requests.")
	verbose := flag.Bool("verbose", false, "Log tile requests and pipeline events.")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	tilepack.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	center, err := parsePoint(*centerStr)
	if err != nil {
		log.Fatalf("Invalid center: %+v", err)
	}
	pan, err := parsePoint(*panStr)
	if err != nil {
		log.Fatalf("Invalid pan: %+v", err)
	}
	if *frames < 1 {
		log.Fatalf("Need at least one frame")
	}

	sourceKind, err := tilepack.ParseSourceKind(*sourceKindStr)
	if err != nil {
		log.Fatalf("Invalid source kind: %+v", err)
	}
	source := tilepack.DefaultSourceType(sourceKind)
	if *formatStr != "" {
		source.Format = *formatStr
	}

	st := style.Default()
	if *styleStr != "" {
		st, err = style.Load(*styleStr)
		if err != nil {
			log.Fatalf("Couldn't load style: %+v", err)
		}
	}

	client, closeClient, err := tilepack.NewClient(*generatorStr, tilepack.ClientOptions{
		URLTemplate: *urlTemplateStr,
		FileRoot:    *fileTransportRoot,
		Timeout:     time.Duration(*requestTimeout) * time.Second,
		S3: tilepack.S3ClientOptions{
			Bucket:       *bucketStr,
			PathTemplate: *pathTemplateStr,
			LayerName:    *layerNameStr,
		},
		MbtilesPath: *inputStr,
	})
	if err != nil {
		log.Fatalf("Failed to create %s client: %+v", *generatorStr, err)
	}
	defer closeClient()

	if *recordDSN != "" {
		outputter, err := tilepack.NewOutputter("mbtiles", *recordDSN, source)
		if err != nil {
			log.Fatalf("Couldn't create recording output: %+v", err)
		}
		recorder, err := tilepack.NewRecordingClient(client, outputter)
		if err != nil {
			log.Fatalf("Couldn't create recording output: %+v", err)
		}
		defer func() {
			log.Printf("Recorded %d tiles to %s", recorder.Saved(), *recordDSN)
			if err := recorder.Close(); err != nil {
				log.Printf("Error closing recording output: %+v", err)
			}
		}()
		client = recorder
	}

	procedure, err := request.FetchAndProcess(pipeline.VariantFor(source.Kind), source, stages.Options{})
	if err != nil {
		log.Fatalf("Couldn't build the tile pipeline: %+v", err)
	}

	onError := func(req tilepack.TileRequest, err error) {
		tilepack.Logger().Warn("tile procedure failed", "coords", req.Coords, "error", err)
	}

	var dispatcher apc.AsyncProcedureCall
	if *cooperative {
		dispatcher = apc.NewScheduler(context.Background(), client, onError)
	} else {
		dispatcher = apc.NewPool(context.Background(), client, apc.PoolOptions{
			Workers:      *numTileFetchWorkers,
			ErrorHandler: onError,
		})
	}

	repo := repository.New()
	w, err := world.New(repo, world.Options{MaxTiles: *maxTiles})
	if err != nil {
		log.Fatalf("Couldn't create world: %+v", err)
	}

	v := &viewer{
		view:        tilepack.NewViewState(tilepack.Camera{Center: center, Zoom: *zoom, Width: *width, Height: *height}),
		style:       st,
		coordinator: request.NewCoordinator(repo, dispatcher, procedure),
		dispatcher:  dispatcher,
		world:       w,
	}

	bar := progressbar.Default(int64(*frames), "frames")
	requested, err := v.run(cameraPath(*frames, pan, *zoomStep), *frameInterval, bar)
	if err != nil {
		log.Printf("Stopped early: %+v", err)
	}
	bar.Finish()

	stats := w.Stats()
	log.Printf("Requested %d tiles, %d finished, %d kept, %d pending, %d evicted", requested, stats.TilesFinished, w.Len(), w.Pending(), stats.Evicted)
	log.Printf("Applied %d messages: %d layers ready, %d layers unavailable, %d rasters",
		stats.Messages, stats.LayersReady, stats.LayersUnavailable, stats.Rasters)

	if region, ok := v.view.CreateViewRegion(); ok {
		log.Printf("%d of %d tiles in view are finished", len(w.Visible(region)), region.Len())
	}

	if *queryStr != "" {
		ll, err := parsePoint(*queryStr)
		if err != nil {
			log.Fatalf("Invalid query: %+v", err)
		}
		tile := maptile.At(ll, v.view.ZoomLevel())
		for _, g := range w.QueryLngLat(ll, tile.Z, 5) {
			p := geometry.TilePoint(tile, g.Extent, ll)
			log.Printf("%s feature %v at distance %.1f", g.Layer, g.ID, g.Distance(p))
		}
	}
}
