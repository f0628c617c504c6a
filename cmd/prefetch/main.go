package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"regexp"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/schollz/progressbar/v3"

	"github.com/tilezen/go-tilepipe/apc"
	"github.com/tilezen/go-tilepipe/pipeline"
	"github.com/tilezen/go-tilepipe/repository"
	"github.com/tilezen/go-tilepipe/request"
	"github.com/tilezen/go-tilepipe/stages"
	"github.com/tilezen/go-tilepipe/style"
	"github.com/tilezen/go-tilepipe/tilepack"
	"github.com/tilezen/go-tilepipe/world"
)

var zoomRangeRegex = regexp.MustCompile(`^\d+\-\d+$`)

// parseBounds parses a south,west,north,east bounding box.
func parseBounds(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("bounding box string must be a comma-separated list of 4 numbers")
	}

	floats := make([]float64, 4)
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("bounding box string could not be parsed as numbers: %w", err)
		}
		floats[i] = f
	}

	return orb.Bound{
		Min: orb.Point{floats[1], floats[0]},
		Max: orb.Point{floats[3], floats[2]},
	}, nil
}

// parseZooms parses a comma-separated list of zooms or a min-max range.
func parseZooms(s string) ([]maptile.Zoom, error) {
	if zoomRangeRegex.MatchString(s) {
		zoomRange := strings.Split(s, "-")

		minZoom, err := strconv.ParseUint(zoomRange[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("failed to parse min zoom (%s): %w", zoomRange[0], err)
		}
		maxZoom, err := strconv.ParseUint(zoomRange[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("failed to parse max zoom (%s): %w", zoomRange[1], err)
		}
		if minZoom > maxZoom || maxZoom > uint64(tilepack.MaxZoom) {
			return nil, fmt.Errorf("invalid zoom range %s", s)
		}

		var zooms []maptile.Zoom
		for z := minZoom; z <= maxZoom; z++ {
			zooms = append(zooms, maptile.Zoom(z))
		}
		return zooms, nil
	}

	zoomStrs := strings.Split(s, ",")
	zooms := make([]maptile.Zoom, len(zoomStrs))
	for i, zoomStr := range zoomStrs {
		z, err := strconv.ParseUint(strings.TrimSpace(zoomStr), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("zoom list could not be parsed: %w", err)
		}
		if z > uint64(tilepack.MaxZoom) {
			return nil, fmt.Errorf("zoom %d is deeper than %d", z, tilepack.MaxZoom)
		}
		zooms[i] = maptile.Zoom(z)
	}
	return zooms, nil
}

func calculateExpectedTiles(bounds orb.Bound, zooms []maptile.Zoom) uint32 {
	return tilepack.CountTiles(bounds, zooms)
}

func zoomExtent(zooms []maptile.Zoom) (maptile.Zoom, maptile.Zoom) {
	minZoom, maxZoom := zooms[0], zooms[0]
	for _, z := range zooms[1:] {
		minZoom = min(minZoom, z)
		maxZoom = max(maxZoom, z)
	}
	return minZoom, maxZoom
}

// countingProcedure advances bar once per finished procedure, whatever its
// outcome.
func countingProcedure(proc apc.Procedure, bar *progressbar.ProgressBar) apc.Procedure {
	return func(ctx context.Context, req tilepack.TileRequest, c apc.Context) error {
		defer bar.Add(1)
		return proc(ctx, req, c)
	}
}

// consume applies pool messages to w until done is closed, then applies
// whatever is left.
func consume(pool *apc.Pool, w *world.World, done <-chan struct{}, finished chan<- struct{}) {
	defer close(finished)

	for {
		select {
		case <-pool.Notify():
			w.Populate(pool, 0)
		case <-done:
			w.Populate(pool, 0)
			return
		}
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func main() {
	generatorStr := flag.String("generator", "xyz", "Which tile source to use. Options are xyz, s3, metatile, mbtiles.")
	fileTransportRoot := flag.String("file-transport-root", "", "The root directory for tiles if -url-template defines a file:// URL scheme")
	outputMode := flag.String("output-mode", "mbtiles", "Valid modes are: disk, mbtiles, pmtiles.")
	outputDSN := flag.String("dsn", "", "Path, or DSN string, to output files.")
	inputStr := flag.String("input", "", "(For mbtiles generator) The mbtiles file to read tiles from.")
	boundingBoxStr := flag.String("bounds", "-90.0,-180.0,90.0,180.0", "Comma-separated bounding box in south,west,north,east format. Defaults to the whole world.")
	zoomsStr := flag.String("zooms", "0,1,2,3,4,5,6,7,8,9,10", "Comma-separated list of zoom levels or a '{MIN_ZOOM}-{MAX_ZOOM}' range string.")
	sourceKindStr := flag.String("source-kind", "vector", "The kind of tiles the source serves: vector or raster.")
	formatStr := flag.String("format", "", "The tile file extension. Defaults to mvt for vector and png for raster sources.")
	styleStr := flag.String("style", "", "A style JSON file selecting the layers to request. Defaults to the built-in style.")
	numTileFetchWorkers := flag.Int("workers", 25, "Number of tile fetch workers to use.")
	requestTimeout := flag.Int("timeout", 60, "HTTP client timeout for tile requests.")
	retries := flag.Int("retries", 5, "Number of attempts for tile requests answered with a server error.")
	cpuProfile := flag.String("cpuprofile", "", "Enables CPU profiling. Saves the dump to the given path.")
	urlTemplateStr := flag.String("url-template", "", "(For xyz generator) URL template to make tile requests with. If URL template begins with file:// you must pass the -file-transport-root flag.")
	layerNameStr := flag.String("layer-name", "", "(For s3, metatile generator) The layer name substituted for {l} in the path template.")
	pathTemplateStr := flag.String("path-template", "", "(For s3, metatile generator) The template to use for the path part of the S3 key.")
	bucketStr := flag.String("bucket", "", "(For s3, metatile generator) The name of the S3 bucket to request tiles from.")
	requesterPays := flag.Bool("requester-pays", false, "(For s3, metatile generator) Send the requester pays header.")
	metatileSize := flag.Uint("metatile-size", 8, "(For metatile generator) The number of tiles per side of a metatile.")
	maxDetailZoom := flag.Uint("max-detail-zoom", 13, "(For metatile generator) The deepest zoom metatiles exist for.")
	verbose := flag.Bool("verbose", false, "Log every tile request.")
	flag.Parse()

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	if *verbose {
		tilepack.SetLogger(newLogger())
	}

	if *outputDSN == "" {
		log.Fatalf("Output DSN (-dsn) is required")
	}

	bounds, err := parseBounds(*boundingBoxStr)
	if err != nil {
		log.Fatalf("Invalid bounds: %+v", err)
	}

	zooms, err := parseZooms(*zoomsStr)
	if err != nil {
		log.Fatalf("Invalid zooms: %+v", err)
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
		Retries:     *retries,
		S3: tilepack.S3ClientOptions{
			Bucket:        *bucketStr,
			RequesterPays: *requesterPays,
			PathTemplate:  *pathTemplateStr,
			LayerName:     *layerNameStr,
			MetatileSize:  *metatileSize,
			MaxDetailZoom: maptile.Zoom(*maxDetailZoom),
		},
		MbtilesPath: *inputStr,
	})
	if err != nil {
		log.Fatalf("Failed to create %s client: %+v", *generatorStr, err)
	}
	defer closeClient()

	outputter, err := tilepack.NewOutputter(*outputMode, *outputDSN, source)
	if err != nil {
		log.Fatalf("Couldn't create %s output: %+v", *outputMode, err)
	}

	recorder, err := tilepack.NewRecordingClient(client, outputter)
	if err != nil {
		log.Fatalf("Failed to create %s output: %+v", *outputMode, err)
	}
	log.Printf("Created %s output\n", *outputMode)

	procedure, err := request.FetchAndProcess(pipeline.VariantFor(source.Kind), source, stages.Options{})
	if err != nil {
		log.Fatalf("Couldn't build the tile pipeline: %+v", err)
	}

	expectedTiles := calculateExpectedTiles(bounds, zooms)
	log.Printf("Expecting to fetch %d tiles", expectedTiles)
	bar := progressbar.Default(int64(expectedTiles))

	var failed atomic.Int64
	pool := apc.NewPool(context.Background(), recorder, apc.PoolOptions{
		Workers: *numTileFetchWorkers,
		ErrorHandler: func(req tilepack.TileRequest, err error) {
			failed.Add(1)
		},
	})

	repo := repository.New()
	w, err := world.New(repo, world.Options{})
	if err != nil {
		log.Fatalf("Couldn't create world: %+v", err)
	}

	done := make(chan struct{})
	finished := make(chan struct{})
	go consume(pool, w, done, finished)

	coordinator := request.NewCoordinator(repo, pool, countingProcedure(procedure, bar))
	layers := st.SourceLayers()

	var requestErr error
	tilepack.GenerateTiles(&tilepack.GenerateTilesOptions{
		Bounds: bounds,
		Zooms:  zooms,
		ConsumerFunc: func(coords tilepack.TileCoordinates) {
			if requestErr != nil {
				return
			}
			_, requestErr = coordinator.RequestTile(coords, layers)
		},
	})
	if requestErr != nil {
		log.Printf("Stopped requesting tiles: %+v", requestErr)
	}
	log.Print("Finished making tile requests")

	if err := pool.Close(); err != nil {
		log.Printf("Error closing worker pool: %+v", err)
	}
	close(done)
	<-finished
	bar.Finish()

	minZoom, maxZoom := zoomExtent(zooms)
	if err := outputter.AssignSpatialMetadata(bounds, minZoom, maxZoom); err != nil {
		log.Printf("Couldn't assign spatial metadata: %+v", err)
	}

	saved := recorder.Saved()
	if err := recorder.Close(); err != nil {
		log.Printf("Error closing %s output: %+v", *outputMode, err)
	}

	stats := w.Stats()
	log.Printf("Saved %d tiles, %d finished, %d layers ready, %d layers unavailable, %d rasters, %d failed procedures",
		saved, stats.TilesFinished, stats.LayersReady, stats.LayersUnavailable, stats.Rasters, failed.Load())
}
