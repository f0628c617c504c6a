package main

import (
	"flag"
	"log"

	"github.com/tilezen/go-tilepipe/tilepack"
)

func main() {

	var verify bool

	flag.BoolVar(&verify, "verify", false, "Verify that spatial metadata was written to each database")

	flag.Parse()

	for _, path := range flag.Args() {

		mbtilesReader, err := tilepack.NewMbtilesReader(path)

		if err != nil {
			log.Fatalf("Couldn't read input mbtiles %s: %+v", path, err)
		}

		metadata, err := mbtilesReader.Metadata()

		if err != nil {
			log.Fatalf("Unable to read metadata for %s, %v", path, err)
		}

		source, err := metadata.SourceType()

		if err != nil {
			log.Fatalf("Unable to read the format of %s, %v", path, err)
		}

		extent, err := tilepack.ReadTileExtent(mbtilesReader)

		if err != nil {
			log.Fatalf("Couldn't read tiles from %s: %+v", path, err)
		}

		mbtilesReader.Close()

		mbtilesWriter, err := tilepack.NewMbtilesOutputter(path, source)

		if err != nil {
			log.Fatalf("Couldn't read input mbtiles %s: %+v", path, err)
		}

		err = extent.AssignTo(mbtilesWriter)

		if err != nil {
			log.Fatalf("Failed to assign spatial metadata to %s: %+v", path, err)
		}

		mbtilesWriter.Close()

		if verify {

			mbtilesReader, err := tilepack.NewMbtilesReader(path)

			if err != nil {
				log.Fatalf("Couldn't read input mbtiles %s: %+v", path, err)
			}

			metadata, err := mbtilesReader.Metadata()

			if err != nil {
				log.Fatalf("Unable to read metadata for %s, %v", path, err)
			}

			bounds, err := metadata.Bounds()

			if err != nil {
				log.Fatalf("Failed to derive bounds metadata after update")
			}

			center, zoom, err := metadata.Center()

			if err != nil {
				log.Fatalf("Failed to derive bounds metadata after update")
			}

			minZoom, err := metadata.MinZoom()

			if err != nil {
				log.Fatalf("Failed to derive min zoom metadata after update")
			}

			maxZoom, err := metadata.MaxZoom()

			if err != nil {
				log.Fatalf("Failed to derive max zoom metadata after update")
			}

			mbtilesReader.Close()

			log.Printf("[%s] bounds: %v center: %v@%v zoom: %d-%d (%d tiles)\n", path, bounds, center, zoom, minZoom, maxZoom, extent.Count)
		}
	}
}
