package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/paulmach/orb/maptile"

	"github.com/tilezen/go-tilepipe/tilepack"
)

func pathExists(path string) bool {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return true
}

func main() {
	outputFilename := flag.String("output", "", "The output mbtiles to write to")
	flag.Parse()
	inputFilenames := flag.Args()

	if *outputFilename == "" {
		log.Fatalf("Must specify --output path")
	}

	if len(inputFilenames) == 0 {
		log.Fatalf("Must specify at least one input path")
	}

	log.Printf("Reading %s and writing them to %s", strings.Join(inputFilenames, ", "), *outputFilename)

	// If the output file exists already we shouldn't overwrite it
	if pathExists(*outputFilename) {
		log.Fatalf("Output path %s already exists and cannot be overwritten", *outputFilename)
	}

	var outputMbtiles tilepack.TileOutputter
	var extent tilepack.TileExtent

	for _, inputFilename := range inputFilenames {
		mbtilesReader, err := tilepack.NewMbtilesReader(inputFilename)
		if err != nil {
			log.Fatalf("Couldn't read input mbtiles %s: %+v", inputFilename, err)
		}

		// The first input decides the format of the output.
		if outputMbtiles == nil {
			metadata, err := mbtilesReader.Metadata()
			if err != nil {
				log.Fatalf("Couldn't read metadata of %s: %+v", inputFilename, err)
			}
			source, err := metadata.SourceType()
			if err != nil {
				log.Fatalf("Couldn't read metadata of %s: %+v", inputFilename, err)
			}

			outputMbtiles, err = tilepack.NewMbtilesOutputter(*outputFilename, source)
			if err != nil {
				log.Fatalf("Couldn't create output mbtiles: %+v", err)
			}
			if err := outputMbtiles.CreateTiles(); err != nil {
				log.Fatalf("Couldn't create output mbtiles: %+v", err)
			}
		}

		err = mbtilesReader.VisitAllTiles(func(t maptile.Tile, data []byte) {
			if err := outputMbtiles.Save(t, data); err != nil {
				log.Printf("Couldn't save tile %v: %+v", t, err)
				return
			}
			extent.Add(t)
		})
		if err != nil {
			log.Fatalf("Couldn't read tiles from %s: %+v", inputFilename, err)
		}
		mbtilesReader.Close()
	}

	if extent.Count > 0 {
		if err := extent.AssignTo(outputMbtiles); err != nil {
			log.Printf("Couldn't assign spatial metadata: %+v", err)
		}
	}

	if err := outputMbtiles.Close(); err != nil {
		log.Fatalf("Couldn't close output mbtiles: %+v", err)
	}
	log.Printf("Wrote %d tiles", extent.Count)
}
