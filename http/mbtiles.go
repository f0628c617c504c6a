package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	gohttp "net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb/maptile"

	"github.com/tilezen/go-tilepipe/tilepack"
)

var (
	tileRegex = regexp.MustCompile(`\/(\d+)\/(\d+)\/(\d+)\.(\w+)$`)

	contentTypes = map[string]string{
		"mvt":  "application/x-protobuf",
		"pbf":  "application/x-protobuf",
		"png":  "image/png",
		"jpg":  "image/jpeg",
		"jpeg": "image/jpeg",
		"webp": "image/webp",
	}
)

// MbtilesHandler serves the tiles of an archive at .../{z}/{x}/{y}.{ext}.
// Gzipped payloads are sent as is to clients that accept gzip and
// decompressed for the others.
func MbtilesHandler(reader tilepack.MbtilesReader) gohttp.HandlerFunc {

	return func(w gohttp.ResponseWriter, r *gohttp.Request) {
		requestedTile, ext, err := parseTileFromPath(r.URL.Path)
		if err != nil {
			gohttp.NotFound(w, r)
			return
		}

		data, err := reader.GetTile(r.Context(), requestedTile)
		if errors.Is(err, tilepack.ErrTileNotFound) {
			gohttp.NotFound(w, r)
			return
		}
		if err != nil {
			log.Printf("Error getting tile: %+v", err)
			gohttp.Error(w, "error reading tile", gohttp.StatusInternalServerError)
			return
		}

		if tilepack.IsGzipped(data) {
			acceptEncoding := r.Header.Get("Accept-Encoding")
			if strings.Contains(acceptEncoding, "gzip") {
				w.Header().Set("Content-Encoding", "gzip")
			} else {
				data, err = tilepack.Decompress(data)
				if err != nil {
					log.Printf("Error decompressing tile: %+v", err)
					gohttp.Error(w, "error reading tile", gohttp.StatusInternalServerError)
					return
				}
			}
		}

		if contentType, ok := contentTypes[ext]; ok {
			w.Header().Set("Content-Type", contentType)
		}
		w.Write(data)
	}
}

// MetadataHandler serves the archive's metadata table as a JSON object.
func MetadataHandler(reader tilepack.MbtilesReader) gohttp.HandlerFunc {

	return func(w gohttp.ResponseWriter, r *gohttp.Request) {
		metadata, err := reader.Metadata()
		if err != nil {
			log.Printf("Error reading metadata: %+v", err)
			gohttp.Error(w, "error reading metadata", gohttp.StatusInternalServerError)
			return
		}

		values := make(map[string]string)
		for _, k := range metadata.Keys() {
			values[k], _ = metadata.Get(k)
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(values); err != nil {
			log.Printf("Error writing metadata: %+v", err)
		}
	}
}

func parseTileFromPath(url string) (maptile.Tile, string, error) {
	match := tileRegex.FindStringSubmatch(url)
	if match == nil {
		return maptile.Tile{}, "", fmt.Errorf("invalid tile path")
	}

	z, _ := strconv.ParseUint(match[1], 10, 32)
	x, _ := strconv.ParseUint(match[2], 10, 32)
	y, _ := strconv.ParseUint(match[3], 10, 32)

	tile := maptile.New(uint32(x), uint32(y), maptile.Zoom(z))
	if z > uint64(tilepack.MaxZoom) || !tile.Valid() {
		return maptile.Tile{}, "", fmt.Errorf("tile %d/%d/%d out of range", z, x, y)
	}
	return tile, match[4], nil
}
