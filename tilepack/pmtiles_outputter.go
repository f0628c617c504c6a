package tilepack

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"hash"
	"hash/fnv"
	"io"
	"os"
	"slices"

	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/protomaps/go-pmtiles/pmtiles"
)

type offsetLen struct {
	offset uint64
	length uint32
}

type pmtilesOutputter struct {
	tileset        *roaring64.Bitmap
	hashFunc       hash.Hash
	offsetMap      map[string]offsetLen
	tileData       *os.File
	entries        []pmtiles.EntryV3
	compressBuffer *bytes.Buffer
	compressor     *gzip.Writer
	header         pmtiles.HeaderV3
	metadata       map[string]interface{}
	outFile        *os.File
}

func NewPmtilesOutputter(dsn string, source SourceType) (*pmtilesOutputter, error) {
	tmpFile, err := os.CreateTemp("", "pmtiles-tiledata")
	if err != nil {
		return nil, fmt.Errorf("error creating temp file: %w", err)
	}

	outFile, err := os.Create(dsn)
	if err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		return nil, fmt.Errorf("error creating pmtiles output file: %w", err)
	}

	header := pmtiles.HeaderV3{
		MinZoom: uint8(MaxZoom),
	}
	switch source.Format {
	case "png":
		header.TileType = pmtiles.Png
	case "jpg", "jpeg":
		header.TileType = pmtiles.Jpeg
	case "webp":
		header.TileType = pmtiles.Webp
	default:
		header.TileType = pmtiles.Mvt
	}
	header.TileCompression = pmtiles.NoCompression
	if header.TileType == pmtiles.Mvt {
		header.TileCompression = pmtiles.Gzip
	}

	compressBuffer := &bytes.Buffer{}
	outputter := &pmtilesOutputter{
		outFile:        outFile,
		tileset:        roaring64.New(),
		hashFunc:       fnv.New128a(),
		tileData:       tmpFile,
		offsetMap:      make(map[string]offsetLen),
		entries:        make([]pmtiles.EntryV3, 0),
		compressBuffer: compressBuffer,
		compressor:     gzip.NewWriter(compressBuffer),
		header:         header,
		metadata:       map[string]interface{}{"format": source.Format},
	}
	return outputter, nil
}

func (p *pmtilesOutputter) CreateTiles() error {
	return nil
}

func (p *pmtilesOutputter) Save(tile maptile.Tile, data []byte) error {
	id := pmtiles.ZxyToID(uint8(tile.Z), tile.X, tile.Y)
	p.tileset.Add(id)

	p.header.MinZoom = min(p.header.MinZoom, uint8(tile.Z))
	p.header.MaxZoom = max(p.header.MaxZoom, uint8(tile.Z))

	// Hash the tile data to use as a key for dedupe
	p.hashFunc.Reset()
	p.hashFunc.Write(data)
	sumString := string(p.hashFunc.Sum(nil))
	found, ok := p.offsetMap[sumString]

	if !ok {
		offset, err := p.tileData.Seek(0, io.SeekEnd)
		if err != nil {
			return err
		}

		newData := data
		if p.header.TileCompression == pmtiles.Gzip && !IsGzipped(data) {
			p.compressBuffer.Reset()
			p.compressor.Reset(p.compressBuffer)
			if _, err := p.compressor.Write(data); err != nil {
				return err
			}
			if err := p.compressor.Close(); err != nil {
				return err
			}
			newData = p.compressBuffer.Bytes()
		}

		bytesWritten, err := p.tileData.Write(newData)
		if err != nil {
			return err
		}

		found = offsetLen{
			offset: uint64(offset),
			length: uint32(bytesWritten),
		}

		p.offsetMap[sumString] = found
	}

	p.entries = append(p.entries, pmtiles.EntryV3{
		TileID:    id,
		Offset:    found.offset,
		Length:    found.length,
		RunLength: 1,
	})

	return nil
}

func (p *pmtilesOutputter) AssignSpatialMetadata(bound orb.Bound, minZoom maptile.Zoom, maxZoom maptile.Zoom) error {
	p.metadata["bounds"] = fmt.Sprintf("%f,%f,%f,%f", bound.Min.X(), bound.Min.Y(), bound.Max.X(), bound.Max.Y())
	p.metadata["minzoom"] = fmt.Sprintf("%d", minZoom)
	p.metadata["maxzoom"] = fmt.Sprintf("%d", maxZoom)
	return nil
}

// sortedEntries orders entries by tile id and keeps the last save of a tile.
func (p *pmtilesOutputter) sortedEntries() []pmtiles.EntryV3 {
	slices.SortStableFunc(p.entries, func(a, b pmtiles.EntryV3) int {
		switch {
		case a.TileID < b.TileID:
			return -1
		case a.TileID > b.TileID:
			return 1
		}
		return 0
	})

	out := p.entries[:0]
	for _, e := range p.entries {
		if n := len(out); n > 0 && out[n-1].TileID == e.TileID {
			out[n-1] = e
			continue
		}
		out = append(out, e)
	}
	return out
}

func (p *pmtilesOutputter) Close() error {
	defer p.outFile.Close()
	defer os.Remove(p.tileData.Name())
	defer p.tileData.Close()

	entries := p.sortedEntries()
	if len(entries) == 0 {
		p.header.MinZoom = 0
	}

	p.header.AddressedTilesCount = p.tileset.GetCardinality()
	p.header.TileEntriesCount = uint64(len(entries))
	p.header.TileContentsCount = uint64(len(p.offsetMap))
	p.header.Clustered = false

	rootBytes, leavesBytes, numLeaves := optimizeDirectories(entries, 16384-pmtiles.HeaderV3LenBytes, pmtiles.Gzip)

	Logger().Info("writing pmtiles",
		"tiles", p.tileset.GetCardinality(),
		"root_bytes", len(rootBytes),
		"leaves_bytes", len(leavesBytes),
		"leaves", numLeaves)

	metadataBytes, err := pmtiles.SerializeMetadata(p.metadata, pmtiles.Gzip)
	if err != nil {
		return fmt.Errorf("error serializing pmtiles metadata: %w", err)
	}

	tileDataLength, err := p.tileData.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}

	p.header.InternalCompression = pmtiles.Gzip
	p.header.RootOffset = pmtiles.HeaderV3LenBytes
	p.header.RootLength = uint64(len(rootBytes))
	p.header.MetadataOffset = p.header.RootOffset + p.header.RootLength
	p.header.MetadataLength = uint64(len(metadataBytes))
	p.header.LeafDirectoryOffset = p.header.MetadataOffset + p.header.MetadataLength
	p.header.LeafDirectoryLength = uint64(len(leavesBytes))
	p.header.TileDataOffset = p.header.LeafDirectoryOffset + p.header.LeafDirectoryLength
	p.header.TileDataLength = uint64(tileDataLength)

	for _, section := range []struct {
		name string
		data []byte
	}{
		{"header", pmtiles.SerializeHeader(p.header)},
		{"root directory", rootBytes},
		{"metadata", metadataBytes},
		{"leaf directory", leavesBytes},
	} {
		if _, err := p.outFile.Write(section.data); err != nil {
			return fmt.Errorf("error writing pmtiles %s: %w", section.name, err)
		}
	}

	if _, err := p.tileData.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("error seeking to start of tile data: %w", err)
	}

	if _, err := io.Copy(p.outFile, p.tileData); err != nil {
		return fmt.Errorf("error copying tile data to outfile: %w", err)
	}

	return nil
}

func optimizeDirectories(entries []pmtiles.EntryV3, targetRootLen int, compression pmtiles.Compression) ([]byte, []byte, int) {
	if len(entries) < 16384 {
		testRootBytes := pmtiles.SerializeEntries(entries, compression)
		if len(testRootBytes) <= targetRootLen {
			// The entire directory fits into the root
			return testRootBytes, make([]byte, 0), 0
		}
	}

	// Root directory is leaf pointers only; grow the leaves until the root fits
	leafSize := float32(len(entries)) / 3500
	if leafSize < 4096 {
		leafSize = 4096
	}

	for {
		rootBytes, leavesBytes, numLeaves := buildRootsLeaves(entries, int(leafSize), compression)
		if len(rootBytes) <= targetRootLen {
			return rootBytes, leavesBytes, numLeaves
		}
		leafSize *= 1.2
	}
}

func buildRootsLeaves(entries []pmtiles.EntryV3, leafSize int, compression pmtiles.Compression) ([]byte, []byte, int) {
	rootEntries := make([]pmtiles.EntryV3, 0)
	leavesBytes := make([]byte, 0)
	numLeaves := 0

	for i := 0; i < len(entries); i += leafSize {
		numLeaves++
		end := min(i+leafSize, len(entries))
		serialized := pmtiles.SerializeEntries(entries[i:end], compression)

		rootEntries = append(rootEntries, pmtiles.EntryV3{
			TileID:    entries[i].TileID,
			Offset:    uint64(len(leavesBytes)),
			Length:    uint32(len(serialized)),
			RunLength: 0,
		})
		leavesBytes = append(leavesBytes, serialized...)
	}

	rootBytes := pmtiles.SerializeEntries(rootEntries, compression)
	return rootBytes, leavesBytes, numLeaves
}
