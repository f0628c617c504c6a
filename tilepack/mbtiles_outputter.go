package tilepack

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/hashicorp/go-multierror"
	_ "github.com/mattn/go-sqlite3" // Register sqlite3 database driver
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

const (
	batchSize = 1000
)

func NewMbtilesOutputter(dsn string, source SourceType) (*mbtilesOutputter, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	return &mbtilesOutputter{db: db, source: source}, nil
}

type mbtilesOutputter struct {
	db         *sql.DB
	txn        *sql.Tx
	source     SourceType
	batchCount int
	hasTiles   bool
}

func (o *mbtilesOutputter) Close() error {
	var result *multierror.Error

	if o.txn != nil {
		if err := o.txn.Commit(); err != nil {
			result = multierror.Append(result, fmt.Errorf("committing tiles: %w", err))
		}
		o.txn = nil
	}

	if o.db != nil {
		if err := o.db.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

func (o *mbtilesOutputter) CreateTiles() error {
	if o.hasTiles {
		return nil
	}
	if _, err := o.db.Exec(`
		BEGIN TRANSACTION;
		CREATE TABLE IF NOT EXISTS map (
			zoom_level INTEGER NOT NULL,
			tile_column INTEGER NOT NULL,
			tile_row INTEGER NOT NULL,
			tile_id TEXT NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS map_index ON map (zoom_level, tile_column, tile_row);
		CREATE TABLE IF NOT EXISTS images (
			tile_data BLOB NOT NULL,
			tile_id TEXT NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS images_id ON images (tile_id);
		CREATE TABLE IF NOT EXISTS metadata (
			name TEXT,
			value TEXT
		);
		CREATE UNIQUE INDEX IF NOT EXISTS name ON metadata (name);
		CREATE VIEW IF NOT EXISTS tiles AS
		SELECT
			map.zoom_level AS zoom_level,
			map.tile_column AS tile_column,
			map.tile_row AS tile_row,
			images.tile_data AS tile_data
		FROM map
		JOIN images ON images.tile_id = map.tile_id;
		COMMIT;
	    PRAGMA synchronous=OFF;
	`); err != nil {
		return err
	}
	o.hasTiles = true

	return o.setMetadata(map[string]string{"format": o.source.Format})
}

func (o *mbtilesOutputter) setMetadata(values map[string]string) error {
	exec := o.db.Exec
	if o.txn != nil {
		exec = o.txn.Exec
	}
	for name, value := range values {
		if _, err := exec("INSERT OR REPLACE INTO metadata (name, value) VALUES (?, ?);", name, value); err != nil {
			return fmt.Errorf("writing metadata %s: %w", name, err)
		}
	}
	return nil
}

// Save stores data for an XYZ tile. The row is flipped to the TMS scheme
// mbtiles uses, and identical payloads are stored once.
func (o *mbtilesOutputter) Save(tile maptile.Tile, data []byte) error {
	if err := o.CreateTiles(); err != nil {
		return err
	}

	if o.txn == nil {
		tx, err := o.db.Begin()
		if err != nil {
			return err
		}
		o.txn = tx
	}

	hash := md5.Sum(data)
	tileID := hex.EncodeToString(hash[:])

	_, err := o.txn.Exec("INSERT OR REPLACE INTO images (tile_id, tile_data) VALUES (?, ?);", tileID, data)
	if err != nil {
		return err
	}

	row := (1 << uint(tile.Z)) - 1 - tile.Y
	_, err = o.txn.Exec("INSERT OR REPLACE INTO map (zoom_level, tile_column, tile_row, tile_id) VALUES (?, ?, ?, ?);", tile.Z, tile.X, row, tileID)
	if err != nil {
		return err
	}

	o.batchCount++

	if o.batchCount%batchSize == 0 {
		err := o.txn.Commit()
		if err != nil {
			return err
		}
		o.batchCount = 0
		o.txn = nil
	}

	return nil
}

func (o *mbtilesOutputter) AssignSpatialMetadata(bound orb.Bound, minZoom maptile.Zoom, maxZoom maptile.Zoom) error {
	if err := o.CreateTiles(); err != nil {
		return err
	}

	center := bound.Center()
	return o.setMetadata(map[string]string{
		"bounds":  fmt.Sprintf("%f,%f,%f,%f", bound.Min.X(), bound.Min.Y(), bound.Max.X(), bound.Max.Y()),
		"center":  fmt.Sprintf("%f,%f", center.X(), center.Y()),
		"minzoom": fmt.Sprintf("%d", minZoom),
		"maxzoom": fmt.Sprintf("%d", maxZoom),
	})
}
