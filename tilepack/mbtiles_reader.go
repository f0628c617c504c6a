package tilepack

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hashicorp/go-multierror"
	_ "github.com/mattn/go-sqlite3" // Register sqlite3 database driver
	"github.com/paulmach/orb/maptile"
)

type MbtilesReader interface {
	Close() error
	GetTile(ctx context.Context, tile maptile.Tile) ([]byte, error)
	Metadata() (*MbtilesMetadata, error)
	VisitAllTiles(visitor func(maptile.Tile, []byte)) error
}

func NewMbtilesReader(dsn string) (MbtilesReader, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	return NewMbtilesReaderWithDatabase(db)
}

func NewMbtilesReaderWithDatabase(db *sql.DB) (MbtilesReader, error) {
	return &mbtilesReader{db: db}, nil
}

type mbtilesReader struct {
	db *sql.DB
}

// Close gracefully tears down the mbtiles connection.
func (o *mbtilesReader) Close() error {
	var result *multierror.Error

	if o.db != nil {
		if err := o.db.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

// GetTile returns data for the given XYZ tile. Rows in mbtiles are stored in
// the TMS scheme, so the row is flipped before the lookup. A missing tile is
// reported as ErrTileNotFound.
func (o *mbtilesReader) GetTile(ctx context.Context, tile maptile.Tile) ([]byte, error) {
	var data []byte

	row := (1 << uint(tile.Z)) - 1 - tile.Y
	result := o.db.QueryRowContext(ctx, "SELECT tile_data FROM tiles WHERE zoom_level=? AND tile_column=? AND tile_row=? LIMIT 1", tile.Z, tile.X, row)
	err := result.Scan(&data)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d/%d/%d", ErrTileNotFound, tile.Z, tile.X, tile.Y)
	}
	if err != nil {
		return nil, err
	}

	return data, nil
}

// Metadata returns the name/value pairs of the metadata table.
func (o *mbtilesReader) Metadata() (*MbtilesMetadata, error) {
	rows, err := o.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	metadata := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		metadata[name] = value
	}

	return NewMbtilesMetadata(metadata), rows.Err()
}

// VisitAllTiles runs the given function on all tiles in this mbtiles archive,
// with rows converted back to the XYZ scheme.
func (o *mbtilesReader) VisitAllTiles(visitor func(maptile.Tile, []byte)) error {
	rows, err := o.db.Query("SELECT zoom_level, tile_column, tile_row, tile_data FROM tiles")
	if err != nil {
		return err
	}
	defer rows.Close()

	var x, y uint32
	var z maptile.Zoom
	for rows.Next() {
		data := []byte{}
		err := rows.Scan(&z, &x, &y, &data)
		if err != nil {
			Logger().Warn("couldn't scan row", "error", err)
			continue
		}

		t := maptile.New(x, (1<<uint(z))-1-y, z)
		visitor(t, data)
	}
	return rows.Err()
}

// MbtilesClient serves fetches from a local mbtiles archive.
type MbtilesClient struct {
	reader MbtilesReader
}

func NewMbtilesClient(reader MbtilesReader) *MbtilesClient {
	return &MbtilesClient{reader: reader}
}

func (c *MbtilesClient) Fetch(ctx context.Context, coords TileCoordinates, source SourceType) ([]byte, error) {
	tile, ok := coords.Tile()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoQuadKey, coords)
	}
	return c.reader.GetTile(ctx, tile)
}
