package tilepack

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

type diskOutputter struct {
	root     string
	format   string
	hasTiles bool
}

// NewDiskOutputter writes tiles to root/z/x/y.format, the layout FileClient
// reads back with the template "{z}/{x}/{y}.{ext}".
func NewDiskOutputter(dsn string, format string) (*diskOutputter, error) {
	root, err := filepath.Abs(dsn)
	if err != nil {
		return nil, err
	}

	o := diskOutputter{
		root:   root,
		format: format,
	}

	return &o, nil
}

func (o *diskOutputter) Close() error {
	return nil
}

func (o *diskOutputter) CreateTiles() error {
	if o.hasTiles {
		return nil
	}

	info, err := os.Stat(o.root)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(o.root, 0755); err != nil {
			return err
		}
	case err != nil:
		return err
	case !info.IsDir():
		return fmt.Errorf("disk output root %s is already a file", o.root)
	}

	o.hasTiles = true
	return nil
}

func (o *diskOutputter) Save(tile maptile.Tile, data []byte) error {
	if err := o.CreateTiles(); err != nil {
		return err
	}

	path := filepath.Join(o.root, fmt.Sprintf("%d/%d/%d.%s", tile.Z, tile.X, tile.Y, o.format))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func (o *diskOutputter) AssignSpatialMetadata(bound orb.Bound, minZoom maptile.Zoom, maxZoom maptile.Zoom) error {
	return nil
}
