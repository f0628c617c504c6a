package tilepack

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileClient reads tiles from a directory tree, e.g. one written by the disk
// outputter. The template is relative to Root and may start with file://.
type FileClient struct {
	Root     string
	Template string
}

func NewFileClient(root string, template string) (*FileClient, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("file transport root %s is not a directory", abs)
	}

	return &FileClient{
		Root:     abs,
		Template: strings.TrimPrefix(template, "file://"),
	}, nil
}

func (c *FileClient) Fetch(ctx context.Context, coords TileCoordinates, source SourceType) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rel, err := FormatTemplate(c.Template, coords, source)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(c.Root, filepath.FromSlash(rel)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrTileNotFound, rel)
	}
	return data, err
}
