package tilepack

import (
	"fmt"
	"strings"
	"time"
)

// ClientOptions selects and configures the client built by NewClient.
type ClientOptions struct {
	// URLTemplate is an XYZ template. One starting with file:// is read
	// relative to FileRoot.
	URLTemplate string
	FileRoot    string
	Timeout     time.Duration
	Retries     int

	// S3 is used by the "s3" and "metatile" generators.
	S3 S3ClientOptions

	// MbtilesPath is the archive read by the "mbtiles" generator.
	MbtilesPath string
}

// NewClient creates the client for generator ("xyz", "s3", "metatile" or
// "mbtiles"). The returned function releases whatever the client holds open.
func NewClient(generator string, opts ClientOptions) (Client, func() error, error) {
	noop := func() error { return nil }

	switch generator {
	case "xyz":
		if opts.URLTemplate == "" {
			return nil, nil, fmt.Errorf("URL template is required")
		}
		if strings.HasPrefix(opts.URLTemplate, "file://") {
			if opts.FileRoot == "" {
				return nil, nil, fmt.Errorf("file root is required when the URL template uses file://")
			}
			client, err := NewFileClient(opts.FileRoot, opts.URLTemplate)
			return client, noop, err
		}
		client, err := NewHTTPClient(HTTPClientOptions{
			URLTemplate: opts.URLTemplate,
			Timeout:     opts.Timeout,
			Retries:     opts.Retries,
		})
		return client, noop, err
	case "s3", "metatile":
		s3opts := opts.S3
		if generator == "metatile" && s3opts.MetatileSize <= 1 {
			s3opts.MetatileSize = 8
		}
		if generator == "s3" {
			s3opts.MetatileSize = 0
		}
		client, err := NewS3Client(s3opts)
		return client, noop, err
	case "mbtiles":
		if opts.MbtilesPath == "" {
			return nil, nil, fmt.Errorf("mbtiles path is required")
		}
		reader, err := NewMbtilesReader(opts.MbtilesPath)
		if err != nil {
			return nil, nil, err
		}
		return NewMbtilesClient(reader), reader.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown generator: %s", generator)
}
