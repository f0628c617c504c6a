package tilepack

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/paulmach/orb/maptile"
)

const (
	tileScale = 2
)

func log2Uint(size uint) uint {
	return uint(math.Log2(float64(size)))
}

// S3ClientOptions configures an S3Client.
type S3ClientOptions struct {
	Bucket        string
	RequesterPays bool
	// PathTemplate builds the object key. Besides the FormatTemplate
	// placeholders it understands {l} (LayerName) and {h} (a 5 character
	// hash prefix of the object's z/x/y).
	PathTemplate string
	LayerName    string
	// MetatileSize > 1 switches to zipped metatile archives holding
	// MetatileSize x MetatileSize tiles at tileScale.
	MetatileSize  uint
	MaxDetailZoom maptile.Zoom
}

// S3Client fetches tiles, or the metatile archives containing them, from S3.
type S3Client struct {
	downloader *s3manager.Downloader
	opts       S3ClientOptions
}

func NewS3Client(opts S3ClientOptions) (*S3Client, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if opts.PathTemplate == "" {
		return nil, fmt.Errorf("path template is required")
	}

	sess, err := session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, err
	}

	downloader := s3manager.NewDownloader(
		sess,
		func(downloader *s3manager.Downloader) {
			// See https://levyeran.medium.com/high-memory-allocations-and-gc-cycles-while-downloading-large-s3-objects-using-the-aws-sdk-for-go-e776a136c5d0
			downloader.BufferProvider = s3manager.NewPooledBufferedWriterReadFromProvider(15 * 1024 * 1024)
		},
	)

	return &S3Client{downloader: downloader, opts: opts}, nil
}

// Metatile locates a tile inside its metatile archive.
type Metatile struct {
	Coords TileCoordinates
	// OffsetZ, OffsetX and OffsetY name the tile's entry inside the archive.
	OffsetZ uint32
	OffsetX uint32
	OffsetY uint32
}

// EntryName is the zip entry holding the tile in the given format.
func (m Metatile) EntryName(format string) string {
	return fmt.Sprintf("%d/%d/%d.%s", m.OffsetZ, m.OffsetX, m.OffsetY, format)
}

// MetatileFor returns the metatile containing coords for archives of
// metatileSize tiles per side. Beyond maxDetailZoom (when non-zero) every tile
// lives in a metatile at maxDetailZoom.
func MetatileFor(coords TileCoordinates, metatileSize uint, maxDetailZoom maptile.Zoom) Metatile {
	metaZoom := maptile.Zoom(log2Uint(metatileSize))
	tileZoom := maptile.Zoom(log2Uint(tileScale))
	deltaZoom := metaZoom - tileZoom

	var metatileZoom maptile.Zoom
	if coords.Z >= deltaZoom {
		metatileZoom = coords.Z - deltaZoom
	}
	if maxDetailZoom > 0 && metatileZoom > maxDetailZoom {
		metatileZoom = maxDetailZoom
	}

	offsetZ := uint32(coords.Z - metatileZoom)
	metaX := uint32(coords.X) >> offsetZ
	metaY := uint32(coords.Y) >> offsetZ

	return Metatile{
		Coords:  NewTileCoordinates(int32(metaX), int32(metaY), metatileZoom),
		OffsetZ: offsetZ,
		OffsetX: uint32(coords.X) - metaX<<offsetZ,
		OffsetY: uint32(coords.Y) - metaY<<offsetZ,
	}
}

func (c *S3Client) objectKey(coords TileCoordinates, source SourceType, archive bool) (string, error) {
	ext := source.Format
	if archive {
		ext = "zip"
	}

	hash := md5.Sum([]byte(fmt.Sprintf("%d/%d/%d.%s", coords.Z, coords.X, coords.Y, ext)))
	hashHex := hex.EncodeToString(hash[:])

	template := strings.NewReplacer(
		"{l}", c.opts.LayerName,
		"{h}", hashHex[:5]).Replace(c.opts.PathTemplate)

	return FormatTemplate(template, coords, SourceType{Kind: source.Kind, Format: ext})
}

func (c *S3Client) download(ctx context.Context, key string) ([]byte, error) {
	buf := &aws.WriteAtBuffer{}
	input := &s3.GetObjectInput{
		Bucket: aws.String(c.opts.Bucket),
		Key:    aws.String(key),
	}
	if c.opts.RequesterPays {
		input.RequestPayer = aws.String("requester")
	}

	if _, err := c.downloader.DownloadWithContext(ctx, buf, input); err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrTileNotFound, c.opts.Bucket, key)
		}
		return nil, fmt.Errorf("unable to download item s3://%s/%s: %w", c.opts.Bucket, key, err)
	}

	return buf.Bytes(), nil
}

func (c *S3Client) Fetch(ctx context.Context, coords TileCoordinates, source SourceType) ([]byte, error) {
	if c.opts.MetatileSize <= 1 {
		key, err := c.objectKey(coords, source, false)
		if err != nil {
			return nil, err
		}
		return c.download(ctx, key)
	}

	meta := MetatileFor(coords, c.opts.MetatileSize, c.opts.MaxDetailZoom)
	key, err := c.objectKey(meta.Coords, source, true)
	if err != nil {
		return nil, err
	}

	archive, err := c.download(ctx, key)
	if err != nil {
		return nil, err
	}

	return ExtractMetatileEntry(archive, meta.EntryName(source.Format))
}

// ExtractMetatileEntry reads one entry out of a zipped metatile archive.
func ExtractMetatileEntry(archive []byte, name string) ([]byte, error) {
	zippedReader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("unable to unzip metatile archive: %w", err)
	}

	for _, zf := range zippedReader.File {
		if zf.Name != name {
			continue
		}

		zfReader, err := zf.Open()
		if err != nil {
			return nil, fmt.Errorf("couldn't read %s: %w", zf.Name, err)
		}
		defer zfReader.Close()

		return io.ReadAll(zfReader)
	}

	return nil, fmt.Errorf("%w: metatile entry %s", ErrTileNotFound, name)
}
