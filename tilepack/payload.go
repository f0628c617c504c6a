package tilepack

import (
	"bytes"
	"compress/gzip"
	"io"
)

// IsGzipped reports whether data starts with the gzip magic number.
func IsGzipped(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}

// Decompress returns data with a gzip layer removed, if it has one.
func Decompress(data []byte) ([]byte, error) {
	if !IsGzipped(data) {
		return data, nil
	}

	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	return io.ReadAll(gz)
}
