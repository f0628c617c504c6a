package tilepack

import (
	"context"
	"fmt"
	"sync"
)

// RecordingClient tees every successfully fetched payload into an outputter,
// e.g. to build an offline archive of what a session looked at.
type RecordingClient struct {
	client    Client
	outputter TileOutputter

	mu    sync.Mutex
	saved int
}

func NewRecordingClient(client Client, outputter TileOutputter) (*RecordingClient, error) {
	if err := outputter.CreateTiles(); err != nil {
		return nil, fmt.Errorf("couldn't create output: %w", err)
	}
	return &RecordingClient{client: client, outputter: outputter}, nil
}

func (c *RecordingClient) Fetch(ctx context.Context, coords TileCoordinates, source SourceType) ([]byte, error) {
	data, err := c.client.Fetch(ctx, coords, source)
	if err != nil {
		return nil, err
	}

	tile, ok := coords.Tile()
	if !ok {
		return data, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.outputter.Save(tile, data); err != nil {
		// Recording is best effort; the fetch itself succeeded.
		Logger().Warn("couldn't save tile", "coords", coords, "error", err)
		return data, nil
	}
	c.saved++

	return data, nil
}

// Saved returns the number of payloads written so far.
func (c *RecordingClient) Saved() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saved
}

// Close closes the underlying outputter.
func (c *RecordingClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outputter.Close()
}
