package apc

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tilezen/go-tilepipe/pipeline"
	"github.com/tilezen/go-tilepipe/tilepack"
)

var testClient = tilepack.ClientFunc(func(ctx context.Context, coords tilepack.TileCoordinates, source tilepack.SourceType) ([]byte, error) {
	return []byte(coords.String()), nil
})

func testRequest(x int32) tilepack.TileRequest {
	return tilepack.TileRequest{
		Coords: tilepack.NewTileCoordinates(x, 0, 5),
		Layers: tilepack.NewLayerSet("water"),
	}
}

// fetchAndFinish fetches the tile and reports one unavailable layer and the
// finished tile.
func fetchAndFinish(ctx context.Context, req tilepack.TileRequest, c Context) error {
	if _, err := c.SourceClient().Fetch(ctx, req.Coords, tilepack.DefaultSourceType(tilepack.VectorSource)); err != nil {
		return err
	}
	if err := c.Send(pipeline.LayerUnavailable{Coords: req.Coords, LayerName: "water"}); err != nil {
		return err
	}
	return c.Send(pipeline.TileFinished{Coords: req.Coords})
}

func drain(a AsyncProcedureCall) []pipeline.Message {
	var msgs []pipeline.Message
	for {
		msg, ok := a.Receive()
		if !ok {
			return msgs
		}
		msgs = append(msgs, msg)
	}
}

// checkPerTileOrder verifies every tile's messages arrived in the order they
// were sent.
func checkPerTileOrder(t *testing.T, msgs []pipeline.Message, tiles int) {
	t.Helper()
	require.Len(t, msgs, 2*tiles)

	seen := map[tilepack.TileCoordinates]int{}
	for _, msg := range msgs {
		switch msg.(type) {
		case pipeline.LayerUnavailable:
			require.Equal(t, 0, seen[msg.Coordinates()], "unavailable after finished for %s", msg.Coordinates())
		case pipeline.TileFinished:
			require.Equal(t, 1, seen[msg.Coordinates()], "finished before unavailable for %s", msg.Coordinates())
		}
		seen[msg.Coordinates()]++
	}
	require.Len(t, seen, tiles)
}

func TestPool_DeliversAllMessages(t *testing.T) {
	pool := NewPool(context.Background(), testClient, PoolOptions{Workers: 4, QueueSize: 2})

	const tiles = 50
	for x := 0; x < tiles; x++ {
		require.NoError(t, pool.Call(testRequest(int32(x)), fetchAndFinish))
	}
	require.NoError(t, pool.Close())

	checkPerTileOrder(t, drain(pool), tiles)
	require.Zero(t, pool.Pending())
}

func TestPool_Notify(t *testing.T) {
	pool := NewPool(context.Background(), testClient, PoolOptions{Workers: 1})
	defer pool.Close()

	require.NoError(t, pool.Call(testRequest(1), fetchAndFinish))

	select {
	case <-pool.Notify():
	case <-time.After(5 * time.Second):
		t.Fatal("no message notification")
	}
	msg, ok := pool.Receive()
	require.True(t, ok)
	require.Equal(t, testRequest(1).Coords, msg.Coordinates())
}

func TestPool_CallAfterClose(t *testing.T) {
	pool := NewPool(context.Background(), testClient, PoolOptions{})
	require.NoError(t, pool.Close())
	require.NoError(t, pool.Close())

	require.ErrorIs(t, pool.Call(testRequest(1), fetchAndFinish), ErrClosed)
}

func TestPool_ErrorHandler(t *testing.T) {
	errFetch := errors.New("connection refused")
	failing := tilepack.ClientFunc(func(ctx context.Context, coords tilepack.TileCoordinates, source tilepack.SourceType) ([]byte, error) {
		return nil, errFetch
	})

	var (
		mu     sync.Mutex
		failed []error
	)
	pool := NewPool(context.Background(), failing, PoolOptions{
		Workers: 2,
		ErrorHandler: func(req tilepack.TileRequest, err error) {
			mu.Lock()
			defer mu.Unlock()
			failed = append(failed, err)
		},
	})

	require.NoError(t, pool.Call(testRequest(1), fetchAndFinish))
	require.NoError(t, pool.Call(testRequest(2), fetchAndFinish))
	require.NoError(t, pool.Close())

	require.Len(t, failed, 2)
	for _, err := range failed {
		require.ErrorIs(t, err, errFetch)
	}
	require.Empty(t, drain(pool))
}

func TestPool_RecoversPanics(t *testing.T) {
	var handled atomic.Int32
	pool := NewPool(context.Background(), testClient, PoolOptions{
		Workers:      1,
		ErrorHandler: func(tilepack.TileRequest, error) { handled.Add(1) },
	})

	require.NoError(t, pool.Call(testRequest(1), func(context.Context, tilepack.TileRequest, Context) error {
		panic("bad tile")
	}))
	require.NoError(t, pool.Call(testRequest(2), fetchAndFinish))
	require.NoError(t, pool.Close())

	require.EqualValues(t, 1, handled.Load())
	require.Len(t, drain(pool), 2)
}

func TestScheduler_RunsOnReceive(t *testing.T) {
	s := NewScheduler(context.Background(), testClient, nil)

	var ran atomic.Int32
	counting := func(ctx context.Context, req tilepack.TileRequest, c Context) error {
		ran.Add(1)
		return fetchAndFinish(ctx, req, c)
	}

	const tiles = 10
	for x := 0; x < tiles; x++ {
		require.NoError(t, s.Call(testRequest(int32(x)), counting))
	}
	require.Zero(t, ran.Load())
	require.Equal(t, tiles, s.Queued())

	msg, ok := s.Receive()
	require.True(t, ok)
	require.Equal(t, testRequest(0).Coords, msg.Coordinates())
	require.EqualValues(t, 1, ran.Load())

	// Tiles run strictly one after the other.
	msgs := append([]pipeline.Message{msg}, drain(s)...)
	checkPerTileOrder(t, msgs, tiles)
	for i, m := range msgs {
		require.Equal(t, testRequest(int32(i/2)).Coords, m.Coordinates())
	}
	require.EqualValues(t, tiles, ran.Load())
}

func TestScheduler_RunPending(t *testing.T) {
	s := NewScheduler(context.Background(), testClient, nil)

	// A procedure may submit more work; it runs in the same pass.
	require.NoError(t, s.Call(testRequest(1), func(ctx context.Context, req tilepack.TileRequest, c Context) error {
		return s.Call(testRequest(2), fetchAndFinish)
	}))
	require.Equal(t, 2, s.RunPending())
	require.Len(t, drain(s), 2)
}

func TestScheduler_CloseRunsQueued(t *testing.T) {
	var failed []error
	s := NewScheduler(context.Background(), testClient, func(req tilepack.TileRequest, err error) {
		failed = append(failed, err)
	})

	require.NoError(t, s.Call(testRequest(1), fetchAndFinish))
	require.NoError(t, s.Close())
	require.ErrorIs(t, s.Call(testRequest(2), fetchAndFinish), ErrClosed)

	require.Len(t, drain(s), 2)
	require.Empty(t, failed)
}

func TestMailbox(t *testing.T) {
	m := newMailbox()
	coords := tilepack.NewTileCoordinates(0, 0, 0)

	require.NoError(t, m.Send(pipeline.TileFinished{Coords: coords}))
	require.Equal(t, 1, m.Len())

	m.close()
	require.ErrorIs(t, m.Send(pipeline.TileFinished{Coords: coords}), ErrMailboxClosed)

	msg, ok := m.Receive()
	require.True(t, ok)
	require.Equal(t, pipeline.TileFinished{Coords: coords}, msg)

	_, ok = m.Receive()
	require.False(t, ok)
}
