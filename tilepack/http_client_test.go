package tilepack

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestHTTPClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewHTTPClient(HTTPClientOptions{
		URLTemplate:    server.URL + "/{z}/{x}/{y}.{ext}",
		Timeout:        5 * time.Second,
		Retries:        3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	})
	require.NoError(t, err)
	return client
}

func TestHTTPClient_Fetch(t *testing.T) {
	var gotPath string
	client := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("tile"))
	})

	data, err := client.Fetch(context.Background(), NewTileCoordinates(2, 3, 4), DefaultSourceType(VectorSource))
	require.NoError(t, err)
	require.Equal(t, []byte("tile"), data)
	require.Equal(t, "/4/2/3.mvt", gotPath)
}

func TestHTTPClient_FetchGzipped(t *testing.T) {
	client := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		var b bytes.Buffer
		gz := gzip.NewWriter(&b)
		gz.Write([]byte("compressed tile"))
		gz.Close()

		w.Header().Set("Content-Encoding", "gzip")
		w.Write(b.Bytes())
	})

	data, err := client.Fetch(context.Background(), NewTileCoordinates(0, 0, 0), DefaultSourceType(VectorSource))
	require.NoError(t, err)
	require.Equal(t, []byte("compressed tile"), data)
}

func TestHTTPClient_NotFound(t *testing.T) {
	client := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := client.Fetch(context.Background(), NewTileCoordinates(0, 0, 0), DefaultSourceType(VectorSource))
	require.True(t, errors.Is(err, ErrTileNotFound), "err = %v", err)
}

func TestHTTPClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("finally"))
	})

	data, err := client.Fetch(context.Background(), NewTileCoordinates(0, 0, 0), DefaultSourceType(VectorSource))
	require.NoError(t, err)
	require.Equal(t, []byte("finally"), data)
	require.EqualValues(t, 3, calls.Load())
}

func TestHTTPClient_RunsOutOfRetries(t *testing.T) {
	var calls atomic.Int32
	client := newTestHTTPClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.Fetch(context.Background(), NewTileCoordinates(0, 0, 0), DefaultSourceType(VectorSource))
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrTileNotFound))
	require.EqualValues(t, 3, calls.Load())
}
