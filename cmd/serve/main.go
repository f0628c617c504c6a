// Command serve publishes the tiles of an mbtiles archive over HTTP. It is
// the local tile source for tileview and prefetch, which read from it with
// -generator xyz and the URL template it logs on startup.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	gohttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tilezen/go-tilepipe/http"
	"github.com/tilezen/go-tilepipe/tilepack"
)

// statusRecorder keeps the status written by a handler.
type statusRecorder struct {
	gohttp.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// accessLog logs one line per request once it has been served.
func accessLog(logger *slog.Logger, next gohttp.Handler) gohttp.Handler {
	return gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: gohttp.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("tile request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"remote", r.RemoteAddr,
		)
	})
}

func newHandler(reader tilepack.MbtilesReader, logger *slog.Logger) gohttp.Handler {
	mux := gohttp.NewServeMux()
	mux.Handle("/tiles/", http.MbtilesHandler(reader))
	mux.Handle("/metadata.json", http.MetadataHandler(reader))
	mux.Handle("/", gohttp.NotFoundHandler())
	return accessLog(logger, mux)
}

// urlTemplate is the template the pipeline's xyz client fetches tiles from
// this server with.
func urlTemplate(addr string, metadata *tilepack.MbtilesMetadata) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		host, port = addr, "80"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}

	ext := metadata.Format()
	if ext == "" {
		ext = "mvt"
	}
	return fmt.Sprintf("http://%s/tiles/{z}/{x}/{y}.%s", net.JoinHostPort(host, port), ext)
}

func describe(logger *slog.Logger, reader tilepack.MbtilesReader, addr string) error {
	metadata, err := reader.Metadata()
	if err != nil {
		return fmt.Errorf("couldn't read metadata: %w", err)
	}

	attrs := []any{"name", metadata.Name(), "format", metadata.Format()}
	if minZoom, err := metadata.MinZoom(); err == nil {
		attrs = append(attrs, "minzoom", minZoom)
	}
	if maxZoom, err := metadata.MaxZoom(); err == nil {
		attrs = append(attrs, "maxzoom", maxZoom)
	}
	attrs = append(attrs, "url_template", urlTemplate(addr, metadata))
	logger.Info("serving archive", attrs...)
	return nil
}

func main() {
	mbtilesFile := flag.String("input", "", "The mbtiles archive to serve.")
	addr := flag.String("listen", ":8080", "The address and port to listen on.")
	quiet := flag.Bool("quiet", false, "Don't log every request.")
	flag.Parse()

	if *mbtilesFile == "" {
		log.Fatal("Need to provide --input parameter")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	requestLogger := logger
	if *quiet {
		requestLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}

	reader, err := tilepack.NewMbtilesReader(*mbtilesFile)
	if err != nil {
		log.Fatalf("Couldn't open %s: %+v", *mbtilesFile, err)
	}
	defer reader.Close()

	if err := describe(logger, reader, *addr); err != nil {
		log.Fatalf("Couldn't describe %s: %+v", *mbtilesFile, err)
	}

	server := &gohttp.Server{
		Addr:         *addr,
		Handler:      newHandler(reader, requestLogger),
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown interrupted", "error", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, gohttp.ErrServerClosed) {
		log.Fatalf("Couldn't listen on %s: %+v", *addr, err)
	}
	logger.Info("stopped")
}
