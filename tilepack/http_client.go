package tilepack

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	httpUserAgent = "go-tilepipe/1.0"
)

// HTTPClientOptions configures an HTTPClient.
type HTTPClientOptions struct {
	// URLTemplate is formatted with FormatTemplate for every fetch.
	URLTemplate string
	Timeout     time.Duration
	// Retries bounds the attempts made when the server answers 5xx.
	Retries int
	// InitialBackoff is doubled after every 5xx answer, up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// HTTPClient fetches tiles from an XYZ URL template.
type HTTPClient struct {
	httpClient *http.Client
	opts       HTTPClientOptions
}

func NewHTTPClient(opts HTTPClientOptions) (*HTTPClient, error) {
	if opts.URLTemplate == "" {
		return nil, fmt.Errorf("URL template is required")
	}
	if opts.Retries <= 0 {
		opts.Retries = 5
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}

	// Configure the HTTP client with a timeout and connection pools
	httpClient := &http.Client{}
	httpClient.Timeout = opts.Timeout
	httpClient.Transport = &http.Transport{
		MaxIdleConnsPerHost: 500,
		DisableCompression:  true,
	}

	return &HTTPClient{httpClient: httpClient, opts: opts}, nil
}

func (c *HTTPClient) doWithRetry(ctx context.Context, url string) (*http.Response, error) {
	sleep := c.opts.InitialBackoff

	for i := 0; i < c.opts.Retries; i++ {
		request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("unable to create HTTP request: %w", err)
		}
		request.Header.Add("User-Agent", httpUserAgent)
		request.Header.Add("Accept-Encoding", "gzip")

		resp, err := c.httpClient.Do(request)
		if err != nil {
			return nil, err
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return resp, nil
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent:
			resp.Body.Close()
			return nil, fmt.Errorf("%w: GET %s: %s", ErrTileNotFound, url, resp.Status)
		case resp.StatusCode >= 500 && resp.StatusCode < 600:
			resp.Body.Close()
			Logger().Debug("retrying tile fetch", "url", url, "status", resp.StatusCode, "attempt", i+1)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(sleep):
			}
			sleep *= 2
			if sleep > c.opts.MaxBackoff {
				sleep = c.opts.MaxBackoff
			}
		default:
			resp.Body.Close()
			return nil, fmt.Errorf("failed to GET %s: %s", url, resp.Status)
		}
	}

	return nil, fmt.Errorf("ran out of HTTP GET retries for %s", url)
}

// Fetch returns the decompressed payload for coords.
func (c *HTTPClient) Fetch(ctx context.Context, coords TileCoordinates, source SourceType) ([]byte, error) {
	url, err := FormatTemplate(c.opts.URLTemplate, coords, source)
	if err != nil {
		return nil, err
	}

	resp, err := c.doWithRetry(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("couldn't open gzip body of %s: %w", url, err)
		}
		defer gz.Close()
		body = gz
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return nil, fmt.Errorf("error copying bytes from HTTP response: %w", err)
	}

	return buf.Bytes(), nil
}
