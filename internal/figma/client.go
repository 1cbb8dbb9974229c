// Package figma is the transport layer for the remote REST API: a
// retry-aware HTTP client plus a streaming parser for the file-nodes
// document.
package figma

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/tonykolomeytsev/figx/internal/figerr"
	"github.com/tonykolomeytsev/figx/internal/log"
)

const (
	defaultBaseURL = "https://api.figma.com"
	tokenHeader    = "X-Figma-Token"
	requestIDHeader = "X-Request-Id"

	defaultMaxRetries = 3
	defaultRetryBase  = 500 * time.Millisecond
	defaultTimeout    = 60 * time.Second
)

// Client wraps the remote REST API. All methods take an already-resolved
// token from the caller, retry transient 429/5xx responses with exponential
// backoff and jitter, and surface auth/permission errors immediately.
type Client struct {
	httpClient *http.Client
	baseURL    string
	maxRetries int
	retryBase  time.Duration
	logger     *slog.Logger
}

type Option func(*Client)

// WithBaseURL points the client at a different API root; tests use this to
// talk to a stub server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

func WithRetryBase(d time.Duration) Option {
	return func(c *Client) { c.retryBase = d }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 3,
				// We negotiate gzip ourselves to decompress with
				// klauspost/compress.
				DisableCompression: true,
			},
		},
		baseURL:    defaultBaseURL,
		maxRetries: defaultMaxRetries,
		retryBase:  defaultRetryBase,
		logger:     log.WithComponent("figma"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FileNodes opens a streaming reader over GET /v1/files/{key}/nodes.
// File node responses can be very large; the caller parses them
// incrementally and must close the reader.
func (c *Client) FileNodes(ctx context.Context, token, fileKey string, ids []string) (io.ReadCloser, error) {
	q := url.Values{}
	if len(ids) > 0 {
		q.Set("ids", strings.Join(ids, ","))
	}
	q.Set("geometry", "paths")
	u := fmt.Sprintf("%s/v1/files/%s/nodes?%s", c.baseURL, url.PathEscape(fileKey), q.Encode())
	return c.get(ctx, token, u)
}

// ImageExportResponse maps node id to its signed download URL; nodes the
// remote could not render map to the empty string.
type ImageExportResponse map[string]string

// ImageExport calls GET /v1/images/{key} for a batch of node ids.
func (c *Client) ImageExport(ctx context.Context, token, fileKey string, ids []string, format string, scale float64) (ImageExportResponse, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("format", format)
	q.Set("scale", strconv.FormatFloat(scale, 'f', -1, 64))
	u := fmt.Sprintf("%s/v1/images/%s?%s", c.baseURL, url.PathEscape(fileKey), q.Encode())

	body, err := c.get(ctx, token, u)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var dto struct {
		Err    *string            `json:"err"`
		Images map[string]*string `json:"images"`
	}
	if err := json.NewDecoder(body).Decode(&dto); err != nil {
		return nil, figerr.Remote("", fmt.Errorf("decode image export response: %w", err))
	}
	if dto.Err != nil {
		return nil, figerr.Remote("", fmt.Errorf("image export rejected: %s", *dto.Err))
	}
	out := make(ImageExportResponse, len(dto.Images))
	for id, link := range dto.Images {
		if link != nil {
			out[id] = *link
		} else {
			out[id] = ""
		}
	}
	return out, nil
}

// Download fetches a signed export URL in full.
func (c *Client) Download(ctx context.Context, token, rawURL string) ([]byte, error) {
	body, err := c.get(ctx, token, rawURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, figerr.Remote("", fmt.Errorf("read download body: %w", err))
	}
	return data, nil
}

// get runs the retry loop. Transient failures (connection errors, 429,
// 5xx) are retried with exponential backoff plus jitter (each delay is
// drawn from [d/2, 3d/2) around the doubling step d); 4xx
// auth/permission responses fail immediately.
func (c *Client) get(ctx context.Context, token, rawURL string) (io.ReadCloser, error) {
	requestID := uuid.NewString()
	logger := c.logger.With("request_id", requestID)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt)
			logger.Debug("retrying request", "attempt", attempt, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, figerr.FromContext(ctx)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, figerr.Remote(requestID, err)
		}
		req.Header.Set(tokenHeader, token)
		req.Header.Set(requestIDHeader, requestID)
		req.Header.Set("Accept-Encoding", "gzip")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, figerr.FromContext(ctx)
			}
			lastErr = err
			logger.Debug("transport error", "error", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return decompressed(resp)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("status %s", resp.Status)
			drain(resp)
			logger.Debug("transient response", "status", resp.StatusCode)
			continue
		default:
			// Auth and permission problems never resolve by retrying.
			msg := readErrorBody(resp)
			drain(resp)
			return nil, figerr.Remote(requestID, fmt.Errorf("status %s: %s", resp.Status, msg))
		}
	}
	return nil, figerr.Remote(requestID, fmt.Errorf("retries exhausted: %w", lastErr))
}

func (c *Client) backoff(attempt int) time.Duration {
	max := c.retryBase << (attempt - 1)
	return time.Duration(rand.Int63n(int64(max))) + max/2
}

func decompressed(resp *http.Response) (io.ReadCloser, error) {
	if resp.Header.Get("Content-Encoding") != "gzip" {
		return resp.Body, nil
	}
	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		_ = resp.Body.Close()
		return nil, figerr.Remote(resp.Request.Header.Get(requestIDHeader), fmt.Errorf("gzip: %w", err))
	}
	return &gzipReadCloser{gz: gz, body: resp.Body}, nil
}

type gzipReadCloser struct {
	gz   *gzip.Reader
	body io.ReadCloser
}

func (r *gzipReadCloser) Read(p []byte) (int, error) { return r.gz.Read(p) }

func (r *gzipReadCloser) Close() error {
	_ = r.gz.Close()
	return r.body.Close()
}

func readErrorBody(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return strings.TrimSpace(string(data))
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
