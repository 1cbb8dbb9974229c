package figma

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzip"

	"github.com/tonykolomeytsev/figx/internal/figerr"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(
		WithBaseURL(srv.URL),
		WithMaxRetries(3),
		WithRetryBase(time.Millisecond),
	)
	return c, srv
}

func TestImageExportParsesResponse(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Get("/v1/images/{fileKey}", func(w http.ResponseWriter, req *http.Request) {
		if got := req.Header.Get("X-Figma-Token"); got != "fig_token" {
			t.Errorf("token header = %q", got)
		}
		_, _ = w.Write([]byte(`{"err":null,"images":{"1:2":"https://cdn/x.svg","3:4":null}}`))
	})
	c, _ := testClient(t, r)

	res, err := c.ImageExport(context.Background(), "fig_token", "key", []string{"1:2", "3:4"}, "svg", 1)
	if err != nil {
		t.Fatalf("ImageExport: %v", err)
	}
	if res["1:2"] != "https://cdn/x.svg" {
		t.Errorf("url = %q", res["1:2"])
	}
	if res["3:4"] != "" {
		t.Errorf("unrendered node should map to empty url, got %q", res["3:4"])
	}
}

func TestTransientErrorsAreRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	r := chi.NewRouter()
	r.Get("/v1/images/{fileKey}", func(w http.ResponseWriter, req *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{"images":{}}`))
		}
	})
	c, _ := testClient(t, r)

	if _, err := c.ImageExport(context.Background(), "t", "key", []string{"1:2"}, "svg", 1); err != nil {
		t.Fatalf("ImageExport after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestAuthErrorsAreNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	r := chi.NewRouter()
	r.Get("/v1/images/{fileKey}", func(w http.ResponseWriter, req *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"err":"forbidden"}`))
	})
	c, _ := testClient(t, r)

	_, err := c.ImageExport(context.Background(), "bad", "key", []string{"1:2"}, "svg", 1)
	if figerr.KindOf(err) != figerr.KindRemote {
		t.Fatalf("error = %v, want remote error", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 403)", calls.Load())
	}
}

func TestRetriesExhaustedSurfaceRemoteError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	r := chi.NewRouter()
	r.Get("/v1/images/{fileKey}", func(w http.ResponseWriter, req *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	c, _ := testClient(t, r)

	_, err := c.ImageExport(context.Background(), "t", "key", []string{"1:2"}, "svg", 1)
	if figerr.KindOf(err) != figerr.KindRemote {
		t.Fatalf("error = %v, want remote error", err)
	}
	if calls.Load() != 4 {
		t.Errorf("calls = %d, want initial + 3 retries", calls.Load())
	}
}

func TestCancellationShortCircuitsRetryLoop(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Get("/v1/files/{fileKey}/nodes", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c, _ := testClient(t, r)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.FileNodes(ctx, "t", "key", nil)
	if figerr.KindOf(err) != figerr.KindCancelled {
		t.Fatalf("error = %v, want cancellation", err)
	}
}

func TestGzipResponsesAreDecompressed(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"id":"0:1","name":"X"}`)
	r := chi.NewRouter()
	r.Get("/v1/files/{fileKey}/nodes", func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("Accept-Encoding") != "gzip" {
			t.Error("client did not offer gzip")
		}
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, _ = gz.Write(payload)
		_ = gz.Close()
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	})
	c, _ := testClient(t, r)

	body, err := c.FileNodes(context.Background(), "t", "key", []string{"0:1"})
	if err != nil {
		t.Fatalf("FileNodes: %v", err)
	}
	defer body.Close()
	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("body = %q", got)
	}
}

func TestDownloadReadsSignedURL(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Get("/signed/blob", func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte("<svg/>"))
	})
	c, srv := testClient(t, r)

	data, err := c.Download(context.Background(), "t", srv.URL+"/signed/blob")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(data) != "<svg/>" {
		t.Errorf("data = %q", data)
	}
}
