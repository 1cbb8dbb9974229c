// Package export obtains downloadable bytes for (node, format, scale)
// tuples. Stage one batches sibling requests into a single image-export
// call; stage two streams every signed URL into the cache, so identical
// inputs never hit the network twice.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tonykolomeytsev/figx/internal/cache"
	"github.com/tonykolomeytsev/figx/internal/config"
	"github.com/tonykolomeytsev/figx/internal/events"
	"github.com/tonykolomeytsev/figx/internal/figerr"
	"github.com/tonykolomeytsev/figx/internal/figma"
	"github.com/tonykolomeytsev/figx/internal/log"
)

const (
	// defaultWindow is the debounce window during which sibling pipelines
	// with the same (remote, format, scale) coalesce into one request.
	defaultWindow = 50 * time.Millisecond

	// maxBatch bounds one image-export call to a protocol-safe id count.
	maxBatch = 500
)

// Request asks for the exported bytes of one node.
type Request struct {
	Remote *config.Remote
	Token  string
	Node   figma.Node
	Format string
	Scale  float64
}

// Result delivers the bytes or the per-node failure.
type Result struct {
	Data []byte
	Err  error
}

type batchKey struct {
	remoteID string
	format   string
	scale    float64
}

type pendingReq struct {
	req Request
	ch  chan Result
}

type batch struct {
	token string
	reqs  []pendingReq
}

// Resolver coalesces export requests per (remote, format, scale) and
// resolves them through the cache.
type Resolver struct {
	ctx    context.Context
	api    *figma.Client
	cache  *cache.Store
	hub    *events.Hub
	window time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	pending map[batchKey]*batch
}

type Option func(*Resolver)

// WithWindow overrides the debounce window; tests shrink it.
func WithWindow(d time.Duration) Option {
	return func(r *Resolver) { r.window = d }
}

func NewResolver(ctx context.Context, api *figma.Client, store *cache.Store, hub *events.Hub, opts ...Option) *Resolver {
	r := &Resolver{
		ctx:     ctx,
		api:     api,
		cache:   store,
		hub:     hub,
		window:  defaultWindow,
		logger:  log.WithComponent("export"),
		pending: make(map[batchKey]*batch),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DownloadKey is the cache key of the exported bytes for one node. The
// node's subtree hash is part of the key, so a remote edit invalidates it.
func DownloadKey(remote *config.Remote, format string, scale float64, node figma.Node) cache.Key {
	return cache.NewKey(cache.TagDownloadedImage).
		WriteString(remote.FileKey).
		WriteString(format).
		WriteFloat64(scale).
		WriteString(node.ID).
		WriteUint64(node.Hash).
		Build()
}

// Enqueue registers a request and returns the channel its result will be
// delivered on. Cached bytes resolve without joining a batch.
func (r *Resolver) Enqueue(req Request) <-chan Result {
	ch := make(chan Result, 1)

	key := DownloadKey(req.Remote, req.Format, req.Scale, req.Node)
	if data, ok := r.cache.Get(key); ok {
		r.hub.Publish(events.CacheHit{Key: key.String(), Bytes: len(data)})
		ch <- Result{Data: data}
		return ch
	}

	bk := batchKey{remoteID: req.Remote.ID, format: req.Format, scale: req.Scale}
	r.mu.Lock()
	b, ok := r.pending[bk]
	if !ok {
		b = &batch{token: req.Token}
		r.pending[bk] = b
		time.AfterFunc(r.window, func() { r.flush(bk) })
	}
	b.reqs = append(b.reqs, pendingReq{req: req, ch: ch})
	full := len(b.reqs) >= maxBatch
	if full {
		delete(r.pending, bk)
	}
	r.mu.Unlock()

	if full {
		go r.run(bk, b)
	}
	return ch
}

func (r *Resolver) flush(bk batchKey) {
	r.mu.Lock()
	b, ok := r.pending[bk]
	if ok {
		delete(r.pending, bk)
	}
	r.mu.Unlock()
	if ok {
		r.run(bk, b)
	}
}

func (r *Resolver) run(bk batchKey, b *batch) {
	if err := r.ctx.Err(); err != nil {
		deliverAll(b, figerr.FromContext(r.ctx))
		return
	}

	remote := b.reqs[0].req.Remote

	// Dedup node ids across the batch for the upstream call.
	idSet := make(map[string]struct{}, len(b.reqs))
	ids := make([]string, 0, len(b.reqs))
	for _, p := range b.reqs {
		if _, seen := idSet[p.req.Node.ID]; !seen {
			idSet[p.req.Node.ID] = struct{}{}
			ids = append(ids, p.req.Node.ID)
		}
	}
	r.logger.Debug("export batch",
		"remote", bk.remoteID, "format", bk.format, "scale", bk.scale, "nodes", len(ids))

	urls, err := r.api.ImageExport(r.ctx, b.token, remote.FileKey, ids, bk.format, bk.scale)
	if err != nil {
		deliverAll(b, err)
		return
	}

	var wg sync.WaitGroup
	for _, p := range b.reqs {
		wg.Add(1)
		go func(p pendingReq) {
			defer wg.Done()
			p.ch <- r.download(p.req, urls[p.req.Node.ID])
		}(p)
	}
	wg.Wait()
}

func (r *Resolver) download(req Request, url string) Result {
	if url == "" {
		return Result{Err: figerr.Remote("", fmt.Errorf("remote did not render node %q (%s)", req.Node.Name, req.Node.ID))}
	}
	key := DownloadKey(req.Remote, req.Format, req.Scale, req.Node)
	data, err := r.cache.GetOrCompute(key, func() ([]byte, error) {
		body, err := r.api.Download(r.ctx, req.Token, url)
		if err != nil {
			return nil, err
		}
		r.hub.Publish(events.BytesDownloaded{Remote: req.Remote.ID, Bytes: len(body)})
		return body, nil
	})
	if err != nil {
		return Result{Err: err}
	}
	return Result{Data: data}
}

func deliverAll(b *batch, err error) {
	for _, p := range b.reqs {
		p.ch <- Result{Err: err}
	}
}
