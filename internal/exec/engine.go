// Package exec runs planned pipelines on a bounded worker pool, coupling
// them to the streaming node index and the batching export resolver.
//
// Pipelines are independent tasks on a FIFO queue. Within a pipeline,
// steps run sequentially; a step that has to wait (node not yet indexed,
// export batch in flight) parks the pipeline and returns the worker to
// the queue instead of blocking it. Resolution re-enqueues the pipeline.
package exec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/tonykolomeytsev/figx/internal/cache"
	"github.com/tonykolomeytsev/figx/internal/config"
	"github.com/tonykolomeytsev/figx/internal/events"
	"github.com/tonykolomeytsev/figx/internal/export"
	"github.com/tonykolomeytsev/figx/internal/figerr"
	"github.com/tonykolomeytsev/figx/internal/figma"
	"github.com/tonykolomeytsev/figx/internal/index"
	"github.com/tonykolomeytsev/figx/internal/log"
	"github.com/tonykolomeytsev/figx/internal/planner"
	"github.com/tonykolomeytsev/figx/internal/transform"
)

// Options tune one evaluation run.
type Options struct {
	// Workers bounds the pool; 0 means the number of logical cores.
	Workers int
	// FailFast cancels the run on the first pipeline failure.
	FailFast bool
	// Refetch skips cached remote indexes for this run.
	Refetch bool
	// FetchOnly stops every pipeline after its export step: the cache is
	// warmed, no files are written.
	FetchOnly bool
	// ExportWindow overrides the export debounce window (tests).
	ExportWindow time.Duration
}

// PipelineError pairs a failed pipeline with its cause.
type PipelineError struct {
	Pipeline *planner.Pipeline
	Err      error
}

func (e PipelineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Pipeline.ID(), e.Err)
}

// Engine wires the run-scoped singletons together.
type Engine struct {
	ws      *config.Workspace
	store   *cache.Store
	api     *figma.Client
	hub     *events.Hub
	indexes *index.Service
	opts    Options
	logger  *slog.Logger

	tokenMu sync.Mutex
	tokens  map[string]string

	failMu   sync.Mutex
	failures []PipelineError
}

func NewEngine(ws *config.Workspace, store *cache.Store, api *figma.Client, hub *events.Hub, opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Engine{
		ws:      ws,
		store:   store,
		api:     api,
		hub:     hub,
		indexes: index.NewService(api, store, hub),
		opts:    opts,
		logger:  log.WithComponent("exec"),
		tokens:  make(map[string]string),
	}
}

// task carries a pipeline's execution state between scheduling quanta.
type task struct {
	p    *planner.Pipeline
	step int
	buf  []byte
	fp   cache.Key
	node figma.Node
	res  bool // node resolved
}

// Run executes the pipelines to quiescence. Per-pipeline failures are
// collected and returned; the error result is non-nil only when the run
// as a whole was cancelled or timed out.
func (e *Engine) Run(ctx context.Context, pipelines []*planner.Pipeline) ([]PipelineError, error) {
	if len(pipelines) == 0 {
		return nil, nil
	}
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.store.SetObserver(hubObserver{hub: e.hub})

	resolverOpts := []export.Option{}
	if e.opts.ExportWindow > 0 {
		resolverOpts = append(resolverOpts, export.WithWindow(e.opts.ExportWindow))
	}
	resolver := export.NewResolver(ctx, e.api, e.store, e.hub, resolverOpts...)

	// Every task is re-enqueued at most once per completed suspension, so
	// pipeline count bounds the queue.
	queue := make(chan *task, len(pipelines))
	var remaining sync.WaitGroup
	remaining.Add(len(pipelines))

	run := &runState{
		ctx:       ctx,
		cancel:    cancel,
		queue:     queue,
		remaining: &remaining,
		resolver:  resolver,
	}

	for _, p := range pipelines {
		e.hub.Publish(events.PipelineStarted{Label: p.Resource.Label.String(), Variant: p.Variant})
		queue <- &task{p: p}
	}

	workers := e.opts.Workers
	if workers > len(pipelines) {
		workers = len(pipelines)
	}
	var workerWg sync.WaitGroup
	for i := 0; i < workers; i++ {
		workerWg.Add(1)
		go func() {
			defer workerWg.Done()
			for t := range queue {
				e.advance(run, t)
			}
		}()
	}

	remaining.Wait()
	close(queue)
	workerWg.Wait()

	e.failMu.Lock()
	failures := e.failures
	e.failMu.Unlock()

	// Fail-fast cancellation is an internal mechanism; only cancellation
	// arriving from outside maps to the cancelled exit code.
	if err := parent.Err(); err != nil {
		return failures, figerr.FromContext(parent)
	}
	return failures, nil
}

type runState struct {
	ctx       context.Context
	cancel    context.CancelFunc
	queue     chan *task
	remaining *sync.WaitGroup
	resolver  *export.Resolver
}

// advance runs the task's steps until it finishes, fails, or parks.
func (e *Engine) advance(run *runState, t *task) {
	for t.step < len(t.p.Steps) {
		if err := run.ctx.Err(); err != nil {
			e.finish(run, t, figerr.FromContext(run.ctx))
			return
		}
		step := t.p.Steps[t.step]
		switch step.Kind {
		case planner.StepExportFromRemote:
			if !t.res {
				if e.resolveNode(run, t) {
					continue // resolved synchronously
				}
				return // parked on the index
			}
			e.startExport(run, t, step)
			return // parked on the export batch

		case planner.StepWriteFile:
			if err := writeOutput(step.Path, t.buf); err != nil {
				e.finish(run, t, figerr.Write(step.Path, err))
				return
			}
			e.hub.Publish(events.StepFinished{
				Label: t.p.Resource.Label.String(), Variant: t.p.Variant,
				Kind: step.Kind.String(), Bytes: len(t.buf),
			})
			t.step++

		default:
			if err := e.runTransform(run, t, step); err != nil {
				e.finish(run, t, err)
				return
			}
			t.step++
		}
	}
	e.finish(run, t, nil)
}

// resolveNode attaches the node to the task. The fast path answers from
// the index synchronously; otherwise the task parks and a watcher
// re-enqueues it on resolution.
func (e *Engine) resolveNode(run *runState, t *task) bool {
	idx := e.indexes.For(run.ctx, t.p.Remote, e.opts.Refetch)
	if n, ok := idx.TryResolve(t.p.NodeName); ok {
		t.node = n
		t.res = true
		return true
	}

	ch := idx.Resolve(t.p.NodeName)
	go func() {
		select {
		case <-run.ctx.Done():
			e.finish(run, t, figerr.FromContext(run.ctx))
		case res := <-ch:
			if res.Err != nil {
				e.finish(run, t, e.mapIndexError(t, res.Err))
				return
			}
			t.node = res.Node
			t.res = true
			run.queue <- t
		}
	}()
	return false
}

func (e *Engine) mapIndexError(t *task, err error) error {
	if errors.Is(err, index.ErrNotFound) {
		return figerr.NotFound(t.p.NodeName, t.p.Resource.File, t.p.Resource.Line)
	}
	return err
}

// startExport parks the task on the export batcher.
func (e *Engine) startExport(run *runState, t *task, step planner.Step) {
	token, err := e.tokenFor(t.p.Remote)
	if err != nil {
		e.finish(run, t, err)
		return
	}
	e.hub.Publish(events.StepStarted{
		Label: t.p.Resource.Label.String(), Variant: t.p.Variant, Kind: step.Kind.String(),
	})
	started := time.Now()

	ch := run.resolver.Enqueue(export.Request{
		Remote: t.p.Remote,
		Token:  token,
		Node:   t.node,
		Format: step.Format,
		Scale:  step.Scale,
	})
	go func() {
		select {
		case <-run.ctx.Done():
			e.finish(run, t, figerr.FromContext(run.ctx))
		case res := <-ch:
			if res.Err != nil {
				e.finish(run, t, res.Err)
				return
			}
			e.hub.Publish(events.StepFinished{
				Label: t.p.Resource.Label.String(), Variant: t.p.Variant,
				Kind: step.Kind.String(), Bytes: len(res.Data), Duration: time.Since(started),
			})
			t.buf = res.Data
			t.fp = planner.RuntimeFingerprint(t.p, step, cache.Key{}, t.node)
			t.step++
			if e.opts.FetchOnly {
				e.finish(run, t, nil)
				return
			}
			run.queue <- t
		}
	}()
}

// runTransform executes a pure transform step through the cache, so
// concurrent consumers of the same fingerprint share one producer.
func (e *Engine) runTransform(run *runState, t *task, step planner.Step) error {
	fp := planner.RuntimeFingerprint(t.p, step, t.fp, t.node)
	e.hub.Publish(events.StepStarted{
		Label: t.p.Resource.Label.String(), Variant: t.p.Variant, Kind: step.Kind.String(),
	})
	started := time.Now()

	input := t.buf
	data, err := e.store.GetOrCompute(fp, func() ([]byte, error) {
		out, err := applyTransform(step, input)
		if err != nil {
			return nil, figerr.Transform(step.Kind.String(), err)
		}
		return out, nil
	})
	if err != nil {
		return err
	}

	e.hub.Publish(events.StepFinished{
		Label: t.p.Resource.Label.String(), Variant: t.p.Variant,
		Kind: step.Kind.String(), Bytes: len(data), Duration: time.Since(started),
	})
	t.buf = data
	t.fp = fp
	return nil
}

func applyTransform(step planner.Step, input []byte) ([]byte, error) {
	switch step.Kind {
	case planner.StepSimplifySvg:
		return transform.SimplifySvg(input)
	case planner.StepRenderRaster:
		return transform.RenderRasterFromSvg(input, step.Scale)
	case planner.StepWebpEncode:
		return transform.TransformRasterToWebp(input, step.Quality)
	case planner.StepImageVector:
		return transform.TransformSvgToImageVector(input, *step.IVOptions)
	case planner.StepAndroidDrawable:
		return transform.TransformSvgToAndroidDrawable(input)
	default:
		return nil, fmt.Errorf("no transform for step kind %s", step.Kind)
	}
}

func (e *Engine) finish(run *runState, t *task, err error) {
	if err != nil {
		e.failMu.Lock()
		e.failures = append(e.failures, PipelineError{Pipeline: t.p, Err: err})
		e.failMu.Unlock()
		e.logger.Debug("pipeline failed", "pipeline", t.p.ID(), "error", err)
		if e.opts.FailFast {
			run.cancel()
		}
	}
	out := ""
	if err == nil && !e.opts.FetchOnly {
		out = t.p.OutputPath()
	}
	e.hub.Publish(events.PipelineFinished{
		Label: t.p.Resource.Label.String(), Variant: t.p.Variant, Output: out, Err: err,
	})
	run.remaining.Done()
}

func (e *Engine) tokenFor(remote *config.Remote) (string, error) {
	e.tokenMu.Lock()
	defer e.tokenMu.Unlock()
	if token, ok := e.tokens[remote.ID]; ok {
		return token, nil
	}
	token, err := remote.Token.Resolve(remote.ID)
	if err != nil {
		return "", err
	}
	e.tokens[remote.ID] = token
	return token, nil
}

// writeOutput publishes the terminal file via temp + atomic rename, so an
// observer never sees a half-written output.
func writeOutput(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}

// hubObserver republishes cache hits and misses as engine events.
type hubObserver struct {
	hub *events.Hub
}

func (o hubObserver) CacheHit(k cache.Key, size int) {
	o.hub.Publish(events.CacheHit{Key: k.String(), Bytes: size})
}

func (o hubObserver) CacheMiss(k cache.Key) {
	o.hub.Publish(events.CacheMiss{Key: k.String()})
}
