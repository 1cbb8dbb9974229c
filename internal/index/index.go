// Package index maintains the per-remote node index: a monotonic
// name-to-node map fed by the streaming document parser, with asynchronous
// resolution so pipelines can start before indexing finishes.
package index

import (
	"errors"
	"sync"

	"github.com/tonykolomeytsev/figx/internal/figma"
)

// ErrNotFound is delivered to waiters whose name never appeared before
// the document ended. Callers attach manifest coordinates on top.
var ErrNotFound = errors.New("node not found in remote index")

// Resolution is the outcome of one Resolve call.
type Resolution struct {
	Node figma.Node
	Err  error
}

// Index is a single-writer, many-reader map from node name to node.
// The writer is the parser goroutine; a name once resolved never changes
// or disappears within a run.
type Index struct {
	mu       sync.Mutex
	nodes    map[string]figma.Node
	order    []string
	waiters  map[string][]chan Resolution
	complete bool
	failure  error
}

func New() *Index {
	return &Index{
		nodes:   make(map[string]figma.Node, 1024),
		waiters: make(map[string][]chan Resolution),
	}
}

// Add inserts a discovered node. The first id wins; later nodes with the
// same name are ignored, which keeps the index monotonic.
func (i *Index) Add(n figma.Node) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.complete {
		return
	}
	if _, exists := i.nodes[n.Name]; exists {
		return
	}
	i.nodes[n.Name] = n
	i.order = append(i.order, n.Name)
	for _, ch := range i.waiters[n.Name] {
		ch <- Resolution{Node: n}
	}
	delete(i.waiters, n.Name)
}

// Resolve returns a channel that receives the node as soon as the parser
// encounters it, or ErrNotFound when the document ends without it. The
// channel is buffered; the result may be read at any later time.
func (i *Index) Resolve(name string) <-chan Resolution {
	ch := make(chan Resolution, 1)
	i.mu.Lock()
	defer i.mu.Unlock()
	if n, ok := i.nodes[name]; ok {
		ch <- Resolution{Node: n}
		return ch
	}
	if i.complete {
		ch <- Resolution{Err: i.finalErrLocked()}
		return ch
	}
	i.waiters[name] = append(i.waiters[name], ch)
	return ch
}

// TryResolve is the non-blocking form.
func (i *Index) TryResolve(name string) (figma.Node, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	n, ok := i.nodes[name]
	return n, ok
}

// MarkComplete signals that no further resolutions will arrive. Pending
// waiters are woken with failure when the parser died, ErrNotFound
// otherwise.
func (i *Index) MarkComplete(failure error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.complete {
		return
	}
	i.complete = true
	i.failure = failure
	for name, chans := range i.waiters {
		for _, ch := range chans {
			ch <- Resolution{Err: i.finalErrLocked()}
		}
		delete(i.waiters, name)
	}
}

func (i *Index) finalErrLocked() error {
	if i.failure != nil {
		return i.failure
	}
	return ErrNotFound
}

// Complete reports whether the parser has finished.
func (i *Index) Complete() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.complete
}

// Err returns the parser failure, if any.
func (i *Index) Err() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.failure
}

// Len returns the number of indexed nodes.
func (i *Index) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.nodes)
}

// Snapshot returns the indexed nodes in discovery order.
func (i *Index) Snapshot() []figma.Node {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]figma.Node, 0, len(i.order))
	for _, name := range i.order {
		out = append(out, i.nodes[name])
	}
	return out
}
