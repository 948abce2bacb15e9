// Package scene provides a minimal scene tree that drives the lifecycle
// signals of the objects attached to it.
//
// Attaching a node activates it and detaching deactivates it. The node's
// signals fire only after the tree has finished applying the change and with
// the tree lock released, so anything woken by a signal sees the new tree state.
package scene

import (
	"sync"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/ajitpratap0/scenepool/pkg/errors"
	"github.com/ajitpratap0/scenepool/pkg/lifecycle"
	"github.com/ajitpratap0/scenepool/pkg/logger"
)

// Node is anything the tree can attach.
type Node interface {
	lifecycle.Activatable
}

// Tree is a flat scene tree. It is safe for concurrent use.
type Tree struct {
	logger *zap.Logger

	mu       sync.Mutex
	children []Node
	index    map[Node]int
	pending  *queue.Queue // nodes queued by QueueDetach, FIFO

	attaches uint64
	detaches uint64
}

// Option configures a Tree.
type Option func(*Tree)

// WithLogger sets the tree logger. Defaults to the global logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tree) {
		t.logger = l
	}
}

// NewTree creates an empty tree.
func NewTree(opts ...Option) *Tree {
	t := &Tree{
		index:   make(map[Node]int),
		pending: queue.New(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = logger.Get()
	}
	t.logger = t.logger.With(zap.String("component", "scene"))
	return t
}

// Attach adds n to the tree and activates it.
func (t *Tree) Attach(n Node) error {
	t.mu.Lock()
	if _, ok := t.index[n]; ok {
		t.mu.Unlock()
		return errors.New(errors.ErrorTypeConflict, "node already attached")
	}
	t.index[n] = len(t.children)
	t.children = append(t.children, n)
	t.attaches++
	t.mu.Unlock()

	n.Activate()
	return nil
}

// Detach removes n from the tree and deactivates it.
func (t *Tree) Detach(n Node) error {
	t.mu.Lock()
	removed := t.remove(n)
	t.mu.Unlock()

	if !removed {
		return errors.New(errors.ErrorTypeNotFound, "node not attached")
	}
	n.Deactivate()
	return nil
}

// QueueDetach schedules n for removal on the next Flush. Queuing a node that
// is not attached by the time of the flush is harmless.
func (t *Tree) QueueDetach(n Node) {
	t.mu.Lock()
	t.pending.Add(n)
	t.mu.Unlock()
}

// Flush applies queued detaches in the order they were queued and returns
// how many nodes were removed.
func (t *Tree) Flush() int {
	t.mu.Lock()
	var removed []Node
	for t.pending.Length() > 0 {
		n := t.pending.Remove().(Node)
		if t.remove(n) {
			removed = append(removed, n)
		}
	}
	t.mu.Unlock()

	for _, n := range removed {
		n.Deactivate()
	}
	if len(removed) > 0 {
		t.logger.Debug("flushed queued detaches", zap.Int("removed", len(removed)))
	}
	return len(removed)
}

// Contains reports whether n is attached.
func (t *Tree) Contains(n Node) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.index[n]
	return ok
}

// Len returns the number of attached nodes.
func (t *Tree) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.children)
}

// Pending returns the number of queued detaches.
func (t *Tree) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending.Length()
}

// Each calls fn for every attached node until fn returns false. Iteration
// order is unspecified. fn runs on a snapshot and may modify the tree.
func (t *Tree) Each(fn func(Node) bool) {
	t.mu.Lock()
	snapshot := make([]Node, len(t.children))
	copy(snapshot, t.children)
	t.mu.Unlock()

	for _, n := range snapshot {
		if !fn(n) {
			return
		}
	}
}

// Counts returns the total number of attaches and detaches applied.
func (t *Tree) Counts() (attaches, detaches uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attaches, t.detaches
}

// remove requires t.mu.
func (t *Tree) remove(n Node) bool {
	i, ok := t.index[n]
	if !ok {
		return false
	}
	last := len(t.children) - 1
	if i != last {
		moved := t.children[last]
		t.children[i] = moved
		t.index[moved] = i
	}
	t.children[last] = nil
	t.children = t.children[:last]
	delete(t.index, n)
	t.detaches++
	return true
}
