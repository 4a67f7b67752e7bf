package scene

import (
	"context"
	"fmt"
	"sync"

	"github.com/spaghettifunk/anima-avatar/engine/containers"
	"github.com/spaghettifunk/anima-avatar/engine/core"
)

// Graph is the scene-graph capability the avatar pipeline drives.
type Graph interface {
	SetActive(n *Node, active bool)
	// Destroy is deferred: the node stays in its parent's child list until
	// pending removals are processed.
	Destroy(n *Node)
	SetParent(child, parent *Node, worldPositionStays bool) error
	// AwaitPendingRemovals returns once every destruction requested so far has
	// been processed. Re-parenting onto nodes mid-destruction is not allowed,
	// so callers put this barrier between the two.
	AwaitPendingRemovals(ctx context.Context) error
}

type WorldConfig struct {
	// Initial capacity of the pending destruction queue.
	PendingCapacity int
}

// World is the in-process Graph implementation. Structural changes take the
// tree lock; mu only guards the pending queue and counters.
type World struct {
	mu      sync.Mutex
	pending *containers.RingQueue[*Node]

	destroyedCount uint64
}

func NewWorld(config *WorldConfig) *World {
	capacity := 64
	if config != nil && config.PendingCapacity > 0 {
		capacity = config.PendingCapacity
	}
	return &World{
		pending: containers.NewRingQueue[*Node](capacity),
	}
}

// CreateNode creates a node attached to parent (nil creates a root).
func (w *World) CreateNode(name string, parent *Node) (*Node, error) {
	n := NewNode(name)
	if parent == nil {
		return n, nil
	}
	if err := w.SetParent(n, parent, false); err != nil {
		return nil, err
	}
	return n, nil
}

func (w *World) SetActive(n *Node, active bool) {
	if n == nil {
		return
	}
	treeMu.Lock()
	defer treeMu.Unlock()
	n.activeSelf = active
}

func (w *World) Destroy(n *Node) {
	if n == nil {
		return
	}
	treeMu.Lock()
	defer treeMu.Unlock()
	if n.destroyed || n.pendingDestroy {
		return
	}
	n.pendingDestroy = true

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending.Enqueue(n)
}

func (w *World) SetParent(child, parent *Node, worldPositionStays bool) error {
	if child == nil {
		return fmt.Errorf("set parent: %w: nil child", core.ErrInvalidHierarchy)
	}
	treeMu.Lock()
	defer treeMu.Unlock()

	if child.destroyed || child.pendingDestroy {
		return fmt.Errorf("set parent of '%s': %w", child.name, core.ErrNodeDestroyed)
	}
	if parent != nil {
		if parent.destroyed || parent.pendingDestroy {
			return fmt.Errorf("set parent of '%s' to '%s': %w", child.name, parent.name, core.ErrNodeDestroyed)
		}
		if child.isAncestorOf(parent) {
			return fmt.Errorf("set parent of '%s' to '%s': %w: would create a cycle", child.name, parent.name, core.ErrInvalidHierarchy)
		}
	}

	if child.parent != nil {
		child.parent.removeChild(child)
	}
	child.parent = parent
	if parent == nil {
		child.Transform.SetParent(nil, worldPositionStays)
		return nil
	}
	parent.children = append(parent.children, child)
	child.Transform.SetParent(parent.Transform, worldPositionStays)
	return nil
}

func (w *World) AwaitPendingRemovals(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.Update()
	return nil
}

// Update processes pending destructions and returns how many were removed.
func (w *World) Update() int {
	treeMu.Lock()
	defer treeMu.Unlock()
	w.mu.Lock()
	defer w.mu.Unlock()

	removed := 0
	for !w.pending.IsEmpty() {
		n, err := w.pending.Dequeue()
		if err != nil {
			break
		}
		if n.destroyed {
			continue
		}
		if n.parent != nil {
			n.parent.removeChild(n)
			n.parent = nil
			n.Transform.Parent = nil
		}
		n.walkLocked(func(c *Node) {
			c.destroyed = true
			c.pendingDestroy = false
		})
		removed++
	}
	w.destroyedCount += uint64(removed)
	return removed
}

func (w *World) PendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending.Len()
}

func (w *World) DestroyedCount() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.destroyedCount
}
