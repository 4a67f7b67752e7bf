package scene

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/spaghettifunk/anima-avatar/engine/core"
	"github.com/spaghettifunk/anima-avatar/engine/math"
)

type NodeKind uint8

const (
	// A plain transform: bones, groups, scaffolds.
	NodeKindTransform NodeKind = iota
	// A node that renders a mesh.
	NodeKindMesh
	// A node that renders a mesh deformed by a skin.
	NodeKindSkinnedMesh
)

func (k NodeKind) String() string {
	switch k {
	case NodeKindTransform:
		return "transform"
	case NodeKindMesh:
		return "mesh"
	case NodeKindSkinnedMesh:
		return "skinned_mesh"
	default:
		return "unknown"
	}
}

// InvalidIndex marks a missing mesh or skin reference.
const InvalidIndex = -1

// treeMu guards the links and flags of every node: parent, children,
// activity and destruction state. Graph mutations hold it for writing and the
// accessors below for reading, so the engine tick and the job worker can share
// a tree.
var treeMu sync.RWMutex

/**
 * @brief A node in a scene graph. Structural changes (parenting, destruction,
 * activation) go through a Graph so they are serialized and deferred the same
 * way for every caller; the accessors here are read-only.
 */
type Node struct {
	id        uuid.UUID
	name      string
	Kind      NodeKind
	Mesh      int
	Skin      int
	Transform *math.Transform

	parent         *Node
	children       []*Node
	activeSelf     bool
	pendingDestroy bool
	destroyed      bool
}

func NewNode(name string) *Node {
	return &Node{
		id:         uuid.New(),
		name:       name,
		Kind:       NodeKindTransform,
		Mesh:       InvalidIndex,
		Skin:       InvalidIndex,
		Transform:  math.TransformCreate(),
		activeSelf: true,
	}
}

func (n *Node) ID() uuid.UUID {
	return n.id
}

func (n *Node) Name() string {
	return n.name
}

func (n *Node) Parent() *Node {
	treeMu.RLock()
	defer treeMu.RUnlock()
	return n.parent
}

func (n *Node) ChildCount() int {
	if n == nil {
		return 0
	}
	treeMu.RLock()
	defer treeMu.RUnlock()
	return len(n.children)
}

// Child returns nil when i is out of range.
func (n *Node) Child(i int) *Node {
	if n == nil {
		return nil
	}
	treeMu.RLock()
	defer treeMu.RUnlock()
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

func (n *Node) Children() []*Node {
	treeMu.RLock()
	defer treeMu.RUnlock()
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// SiblingIndex is -1 for a root node.
func (n *Node) SiblingIndex() int {
	treeMu.RLock()
	defer treeMu.RUnlock()
	if n.parent == nil {
		return -1
	}
	for i, c := range n.parent.children {
		if c == n {
			return i
		}
	}
	return -1
}

func (n *Node) ActiveSelf() bool {
	treeMu.RLock()
	defer treeMu.RUnlock()
	return n.activeSelf
}

func (n *Node) ActiveInHierarchy() bool {
	treeMu.RLock()
	defer treeMu.RUnlock()
	for p := n; p != nil; p = p.parent {
		if !p.activeSelf {
			return false
		}
	}
	return true
}

// IsDestroyed is true once a pending destruction has been processed.
func (n *Node) IsDestroyed() bool {
	treeMu.RLock()
	defer treeMu.RUnlock()
	return n.destroyed
}

func (n *Node) IsPendingDestroy() bool {
	treeMu.RLock()
	defer treeMu.RUnlock()
	return n.pendingDestroy
}

// Walk visits n and its descendants depth-first, parents before children.
// Returning false from fn skips the subtree below that node. fn runs without
// the tree lock held, on a copy of each child list.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children() {
		c.Walk(fn)
	}
}

// walkLocked is Walk for callers already holding treeMu.
func (n *Node) walkLocked(fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		c.walkLocked(fn)
	}
}

// Find returns the first descendant (or n itself) with the given name.
func (n *Node) Find(name string) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if found != nil {
			return false
		}
		if c.name == name {
			found = c
			return false
		}
		return true
	})
	return found
}

// AppendChild links a detached child while building a new subtree, e.g. in a
// model loader. Nodes that are already live must be moved through a Graph.
func (n *Node) AppendChild(child *Node) error {
	treeMu.Lock()
	defer treeMu.Unlock()
	if child == nil || child.parent != nil {
		return fmt.Errorf("append child: %w: child is nil or already attached", core.ErrInvalidHierarchy)
	}
	if child.isAncestorOf(n) {
		return fmt.Errorf("append child '%s' to '%s': %w: would create a cycle", child.name, n.name, core.ErrInvalidHierarchy)
	}
	child.parent = n
	child.Transform.Parent = n.Transform
	n.children = append(n.children, child)
	return nil
}

func (n *Node) isAncestorOf(other *Node) bool {
	for p := other; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}

func (n *Node) removeChild(child *Node) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return
		}
	}
}
