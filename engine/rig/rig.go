package rig

import (
	"sync"

	"github.com/spaghettifunk/anima-avatar/engine/scene"
)

/**
 * @brief The permanent, animatable host body. The root node is never destroyed;
 * transplanted avatars are attached below it and the bone mapping is rebuilt
 * from its children after every transplant.
 */
type Rig struct {
	root *scene.Node
	// When set the rig is snapped back to its spawn pose before each transplant.
	ApplyRootMotion bool

	mu      sync.RWMutex
	mapping *BoneMapping
}

func New(root *scene.Node, applyRootMotion bool) *Rig {
	return &Rig{
		root:            root,
		ApplyRootMotion: applyRootMotion,
	}
}

func (r *Rig) Root() *scene.Node {
	return r.root
}

func (r *Rig) Mapping() *BoneMapping {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mapping
}

// SetMapping replaces the current mapping. nil leaves the rig un-animatable.
func (r *Rig) SetMapping(m *BoneMapping) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mapping = m
}

func (r *Rig) IsAnimatable() bool {
	return r.Mapping() != nil
}
