package systems

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/anima-avatar/engine/core"
	"github.com/spaghettifunk/anima-avatar/engine/math"
	"github.com/spaghettifunk/anima-avatar/engine/rig"
	"github.com/spaghettifunk/anima-avatar/engine/scene"
)

/** @brief The transplant system configuration. */
type TransplantSystemConfig struct {
	/**
	 * @brief Rig children below this index are permanent (camera rig, anchors);
	 * the rest are destroyed before every transplant.
	 */
	ClearRootFromIndex int
	/** @brief Keep the world transform of moved nodes instead of their local one. */
	WorldPositionStays bool
}

/**
 * @brief Moves a freshly loaded avatar onto the rig and rebuilds the bone
 * mapping. It runs as a listener of the loaded event.
 */
type TransplantSystem struct {
	config *TransplantSystemConfig
	graph  scene.Graph
	rig    *rig.Rig
	mapper rig.SkeletonMapper
	events *core.EventBus

	mutex       sync.Mutex
	ctx         context.Context
	initialized bool
}

func NewTransplantSystem(config *TransplantSystemConfig, graph scene.Graph, r *rig.Rig, mapper rig.SkeletonMapper, events *core.EventBus) (*TransplantSystem, error) {
	if config == nil {
		config = &TransplantSystemConfig{ClearRootFromIndex: 1, WorldPositionStays: true}
	}
	if config.ClearRootFromIndex < 0 {
		err := fmt.Errorf("func NewTransplantSystem - config.ClearRootFromIndex must be >= 0")
		core.LogError("%s", err)
		return nil, err
	}
	if graph == nil || r == nil || r.Root() == nil || mapper == nil || events == nil {
		return nil, fmt.Errorf("func NewTransplantSystem - graph, rig, mapper and event bus are required")
	}
	return &TransplantSystem{
		config: config,
		graph:  graph,
		rig:    r,
		mapper: mapper,
		events: events,
		ctx:    context.Background(),
	}, nil
}

// Initialize subscribes to the loaded event. ctx bounds every transplant the
// listener runs.
func (ts *TransplantSystem) Initialize(ctx context.Context) error {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()
	if ts.initialized {
		return nil
	}
	if ctx != nil {
		ts.ctx = ctx
	}
	if !ts.events.Register(core.EVENT_CODE_AVATAR_LOADED, ts, ts.onAvatarLoaded) {
		return fmt.Errorf("failed to register transplant listener")
	}
	ts.initialized = true
	return nil
}

func (ts *TransplantSystem) Shutdown() error {
	ts.mutex.Lock()
	defer ts.mutex.Unlock()
	if !ts.initialized {
		return nil
	}
	ts.events.Unregister(core.EVENT_CODE_AVATAR_LOADED, ts)
	ts.initialized = false
	return nil
}

func (ts *TransplantSystem) Rig() *rig.Rig {
	return ts.rig
}

/**
 * @brief Moves the model loaded under downloaded onto the rig.
 * Rig children from ClearRootFromIndex onward are destroyed first, then every
 * child of the loaded scene root is re-parented to the rig in source order and
 * the scaffold is destroyed. The bone mapping is always rebuilt from scratch;
 * if that fails the rig is left without one.
 * @param downloaded The container the model was loaded into.
 */
func (ts *TransplantSystem) Transplant(ctx context.Context, downloaded *scene.Node) error {
	if downloaded == nil {
		return fmt.Errorf("transplant: %w: nil scene", core.ErrInvalidHierarchy)
	}
	rigRoot := ts.rig.Root()

	if ts.rig.ApplyRootMotion {
		rigRoot.Transform.SetPositionRotation(math.NewVec3Zero(), math.NewQuatIdentity())
	}

	ts.graph.SetActive(downloaded, false)

	children := rigRoot.Children()
	from := math.Clamp(ts.config.ClearRootFromIndex, 0, len(children))
	for _, c := range children[from:] {
		ts.graph.Destroy(c)
	}
	if err := ts.graph.AwaitPendingRemovals(ctx); err != nil {
		return err
	}
	// the old mapping points at destroyed bones
	ts.rig.SetMapping(nil)

	root := downloaded.Child(0)
	if root == nil {
		core.LogWarn("downloaded avatar '%s' has no root object, nothing to transplant", downloaded.Name())
		return core.ErrNoTransplantRoot
	}
	if root.ChildCount() == 0 {
		core.LogWarn("downloaded avatar '%s' has an empty scene '%s', nothing to transplant", downloaded.Name(), root.Name())
		ts.graph.Destroy(root)
		return fmt.Errorf("scene '%s' is empty: %w", root.Name(), core.ErrNoTransplantRoot)
	}

	for root.ChildCount() > 0 {
		child := root.Child(0)
		if err := ts.graph.SetParent(child, rigRoot, ts.config.WorldPositionStays); err != nil {
			return fmt.Errorf("move '%s' onto rig: %w", child.Name(), err)
		}
	}

	mapping, mapErr := ts.mapper.Build(rigRoot)
	if mapErr == nil {
		ts.rig.SetMapping(mapping)
	}

	if err := ts.graph.AwaitPendingRemovals(ctx); err != nil {
		return err
	}
	ts.graph.Destroy(root)

	if mapErr != nil {
		if errors.Is(mapErr, core.ErrMappingFailed) {
			return mapErr
		}
		return fmt.Errorf("%w: %w", core.ErrMappingFailed, mapErr)
	}
	core.LogDebug("transplanted avatar: %d rig children, %d bones mapped", rigRoot.ChildCount(), mapping.Len())
	return nil
}

// onAvatarLoaded never lets a failure escape into the fetch that fired the event.
func (ts *TransplantSystem) onAvatarLoaded(context core.EventContext) (handled bool) {
	defer func() {
		if r := recover(); r != nil {
			core.LogError("avatar transplant panicked: %v", r)
			handled = false
		}
	}()

	downloaded, ok := context.Data.(*scene.Node)
	if !ok || downloaded == nil {
		core.LogError("avatar loaded event carried %T, expected a scene node", context.Data)
		return false
	}

	ts.mutex.Lock()
	ctx := ts.ctx
	ts.mutex.Unlock()

	if err := ts.Transplant(ctx, downloaded); err != nil {
		core.LogError("failed to transplant avatar '%s': %s", downloaded.Name(), err)
		return false
	}

	ts.events.Fire(core.EventContext{
		Type:   core.EVENT_CODE_AVATAR_TRANSPLANTED,
		Sender: ts,
		Data:   ts.rig.Mapping(),
	})
	return false
}
