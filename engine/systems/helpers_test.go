package systems

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/anima-avatar/engine/assets"
	"github.com/spaghettifunk/anima-avatar/engine/core"
	"github.com/spaghettifunk/anima-avatar/engine/rig"
	"github.com/spaghettifunk/anima-avatar/engine/scene"
	"github.com/spaghettifunk/anima-avatar/engine/state"
)

// humanoidNodes are enough bones for the humanoid mapper to succeed.
var humanoidNodes = []string{
	"Hips", "Spine", "Head",
	"LeftArm", "LeftForeArm", "LeftHand",
	"RightArm", "RightForeArm", "RightHand",
	"LeftUpLeg", "LeftLeg", "LeftFoot",
	"RightUpLeg", "RightLeg", "RightFoot",
}

// fakeFetcher attaches a scaffold with the configured children under the
// parent, the way the asset manager does.
type fakeFetcher struct {
	world *scene.World

	mu        sync.Mutex
	locations []string
	children  []string
	// Flat humanoid skeleton below the first child.
	skeleton bool
	err   error
	// Runs before anything is attached; a non-nil error aborts the load.
	hook func(ctx context.Context) error
}

func (ff *fakeFetcher) Load(ctx context.Context, location string, parent *scene.Node) error {
	ff.mu.Lock()
	ff.locations = append(ff.locations, location)
	hook, err := ff.hook, ff.err
	ff.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	if err != nil {
		return err
	}
	scaffold, err := ff.world.CreateNode("Scene", parent)
	if err != nil {
		return err
	}
	for i, name := range ff.children {
		n, err := ff.world.CreateNode(name, scaffold)
		if err != nil {
			return err
		}
		if i == 0 && ff.skeleton {
			for _, bone := range humanoidNodes {
				if _, err := ff.world.CreateNode(bone, n); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (ff *fakeFetcher) Request(ctx context.Context, uri *url.URL) (*assets.Download, error) {
	return nil, errors.New("not implemented")
}

func (ff *fakeFetcher) Locations() []string {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return append([]string(nil), ff.locations...)
}

type fakeMapper struct {
	mu     sync.Mutex
	err    error
	builds int
}

func (fm *fakeMapper) Build(root *scene.Node) (*rig.BoneMapping, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.builds++
	if fm.err != nil {
		return nil, fm.err
	}
	return &rig.BoneMapping{Bones: map[rig.HumanBone]*scene.Node{}}, nil
}

func (fm *fakeMapper) Builds() int {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.builds
}

// recordingGraph logs every structural call before delegating to a World.
type recordingGraph struct {
	*scene.World

	mu  sync.Mutex
	ops []string
}

func (rg *recordingGraph) record(op string) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	rg.ops = append(rg.ops, op)
}

func (rg *recordingGraph) SetActive(n *scene.Node, active bool) {
	rg.record(fmt.Sprintf("active %s %t", n.Name(), active))
	rg.World.SetActive(n, active)
}

func (rg *recordingGraph) Destroy(n *scene.Node) {
	rg.record("destroy " + n.Name())
	rg.World.Destroy(n)
}

func (rg *recordingGraph) SetParent(child, parent *scene.Node, worldPositionStays bool) error {
	rg.record(fmt.Sprintf("parent %s -> %s", child.Name(), parent.Name()))
	return rg.World.SetParent(child, parent, worldPositionStays)
}

func (rg *recordingGraph) AwaitPendingRemovals(ctx context.Context) error {
	rg.record("await")
	return rg.World.AwaitPendingRemovals(ctx)
}

func (rg *recordingGraph) Ops() []string {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	return append([]string(nil), rg.ops...)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []core.EventContext
}

func (er *eventRecorder) onEvent(context core.EventContext) bool {
	er.mu.Lock()
	defer er.mu.Unlock()
	er.events = append(er.events, context)
	return false
}

func (er *eventRecorder) Events() []core.EventContext {
	er.mu.Lock()
	defer er.mu.Unlock()
	return append([]core.EventContext(nil), er.events...)
}

// harness wires the systems the way the engine does, on in-memory backends.
type harness struct {
	world     *scene.World
	container *scene.Node
	rig       *rig.Rig
	fixed     []*scene.Node
	events    *core.EventBus
	store     *state.MemoryStore
	fetcher   *fakeFetcher
	mapper    *fakeMapper
	loaded    *eventRecorder
	moved     *eventRecorder
	manager   *SystemManager
}

func newHarness(t *testing.T, mapper rig.SkeletonMapper) *harness {
	t.Helper()
	world := scene.NewWorld(nil)
	container, err := world.CreateNode("AvatarContainer", nil)
	require.NoError(t, err)
	rigRoot, err := world.CreateNode("Rig", nil)
	require.NoError(t, err)
	camera, err := world.CreateNode("CameraRig", rigRoot)
	require.NoError(t, err)

	h := &harness{
		world:     world,
		container: container,
		rig:       rig.New(rigRoot, true),
		fixed:     []*scene.Node{camera},
		events:    core.NewEventBus(),
		store:     state.NewMemoryStore(),
		fetcher:   &fakeFetcher{world: world, children: []string{"Armature", "Body"}},
		mapper:    &fakeMapper{},
		loaded:    &eventRecorder{},
		moved:     &eventRecorder{},
	}
	if mapper == nil {
		mapper = h.mapper
	}

	sm, err := NewSystemManager(&SystemManagerConfig{
		Transplant: &TransplantSystemConfig{ClearRootFromIndex: 1, WorldPositionStays: true},
	}, SystemManagerDeps{
		Fetcher:   h.fetcher,
		Graph:     world,
		Container: container,
		Rig:       h.rig,
		Mapper:    mapper,
		Store:     h.store,
		Events:    h.events,
	})
	require.NoError(t, err)
	require.NoError(t, sm.Initialize(context.Background()))
	t.Cleanup(func() { _ = sm.Shutdown() })
	h.manager = sm

	require.True(t, h.events.Register(core.EVENT_CODE_AVATAR_LOADED, h.loaded, h.loaded.onEvent))
	require.True(t, h.events.Register(core.EVENT_CODE_AVATAR_TRANSPLANTED, h.moved, h.moved.onEvent))
	return h
}

func names(nodes []*scene.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Name())
	}
	return out
}
