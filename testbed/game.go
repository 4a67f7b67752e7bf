package testbed

import (
	"fmt"

	"github.com/spaghettifunk/anima-avatar/engine"
	"github.com/spaghettifunk/anima-avatar/engine/core"
	"github.com/spaghettifunk/anima-avatar/engine/math"
	"github.com/spaghettifunk/anima-avatar/engine/rig"
	"github.com/spaghettifunk/anima-avatar/engine/scene"
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	world     *scene.World
	host      *engine.HostScene
	camera    *scene.Node
	animated  bool
	rigBones  int
	totalTime float64
}

func NewTestGame(config *engine.ApplicationConfig) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: config,
			State:             &gameState{},
		},
	}

	tg.FnBoot = tg.Boot
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnShutdown = tg.Shutdown

	return tg
}

/**
 * @brief Builds the host scene: an avatar rig whose first child is a camera
 * rig that survives every avatar swap, and an empty container the fetched
 * models are loaded into.
 */
func (g *TestGame) Boot(world *scene.World) (*engine.HostScene, error) {
	core.LogInfo("booting testbed...")
	state := g.State.(*gameState)

	container, err := world.CreateNode("AvatarContainer", nil)
	if err != nil {
		return nil, err
	}
	root, err := world.CreateNode("Avatar", nil)
	if err != nil {
		return nil, err
	}

	// Fixed children; keep avatar.clear_root_from_index in sync with their count.
	cameraRig, err := world.CreateNode("CameraRig", root)
	if err != nil {
		return nil, err
	}
	camera, err := world.CreateNode("MainCamera", cameraRig)
	if err != nil {
		return nil, err
	}
	cameraRig.Transform.SetPosition(math.NewVec3(0, 1.6, 0))
	yaw := math.NewQuatFromAxisAngle(math.NewVec3(0, 1, 0), math.DegToRad(180), true)
	pitch := math.NewQuatFromAxisAngle(math.NewVec3(1, 0, 0), math.DegToRad(-8), true)
	camera.Transform.SetPositionRotation(math.NewVec3(0, 0, 2.5), yaw.Mul(pitch).Normalize())

	if idx := g.ApplicationConfig.Avatar.ClearRootFromIndex; idx < root.ChildCount() {
		core.LogWarn("avatar.clear_root_from_index=%d will clear fixed rig children", idx)
	}

	core.LogDebug("rig '%s' (%s) ready, camera at %+v", root.Name(), root.ID(), camera.Transform.WorldPosition())
	state.world = world
	state.camera = camera
	state.host = &engine.HostScene{
		Rig:       rig.New(root, g.ApplicationConfig.Avatar.ApplyRootMotion),
		Container: container,
	}
	return state.host, nil
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")

	if g.SystemManager == nil {
		return fmt.Errorf("the engine is not yet initialized with all the system managers")
	}
	state := g.State.(*gameState)
	if !state.camera.ActiveInHierarchy() {
		core.LogWarn("camera '%s' is inactive", state.camera.Name())
	}
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)
	state.totalTime += deltaTime

	m := state.host.Rig.Mapping()
	animated := m != nil
	if animated == state.animated && m.Len() == state.rigBones {
		return nil
	}
	state.animated = animated
	state.rigBones = m.Len()
	if animated {
		hips := m.Bone(rig.Hips)
		core.LogInfo("avatar ready: %d bones mapped, hips '%s', %d rig children, container active=%t",
			m.Len(), hips.Name(), state.host.Rig.Root().ChildCount(), state.host.Container.ActiveSelf())
	} else {
		core.LogInfo("avatar is not animatable")
	}
	return nil
}

func (g *TestGame) Shutdown() error {
	state := g.State.(*gameState)
	metrics := g.SystemManager.FetchSystem.Metrics()
	core.LogInfo("shutting down after %.1fs: %d fetch(es), %d succeeded, avg %s, animatable=%t",
		state.totalTime, metrics.Attempts, metrics.Successes, metrics.AverageDuration, state.host.Rig.IsAnimatable())
	core.LogDebug("scene: %d node(s) destroyed, %d pending", state.world.DestroyedCount(), state.world.PendingCount())
	return nil
}
