package engine

import (
	"github.com/spaghettifunk/anima-avatar/engine/rig"
	"github.com/spaghettifunk/anima-avatar/engine/scene"
	"github.com/spaghettifunk/anima-avatar/engine/systems"
)

// HostScene is what a game hands the engine at boot: the permanent rig and
// the container avatars are loaded into.
type HostScene struct {
	Rig       *rig.Rig
	Container *scene.Node
	// Optional; the humanoid name mapper is used when nil.
	Mapper rig.SkeletonMapper
}

type Game struct {
	ApplicationConfig *ApplicationConfig
	SystemManager     *systems.SystemManager
	State             interface{}
	FnBoot            Boot
	FnInitialize      Initialize
	FnUpdate          Update
	FnShutdown        Shutdown
}

type Boot func(world *scene.World) (*HostScene, error)
type Initialize func() error
type Update func(deltaTime float64) error
type Shutdown func() error
