package systems

import (
	"context"
	"time"

	"github.com/spaghettifunk/anima-avatar/engine/assets"
	"github.com/spaghettifunk/anima-avatar/engine/core"
	"github.com/spaghettifunk/anima-avatar/engine/rig"
	"github.com/spaghettifunk/anima-avatar/engine/scene"
	"github.com/spaghettifunk/anima-avatar/engine/state"
)

type SystemManagerConfig struct {
	Transplant *TransplantSystemConfig
	// Start URL used when the session has none stored.
	DefaultURL string
	// Re-fetch when the local avatar file changes.
	Watch         bool
	WatchDebounce time.Duration
	// Capacity of the job queue. Jobs run on a single worker either way.
	JobQueueSize int
}

// SystemManagerDeps are the collaborators the systems are built on.
type SystemManagerDeps struct {
	Fetcher   assets.Fetcher
	Graph     scene.Graph
	Container *scene.Node
	Rig       *rig.Rig
	Mapper    rig.SkeletonMapper
	Store     state.Store
	Events    *core.EventBus
}

type SystemManager struct {
	JobSystem        *JobSystem
	FetchSystem      *FetchSystem
	TransplantSystem *TransplantSystem
	BootstrapSystem  *BootstrapSystem
	// nil unless watching is enabled.
	WatchSystem *WatchSystem
}

func NewSystemManager(config *SystemManagerConfig, deps SystemManagerDeps) (*SystemManager, error) {
	if config == nil {
		config = &SystemManagerConfig{}
	}
	queueSize := config.JobQueueSize
	if queueSize <= 0 {
		queueSize = 16
	}
	// one worker: fetches never overlap
	js, err := NewJobSystem(1, queueSize)
	if err != nil {
		return nil, err
	}

	fs, err := NewFetchSystem(deps.Fetcher, deps.Graph, deps.Container, deps.Store, deps.Events, js)
	if err != nil {
		_ = js.Shutdown()
		return nil, err
	}
	ts, err := NewTransplantSystem(config.Transplant, deps.Graph, deps.Rig, deps.Mapper, deps.Events)
	if err != nil {
		_ = js.Shutdown()
		return nil, err
	}
	bs, err := NewBootstrapSystem(deps.Store, fs, config.DefaultURL)
	if err != nil {
		_ = js.Shutdown()
		return nil, err
	}

	sm := &SystemManager{
		JobSystem:        js,
		FetchSystem:      fs,
		TransplantSystem: ts,
		BootstrapSystem:  bs,
	}
	if config.Watch {
		debounce := config.WatchDebounce
		if debounce <= 0 {
			debounce = 250 * time.Millisecond
		}
		ws, err := NewWatchSystem(debounce, fs, deps.Events)
		if err != nil {
			_ = js.Shutdown()
			return nil, err
		}
		sm.WatchSystem = ws
	}
	return sm, nil
}

// Initialize subscribes the event driven systems. ctx bounds the work they do.
func (sm *SystemManager) Initialize(ctx context.Context) error {
	if err := sm.TransplantSystem.Initialize(ctx); err != nil {
		return err
	}
	if sm.WatchSystem != nil {
		if err := sm.WatchSystem.Initialize(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown stops producers before consumers: no new fetches are scheduled, the
// in-flight one is cancelled, then the listeners unsubscribe.
func (sm *SystemManager) Shutdown() error {
	if err := sm.BootstrapSystem.Shutdown(); err != nil {
		return err
	}
	if sm.WatchSystem != nil {
		if err := sm.WatchSystem.Shutdown(); err != nil {
			return err
		}
	}
	if err := sm.JobSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.TransplantSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.FetchSystem.Shutdown(); err != nil {
		return err
	}
	return nil
}
