package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/anima-avatar/engine/assets"
	"github.com/spaghettifunk/anima-avatar/engine/core"
	"github.com/spaghettifunk/anima-avatar/engine/rig"
	"github.com/spaghettifunk/anima-avatar/engine/scene"
	"github.com/spaghettifunk/anima-avatar/engine/state"
	"github.com/spaghettifunk/anima-avatar/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine has released everything
	EngineStageShutdown
)

type Engine struct {
	mutex        sync.Mutex
	currentStage Stage
	gameInstance *Game
	config       *ApplicationConfig

	world         *scene.World
	events        *core.EventBus
	store         state.Store
	assetManager  *assets.AssetManager
	systemManager *systems.SystemManager
	host          *HostScene

	clock      *core.Clock
	lastTime   time.Duration
	tickQueued atomic.Bool

	ctx     context.Context
	cancel  context.CancelFunc
	runDone chan struct{}
}

/**
 * @brief Boots the engine: opens the session store, lets the game build its
 * host scene and wires the avatar systems around it.
 */
func New(g *Game) (*Engine, error) {
	if g == nil || g.FnBoot == nil {
		return nil, fmt.Errorf("func New - a game with a boot function is required")
	}
	config := g.ApplicationConfig
	if config == nil {
		config = DefaultApplicationConfig()
		g.ApplicationConfig = config
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	core.SetLogLevel(core.ParseLogLevel(config.Application.LogLevel))

	e := &Engine{
		currentStage: EngineStageBooting,
		gameInstance: g,
		config:       config,
		world:        scene.NewWorld(nil),
		events:       core.NewEventBus(),
		clock:        core.NewClock(),
	}

	store, err := state.Open(config.State)
	if err != nil {
		core.LogError("failed to open session state: %s", err)
		return nil, err
	}
	e.store = store

	host, err := g.FnBoot(e.world)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if host == nil || host.Rig == nil || host.Container == nil {
		_ = store.Close()
		return nil, fmt.Errorf("boot must provide a rig and an avatar container")
	}
	if host.Mapper == nil {
		host.Mapper = rig.NewHumanoidMapper()
	}
	e.host = host
	host.Rig.ApplyRootMotion = config.Avatar.ApplyRootMotion

	e.assetManager = assets.NewAssetManager(e.world, &assets.AssetManagerConfig{
		Client:       config.ClientConfig(),
		MaxFileBytes: config.Fetch.MaxBytes,
	})

	sm, err := systems.NewSystemManager(&systems.SystemManagerConfig{
		Transplant: &systems.TransplantSystemConfig{
			ClearRootFromIndex: config.Avatar.ClearRootFromIndex,
			WorldPositionStays: config.Avatar.WorldPositionStays,
		},
		DefaultURL:    config.Avatar.StartURL,
		Watch:         config.Watch.Enabled,
		WatchDebounce: config.Watch.Debounce.Duration,
	}, systems.SystemManagerDeps{
		Fetcher:   e.assetManager,
		Graph:     e.world,
		Container: host.Container,
		Rig:       host.Rig,
		Mapper:    host.Mapper,
		Store:     store,
		Events:    e.events,
	})
	if err != nil {
		core.LogError("%s", err)
		_ = store.Close()
		return nil, err
	}
	e.systemManager = sm
	g.SystemManager = sm

	e.currentStage = EngineStageBootComplete
	return e, nil
}

func (e *Engine) Initialize() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.currentStage != EngineStageBootComplete {
		return fmt.Errorf("engine cannot be initialized in stage %d: %w", e.currentStage, core.ErrNotInitialized)
	}
	e.currentStage = EngineStageInitializing
	e.ctx, e.cancel = context.WithCancel(context.Background())

	if err := e.systemManager.Initialize(e.ctx); err != nil {
		return err
	}
	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

/**
 * @brief Schedules the auto-load fetch and ticks the scene until Shutdown is
 * called.
 */
func (e *Engine) Run() error {
	e.mutex.Lock()
	if e.currentStage != EngineStageInitialized {
		e.mutex.Unlock()
		return fmt.Errorf("engine cannot run in stage %d: %w", e.currentStage, core.ErrNotInitialized)
	}
	e.currentStage = EngineStageRunning
	e.runDone = make(chan struct{})
	ctx := e.ctx
	e.mutex.Unlock()
	defer close(e.runDone)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	e.systemManager.BootstrapSystem.Start(ctx)

	ticker := time.NewTicker(e.config.Application.TickRate.Duration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.clock.Update()
			currentTime := e.clock.Elapsed()
			delta := (currentTime - e.lastTime).Seconds()
			e.lastTime = currentTime

			e.tick()
			if e.gameInstance.FnUpdate != nil {
				if err := e.gameInstance.FnUpdate(delta); err != nil {
					core.LogError("game update failed, shutting down: %s", err)
					return err
				}
			}
		}
	}
}

// tick queues a pass over pending scene removals on the job system so it never
// interleaves with a fetch.
func (e *Engine) tick() {
	if !e.tickQueued.CompareAndSwap(false, true) {
		return
	}
	err := e.systemManager.JobSystem.Submit(systems.JobTask{
		Name: "world update",
		OnStart: func(context.Context) error {
			if removed := e.world.Update(); removed > 0 {
				core.LogDebug("removed %d scene node(s)", removed)
			}
			return nil
		},
		OnCompletionCallback: func() { e.tickQueued.Store(false) },
	})
	if err != nil {
		e.tickQueued.Store(false)
	}
}

// Fetch runs one fetch on the caller's goroutine.
func (e *Engine) Fetch(ctx context.Context, location string) bool {
	return e.systemManager.FetchSystem.Fetch(ctx, location)
}

// Session returns the persisted avatar session.
func (e *Engine) Session() state.Session {
	return state.ReadSession(e.store, e.config.Avatar.StartURL)
}

func (e *Engine) Host() *HostScene {
	return e.host
}

func (e *Engine) Stage() Stage {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.currentStage
}

/**
 * @brief Stops the run loop and releases every system, the event bus and the
 * session store, in that order. Safe to call more than once.
 */
func (e *Engine) Shutdown() error {
	e.mutex.Lock()
	if e.currentStage == EngineStageShuttingDown || e.currentStage == EngineStageShutdown {
		e.mutex.Unlock()
		return nil
	}
	wasRunning := e.currentStage == EngineStageRunning
	e.currentStage = EngineStageShuttingDown
	if e.cancel != nil {
		e.cancel()
	}
	e.mutex.Unlock()

	if wasRunning {
		<-e.runDone
	}

	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			core.LogError("game shutdown failed: %s", err)
		}
	}
	if err := e.systemManager.Shutdown(); err != nil {
		return err
	}
	e.world.Update()
	if err := e.events.Shutdown(); err != nil {
		return err
	}
	if err := e.store.Close(); err != nil {
		return err
	}

	e.mutex.Lock()
	e.currentStage = EngineStageShutdown
	e.mutex.Unlock()
	return nil
}
