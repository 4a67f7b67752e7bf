package systems

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/spaghettifunk/anima-avatar/engine/assets"
	"github.com/spaghettifunk/anima-avatar/engine/core"
	"github.com/spaghettifunk/anima-avatar/engine/scene"
	"github.com/spaghettifunk/anima-avatar/engine/state"
)

/**
 * @brief Drives one avatar fetch at a time: clears the target container, loads
 * the model into it, announces the result on the event bus and records the
 * outcome in the session store.
 */
type FetchSystem struct {
	fetcher   assets.Fetcher
	graph     scene.Graph
	container *scene.Node
	store     state.Store
	events    *core.EventBus
	jobs      *JobSystem
	metrics   *core.FetchMetrics

	busy     atomic.Bool
	location atomic.Value
}

func NewFetchSystem(fetcher assets.Fetcher, graph scene.Graph, container *scene.Node, store state.Store, events *core.EventBus, jobs *JobSystem) (*FetchSystem, error) {
	switch {
	case fetcher == nil:
		return nil, fmt.Errorf("func NewFetchSystem - fetcher is required")
	case graph == nil:
		return nil, fmt.Errorf("func NewFetchSystem - graph is required")
	case container == nil:
		return nil, fmt.Errorf("func NewFetchSystem - target container is required")
	case store == nil:
		return nil, fmt.Errorf("func NewFetchSystem - state store is required")
	case events == nil:
		return nil, fmt.Errorf("func NewFetchSystem - event bus is required")
	}
	return &FetchSystem{
		fetcher:   fetcher,
		graph:     graph,
		container: container,
		store:     store,
		events:    events,
		jobs:      jobs,
		metrics:   core.NewFetchMetrics(),
	}, nil
}

func (fs *FetchSystem) Shutdown() error {
	return nil
}

// Container is the node every loaded model is attached to.
func (fs *FetchSystem) Container() *scene.Node {
	return fs.container
}

func (fs *FetchSystem) Metrics() core.FetchMetricsSnapshot {
	return fs.metrics.Snapshot()
}

// Location is the source of the model currently in the container, or "" if
// nothing was loaded yet.
func (fs *FetchSystem) Location() string {
	l, _ := fs.location.Load().(string)
	return l
}

// InProgress reports whether a fetch is currently running.
func (fs *FetchSystem) InProgress() bool {
	return fs.busy.Load()
}

/**
 * @brief Fetches the model at location into the target container.
 * On success the loaded event is fired (listeners run before this returns) and
 * location becomes the persisted start URL with auto-load enabled. On failure
 * auto-load is disabled and the start URL is left alone.
 * @return True if the model was loaded.
 */
func (fs *FetchSystem) Fetch(ctx context.Context, location string) bool {
	if strings.TrimSpace(location) == "" {
		core.LogError("cannot fetch avatar: %s", core.ErrEmptyLocation)
		return false
	}
	if !fs.busy.CompareAndSwap(false, true) {
		core.LogError("cannot fetch avatar from '%s': %s", location, core.ErrFetchInProgress)
		return false
	}
	defer fs.busy.Store(false)

	clock := core.NewClock()
	clock.Start()
	err := fs.load(ctx, location)
	clock.Update()
	fs.metrics.Record(clock.Elapsed(), err == nil)

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			core.LogWarn("avatar fetch from '%s' abandoned: %s", location, err)
		} else {
			core.LogError("failed to fetch avatar from '%s': %s", location, err)
		}
		fs.store.SetBool(state.KeyDownloadOnStart, false)
		fs.flush()
		return false
	}

	core.LogInfo("avatar loaded from '%s' in %s", location, clock.Elapsed())
	fs.location.Store(location)
	fs.events.Fire(core.EventContext{
		Type:   core.EVENT_CODE_AVATAR_LOADED,
		Sender: fs,
		Data:   fs.container,
	})

	fs.store.SetString(state.KeyStartURL, location)
	fs.store.SetBool(state.KeyDownloadOnStart, true)
	fs.flush()
	return true
}

// FetchAsync queues a fetch on the job system and returns immediately. The
// fetch stops early if either ctx or the job system is shut down.
func (fs *FetchSystem) FetchAsync(ctx context.Context, location string) error {
	if fs.jobs == nil {
		return fmt.Errorf("fetch system has no job system: %w", core.ErrNotInitialized)
	}
	return fs.jobs.Submit(JobTask{
		Name: "fetch " + location,
		OnStart: func(jobCtx context.Context) error {
			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			stop := context.AfterFunc(jobCtx, cancel)
			defer stop()

			if !fs.Fetch(runCtx, location) {
				return fmt.Errorf("avatar fetch from '%s' did not complete", location)
			}
			return nil
		},
	})
}

func (fs *FetchSystem) load(ctx context.Context, location string) error {
	if err := fs.clear(ctx); err != nil {
		return err
	}
	if err := fs.fetcher.Load(ctx, location, fs.container); err != nil {
		return err
	}
	// A result that lands after cancellation is dropped along with its nodes.
	if err := ctx.Err(); err != nil {
		if cerr := fs.clear(context.WithoutCancel(ctx)); cerr != nil {
			core.LogWarn("could not discard late avatar from '%s': %s", location, cerr)
		}
		return err
	}
	return nil
}

func (fs *FetchSystem) clear(ctx context.Context) error {
	for _, c := range fs.container.Children() {
		fs.graph.Destroy(c)
	}
	return fs.graph.AwaitPendingRemovals(ctx)
}

func (fs *FetchSystem) flush() {
	if err := fs.store.Flush(); err != nil {
		core.LogError("failed to persist avatar session: %s", err)
	}
}
