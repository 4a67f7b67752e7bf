package systems

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spaghettifunk/anima-avatar/engine/assets"
	"github.com/spaghettifunk/anima-avatar/engine/core"
)

/**
 * @brief Re-fetches the avatar whenever the local file it was loaded from
 * changes. Remote sources are not watched.
 */
type WatchSystem struct {
	watcher *assets.AssetWatcher
	fetch   *FetchSystem
	events  *core.EventBus

	mutex       sync.Mutex
	ctx         context.Context
	watched     string
	location    string
	initialized bool
}

func NewWatchSystem(debounce time.Duration, fetch *FetchSystem, events *core.EventBus) (*WatchSystem, error) {
	if fetch == nil || events == nil {
		return nil, fmt.Errorf("func NewWatchSystem - fetch system and event bus are required")
	}
	ws := &WatchSystem{
		fetch:  fetch,
		events: events,
		ctx:    context.Background(),
	}
	w, err := assets.NewAssetWatcher(debounce, ws.onFileChanged)
	if err != nil {
		return nil, err
	}
	ws.watcher = w
	return ws, nil
}

func (ws *WatchSystem) Initialize(ctx context.Context) error {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()
	if ws.initialized {
		return nil
	}
	if ctx != nil {
		ws.ctx = ctx
	}
	if !ws.events.Register(core.EVENT_CODE_AVATAR_LOADED, ws, ws.onAvatarLoaded) {
		return fmt.Errorf("failed to register watch listener")
	}
	ws.initialized = true
	return nil
}

func (ws *WatchSystem) Shutdown() error {
	ws.mutex.Lock()
	if ws.initialized {
		ws.events.Unregister(core.EVENT_CODE_AVATAR_LOADED, ws)
		ws.initialized = false
	}
	ws.mutex.Unlock()
	return ws.watcher.Close()
}

// Watched returns the local file currently being watched, if any.
func (ws *WatchSystem) Watched() string {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()
	return ws.watched
}

func (ws *WatchSystem) onAvatarLoaded(context core.EventContext) bool {
	location := ws.fetch.Location()
	path, local := assets.IsLocalLocation(location)

	ws.mutex.Lock()
	defer ws.mutex.Unlock()
	if local && path == ws.watched {
		ws.location = location
		return false
	}
	if ws.watched != "" {
		if err := ws.watcher.Unwatch(ws.watched); err != nil {
			core.LogWarn("failed to stop watching '%s': %s", ws.watched, err)
		}
		ws.watched, ws.location = "", ""
	}
	if !local {
		return false
	}
	if err := ws.watcher.Watch(path); err != nil {
		core.LogWarn("cannot watch avatar file '%s': %s", path, err)
		return false
	}
	ws.watched, ws.location = path, location
	return false
}

func (ws *WatchSystem) onFileChanged(path string) {
	ws.mutex.Lock()
	ctx, location := ws.ctx, ws.location
	ws.mutex.Unlock()
	if location == "" {
		return
	}
	core.LogInfo("avatar file '%s' changed, reloading", path)
	if err := ws.fetch.FetchAsync(ctx, location); err != nil {
		core.LogError("failed to schedule avatar reload: %s", err)
	}
}
