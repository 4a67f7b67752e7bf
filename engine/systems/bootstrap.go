package systems

import (
	"context"
	"fmt"
	"strings"

	"github.com/spaghettifunk/anima-avatar/engine/core"
	"github.com/spaghettifunk/anima-avatar/engine/state"
)

// BootstrapSystem re-fetches the last good avatar when the application starts.
type BootstrapSystem struct {
	store      state.Store
	fetch      *FetchSystem
	defaultURL string
}

func NewBootstrapSystem(store state.Store, fetch *FetchSystem, defaultURL string) (*BootstrapSystem, error) {
	if store == nil || fetch == nil {
		return nil, fmt.Errorf("func NewBootstrapSystem - store and fetch system are required")
	}
	return &BootstrapSystem{
		store:      store,
		fetch:      fetch,
		defaultURL: defaultURL,
	}, nil
}

/**
 * @brief Schedules the auto-load fetch if the previous session ended with a
 * successful one. Returns immediately.
 * @return True if a fetch was scheduled.
 */
func (bs *BootstrapSystem) Start(ctx context.Context) bool {
	session := state.ReadSession(bs.store, bs.defaultURL)
	if !session.DownloadOnStart {
		core.LogDebug("avatar auto-load disabled")
		return false
	}
	if strings.TrimSpace(session.StartURL) == "" {
		core.LogWarn("avatar auto-load enabled but no start url is stored")
		return false
	}
	if err := bs.fetch.FetchAsync(ctx, session.StartURL); err != nil {
		core.LogError("failed to schedule avatar auto-load from '%s': %s", session.StartURL, err)
		return false
	}
	core.LogInfo("auto-loading avatar from '%s'", session.StartURL)
	return true
}

func (bs *BootstrapSystem) Shutdown() error {
	return nil
}
