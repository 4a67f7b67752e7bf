package assets

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/anima-avatar/engine/core"
)

// FnOnChange is invoked with the watched path after it was written or replaced.
type FnOnChange func(path string)

/**
 * @brief Watches local model files and reports changes so the avatar can be
 * re-fetched. Directories are watched rather than files so editors that save
 * by rename are still noticed. Bursts of events within the debounce window
 * collapse into one notification.
 */
type AssetWatcher struct {
	fsnotify *fsnotify.Watcher
	onChange FnOnChange
	debounce time.Duration

	mutex    sync.Mutex
	files    map[string]bool
	dirs     map[string]int
	timers   map[string]*time.Timer
	isClosed bool

	done chan struct{}
	wg   sync.WaitGroup
}

func NewAssetWatcher(debounce time.Duration, onChange FnOnChange) (*AssetWatcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	aw := &AssetWatcher{
		fsnotify: fsWatch,
		onChange: onChange,
		debounce: debounce,
		files:    make(map[string]bool),
		dirs:     make(map[string]int),
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	aw.wg.Add(1)
	go aw.start()
	return aw, nil
}

// Watch starts reporting changes to the named file.
func (aw *AssetWatcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	aw.mutex.Lock()
	defer aw.mutex.Unlock()
	if aw.isClosed {
		return errors.New("asset watcher already closed")
	}
	if aw.files[abs] {
		return nil
	}
	dir := filepath.Dir(abs)
	if aw.dirs[dir] == 0 {
		if err := aw.fsnotify.Add(dir); err != nil {
			return err
		}
	}
	aw.dirs[dir]++
	aw.files[abs] = true
	core.LogDebug("watching '%s' for changes", abs)
	return nil
}

// Unwatch stops reporting changes to the named file.
func (aw *AssetWatcher) Unwatch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	aw.mutex.Lock()
	defer aw.mutex.Unlock()
	if !aw.files[abs] {
		return nil
	}
	delete(aw.files, abs)
	dir := filepath.Dir(abs)
	aw.dirs[dir]--
	if aw.dirs[dir] <= 0 {
		delete(aw.dirs, dir)
		if !aw.isClosed {
			return aw.fsnotify.Remove(dir)
		}
	}
	return nil
}

func (aw *AssetWatcher) Close() error {
	aw.mutex.Lock()
	if aw.isClosed {
		aw.mutex.Unlock()
		return nil
	}
	aw.isClosed = true
	for _, t := range aw.timers {
		t.Stop()
	}
	aw.mutex.Unlock()

	close(aw.done)
	aw.wg.Wait()
	return aw.fsnotify.Close()
}

func (aw *AssetWatcher) start() {
	defer aw.wg.Done()
	for {
		select {
		case e, ok := <-aw.fsnotify.Events:
			if !ok {
				return
			}
			if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			aw.handleFileEvent(filepath.Clean(e.Name))

		case err, ok := <-aw.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err.Error())

		case <-aw.done:
			return
		}
	}
}

func (aw *AssetWatcher) handleFileEvent(path string) {
	aw.mutex.Lock()
	defer aw.mutex.Unlock()
	if aw.isClosed || !aw.files[path] {
		return
	}
	if t, ok := aw.timers[path]; ok {
		t.Reset(aw.debounce)
		return
	}
	aw.timers[path] = time.AfterFunc(aw.debounce, func() {
		aw.mutex.Lock()
		delete(aw.timers, path)
		closed := aw.isClosed
		aw.mutex.Unlock()
		if !closed && aw.onChange != nil {
			aw.onChange(path)
		}
	})
}
