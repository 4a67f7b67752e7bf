package state

import (
	"fmt"
	"sync"
)

// Keys of the two durable values the avatar pipeline keeps between runs.
const (
	KeyStartURL        = "AvatarStartUrl"
	KeyDownloadOnStart = "HasAvatarDownloadOnStart"
)

/**
 * @brief A durable key/value store. Reads are served from memory, writes are
 * buffered until Flush, which writes through to the backing storage before it
 * returns.
 */
type Store interface {
	GetString(key, fallback string) string
	GetBool(key string, fallback bool) bool
	SetString(key, value string)
	SetBool(key string, value bool)
	Flush() error
	Close() error
}

type Backend string

const (
	BackendTOML   Backend = "toml"
	BackendSQLite Backend = "sqlite"
	BackendMemory Backend = "memory"
)

type StoreConfig struct {
	Backend Backend `toml:"backend"`
	// File for toml, database file for sqlite. Ignored by memory.
	Path string `toml:"path"`
}

func Open(config StoreConfig) (Store, error) {
	switch config.Backend {
	case BackendTOML, "":
		return OpenTOMLStore(config.Path)
	case BackendSQLite:
		return OpenSQLiteStore(config.Path)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown state backend '%s'", config.Backend)
	}
}

// Session is the typed view of the persisted values.
type Session struct {
	StartURL        string
	DownloadOnStart bool
}

// ReadSession loads the session, using defaultURL when none was stored yet.
func ReadSession(s Store, defaultURL string) Session {
	return Session{
		StartURL:        s.GetString(KeyStartURL, defaultURL),
		DownloadOnStart: s.GetBool(KeyDownloadOnStart, false),
	}
}

// prefs is the in-memory table shared by every backend.
type prefs struct {
	mu     sync.RWMutex
	values map[string]interface{}
	dirty  bool
}

func newPrefs(values map[string]interface{}) *prefs {
	if values == nil {
		values = make(map[string]interface{})
	}
	return &prefs{values: values}
}

func (p *prefs) GetString(key, fallback string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if v, ok := p.values[key].(string); ok {
		return v
	}
	return fallback
}

func (p *prefs) GetBool(key string, fallback bool) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if v, ok := p.values[key].(bool); ok {
		return v
	}
	return fallback
}

func (p *prefs) SetString(key, value string) {
	p.set(key, value)
}

func (p *prefs) SetBool(key string, value bool) {
	p.set(key, value)
}

func (p *prefs) set(key string, value interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.values[key]; ok && old == value {
		return
	}
	p.values[key] = value
	p.dirty = true
}

// snapshot copies the values and clears the dirty bit; restore it with markDirty if the write fails.
func (p *prefs) snapshot() (map[string]interface{}, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]interface{}, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	dirty := p.dirty
	p.dirty = false
	return out, dirty
}

func (p *prefs) markDirty() {
	p.mu.Lock()
	p.dirty = true
	p.mu.Unlock()
}
