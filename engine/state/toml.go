package state

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const defaultTOMLPath = ".anima/session.toml"

// TOMLStore persists the values as a flat TOML document.
type TOMLStore struct {
	*prefs
	path string
}

// OpenTOMLStore loads path if it exists; a missing file starts empty.
func OpenTOMLStore(path string) (*TOMLStore, error) {
	if path == "" {
		path = defaultTOMLPath
	}
	values := make(map[string]interface{})
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("failed to parse session file '%s': %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}
	return &TOMLStore{prefs: newPrefs(values), path: path}, nil
}

func (s *TOMLStore) Path() string {
	return s.path
}

// Flush writes the document atomically (temp file + rename).
func (s *TOMLStore) Flush() error {
	values, dirty := s.snapshot()
	if !dirty {
		return nil
	}
	if err := s.write(values); err != nil {
		s.markDirty()
		return err
	}
	return nil
}

func (s *TOMLStore) write(values map[string]interface{}) error {
	data, err := toml.Marshal(values)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*.toml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *TOMLStore) Close() error {
	return s.Flush()
}
