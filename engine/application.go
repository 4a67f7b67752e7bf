package engine

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/anima-avatar/engine/assets"
	"github.com/spaghettifunk/anima-avatar/engine/core"
	"github.com/spaghettifunk/anima-avatar/engine/state"
)

// Duration reads "1m30s" style strings from the config file.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type ApplicationSection struct {
	// The application name used in log lines.
	Name string `toml:"name"`
	// debug, info, warn or error.
	LogLevel string `toml:"log_level"`
	// How often the engine processes pending scene removals.
	TickRate Duration `toml:"tick_rate"`
}

type AvatarConfig struct {
	// Fetched on start when the session has no url stored yet.
	StartURL string `toml:"start_url"`
	// Rig children below this index are never cleared.
	ClearRootFromIndex int  `toml:"clear_root_from_index"`
	WorldPositionStays bool `toml:"world_position_stays"`
	ApplyRootMotion    bool `toml:"apply_root_motion"`
}

type FetchConfig struct {
	Timeout    Duration          `toml:"timeout"`
	MaxRetries int               `toml:"max_retries"`
	RateLimit  float64           `toml:"rate_limit"`
	RateBurst  int               `toml:"rate_burst"`
	UserAgent  string            `toml:"user_agent"`
	Headers    map[string]string `toml:"headers"`
	// Size limit for downloads and local files, in bytes.
	MaxBytes int64 `toml:"max_bytes"`
}

type WatchConfig struct {
	Enabled  bool     `toml:"enabled"`
	Debounce Duration `toml:"debounce"`
}

type ApplicationConfig struct {
	Application ApplicationSection `toml:"application"`
	Avatar      AvatarConfig       `toml:"avatar"`
	State       state.StoreConfig  `toml:"state"`
	Fetch       FetchConfig        `toml:"fetch"`
	Watch       WatchConfig        `toml:"watch"`
}

func DefaultApplicationConfig() *ApplicationConfig {
	return &ApplicationConfig{
		Application: ApplicationSection{
			Name:     "Anima Avatar",
			LogLevel: "info",
			TickRate: Duration{100 * time.Millisecond},
		},
		Avatar: AvatarConfig{
			ClearRootFromIndex: 1,
			WorldPositionStays: true,
			ApplyRootMotion:    true,
		},
		State: state.StoreConfig{
			Backend: state.BackendTOML,
			Path:    ".anima/session.toml",
		},
		Fetch: FetchConfig{
			MaxRetries: 2,
			RateLimit:  2.0,
			RateBurst:  1,
			UserAgent:  "anima-avatar/1.0",
			MaxBytes:   256 << 20,
		},
		Watch: WatchConfig{
			Debounce: Duration{250 * time.Millisecond},
		},
	}
}

/**
 * @brief Loads the configuration at path over the defaults. A missing file is
 * not an error; unknown keys are.
 */
func LoadConfig(path string) (*ApplicationConfig, error) {
	config := DefaultApplicationConfig()
	if path == "" {
		return config, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			core.LogDebug("config file '%s' not found, using defaults", path)
			return config, nil
		}
		return nil, err
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(config); err != nil {
		var missing *toml.StrictMissingError
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("config '%s': %s", path, missing.String())
		}
		return nil, fmt.Errorf("config '%s': %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config '%s': %w", path, err)
	}
	return config, nil
}

func (c *ApplicationConfig) Validate() error {
	if c.Application.TickRate.Duration <= 0 {
		return fmt.Errorf("application.tick_rate must be positive")
	}
	if c.Avatar.ClearRootFromIndex < 0 {
		return fmt.Errorf("avatar.clear_root_from_index must be >= 0")
	}
	switch c.State.Backend {
	case state.BackendTOML, state.BackendSQLite, state.BackendMemory, "":
	default:
		return fmt.Errorf("unknown state.backend '%s'", c.State.Backend)
	}
	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries must be >= 0")
	}
	if c.Fetch.RateLimit < 0 || c.Fetch.RateBurst < 0 {
		return fmt.Errorf("fetch.rate_limit and fetch.rate_burst must be >= 0")
	}
	return nil
}

// ClientConfig maps the [fetch] section onto the HTTP provider settings.
func (c *ApplicationConfig) ClientConfig() *assets.ClientConfig {
	return &assets.ClientConfig{
		Timeout:    c.Fetch.Timeout.Duration,
		MaxRetries: c.Fetch.MaxRetries,
		RateLimit:  c.Fetch.RateLimit,
		RateBurst:  c.Fetch.RateBurst,
		MaxBytes:   c.Fetch.MaxBytes,
		UserAgent:  c.Fetch.UserAgent,
		Headers:    c.Fetch.Headers,
	}
}
