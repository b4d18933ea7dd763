package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Compiler CompilerConfig    `yaml:"compiler"`
	Preview  PreviewConfig     `yaml:"preview"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Watch    WatchConfig       `yaml:"watch"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Compiler.Validate(); err != nil {
		return err
	}
	if err := c.Preview.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Watch.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// CompilerConfig holds the external LaTeX toolchain configuration.
type CompilerConfig struct {
	Binary     string `yaml:"binary"`
	ScratchDir string `yaml:"scratch_dir"`
	TimeoutSec int    `yaml:"timeout_sec"` // 0 disables the wall-clock limit
}

// Timeout returns the configured compile timeout.
func (c *CompilerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// Validate validates the compiler configuration.
func (c *CompilerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Binary, validation.Required),
		validation.Field(&c.ScratchDir, validation.Required),
		validation.Field(&c.TimeoutSec, validation.Min(0), validation.Max(600)),
	)
}

// PreviewConfig tunes the live-preview pipeline.
type PreviewConfig struct {
	DebounceMS         int `yaml:"debounce_ms"`
	ActivityThrottleMS int `yaml:"activity_throttle_ms"`
}

// Debounce returns the quiet period required after the last edit before
// a compile is triggered.
func (c *PreviewConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// ActivityThrottle returns the minimum interval between aggregate SSE
// activity events.
func (c *PreviewConfig) ActivityThrottle() time.Duration {
	return time.Duration(c.ActivityThrottleMS) * time.Millisecond
}

// Validate validates the preview configuration.
func (c *PreviewConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DebounceMS, validation.Required, validation.Min(50), validation.Max(60000)),
		validation.Field(&c.ActivityThrottleMS, validation.Min(0), validation.Max(60000)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// WatchConfig enables compile-on-save for a directory of .tex files.
type WatchConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Compiler: CompilerConfig{
			Binary:     "pdflatex",
			ScratchDir: "./scratch",
			TimeoutSec: 60,
		},
		Preview: PreviewConfig{
			DebounceMS:         750,
			ActivityThrottleMS: 2000,
		},
		SQLite: SQLiteConfig{
			Path: "./vellum.db",
		},
		Watch: WatchConfig{
			Enabled: false,
			Path:    "./src",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
