// Package config loads the zinstall configuration from a CUE file and
// applies defaults for anything unset.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/go-playground/validator/v10"
)

// Config is the validated runtime configuration.
type Config struct {
	// RecipesDir is the directory scanned for recipe definitions.
	RecipesDir string `json:"recipes_dir" validate:"required"`

	// InstallRoot holds per-app GitHub release installs.
	InstallRoot string `json:"install_root" validate:"required"`

	// AptSourcesDir, AptKeyringDir, and YumReposDir override the standard
	// system locations for repository provisioning; mostly for non-root use.
	AptSourcesDir string `json:"apt_sources_dir,omitempty"`
	AptKeyringDir string `json:"apt_keyring_dir,omitempty"`
	YumReposDir   string `json:"yum_repos_dir,omitempty"`

	// LogLevel is a zerolog level name (trace, debug, info, warn, error).
	LogLevel string `json:"log_level,omitempty" validate:"omitempty,oneof=trace debug info warn error"`
}

// Loader parses and validates configuration files.
type Loader struct {
	ctx       *cue.Context
	validator *validator.Validate
}

// NewLoader creates a configuration loader.
func NewLoader() *Loader {
	return &Loader{
		ctx:       cuecontext.New(),
		validator: validator.New(),
	}
}

// Load reads the CUE configuration at path. A missing file is not an error:
// the defaults stand alone. An empty path loads DefaultPath().
func (l *Loader) Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}

	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := l.parse(content, path, cfg); err != nil {
		return nil, err
	}

	if err := l.validator.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// parse compiles the CUE source and decodes it over the defaults, so the
// file only needs to mention what it changes.
func (l *Loader) parse(content []byte, path string, cfg *Config) error {
	val := l.ctx.CompileBytes(content, cue.Filename(path))
	if val.Err() != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, val.Err())
	}
	if err := val.Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	home := homeDir()
	return &Config{
		RecipesDir:  filepath.Join(home, ".zinstall", "recipes"),
		InstallRoot: filepath.Join(home, ".zinstall", "apps"),
		LogLevel:    "info",
	}
}

// DefaultPath is the conventional config file location.
func DefaultPath() string {
	return filepath.Join(homeDir(), ".zinstall", "config.cue")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
