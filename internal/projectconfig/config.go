// Package projectconfig loads .azchain.yaml project configuration.
package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the project config file looked up from the working directory.
const FileName = ".azchain.yaml"

// Default values. New() is the only place they are applied.
const (
	DefaultStepTimeout   = 1800
	DefaultPollFrequency = 5
	DefaultAuthMode      = "default"

	maxSearchDepth = 10
)

// DefaultsConfig holds chain run defaults. Times are in seconds.
type DefaultsConfig struct {
	StepTimeout   int    `yaml:"step_timeout,omitempty"`
	PollFrequency int    `yaml:"poll_frequency,omitempty"`
	Confirm       *bool  `yaml:"confirm,omitempty"`
	JournalDir    string `yaml:"journal_dir,omitempty"`
}

// StorageConfig holds the storage account used when a plan omits one.
type StorageConfig struct {
	AccountURL string `yaml:"account_url,omitempty"`
}

// AuthConfig selects the credential type.
type AuthConfig struct {
	Mode string `yaml:"mode,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .azchain.yaml.
type ProjectConfig struct {
	Defaults DefaultsConfig `yaml:"defaults,omitempty"`
	Storage  StorageConfig  `yaml:"storage,omitempty"`
	Auth     AuthConfig     `yaml:"auth,omitempty"`

	// Path is the file the config was read from, or "" for defaults.
	Path string `yaml:"-"`
}

// New returns a ProjectConfig with every default populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Defaults: DefaultsConfig{
			StepTimeout:   DefaultStepTimeout,
			PollFrequency: DefaultPollFrequency,
			Confirm:       boolPtr(true),
		},
		Auth: AuthConfig{
			Mode: DefaultAuthMode,
		},
	}
}

// StepTimeout returns defaults.step_timeout as a duration.
func (c *ProjectConfig) StepTimeout() time.Duration {
	return time.Duration(c.Defaults.StepTimeout) * time.Second
}

// PollFrequency returns defaults.poll_frequency as a duration.
func (c *ProjectConfig) PollFrequency() time.Duration {
	return time.Duration(c.Defaults.PollFrequency) * time.Second
}

// Confirm reports whether chain runs ask before starting.
func (c *ProjectConfig) Confirm() bool {
	return c.Defaults.Confirm == nil || *c.Defaults.Confirm
}

// Load finds .azchain.yaml by walking up from startDir and overlays it on
// the defaults. A missing file is not an error. Other I/O errors are.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	path, data, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("loading %s: %w", FileName, err)
	}

	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := fileCfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	mergeConfig(cfg, &fileCfg)
	cfg.Path = path
	return cfg, nil
}

func (c *ProjectConfig) validate() error {
	if c.Defaults.StepTimeout < 0 {
		return fmt.Errorf("defaults.step_timeout cannot be negative (got %d)", c.Defaults.StepTimeout)
	}
	if c.Defaults.PollFrequency < 0 {
		return fmt.Errorf("defaults.poll_frequency cannot be negative (got %d)", c.Defaults.PollFrequency)
	}
	switch c.Auth.Mode {
	case "", "default", "cli":
	default:
		return fmt.Errorf("auth.mode must be \"default\" or \"cli\" (got %q)", c.Auth.Mode)
	}
	return nil
}

// findConfigFile walks up from dir looking for FileName. It returns
// os.ErrNotExist when no file is found within maxSearchDepth levels.
func findConfigFile(dir string) (string, []byte, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for range maxSearchDepth {
		p := filepath.Join(dir, FileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return p, data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil, os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	if src.Defaults.StepTimeout != 0 {
		dst.Defaults.StepTimeout = src.Defaults.StepTimeout
	}
	if src.Defaults.PollFrequency != 0 {
		dst.Defaults.PollFrequency = src.Defaults.PollFrequency
	}
	if src.Defaults.Confirm != nil {
		dst.Defaults.Confirm = src.Defaults.Confirm
	}
	if src.Defaults.JournalDir != "" {
		dst.Defaults.JournalDir = src.Defaults.JournalDir
	}

	if src.Storage.AccountURL != "" {
		dst.Storage.AccountURL = src.Storage.AccountURL
	}

	if src.Auth.Mode != "" {
		dst.Auth.Mode = src.Auth.Mode
	}
}

func boolPtr(b bool) *bool {
	return &b
}
