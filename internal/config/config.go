// Package config loads bmgrep settings from defaults, YAML files and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	serrors "github.com/Aman-CERP/bmgrep/internal/errors"
)

// ProjectConfigName is the per-directory config file.
const ProjectConfigName = ".bmgrep.yaml"

// Config represents the complete bmgrep configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Paths   PathsConfig   `yaml:"paths" json:"paths"`
	Watch   WatchConfig   `yaml:"watch" json:"watch"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SearchConfig configures how files are searched.
type SearchConfig struct {
	// Threads is the worker count for the queue and static strategies.
	// Defaults to the number of logical cores.
	Threads int `yaml:"threads" json:"threads"`

	// Strategy is one of "queue" (default), "static" or "single".
	Strategy string `yaml:"strategy" json:"strategy"`

	// Format is the printf-style match header: file name, then line number.
	Format string `yaml:"format" json:"format"`

	// Source selects how file contents are loaded: "read" or "mmap".
	Source string `yaml:"source" json:"source"`

	// MaxFileSizeMB skips larger files during directory expansion. 0 means no limit.
	MaxFileSizeMB int64 `yaml:"max_file_size_mb" json:"max_file_size_mb"`
}

// PathsConfig configures how directory arguments are expanded.
type PathsConfig struct {
	Exclude        []string `yaml:"exclude" json:"exclude"`
	Recursive      bool     `yaml:"recursive" json:"recursive"`
	FollowSymlinks bool     `yaml:"follow_symlinks" json:"follow_symlinks"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	// Debounce is how long events are coalesced before a re-search (e.g. "200ms").
	Debounce string `yaml:"debounce" json:"debounce"`

	// Poll forces the polling watcher, for network mounts where fsnotify
	// delivers no events.
	Poll bool `yaml:"poll" json:"poll"`
}

// LoggingConfig configures diagnostics written to stderr or the debug log.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// defaultExcludePatterns are always excluded when walking directories.
var defaultExcludePatterns = []string{
	".git",
	"node_modules",
	"vendor",
}

var (
	validStrategies = map[string]bool{"queue": true, "static": true, "single": true}
	validSources    = map[string]bool{"read": true, "mmap": true}
	validLevels     = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
)

// LogicalCoreCount returns the number of logical CPUs usable by the process.
func LogicalCoreCount() int {
	return runtime.NumCPU()
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Search: SearchConfig{
			Threads:  max(LogicalCoreCount(), 2),
			Strategy: "queue",
			Format:   "%s:%d: ",
			Source:   "read",
		},
		Paths: PathsConfig{
			Exclude: append([]string(nil), defaultExcludePatterns...),
		},
		Watch: WatchConfig{
			Debounce: "200ms",
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file.
// Follows XDG Base Directory spec: $XDG_CONFIG_HOME/bmgrep/config.yaml
// Defaults to ~/.config/bmgrep/config.yaml if XDG_CONFIG_HOME is not set.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "bmgrep", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "bmgrep", "config.yaml")
	}
	return filepath.Join(home, ".config", "bmgrep", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists checks if a user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load reads configuration for a run started in dir.
// Precedence (highest wins):
//  1. Environment variables (BMGREP_*)
//  2. Project config (.bmgrep.yaml in dir)
//  3. User config (~/.config/bmgrep/config.yaml)
//  4. Defaults
//
// Command-line flags are applied by the caller on top of the result.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if projectPath := filepath.Join(dir, ProjectConfigName); fileExists(projectPath) {
		if err := cfg.loadYAML(projectPath); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return serrors.New(serrors.ErrCodeConfigNotFound, fmt.Sprintf("failed to read config file %s", path), err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return serrors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err).
			WithDetail("path", path)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith copies the non-zero fields of other into c. Exclude patterns
// accumulate; booleans can only be switched on.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Search.Threads != 0 {
		c.Search.Threads = other.Search.Threads
	}
	if other.Search.Strategy != "" {
		c.Search.Strategy = other.Search.Strategy
	}
	if other.Search.Format != "" {
		c.Search.Format = other.Search.Format
	}
	if other.Search.Source != "" {
		c.Search.Source = other.Search.Source
	}
	if other.Search.MaxFileSizeMB != 0 {
		c.Search.MaxFileSizeMB = other.Search.MaxFileSizeMB
	}

	if len(other.Paths.Exclude) > 0 {
		c.Paths.Exclude = appendUnique(c.Paths.Exclude, other.Paths.Exclude...)
	}
	if other.Paths.Recursive {
		c.Paths.Recursive = true
	}
	if other.Paths.FollowSymlinks {
		c.Paths.FollowSymlinks = true
	}

	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}
	if other.Watch.Poll {
		c.Watch.Poll = true
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
}

// applyEnvOverrides applies BMGREP_* environment variables. Values that do
// not parse are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("BMGREP_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.Threads = n
		}
	}
	if v := os.Getenv("BMGREP_STRATEGY"); v != "" {
		c.Search.Strategy = strings.ToLower(v)
	}
	if v := os.Getenv("BMGREP_FORMAT"); v != "" {
		c.Search.Format = v
	}
	if v := os.Getenv("BMGREP_SOURCE"); v != "" {
		c.Search.Source = strings.ToLower(v)
	}
	if v := os.Getenv("BMGREP_RECURSIVE"); v != "" {
		c.Paths.Recursive = parseBool(v)
	}
	if v := os.Getenv("BMGREP_WATCH_DEBOUNCE"); v != "" {
		c.Watch.Debounce = v
	}
	if v := os.Getenv("BMGREP_WATCH_POLL"); v != "" {
		c.Watch.Poll = parseBool(v)
	}
	if v := os.Getenv("BMGREP_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Search.Threads < 1 {
		return serrors.New(serrors.ErrCodeInvalidThreads,
			fmt.Sprintf("search.threads must be at least 1, got %d", c.Search.Threads), nil)
	}
	if !validStrategies[strings.ToLower(c.Search.Strategy)] {
		return serrors.ConfigError(
			fmt.Sprintf("search.strategy must be 'queue', 'static' or 'single', got %q", c.Search.Strategy), nil)
	}
	if !validSources[strings.ToLower(c.Search.Source)] {
		return serrors.ConfigError(
			fmt.Sprintf("search.source must be 'read' or 'mmap', got %q", c.Search.Source), nil)
	}
	if c.Search.MaxFileSizeMB < 0 {
		return serrors.ConfigError(
			fmt.Sprintf("search.max_file_size_mb must be non-negative, got %d", c.Search.MaxFileSizeMB), nil)
	}
	if _, err := c.DebounceDuration(); err != nil {
		return serrors.ConfigError(fmt.Sprintf("watch.debounce is not a duration: %q", c.Watch.Debounce), err)
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return serrors.ConfigError(
			fmt.Sprintf("logging.level must be 'debug', 'info', 'warn', or 'error', got %q", c.Logging.Level), nil)
	}
	return nil
}

// DebounceDuration parses Watch.Debounce.
func (c *Config) DebounceDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", d)
	}
	return d, nil
}

// MaxFileSizeBytes returns the file size limit in bytes, 0 for none.
func (c *Config) MaxFileSizeBytes() int64 {
	return c.Search.MaxFileSizeMB * 1024 * 1024
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// FindProjectRoot walks up from startDir to the nearest directory holding a
// .git directory or a .bmgrep.yaml file. It returns startDir (absolute) when
// neither is found.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) ||
			fileExists(filepath.Join(currentDir, ProjectConfigName)) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

func appendUnique(dst []string, items ...string) []string {
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[s] = true
	}
	for _, s := range items {
		if !seen[s] {
			seen[s] = true
			dst = append(dst, s)
		}
	}
	return dst
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
