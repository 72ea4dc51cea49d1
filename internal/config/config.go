package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/hpungsan/shelf/internal/logging"
)

// Scan modes.
const (
	ScanModePooled = "pooled"
	ScanModeInline = "inline"
)

// Config holds application configuration.
type Config struct {
	// DefaultLibraryDir is the library root used when the GameLibDir config
	// entry in the store is unset or blank. "~" is expanded.
	DefaultLibraryDir string `toml:"default_library_dir"`

	// DescriptorPattern is the shell glob matched against file base names.
	DescriptorPattern string `toml:"descriptor_pattern"`

	// ScanMode selects the scheduler: "pooled" fans out directory reads and
	// descriptor loads over ScanWorkers goroutines, "inline" runs everything
	// on the calling goroutine.
	ScanMode string `toml:"scan_mode"`

	// ScanWorkers bounds the pooled scheduler.
	ScanWorkers int `toml:"scan_workers"`

	// FollowSymlinks makes the scanner descend into symlinked directories.
	// Cycles are cut by tracking canonical directory paths.
	FollowSymlinks *bool `toml:"follow_symlinks,omitempty"`

	// QueueCapacity is the buffer size of the store command channel.
	QueueCapacity int `toml:"queue_capacity"`

	// FlushIntervalMS is the watchdog period for flushing dirty state.
	FlushIntervalMS int `toml:"flush_interval_ms"`

	// IdleGraceMS is how long the store worker waits for more commands
	// before flushing and stopping.
	IdleGraceMS int `toml:"idle_grace_ms"`

	// Page sizes per result kind.
	PageSizeManaged   int `toml:"page_size_managed"`
	PageSizeUnmanaged int `toml:"page_size_unmanaged"`
	PageSizeRemoved   int `toml:"page_size_removed"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `toml:"disabled_tools,omitempty"`

	// Log configures the zap logger.
	Log logging.Config `toml:"log"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	follow := true
	return &Config{
		DefaultLibraryDir: "~/MyGames",
		DescriptorPattern: ".gameinfo.json",
		ScanMode:          ScanModePooled,
		ScanWorkers:       4,
		FollowSymlinks:    &follow,
		QueueCapacity:     64,
		FlushIntervalMS:   1000,
		IdleGraceMS:       500,
		PageSizeManaged:   50,
		PageSizeUnmanaged: 20,
		PageSizeRemoved:   50,
		Log:               logging.DefaultConfig(),
	}
}

// FlushInterval returns the watchdog period as a duration.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalMS) * time.Millisecond
}

// IdleGrace returns the worker idle grace period as a duration.
func (c *Config) IdleGrace() time.Duration {
	return time.Duration(c.IdleGraceMS) * time.Millisecond
}

// Follow reports whether symlinked directories are scanned.
func (c *Config) Follow() bool {
	return c.FollowSymlinks == nil || *c.FollowSymlinks
}

// Load loads configuration from baseDir/config.toml.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.shelf.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.toml"))
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.DefaultLibraryDir = pickString(overlay.DefaultLibraryDir, base.DefaultLibraryDir)
	result.DescriptorPattern = pickString(overlay.DescriptorPattern, base.DescriptorPattern)
	result.ScanMode = pickString(strings.ToLower(overlay.ScanMode), base.ScanMode)

	result.ScanWorkers = pickInt(overlay.ScanWorkers, base.ScanWorkers)
	result.QueueCapacity = pickInt(overlay.QueueCapacity, base.QueueCapacity)
	result.FlushIntervalMS = pickInt(overlay.FlushIntervalMS, base.FlushIntervalMS)
	result.IdleGraceMS = pickInt(overlay.IdleGraceMS, base.IdleGraceMS)
	result.PageSizeManaged = pickInt(overlay.PageSizeManaged, base.PageSizeManaged)
	result.PageSizeUnmanaged = pickInt(overlay.PageSizeUnmanaged, base.PageSizeUnmanaged)
	result.PageSizeRemoved = pickInt(overlay.PageSizeRemoved, base.PageSizeRemoved)

	// Pointer booleans: overlay wins when set
	result.FollowSymlinks = base.FollowSymlinks
	if overlay.FollowSymlinks != nil {
		result.FollowSymlinks = overlay.FollowSymlinks
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	result.Log = logging.Config{
		Level:          pickString(overlay.Log.Level, base.Log.Level),
		Format:         pickString(overlay.Log.Format, base.Log.Format),
		FilePath:       pickString(overlay.Log.FilePath, base.Log.FilePath),
		FileMaxSizeMB:  pickInt(overlay.Log.FileMaxSizeMB, base.Log.FileMaxSizeMB),
		FileMaxFiles:   pickInt(overlay.Log.FileMaxFiles, base.Log.FileMaxFiles),
		FileMaxAgeDays: pickInt(overlay.Log.FileMaxAgeDays, base.Log.FileMaxAgeDays),
	}

	return result
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay > 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

// BaseDir returns the shelf state directory: $SHELF_HOME if set, else ~/.shelf.
func BaseDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv("SHELF_HOME")); dir != "" {
		return filepath.Abs(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".shelf"), nil
}

// ExpandPath expands a leading "~" and returns an absolute, cleaned path.
func ExpandPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return filepath.Abs(p)
}
