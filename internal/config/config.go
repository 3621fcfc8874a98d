package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Tiliavir/shift-clock/internal/model"
)

// FileName is the config file inside the data directory.
const FileName = "config.yaml"

// Config is the client configuration, stored in ~/.clk/config.yaml.
type Config struct {
	Sync  SyncConfig  `yaml:"sync"`
	Share ShareConfig `yaml:"share"`
	// LeaveTypes maps each selectable leave kind to the minutes it credits.
	LeaveTypes map[string]int `yaml:"leave_types"`
	// GraceSeconds is the cancellable clock-out window.
	GraceSeconds int `yaml:"grace_seconds"`
	// Timezone is the IANA zone reports and dates are computed in. Empty
	// means the system zone.
	Timezone string `yaml:"timezone"`
}

// SyncConfig holds the submission endpoint settings.
type SyncConfig struct {
	// Endpoint is the submit URL; empty disables cloud sync.
	Endpoint string `yaml:"endpoint"`
	// Token is sent as a bearer token when set.
	Token   string        `yaml:"token"`
	Delay   time.Duration `yaml:"delay"`
	Timeout time.Duration `yaml:"timeout"`
}

// ShareConfig holds the Telegram share target used with auto-share.
type ShareConfig struct {
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
}

const (
	DefaultSyncDelay    = 60 * time.Second
	DefaultSyncTimeout  = 15 * time.Second
	DefaultGraceSeconds = 10
)

// DefaultLeaveTypes are the built-in leave kinds.
func DefaultLeaveTypes() map[string]int {
	return map[string]int{
		string(model.KindPaidOff): 480,
		"Sick Day":                0,
		"Unpaid Off":              0,
	}
}

func defaultConfig() Config {
	return Config{
		Sync:         SyncConfig{Delay: DefaultSyncDelay, Timeout: DefaultSyncTimeout},
		LeaveTypes:   DefaultLeaveTypes(),
		GraceSeconds: DefaultGraceSeconds,
	}
}

// configTemplate is the annotated config written on first run.
const configTemplate = `# clk configuration
#
# All settings are optional; the defaults below work without a network.

sync:
  # Submission endpoint, e.g. http://localhost:3000/api/submit as served by
  # "clk serve". Leave empty to keep everything local.
  endpoint: ""
  # Optional bearer token sent with every submission.
  token: ""
  # How long an event waits before it is sent. A newer event for the same
  # record replaces a waiting one.
  delay: 60s
  timeout: 15s

share:
  # With auto-share on, every generated summary line is posted to this chat.
  telegram_token: ""
  telegram_chat_id: 0

# Leave kinds offered by "clk leave" and the minutes each one credits.
leave_types:
  Paid Off: 480
  Sick Day: 0
  Unpaid Off: 0

# Seconds during which a clock-out can still be cancelled.
grace_seconds: 10

# IANA timezone for dates and reports, e.g. "Europe/Berlin". Empty = system.
timezone: ""
`

// Path returns the config file path inside dataDir.
func Path(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// Load reads the config in dataDir, creating it with annotated defaults
// on first run. Zero fields are filled with defaults.
func Load(dataDir string) (Config, error) {
	path := Path(dataDir)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		// First run: write the annotated template so users can discover options.
		if writeErr := writeDefault(path); writeErr != nil {
			return defaultConfig(), fmt.Errorf("creating config file %s: %w", path, writeErr)
		}
		return defaultConfig(), nil
	}
	if err != nil {
		return defaultConfig(), fmt.Errorf("reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return defaultConfig(), fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
	}

	if cfg.Sync.Delay <= 0 {
		cfg.Sync.Delay = DefaultSyncDelay
	}
	if cfg.Sync.Timeout <= 0 {
		cfg.Sync.Timeout = DefaultSyncTimeout
	}
	if cfg.GraceSeconds <= 0 {
		cfg.GraceSeconds = DefaultGraceSeconds
	}
	if len(cfg.LeaveTypes) == 0 {
		cfg.LeaveTypes = DefaultLeaveTypes()
	}
	if _, err := cfg.Location(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// LeaveMinutes converts LeaveTypes for the shift policy.
func (c Config) LeaveMinutes() map[model.Kind]int {
	out := make(map[model.Kind]int, len(c.LeaveTypes))
	for k, v := range c.LeaveTypes {
		out[model.Kind(k)] = v
	}
	return out
}

// writeDefault creates the config directory and writes the annotated
// default template.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
