// Package settings persists the user-facing tray preferences.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultPollInterval is used when no stored value exists or the stored
// value is not one of the presets.
const DefaultPollInterval = 30 * time.Second

// PollPresets are the selectable poll intervals, in ascending order.
var PollPresets = []time.Duration{
	10 * time.Second,
	30 * time.Second,
	time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// Settings is the flat preference record stored on disk. The poll interval
// is kept in milliseconds to match the original on-disk format.
type Settings struct {
	LaunchAtStart     bool   `json:"launch_at_start"`
	PollIntervalMS    int64  `json:"poll_interval_ms"`
	ShowNotifications bool   `json:"show_notifications"`
	CurrentSiteID     string `json:"current_site_id"`
}

// Defaults returns the settings used before the user changed anything.
func Defaults() Settings {
	return Settings{
		LaunchAtStart:     false,
		PollIntervalMS:    DefaultPollInterval.Milliseconds(),
		ShowNotifications: true,
		CurrentSiteID:     "",
	}
}

// Store manages the settings file. Every mutation is persisted
// synchronously before the setter returns.
type Store struct {
	path   string
	logger *zap.Logger

	mu sync.Mutex
	s  Settings
}

// NewStore creates a store backed by the given file path.
func NewStore(path string, logger *zap.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger,
		s:      Defaults(),
	}
}

// Path returns the backing file path.
func (st *Store) Path() string {
	return st.path
}

// Load reads the settings file, merging stored values over defaults. A
// missing file is not an error; the defaults stand until the first save.
func (st *Store) Load() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.loadLocked()
}

func (st *Store) loadLocked() error {
	data, err := os.ReadFile(st.path)
	if err != nil {
		if os.IsNotExist(err) {
			st.s = Defaults()
			return nil
		}
		return fmt.Errorf("failed to read settings file: %w", err)
	}

	// Unmarshal over a defaults value so absent keys keep their defaults.
	s := Defaults()
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to parse settings file: %w", err)
	}
	s.PollIntervalMS = snapToPreset(s.PollIntervalMS)
	st.s = s

	st.logger.Info("Settings loaded",
		zap.String("path", st.path),
		zap.Int64("poll_interval_ms", s.PollIntervalMS),
		zap.Bool("show_notifications", s.ShowNotifications),
		zap.String("current_site_id", s.CurrentSiteID))

	return nil
}

func (st *Store) saveLocked() error {
	data, err := json.MarshalIndent(st.s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(st.path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings dir: %w", err)
	}

	if err := os.WriteFile(st.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}

// Get returns a copy of the current settings.
func (st *Store) Get() Settings {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s
}

// PollInterval returns the effective poll interval as a duration.
func (st *Store) PollInterval() time.Duration {
	st.mu.Lock()
	defer st.mu.Unlock()
	return time.Duration(st.s.PollIntervalMS) * time.Millisecond
}

// SetPollInterval stores a new poll interval. Values outside the preset
// list snap to the default.
func (st *Store) SetPollInterval(d time.Duration) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.PollIntervalMS = snapToPreset(d.Milliseconds())
	return st.saveLocked()
}

// SetShowNotifications stores the notification toggle.
func (st *Store) SetShowNotifications(on bool) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.ShowNotifications = on
	return st.saveLocked()
}

// SetLaunchAtStart stores the launch-at-start toggle.
func (st *Store) SetLaunchAtStart(on bool) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.LaunchAtStart = on
	return st.saveLocked()
}

// SetCurrentSiteID stores the selected site.
func (st *Store) SetCurrentSiteID(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.CurrentSiteID = id
	return st.saveLocked()
}

func snapToPreset(ms int64) int64 {
	for _, p := range PollPresets {
		if p.Milliseconds() == ms {
			return ms
		}
	}
	return DefaultPollInterval.Milliseconds()
}

// DefaultPath returns the settings file location under the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "deploybar", "settings.json"), nil
}
