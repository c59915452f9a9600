package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"
)

const (
	// appDir is the directory created under the user config dir.
	appDir = "bluetooth-widget"

	// fileName is the settings file inside appDir.
	fileName = "config.json"

	dirPermissions  = 0o750
	filePermissions = 0o600
)

var (
	// ErrNoConfigDir is returned when the platform has no per-user config directory.
	ErrNoConfigDir = errors.New("settings: no user config directory")

	// ErrUnknownKey is returned by Set for a key that is not a setting.
	ErrUnknownKey = errors.New("settings: unknown key")

	// ErrInvalidValue is returned by Set when the value does not parse.
	ErrInvalidValue = errors.New("settings: invalid value")
)

var themes = []string{"auto", "light", "dark"}

// Settings are the user preferences consumed by the coordinator and the
// presentation adapters. Durations are stored in milliseconds.
type Settings struct {
	AutoHideDelay        uint64 `json:"auto_hide_delay"`
	RefreshInterval      uint64 `json:"refresh_interval"`
	ShowBatteryLevels    bool   `json:"show_battery_levels"`
	ShowDeviceAddresses  bool   `json:"show_device_addresses"`
	WindowWidth          int32  `json:"window_width"`
	WindowHeight         int32  `json:"window_height"`
	Theme                string `json:"theme"`
	FunctionalityEnabled bool   `json:"functionality_enabled"`
}

// Defaults returns the documented default preferences.
func Defaults() Settings {
	return Settings{
		AutoHideDelay:        100,
		RefreshInterval:      5000,
		ShowBatteryLevels:    true,
		ShowDeviceAddresses:  true,
		WindowWidth:          300,
		WindowHeight:         400,
		Theme:                "auto",
		FunctionalityEnabled: true,
	}
}

// RefreshEvery returns the refresh interval as a Duration.
func (s Settings) RefreshEvery() time.Duration {
	return time.Duration(s.RefreshInterval) * time.Millisecond
}

// Set assigns value to the setting named by its JSON key.
func (s *Settings) Set(key, value string) error {
	bad := func(err error) error {
		return fmt.Errorf("%w: %s=%q: %w", ErrInvalidValue, key, value, err)
	}

	switch key {
	case "functionality_enabled", "show_battery_levels", "show_device_addresses":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return bad(err)
		}
		switch key {
		case "functionality_enabled":
			s.FunctionalityEnabled = b
		case "show_battery_levels":
			s.ShowBatteryLevels = b
		default:
			s.ShowDeviceAddresses = b
		}
	case "refresh_interval", "auto_hide_delay":
		ms, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return bad(err)
		}
		if key == "refresh_interval" {
			s.RefreshInterval = ms
		} else {
			s.AutoHideDelay = ms
		}
	case "window_width", "window_height":
		n, err := strconv.ParseInt(value, 10, 32)
		if err != nil || n <= 0 {
			return bad(errors.New("must be a positive integer"))
		}
		if key == "window_width" {
			s.WindowWidth = int32(n)
		} else {
			s.WindowHeight = int32(n)
		}
	case "theme":
		if !slices.Contains(themes, value) {
			return bad(fmt.Errorf("must be one of %v", themes))
		}
		s.Theme = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}

// DefaultPath returns the settings file location for the current user.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoConfigDir, err)
	}
	if dir == "" {
		return "", ErrNoConfigDir
	}
	return filepath.Join(dir, appDir, fileName), nil
}

// fileSettings mirrors Settings for decoding. The legacy key written by
// older widget builds is honoured when the current key is absent.
type fileSettings struct {
	Settings
	LegacyEnabled *bool `json:"enable_bluetooth_functionality,omitempty"`
}

// decode overlays the JSON document onto the defaults.
func decode(data []byte) (Settings, error) {
	fs := fileSettings{Settings: Defaults()}
	if err := json.Unmarshal(data, &fs); err != nil {
		return Defaults(), fmt.Errorf("parsing settings: %w", err)
	}

	if fs.LegacyEnabled != nil {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err == nil {
			if _, ok := fields["functionality_enabled"]; !ok {
				fs.FunctionalityEnabled = *fs.LegacyEnabled
			}
		}
	}

	return fs.Settings, nil
}

// Read parses the settings file at path without any fallback.
func Read(path string) (Settings, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path comes from the user config dir or CLI flag
	if err != nil {
		return Defaults(), fmt.Errorf("reading settings: %w", err)
	}
	return decode(data)
}

// Save writes s to path as indented JSON, creating parent directories.
func Save(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	if err := os.WriteFile(path, data, filePermissions); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	return nil
}
