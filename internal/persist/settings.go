// Package persist stores user-adjustable UI preferences between runs.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Settings represents the preferences worth keeping for the next run.
type Settings struct {
	Theme       string `json:"theme"`
	ShowStopped bool   `json:"showStopped"`
}

// SettingsManager handles persistence of settings.
type SettingsManager struct {
	path string
}

// NewSettingsManager returns a manager bound to the platform config path.
func NewSettingsManager() (*SettingsManager, error) {
	p, err := settingsPath()
	if err != nil {
		return nil, err
	}
	return &SettingsManager{path: p}, nil
}

// settingsPath returns doggy's config.json path under XDG/AppData.
func settingsPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", os.ErrNotExist
		}
		configDir = filepath.Join(appData, "doggy")
	default:
		xdg := os.Getenv("XDG_CONFIG_HOME")
		if xdg == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			xdg = filepath.Join(home, ".config")
		}
		configDir = filepath.Join(xdg, "doggy")
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// Load reads settings from disk, returning defaults if no file exists.
func (m *SettingsManager) Load() (Settings, error) {
	var s Settings
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	return s, nil
}

// Save writes settings atomically via a temp file rename.
func (m *SettingsManager) Save(s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
