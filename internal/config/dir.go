package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// appName names the sweeper's directories under the user's config and data homes
const appName = "stale-sweeper"

// MustSweeperConfigDir returns the directory holding token files and sweep profiles
func MustSweeperConfigDir() string {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		panic(fmt.Errorf("cannot obtain user config dir: %w", err))
	}
	return filepath.Join(userConfigDir, appName)
}

// SweeperDataDir returns the directory under $XDG_DATA_HOME (~/.local/share when
// unset) where the sweeper keeps what it records. Nothing is created.
func SweeperDataDir() (string, error) {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot obtain user home dir: %w", err)
	}
	return filepath.Join(home, ".local", "share", appName), nil
}
