package consts

import (
	"os"
	"path/filepath"
)

const (
	HaruDirName    = ".haru"
	ConfigFileName = "config.yaml"
)

func HaruHomeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, HaruDirName)
}

func DefaultConfigPath() string {
	return filepath.Join(HaruHomeDir(), ConfigFileName)
}

// DefaultTaskStorePath is where scheduled tasks are persisted so that a
// restarted process reconnects to the same state.
func DefaultTaskStorePath() string {
	return filepath.Join(HaruHomeDir(), "scheduler", "tasks.json")
}
