package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/danmuck/edgetrack/internal/config"
)

// loadServiceConfig falls back to defaults when the file does not exist so a
// bare `trackctl` starts with a log sink and no declared targets.
func loadServiceConfig(path string) (config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}
