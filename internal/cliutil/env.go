// Package cliutil holds helpers shared by the command binaries.
package cliutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv reads KEY=value pairs from path into the environment. Variables
// already set win over the file. A missing file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Fallback returns value, or the environment variable key when value is
// empty.
func Fallback(value, key string) string {
	if value != "" {
		return value
	}
	return os.Getenv(key)
}

// FirstNonEmpty returns the first non-empty argument.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
