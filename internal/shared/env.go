package shared

import (
	"errors"
	"fmt"
	"os"

	"github.com/subosito/gotenv"
)

// LoadDotenv loads KEY=VALUE pairs from path into the environment. Variables that are already set win.
// A missing file is not an error.
func LoadDotenv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// EnvOr returns the value of key, or fallback when unset or blank.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
