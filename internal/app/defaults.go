package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - FEID_CONFIG_PATH: config file location (default: ~/.config/feid.toml)
//   - FEID_HOME: base directory for cached data, staging and logs (default: ~/.local/share/feid)
func GetDefaults() (map[string]string, error) {
	configPath, err := envOrHome("FEID_CONFIG_PATH", ".config", "feid.toml")
	if err != nil {
		return nil, err
	}

	baseDir, err := envOrHome("FEID_HOME", ".local", "share", "feid")
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// envOrHome returns the value of the environment variable, or the path
// under the user's home directory when it is unset.
func envOrHome(env string, elem ...string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, elem...)...), nil
}
