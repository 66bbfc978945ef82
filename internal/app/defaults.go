package app

import (
	"fmt"
	"os"
	"path/filepath"

	"msync/internal/config"
	"msync/internal/history"
)

// GetDefaults returns the default locations of everything msync keeps on disk,
// checking environment variables first.
// Environment variables:
//   - MSYNC_CONFIG_PATH: config file location (default: ~/.config/msync.toml)
//   - MSYNC_HOME: base directory for msync data (default: ~/.local/share/msync)
//
// Everything except the config file lives below the home directory: the log
// directory, one cache database per location, the age key pair and the
// backup history.
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	homeDir, err := getHomeDir()
	if err != nil {
		return nil, err
	}

	cfg := config.NewConfig(homeDir)
	return map[string]string{
		"config_path":      configPath,
		"home_dir":         homeDir,
		"log_dir":          cfg.LogDir,
		"data_dir":         cfg.Database.DataDir,
		"public_key_path":  cfg.Encryption.PublicKeyPath,
		"private_key_path": cfg.Encryption.PrivateKeyPath,
		"history_path":     filepath.Join(homeDir, history.FileName),
	}, nil
}

// getConfigPath returns the config file path, checking MSYNC_CONFIG_PATH env var first,
// then falling back to the default ~/.config/msync.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("MSYNC_CONFIG_PATH"); path != "" {
		return path, nil
	}

	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(userHome, ".config", "msync.toml"), nil
}

// getHomeDir returns the directory for msync data, checking MSYNC_HOME env var first,
// then falling back to the XDG default ~/.local/share/msync.
func getHomeDir() (string, error) {
	if path := os.Getenv("MSYNC_HOME"); path != "" {
		return path, nil
	}

	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(userHome, ".local", "share", "msync"), nil
}
