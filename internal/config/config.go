package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for msync.
type Config struct {
	HomeDir          string             `toml:"home_dir"`
	LogDir           string             `toml:"log_dir"`
	Fingerprint      string             `toml:"fingerprint"`       // "checksum" (default) or "mtime"
	ProgressInterval int                `toml:"progress_interval"` // files between progress logs, negative disables
	Backup           BackupConfig       `toml:"backup"`
	Filesystem       FilesystemConfig   `toml:"filesystem"`
	Database         DatabaseConfig     `toml:"database"`
	Vault            VaultConfig        `toml:"vault"`
	Encryption       EncryptionConfig   `toml:"encryption"`
	Notification     NotificationConfig `toml:"notification"`
}

// BackupConfig lists what gets backed up. Every folder is one location and
// every immediate subdirectory of a root is one location.
type BackupConfig struct {
	Folders []string `toml:"folders"`
	Roots   []string `toml:"roots"`
}

// FilesystemConfig holds filesystem-related settings.
type FilesystemConfig struct {
	Ignore []string `toml:"ignore"`
}

// DatabaseConfig represents configuration for the fingerprint stores.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// VaultConfig represents configuration for the remote store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "s3", "filesystem" or "memory"

	// Shared by every type: one bucket per location is derived from it.
	BucketPrefix string `toml:"bucket_prefix"`

	// S3-specific fields (only used when Type == "s3")
	Region          string `toml:"region,omitempty"`
	AccessKey       string `toml:"access_key,omitempty"`
	SecretAccessKey string `toml:"secret_access_key,omitempty"`
	StorageClass    string `toml:"storage_class,omitempty"`
	NoncurrentDays  int32  `toml:"noncurrent_days,omitempty"`
	Endpoint        string `toml:"endpoint,omitempty"`
	PathStyle       bool   `toml:"path_style,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for encryption.
type EncryptionConfig struct {
	Enabled        bool   `toml:"enabled"`
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// NotificationConfig selects where failure digests are sent.
type NotificationConfig struct {
	Type    string `toml:"type"` // "teams", "log" or "none"
	Webhook string `toml:"webhook,omitempty"`
}

// Defaults applied by ApplyDefaults for settings left empty.
const (
	DefaultFingerprint      = "checksum"
	DefaultProgressInterval = 50000
	DefaultRegion           = "eu-central-1"
	DefaultBucketPrefix     = "img-backup--"
	DefaultStorageClass     = "DEEP_ARCHIVE"
	DefaultNoncurrentDays   = 180
)

// NewConfig creates a new Config rooted at homeDir with every default filled in.
func NewConfig(homeDir string) *Config {
	cfg := &Config{HomeDir: homeDir}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every empty setting with its default.
// Paths default to locations below HomeDir.
func (c *Config) ApplyDefaults() {
	if c.LogDir == "" && c.HomeDir != "" {
		c.LogDir = filepath.Join(c.HomeDir, "log")
	}
	if c.Fingerprint == "" {
		c.Fingerprint = DefaultFingerprint
	}
	if c.ProgressInterval == 0 {
		c.ProgressInterval = DefaultProgressInterval
	}

	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Type == "sqlite" && c.Database.DataDir == "" && c.HomeDir != "" {
		c.Database.DataDir = filepath.Join(c.HomeDir, "db")
	}

	if c.Vault.Type == "" {
		c.Vault.Type = "s3"
	}
	if c.Vault.BucketPrefix == "" {
		c.Vault.BucketPrefix = DefaultBucketPrefix
	}
	if c.Vault.Type == "s3" {
		if c.Vault.Region == "" {
			c.Vault.Region = DefaultRegion
		}
		if c.Vault.StorageClass == "" {
			c.Vault.StorageClass = DefaultStorageClass
		}
		if c.Vault.NoncurrentDays == 0 {
			c.Vault.NoncurrentDays = DefaultNoncurrentDays
		}
	}

	if c.Encryption.Type == "" {
		c.Encryption.Type = "age"
	}
	if c.Encryption.PublicKeyPath == "" && c.HomeDir != "" {
		c.Encryption.PublicKeyPath = filepath.Join(c.HomeDir, "keys", "msync.pub")
	}
	if c.Encryption.PrivateKeyPath == "" && c.HomeDir != "" {
		c.Encryption.PrivateKeyPath = filepath.Join(c.HomeDir, "keys", "msync.key")
	}

	if c.Notification.Type == "" {
		c.Notification.Type = "none"
		if c.Notification.Webhook != "" {
			c.Notification.Type = "teams"
		}
	}
}

// Validate checks that the configuration is complete and consistent.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.HomeDir == "" {
		errs = append(errs, errors.New("home_dir is required"))
	}
	switch c.Fingerprint {
	case "checksum", "mtime":
	default:
		errs = append(errs, fmt.Errorf("fingerprint must be checksum or mtime, got %q", c.Fingerprint))
	}
	if len(c.Backup.Folders) == 0 && len(c.Backup.Roots) == 0 {
		errs = append(errs, errors.New("backup: at least one folder or root is required"))
	}

	switch c.Database.Type {
	case "sqlite":
		if c.Database.DataDir == "" {
			errs = append(errs, errors.New("database: data_dir required for sqlite"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("database: unknown type %q", c.Database.Type))
	}

	switch c.Vault.Type {
	case "s3":
		if (c.Vault.AccessKey == "") != (c.Vault.SecretAccessKey == "") {
			errs = append(errs, errors.New("vault: access_key and secret_access_key must be set together"))
		}
		if c.Vault.NoncurrentDays < 0 {
			errs = append(errs, errors.New("vault: noncurrent_days must not be negative"))
		}
	case "filesystem":
		if c.Vault.FSRoot == "" {
			errs = append(errs, errors.New("vault: fs_root required for filesystem vault"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("vault: unknown type %q", c.Vault.Type))
	}

	if c.Encryption.Enabled {
		switch c.Encryption.Type {
		case "age":
			if c.Encryption.PublicKeyPath == "" || c.Encryption.PrivateKeyPath == "" {
				errs = append(errs, errors.New("encryption: public_key_path and private_key_path are required"))
			}
		case "test":
		default:
			errs = append(errs, fmt.Errorf("encryption: unknown type %q", c.Encryption.Type))
		}
	}

	switch c.Notification.Type {
	case "teams":
		if c.Notification.Webhook == "" {
			errs = append(errs, errors.New("notification: webhook required for teams"))
		}
	case "log", "none":
	default:
		errs = append(errs, fmt.Errorf("notification: unknown type %q", c.Notification.Type))
	}

	return errors.Join(errs...)
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
// Defaults are applied; a missing home_dir falls back to defaultHomeDir.
func ReadFromFile(path, defaultHomeDir string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if cfg.HomeDir == "" {
		cfg.HomeDir = defaultHomeDir
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// The file may hold credentials, so it is only readable by the owner.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
