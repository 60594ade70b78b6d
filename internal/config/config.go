package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Defaults applied by NewConfig and Normalize.
const (
	DefaultTimeoutSeconds  = 30
	DefaultStagingMaxSize  = 1 << 20
	DefaultRefreshSchedule = "@every 10m"
)

// Config represents the main configuration for feid.
type Config struct {
	ProfileID  string           `toml:"profile_id"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	API        APIConfig        `toml:"api"`
	Database   DatabaseConfig   `toml:"database"`
	Staging    StagingConfig    `toml:"staging"`
	Stores     []StoreConfig    `toml:"stores"`
	Encryption EncryptionConfig `toml:"encryption"`
	Refresh    RefreshConfig    `toml:"refresh"`
}

// APIConfig describes the events API.
type APIConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Changelog      bool   `toml:"changelog"` // request per-cell change history with table fetches
}

// EncryptionConfig holds paths to the age key pair used to encrypt stored objects.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path,omitempty"`
	PrivateKeyPath string `toml:"private_key_path,omitempty"`
}

// StoreConfig represents configuration for a local-store backend that keeps
// layouts and settings.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StoreConfig struct {
	Type string `toml:"type"` // "memory", "filesystem" or "s3"
	Name string `toml:"name"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// DatabaseConfig represents configuration for the snapshot cache database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// StagingConfig represents configuration for the pending-change staging area.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StagingConfig struct {
	Type       string `toml:"type"`                  // "memory" or "filesystem"
	StagingDir string `toml:"staging_dir,omitempty"` // only used for type=filesystem
	MaxSize    int64  `toml:"max_size"`              // max serialized size in bytes; defaults to 1MB
}

// RefreshConfig controls background refetching in watch mode.
type RefreshConfig struct {
	Schedule string `toml:"schedule"` // cron spec
}

// NewConfig creates a new Config with the provided values and default paths
// under baseDir.
func NewConfig(profileID, baseDir string) *Config {
	return &Config{
		ProfileID: profileID,
		BaseDir:   baseDir,
		LogDir:    filepath.Join(baseDir, "log"),
		API: APIConfig{
			BaseURL:        "http://localhost:8080/api",
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
		Database: DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
		Staging: StagingConfig{
			Type:       "filesystem",
			StagingDir: filepath.Join(baseDir, "staging"),
			MaxSize:    DefaultStagingMaxSize,
		},
		Stores: []StoreConfig{
			{Type: "filesystem", Name: "local", FSRoot: filepath.Join(baseDir, "store")},
		},
		Encryption: EncryptionConfig{Type: "none"},
		Refresh:    RefreshConfig{Schedule: DefaultRefreshSchedule},
	}
}

// Normalize fills in defaults for settings left empty in a config file.
func (c *Config) Normalize() {
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.Staging.MaxSize <= 0 {
		c.Staging.MaxSize = DefaultStagingMaxSize
	}
	if c.Encryption.Type == "" {
		c.Encryption.Type = "none"
	}
	if c.Refresh.Schedule == "" {
		c.Refresh.Schedule = DefaultRefreshSchedule
	}
}

// Validate checks the settings required to run any command.
func (c *Config) Validate() error {
	if c.ProfileID == "" {
		return fmt.Errorf("profile_id is required")
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if len(c.Stores) == 0 {
		return fmt.Errorf("at least one store is required")
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Normalize()
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
func ReadFromFile(path string) (*Config, error) {
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
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// 0600: the file may hold S3 credentials.
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
