package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Sync        SyncConfig        `toml:"sync"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	ClickUp ClickUpConfig `toml:"clickup"`
	Monday  MondayConfig  `toml:"monday"`
	// VaultKey is the hex-encoded 32-byte key used to encrypt stored tokens.
	VaultKey string `toml:"vault_key"`
}

// ClickUpConfig contains ClickUp API credentials.
//
// Either a personal APIToken or an OAuth2 client pair may be supplied;
// the personal token takes precedence when both are present.
type ClickUpConfig struct {
	APIToken     string `toml:"api_token"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// MondayConfig contains Monday.com API credentials.
type MondayConfig struct {
	APIToken string `toml:"api_token"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings for the OAuth callback listener.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// SyncConfig contains defaults for sync and replication jobs.
type SyncConfig struct {
	BatchSize         int     `toml:"batch_size"`
	BatchDelayMS      int     `toml:"batch_delay_ms"`
	MaxRetries        int     `toml:"max_retries"`
	MaxFileSizeMB     int64   `toml:"max_file_size_mb"`
	MaxConcurrency    int     `toml:"max_concurrency"`
	ComplexityPerMin  int     `toml:"complexity_per_minute"`
	RequestsPerMinute int     `toml:"requests_per_minute"`
	BudgetThreshold   float64 `toml:"budget_threshold"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
