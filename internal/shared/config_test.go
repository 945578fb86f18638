package shared

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "cmsync.db" {
			t.Errorf("expected database path cmsync.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}

		if config.Credentials.ClickUp.RedirectURI != "http://localhost:8080/callback" {
			t.Errorf("expected clickup redirect URI http://localhost:8080/callback, got %s", config.Credentials.ClickUp.RedirectURI)
		}

		if config.Sync.BatchSize != 10 {
			t.Errorf("expected batch size 10, got %d", config.Sync.BatchSize)
		}

		if config.Sync.BatchDelayMS != 650 {
			t.Errorf("expected batch delay 650ms, got %d", config.Sync.BatchDelayMS)
		}

		if config.Sync.MaxRetries != 3 {
			t.Errorf("expected max retries 3, got %d", config.Sync.MaxRetries)
		}

		if config.Sync.MaxFileSizeMB != 500 {
			t.Errorf("expected max file size 500MB, got %d", config.Sync.MaxFileSizeMB)
		}

		if config.Sync.RequestsPerMinute != 90 {
			t.Errorf("expected 90 requests per minute, got %d", config.Sync.RequestsPerMinute)
		}

		if config.Sync.ComplexityPerMin != 1000000 {
			t.Errorf("expected complexity budget 1000000, got %d", config.Sync.ComplexityPerMin)
		}

		if config.Sync.BudgetThreshold != 0.85 {
			t.Errorf("expected budget threshold 0.85, got %f", config.Sync.BudgetThreshold)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[credentials]
vault_key = "deadbeef"

[credentials.clickup]
api_token = "pk_test_token"
client_id = "test_client_id"
client_secret = "test_secret"
redirect_uri = "http://localhost:9090/callback"

[credentials.monday]
api_token = "monday_test_token"

[database]
path = "/custom/path.db"
max_open_conns = 20
max_idle_conns = 10

[server]
host = "0.0.0.0"
port = 9090

[sync]
batch_size = 25
max_retries = 5
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 9090 {
			t.Errorf("expected server port 9090, got %d", config.Server.Port)
		}

		if config.Credentials.ClickUp.APIToken != "pk_test_token" {
			t.Errorf("expected clickup api_token pk_test_token, got %s", config.Credentials.ClickUp.APIToken)
		}

		if config.Credentials.Monday.APIToken != "monday_test_token" {
			t.Errorf("expected monday api_token monday_test_token, got %s", config.Credentials.Monday.APIToken)
		}

		if config.Sync.BatchSize != 25 {
			t.Errorf("expected batch size 25, got %d", config.Sync.BatchSize)
		}
	})

	t.Run("LoadConfig Missing File", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
			t.Error("loading a missing config file should fail")
		}
	})
}
