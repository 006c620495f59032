package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Engine.DBPath == "" || cfg.Engine.IndexPath == "" {
		t.Error("expected non-empty default snapshot paths")
	}

	if !cfg.RestAPI.Enabled {
		t.Error("expected RestAPI.Enabled=true")
	}
	if cfg.RestAPI.Port != 3002 {
		t.Errorf("expected port=3002, got %d", cfg.RestAPI.Port)
	}
	if cfg.RestAPI.Host != "localhost" {
		t.Errorf("expected host=localhost, got %s", cfg.RestAPI.Host)
	}
	if !cfg.RestAPI.CORS {
		t.Error("expected CORS=true")
	}

	if !cfg.RateLimit.Enabled {
		t.Error("expected RateLimit.Enabled=true")
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected logging level=info, got %s", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		expectErr bool
	}{
		{name: "valid config", modify: func(c *Config) {}, expectErr: false},
		{name: "empty db path", modify: func(c *Config) { c.Engine.DBPath = "" }, expectErr: true},
		{name: "empty index path", modify: func(c *Config) { c.Engine.IndexPath = "" }, expectErr: true},
		{name: "invalid port", modify: func(c *Config) { c.RestAPI.Port = 99999 }, expectErr: true},
		{name: "invalid logging level", modify: func(c *Config) { c.Logging.Level = "invalid" }, expectErr: true},
		{name: "invalid logging format", modify: func(c *Config) { c.Logging.Format = "invalid" }, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.expectErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("expected no error, got: %v", err)
			}
		})
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd) //nolint:errcheck
	_ = os.Chdir(tmpDir)

	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", oldHome)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error with missing config, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected config, got nil")
	}
	if cfg.RestAPI.Port != 3002 {
		t.Errorf("expected default port 3002, got %d", cfg.RestAPI.Port)
	}
}

func TestLoadConfig_WithFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
engine:
  db_path: /tmp/test-db.gob
  index_path: /tmp/test-index.gob
rest_api:
  enabled: true
  port: 4000
  host: 127.0.0.1
  cors: false
logging:
  level: debug
  format: json
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd) //nolint:errcheck
	_ = os.Chdir(tmpDir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Engine.DBPath != "/tmp/test-db.gob" {
		t.Errorf("expected db path=/tmp/test-db.gob, got %s", cfg.Engine.DBPath)
	}
	if cfg.RestAPI.Port != 4000 {
		t.Errorf("expected port=4000, got %d", cfg.RestAPI.Port)
	}
	if cfg.RestAPI.CORS {
		t.Error("expected CORS=false, got true")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected level=debug, got %s", cfg.Logging.Level)
	}
}

func TestEnsureDataDirs(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := &Config{
		Engine: EngineConfig{
			DBPath:    filepath.Join(tmpDir, "subdir", "database.gob"),
			IndexPath: filepath.Join(tmpDir, "subdir", "index.gob"),
		},
	}

	if err := cfg.EnsureDataDirs(); err != nil {
		t.Fatalf("EnsureDataDirs failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "subdir")); os.IsNotExist(err) {
		t.Error("data directory was not created")
	}
}

func TestConfigDir(t *testing.T) {
	path := ConfigDir()
	if path == "" {
		t.Error("ConfigDir returned empty string")
	}
	homeDir, _ := os.UserHomeDir()
	expected := filepath.Join(homeDir, ".sqlitoy")
	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}
}
