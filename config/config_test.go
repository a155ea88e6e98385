package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Wikibase.APIURL != "https://www.wikidata.org/w/api.php" {
		t.Errorf("expected default api url https://www.wikidata.org/w/api.php, got %s", cfg.Wikibase.APIURL)
	}
	if cfg.Wikibase.SPARQLURL != "https://query.wikidata.org/sparql" {
		t.Errorf("expected default sparql url https://query.wikidata.org/sparql, got %s", cfg.Wikibase.SPARQLURL)
	}
	if cfg.Store.TTL != Duration(time.Hour) {
		t.Errorf("expected default store ttl 1h, got %v", cfg.Store.TTL)
	}
	if cfg.Monitor.SessionWindow != Duration(15*time.Minute) {
		t.Errorf("expected default session window 15m, got %v", cfg.Monitor.SessionWindow)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing api url",
			modify:  func(c *Config) { c.Wikibase.APIURL = "" },
			wantErr: true,
		},
		{
			name:    "missing sparql url",
			modify:  func(c *Config) { c.Wikibase.SPARQLURL = "" },
			wantErr: true,
		},
		{
			name:    "negative store ttl",
			modify:  func(c *Config) { c.Store.TTL = Duration(-time.Minute) },
			wantErr: true,
		},
		{
			name:    "missing monitor stream",
			modify:  func(c *Config) { c.Monitor.Stream = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create temp file with config
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
wikibase:
  api_url: "https://test.wikibase.example/w/api.php"
  sparql_url: "https://test.wikibase.example/sparql"
  user_agent: "claimwatch-test/0.1"
  timeout: 10s
store:
  ttl: 30m
nats:
  url: "nats://test:4222"
monitor:
  stream: "TEST_EDITS"
  session_window: 5m
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Wikibase.APIURL != "https://test.wikibase.example/w/api.php" {
		t.Errorf("expected test api url, got %s", cfg.Wikibase.APIURL)
	}
	if cfg.Wikibase.Timeout != Duration(10*time.Second) {
		t.Errorf("expected timeout 10s, got %v", cfg.Wikibase.Timeout)
	}
	if cfg.Store.TTL != Duration(30*time.Minute) {
		t.Errorf("expected store ttl 30m, got %v", cfg.Store.TTL)
	}
	if cfg.NATS.URL != "nats://test:4222" {
		t.Errorf("expected NATS URL nats://test:4222, got %s", cfg.NATS.URL)
	}
	if cfg.Monitor.Stream != "TEST_EDITS" {
		t.Errorf("expected monitor stream TEST_EDITS, got %s", cfg.Monitor.Stream)
	}
	if cfg.Monitor.SessionWindow != Duration(5*time.Minute) {
		t.Errorf("expected session window 5m, got %v", cfg.Monitor.SessionWindow)
	}
	// Unset fields keep their defaults.
	if cfg.Monitor.Consumer != "constraint-monitor" {
		t.Errorf("expected default consumer, got %s", cfg.Monitor.Consumer)
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		Wikibase: WikibaseConfig{
			APIURL: "https://override.example/w/api.php",
		},
		Monitor: MonitorConfig{
			Consumer: "override-consumer",
		},
	}

	base.Merge(override)

	if base.Wikibase.APIURL != "https://override.example/w/api.php" {
		t.Errorf("expected overridden api url, got %s", base.Wikibase.APIURL)
	}
	// SPARQL URL should remain from base since override didn't set it
	if base.Wikibase.SPARQLURL != "https://query.wikidata.org/sparql" {
		t.Errorf("expected sparql url to remain default, got %s", base.Wikibase.SPARQLURL)
	}
	if base.Monitor.Consumer != "override-consumer" {
		t.Errorf("expected overridden consumer, got %s", base.Monitor.Consumer)
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Monitor.Stream = "SAVED_EDITS"

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	// Verify file was created
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	// Load and verify
	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Monitor.Stream != "SAVED_EDITS" {
		t.Errorf("expected stream SAVED_EDITS, got %s", loaded.Monitor.Stream)
	}
}
