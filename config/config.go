// Package config provides configuration loading and management for claimwatch.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete claimwatch configuration
type Config struct {
	Wikibase WikibaseConfig `yaml:"wikibase"`
	Store    StoreConfig    `yaml:"store"`
	NATS     NATSConfig     `yaml:"nats"`
	Monitor  MonitorConfig  `yaml:"monitor"`
}

// Duration wraps time.Duration so config files can spell durations as
// strings like "30s"; yaml cannot decode those into time.Duration itself.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML accepts "30s"-style strings and raw nanosecond integers.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := node.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value %q", node.Value)
	}
	*d = Duration(n)
	return nil
}

// MarshalYAML renders the duration as a string so saved configs load back.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// WikibaseConfig configures the wiki endpoints the evaluator reads from
type WikibaseConfig struct {
	// APIURL is the MediaWiki action API endpoint
	APIURL string `yaml:"api_url"`
	// SPARQLURL is the SPARQL query service endpoint
	SPARQLURL string `yaml:"sparql_url"`
	// UserAgent identifies this service to the wiki
	UserAgent string `yaml:"user_agent"`
	// Timeout bounds a single outbound request
	Timeout Duration `yaml:"timeout"`
}

// StoreConfig configures the constraint definition cache
type StoreConfig struct {
	// TTL is how long fetched constraint definitions stay cached
	TTL Duration `yaml:"ttl"`
	// LookupCacheSize bounds the reference-data LRU caches
	LookupCacheSize int `yaml:"lookup_cache_size"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL
	URL string `yaml:"url"`
}

// MonitorConfig configures the edit-stream processor
type MonitorConfig struct {
	// Stream is the JetStream stream carrying edit events
	Stream string `yaml:"stream"`
	// Subject is the edit event subject filter
	Subject string `yaml:"subject"`
	// Consumer is the durable consumer name
	Consumer string `yaml:"consumer"`
	// SessionWindow groups same-author edits into one burst
	SessionWindow Duration `yaml:"session_window"`
	// FlushInterval is how often idle buffers are evaluated
	FlushInterval Duration `yaml:"flush_interval"`
	// ReportAll publishes reports even without new violations
	ReportAll bool `yaml:"report_all"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Wikibase: WikibaseConfig{
			APIURL:    "https://www.wikidata.org/w/api.php",
			SPARQLURL: "https://query.wikidata.org/sparql",
			UserAgent: "claimwatch/0.1",
			Timeout:   Duration(30 * time.Second),
		},
		Store: StoreConfig{
			TTL:             Duration(time.Hour),
			LookupCacheSize: 1024,
		},
		NATS: NATSConfig{
			URL: "nats://localhost:4222",
		},
		Monitor: MonitorConfig{
			Stream:        "EDITS",
			Subject:       "claimwatch.edit.>",
			Consumer:      "constraint-monitor",
			SessionWindow: Duration(15 * time.Minute),
			FlushInterval: Duration(30 * time.Second),
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Wikibase.APIURL == "" {
		return fmt.Errorf("wikibase.api_url is required")
	}
	if c.Wikibase.SPARQLURL == "" {
		return fmt.Errorf("wikibase.sparql_url is required")
	}
	if c.Store.TTL < 0 {
		return fmt.Errorf("store.ttl must not be negative")
	}
	if c.Monitor.Stream == "" {
		return fmt.Errorf("monitor.stream is required")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Wikibase
	if other.Wikibase.APIURL != "" {
		c.Wikibase.APIURL = other.Wikibase.APIURL
	}
	if other.Wikibase.SPARQLURL != "" {
		c.Wikibase.SPARQLURL = other.Wikibase.SPARQLURL
	}
	if other.Wikibase.UserAgent != "" {
		c.Wikibase.UserAgent = other.Wikibase.UserAgent
	}
	if other.Wikibase.Timeout != 0 {
		c.Wikibase.Timeout = other.Wikibase.Timeout
	}

	// Store
	if other.Store.TTL != 0 {
		c.Store.TTL = other.Store.TTL
	}
	if other.Store.LookupCacheSize != 0 {
		c.Store.LookupCacheSize = other.Store.LookupCacheSize
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}

	// Monitor
	if other.Monitor.Stream != "" {
		c.Monitor.Stream = other.Monitor.Stream
	}
	if other.Monitor.Subject != "" {
		c.Monitor.Subject = other.Monitor.Subject
	}
	if other.Monitor.Consumer != "" {
		c.Monitor.Consumer = other.Monitor.Consumer
	}
	if other.Monitor.SessionWindow != 0 {
		c.Monitor.SessionWindow = other.Monitor.SessionWindow
	}
	if other.Monitor.FlushInterval != 0 {
		c.Monitor.FlushInterval = other.Monitor.FlushInterval
	}
	if other.Monitor.ReportAll {
		c.Monitor.ReportAll = true
	}
}
