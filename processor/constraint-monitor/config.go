package constraintmonitor

import (
	"fmt"
	"reflect"
	"time"

	"github.com/c360studio/semstreams/component"
)

// constraintMonitorSchema defines the configuration schema.
var constraintMonitorSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Config holds configuration for the constraint-monitor component.
type Config struct {
	// StreamName is the JetStream stream carrying edit events.
	StreamName string `json:"stream_name" schema:"type:string,description:JetStream stream for edit events,category:basic,default:EDITS"`

	// ConsumerName is the durable consumer name for edit consumption.
	ConsumerName string `json:"consumer_name" schema:"type:string,description:Durable consumer name for edit consumption,category:basic,default:constraint-monitor"`

	// APIURL is the MediaWiki action API endpoint to read revisions from.
	APIURL string `json:"api_url" schema:"type:string,description:MediaWiki action API endpoint,category:basic,default:https://www.wikidata.org/w/api.php"`

	// SPARQLURL is the SPARQL endpoint serving constraint definitions and
	// class-hierarchy queries.
	SPARQLURL string `json:"sparql_url" schema:"type:string,description:SPARQL query endpoint,category:basic,default:https://query.wikidata.org/sparql"`

	// UserAgent identifies this service to the wiki per its API etiquette.
	UserAgent string `json:"user_agent" schema:"type:string,description:User-Agent header for outbound API calls,category:basic,default:claimwatch/0.1"`

	// RequestTimeout bounds a single outbound API or query call.
	RequestTimeout string `json:"request_timeout" schema:"type:string,description:Outbound request timeout (duration string),category:advanced,default:30s"`

	// ConstraintTTL is how long fetched constraint definitions stay cached.
	ConstraintTTL string `json:"constraint_ttl" schema:"type:string,description:Constraint definition cache TTL (duration string),category:advanced,default:1h"`

	// SessionWindow groups consecutive edits by the same author into one
	// burst when they follow each other within this window.
	SessionWindow string `json:"session_window" schema:"type:string,description:Same-author edit session window (duration string),category:advanced,default:15m"`

	// FlushInterval is how often idle entity buffers are flushed for
	// evaluation.
	FlushInterval string `json:"flush_interval" schema:"type:string,description:Idle buffer flush interval (duration string),category:advanced,default:30s"`

	// LookupCacheSize bounds the reference-data LRU caches.
	LookupCacheSize int `json:"lookup_cache_size" schema:"type:int,description:Entity and class-membership cache size,category:advanced,default:1024"`

	// ReportAll publishes a report even for bursts with no newly
	// introduced violations.
	ReportAll bool `json:"report_all" schema:"type:bool,description:Publish reports with no new violations,category:advanced,default:false"`

	// Ports contains input/output port definitions.
	Ports *component.PortConfig `json:"ports,omitempty" schema:"type:ports,description:Input/output port definitions,category:basic"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		StreamName:      "EDITS",
		ConsumerName:    "constraint-monitor",
		APIURL:          "https://www.wikidata.org/w/api.php",
		SPARQLURL:       "https://query.wikidata.org/sparql",
		UserAgent:       "claimwatch/0.1",
		RequestTimeout:  "30s",
		ConstraintTTL:   "1h",
		SessionWindow:   "15m",
		FlushInterval:   "30s",
		LookupCacheSize: 1024,
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{
					Name:        "edit-events",
					Type:        "jetstream",
					Subject:     "claimwatch.edit.>",
					StreamName:  "EDITS",
					Description: "Receive entity edit events",
					Required:    true,
				},
			},
			Outputs: []component.PortDefinition{
				{
					Name:        "violation-reports",
					Type:        "jetstream",
					Subject:     "claimwatch.report.>",
					Description: "Publish constraint evaluation reports",
					Required:    false,
				},
			},
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.StreamName == "" {
		return fmt.Errorf("stream_name is required")
	}
	if c.ConsumerName == "" {
		return fmt.Errorf("consumer_name is required")
	}
	if c.APIURL == "" {
		return fmt.Errorf("api_url is required")
	}
	if c.SPARQLURL == "" {
		return fmt.Errorf("sparql_url is required")
	}
	return nil
}

// GetRequestTimeout parses the request timeout, defaulting to 30s.
func (c *Config) GetRequestTimeout() time.Duration {
	return parseDuration(c.RequestTimeout, 30*time.Second)
}

// GetConstraintTTL parses the constraint cache TTL, defaulting to 1h.
func (c *Config) GetConstraintTTL() time.Duration {
	return parseDuration(c.ConstraintTTL, time.Hour)
}

// GetSessionWindow parses the session window, defaulting to 15m.
func (c *Config) GetSessionWindow() time.Duration {
	return parseDuration(c.SessionWindow, 15*time.Minute)
}

// GetFlushInterval parses the flush interval, defaulting to 30s.
func (c *Config) GetFlushInterval() time.Duration {
	return parseDuration(c.FlushInterval, 30*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
