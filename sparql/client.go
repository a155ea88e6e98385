// Package sparql provides a minimal SPARQL 1.1 protocol client for the
// query service endpoint. It speaks the application/sparql-results+json
// format and flattens bindings into string maps, which is all the
// constraint pipeline needs.
package sparql

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client queries a SPARQL endpoint over HTTP.
type Client struct {
	endpoint  string
	userAgent string
	client    *http.Client
}

// NewClient creates a client for the endpoint. A zero timeout falls back
// to 30 seconds.
func NewClient(endpoint, userAgent string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint:  endpoint,
		userAgent: userAgent,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 90 * time.Second,
			},
		},
	}
}

// resultsEnvelope is the sparql-results+json wire shape.
type resultsEnvelope struct {
	Results struct {
		Bindings []map[string]struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		} `json:"bindings"`
	} `json:"results"`
	Boolean *bool `json:"boolean"`
}

// Select runs a SELECT query and returns one map per row keyed by output
// variable name. Unbound variables are absent from their row's map.
func (c *Client) Select(ctx context.Context, query string) ([]map[string]string, error) {
	env, err := c.run(ctx, query)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]string, 0, len(env.Results.Bindings))
	for _, binding := range env.Results.Bindings {
		row := make(map[string]string, len(binding))
		for name, cell := range binding {
			row[name] = cell.Value
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Ask runs an ASK query and returns its boolean result.
func (c *Client) Ask(ctx context.Context, query string) (bool, error) {
	env, err := c.run(ctx, query)
	if err != nil {
		return false, err
	}
	if env.Boolean == nil {
		return false, fmt.Errorf("endpoint returned no boolean for ASK query")
	}
	return *env.Boolean, nil
}

func (c *Client) run(ctx context.Context, query string) (*resultsEnvelope, error) {
	form := url.Values{"query": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/sparql-results+json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Include a slice of the body; endpoints put parse errors there.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("HTTP %d from endpoint: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var env resultsEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	return &env, nil
}
