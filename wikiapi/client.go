// Package wikiapi reads entity revisions from a MediaWiki action API with
// the Wikibase extension. It produces the immutable snapshots the rest of
// the pipeline evaluates; nothing here ever writes to the wiki.
package wikiapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/c360studio/claimwatch/model"
)

const defaultTimeout = 30 * time.Second

// RevisionNotFoundError reports a revision ID the wiki does not know,
// typically because the revision was suppressed or the page deleted.
type RevisionNotFoundError struct {
	RevisionID int64
}

func (e *RevisionNotFoundError) Error() string {
	return fmt.Sprintf("revision %d not found", e.RevisionID)
}

// Client reads entity data from the action API.
type Client struct {
	apiURL    string
	userAgent string
	client    *http.Client
}

// NewClient creates a read-only action API client. A zero timeout falls
// back to 30 seconds.
func NewClient(apiURL, userAgent string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		apiURL:    apiURL,
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

type revisionsResponse struct {
	Query struct {
		BadRevIDs map[string]json.RawMessage `json:"badrevids"`
		Pages     []struct {
			Title     string `json:"title"`
			Missing   bool   `json:"missing"`
			Revisions []struct {
				RevID int64 `json:"revid"`
				Slots struct {
					Main struct {
						Content string `json:"content"`
					} `json:"main"`
				} `json:"slots"`
			} `json:"revisions"`
		} `json:"pages"`
	} `json:"query"`
	Error *apiError `json:"error"`
}

type entitiesResponse struct {
	Entities map[string]json.RawMessage `json:"entities"`
	Error    *apiError                  `json:"error"`
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api error %s: %s", e.Code, e.Info)
}

// GetRevision fetches one historical revision of an entity and wraps it
// as an immutable snapshot.
func (c *Client) GetRevision(ctx context.Context, revisionID int64) (*model.RevisionWrapper, error) {
	params := url.Values{
		"action":        {"query"},
		"prop":          {"revisions"},
		"revids":        {fmt.Sprintf("%d", revisionID)},
		"rvprop":        {"ids|content"},
		"rvslots":       {"main"},
		"format":        {"json"},
		"formatversion": {"2"},
	}

	var resp revisionsResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	if len(resp.Query.BadRevIDs) > 0 || len(resp.Query.Pages) == 0 {
		return nil, &RevisionNotFoundError{RevisionID: revisionID}
	}

	page := resp.Query.Pages[0]
	if page.Missing || len(page.Revisions) == 0 {
		return nil, &RevisionNotFoundError{RevisionID: revisionID}
	}

	return parseEntityJSON([]byte(page.Revisions[0].Slots.Main.Content), page.Revisions[0].RevID)
}

// GetEntity fetches the current revision of an entity, following
// redirects. A deleted or never-created entity returns nil without error;
// callers translate that into their own not-found error.
func (c *Client) GetEntity(ctx context.Context, entityID string) (*model.RevisionWrapper, error) {
	params := url.Values{
		"action":        {"wbgetentities"},
		"ids":           {entityID},
		"redirects":     {"yes"},
		"props":         {"claims|info"},
		"format":        {"json"},
		"formatversion": {"2"},
	}

	var resp entitiesResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		// no-such-entity means deleted, not a transport failure.
		if resp.Error.Code == "no-such-entity" {
			return nil, nil
		}
		return nil, resp.Error
	}

	for _, raw := range resp.Entities {
		var head struct {
			Missing   json.RawMessage `json:"missing"`
			LastRevID int64           `json:"lastrevid"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return nil, fmt.Errorf("decode entity payload: %w", err)
		}
		if len(head.Missing) > 0 {
			return nil, nil
		}
		return parseEntityJSON(raw, head.LastRevID)
	}
	return nil, nil
}

func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call action api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from action api", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode action api response: %w", err)
	}
	return nil
}
