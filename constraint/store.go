package constraint

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/c360studio/semstreams/pkg/retry"
)

// QueryService is the declarative query collaborator the store fetches
// constraint definitions from. No other component talks to it for
// definitions.
type QueryService interface {
	// Select runs a tabular query and returns one map per result row,
	// keyed by output variable name.
	Select(ctx context.Context, query string) ([]map[string]string, error)
}

// FetchError reports that constraint definitions could not be fetched for
// a property. It is transient: the caller decides whether to retry with
// backoff or skip evaluation for the property.
type FetchError struct {
	Property string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch constraints for %s: %v", e.Property, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// constraintQuery yields one row per parameter qualifier of every
// non-deprecated constraint statement on the property.
const constraintQuery = `SELECT ?id ?type ?qual ?value WHERE {
  wd:%s p:P2302 ?stmt .
  ?stmt ps:P2302 ?type ; wikibase:rank ?rank .
  FILTER(?rank != wikibase:DeprecatedRank)
  BIND(STRAFTER(STR(?stmt), "/statement/") AS ?id)
  OPTIONAL {
    ?stmt ?pq ?value .
    FILTER(STRSTARTS(STR(?pq), STR(pq:)))
    BIND(STRAFTER(STR(?pq), "/qualifier/") AS ?qual)
  }
}`

const defaultTTL = time.Hour

type cacheEntry struct {
	defs    []Definition
	fetched time.Time
}

// Store resolves and caches constraint definitions per property.
// Definitions mutate rarely but are not immutable forever, so cache
// entries expire after a TTL; entity edits never invalidate the cache.
// Concurrent fetches for the same property coalesce to one outstanding
// query.
type Store struct {
	svc    QueryService
	ttl    time.Duration
	logger *slog.Logger

	mu       sync.Mutex
	entries  map[string]cacheEntry
	inflight map[string]chan struct{}
}

// NewStore creates a Store over the query service. A non-positive TTL
// falls back to one hour.
func NewStore(svc QueryService, ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		svc:      svc,
		ttl:      ttl,
		logger:   logger,
		entries:  make(map[string]cacheEntry),
		inflight: make(map[string]chan struct{}),
	}
}

// ConstraintsFor returns the constraints declared on a property, fetching
// them from the query service on a cache miss. A property with no
// declared constraints caches an empty sequence, so "no constraints" is
// not re-fetched on every call. Returns a FetchError when the query
// service is unreachable or returns malformed data.
func (s *Store) ConstraintsFor(ctx context.Context, property string) ([]Definition, error) {
	for {
		s.mu.Lock()
		if entry, ok := s.entries[property]; ok && time.Since(entry.fetched) < s.ttl {
			s.mu.Unlock()
			return copyDefs(entry.defs), nil
		}
		if wait, ok := s.inflight[property]; ok {
			s.mu.Unlock()
			select {
			case <-wait:
				// The other fetch finished; re-check the cache. If it
				// failed nothing was cached and this caller fetches.
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		done := make(chan struct{})
		s.inflight[property] = done
		s.mu.Unlock()

		defs, err := s.fetch(ctx, property)

		s.mu.Lock()
		delete(s.inflight, property)
		close(done)
		if err != nil {
			s.mu.Unlock()
			return nil, &FetchError{Property: property, Err: err}
		}
		s.entries[property] = cacheEntry{defs: defs, fetched: time.Now()}
		s.mu.Unlock()

		return copyDefs(defs), nil
	}
}

// Purge drops the cached entry for a property.
func (s *Store) Purge(property string) {
	s.mu.Lock()
	delete(s.entries, property)
	s.mu.Unlock()
}

func (s *Store) fetch(ctx context.Context, property string) ([]Definition, error) {
	// Retry transient query-service failures; malformed rows won't get
	// better on a second read.
	var results []map[string]string
	retryConfig := retry.DefaultConfig()
	err := retry.Do(ctx, retryConfig, func() error {
		res, err := s.svc.Select(ctx, fmt.Sprintf(constraintQuery, property))
		if err != nil {
			return err
		}
		results = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(results))
	for _, res := range results {
		if res["id"] == "" || res["type"] == "" {
			return nil, fmt.Errorf("malformed constraint row: %v", res)
		}
		rows = append(rows, Row{
			ID:        res["id"],
			TypeItem:  itemID(res["type"]),
			Qualifier: res["qual"],
			Value:     itemID(res["value"]),
		})
	}

	defs := translateRows(property, rows)
	s.logger.Debug("Fetched constraints",
		"property", property,
		"rows", len(rows),
		"definitions", len(defs))
	return defs, nil
}

// itemID shortens a full entity IRI to its ID; plain values pass through.
func itemID(v string) string {
	if i := strings.LastIndex(v, "/entity/"); i >= 0 {
		return v[i+len("/entity/"):]
	}
	return v
}

func copyDefs(defs []Definition) []Definition {
	out := make([]Definition, len(defs))
	copy(out, defs)
	return out
}
