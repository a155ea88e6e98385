package wikiapi

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/c360studio/claimwatch/checker"
	"github.com/c360studio/claimwatch/model"
)

// AskService runs boolean graph queries. The SPARQL client satisfies it.
type AskService interface {
	Ask(ctx context.Context, query string) (bool, error)
}

// RefLookup serves the reference data checkers need: current entity
// snapshots from the action API and class-hierarchy membership from the
// query service. Both are cached with bounded LRUs since a burst of edits
// tends to touch the same neighbourhood of the graph.
type RefLookup struct {
	client     *Client
	ask        AskService
	entities   *lruCache[*model.RevisionWrapper]
	membership *lruCache[bool]
}

// NewRefLookup creates a lookup over the action API client and query
// service.
func NewRefLookup(client *Client, ask AskService, cacheSize int) *RefLookup {
	return &RefLookup{
		client:     client,
		ask:        ask,
		entities:   newLRUCache[*model.RevisionWrapper](cacheSize),
		membership: newLRUCache[bool](cacheSize),
	}
}

// Entity returns the current snapshot of an entity, following redirects.
// Deleted entities are cached as misses so repeated checks against the
// same dangling target do not refetch.
func (l *RefLookup) Entity(ctx context.Context, entityID string) (*model.RevisionWrapper, error) {
	if snap, ok := l.entities.Get(entityID); ok {
		if snap == nil {
			return nil, &checker.NotFoundError{EntityID: entityID}
		}
		return snap, nil
	}

	snap, err := l.client.GetEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	l.entities.Put(entityID, snap)
	if snap == nil {
		return nil, &checker.NotFoundError{EntityID: entityID}
	}
	return snap, nil
}

// IsInstanceOf reports whether the entity reaches one of the classes via
// the relation properties, either directly or through the subclass
// hierarchy.
func (l *RefLookup) IsInstanceOf(ctx context.Context, entityID string, relations, classes []string) (bool, error) {
	snap, err := l.Entity(ctx, entityID)
	if err != nil {
		if checker.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	var bases []string
	for _, rel := range relations {
		for _, s := range snap.ActiveStatements(rel) {
			if id, ok := s.Value.EntityID(); ok {
				bases = append(bases, id)
			}
		}
	}
	if len(bases) == 0 {
		return false, nil
	}
	for _, base := range bases {
		for _, class := range classes {
			if base == class {
				return true, nil
			}
		}
	}
	return l.AnySubclassOf(ctx, bases, classes)
}

// AnySubclassOf reports whether any base class transitively subclasses
// one of the target classes.
func (l *RefLookup) AnySubclassOf(ctx context.Context, bases, classes []string) (bool, error) {
	if len(bases) == 0 || len(classes) == 0 {
		return false, nil
	}

	key := membershipKey(bases, classes)
	if ok, hit := l.membership.Get(key); hit {
		return ok, nil
	}

	query := fmt.Sprintf(
		`ASK { VALUES ?base { %s } VALUES ?class { %s } ?base wdt:P279* ?class }`,
		entityList(bases), entityList(classes))
	ok, err := l.ask.Ask(ctx, query)
	if err != nil {
		return false, err
	}
	l.membership.Put(key, ok)
	return ok, nil
}

// membershipKey is order-insensitive so permuted base lists share a
// cache entry.
func membershipKey(bases, classes []string) string {
	b := append([]string(nil), bases...)
	c := append([]string(nil), classes...)
	sort.Strings(b)
	sort.Strings(c)
	return strings.Join(b, ",") + "|" + strings.Join(c, ",")
}

func entityList(ids []string) string {
	prefixed := make([]string, len(ids))
	for i, id := range ids {
		prefixed[i] = "wd:" + id
	}
	return strings.Join(prefixed, " ")
}
