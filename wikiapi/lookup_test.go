package wikiapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/c360studio/claimwatch/checker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAsk struct {
	result bool
	calls  atomic.Int64
	query  string
}

func (f *fakeAsk) Ask(_ context.Context, query string) (bool, error) {
	f.calls.Add(1)
	f.query = query
	return f.result, nil
}

func entityServer(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		id := r.URL.Query().Get("ids")
		if id == "Q404" {
			fmt.Fprintf(w, `{"entities": {"Q404": {"id": "Q404", "missing": ""}}}`)
			return
		}
		fmt.Fprintf(w, `{"entities": {%q: {
			"id": %q, "lastrevid": 1,
			"claims": {"P31": [{
				"id": "%s$a", "rank": "normal",
				"mainsnak": {"snaktype": "value", "property": "P31",
					"datavalue": {"type": "wikibase-entityid", "value": {"id": "Q146"}}}
			}]}
		}}}`, id, id, id)
	}))
	return srv, &calls
}

func TestLookupEntityCaches(t *testing.T) {
	srv, calls := entityServer(t)
	defer srv.Close()

	l := NewRefLookup(NewClient(srv.URL, "", 0), &fakeAsk{}, 16)

	snap, err := l.Entity(context.Background(), "Q42")
	require.NoError(t, err)
	assert.Equal(t, "Q42", snap.EntityID())

	_, err = l.Entity(context.Background(), "Q42")
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())
}

func TestLookupEntityNotFoundCached(t *testing.T) {
	srv, calls := entityServer(t)
	defer srv.Close()

	l := NewRefLookup(NewClient(srv.URL, "", 0), &fakeAsk{}, 16)

	_, err := l.Entity(context.Background(), "Q404")
	require.True(t, checker.IsNotFound(err))

	_, err = l.Entity(context.Background(), "Q404")
	require.True(t, checker.IsNotFound(err))
	assert.Equal(t, int64(1), calls.Load())
}

func TestIsInstanceOfDirectHit(t *testing.T) {
	srv, _ := entityServer(t)
	defer srv.Close()

	ask := &fakeAsk{}
	l := NewRefLookup(NewClient(srv.URL, "", 0), ask, 16)

	// Q42 is a P31 Q146; a direct class match needs no graph query.
	ok, err := l.IsInstanceOf(context.Background(), "Q42", []string{"P31"}, []string{"Q146"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(0), ask.calls.Load())
}

func TestIsInstanceOfViaSubclass(t *testing.T) {
	srv, _ := entityServer(t)
	defer srv.Close()

	ask := &fakeAsk{result: true}
	l := NewRefLookup(NewClient(srv.URL, "", 0), ask, 16)

	ok, err := l.IsInstanceOf(context.Background(), "Q42", []string{"P31"}, []string{"Q144"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, ask.query, "wd:Q146")
	assert.Contains(t, ask.query, "wd:Q144")
	assert.Contains(t, ask.query, "wdt:P279*")
}

func TestIsInstanceOfMissingEntity(t *testing.T) {
	srv, _ := entityServer(t)
	defer srv.Close()

	l := NewRefLookup(NewClient(srv.URL, "", 0), &fakeAsk{result: true}, 16)

	ok, err := l.IsInstanceOf(context.Background(), "Q404", []string{"P31"}, []string{"Q5"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAnySubclassOfCaches(t *testing.T) {
	ask := &fakeAsk{result: true}
	l := NewRefLookup(nil, ask, 16)

	ok, err := l.AnySubclassOf(context.Background(), []string{"Q146", "Q39201"}, []string{"Q5"})
	require.NoError(t, err)
	assert.True(t, ok)

	// Permuted base order hits the same cache entry.
	ok, err = l.AnySubclassOf(context.Background(), []string{"Q39201", "Q146"}, []string{"Q5"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), ask.calls.Load())
}

func TestLRUEviction(t *testing.T) {
	cache := newLRUCache[int](2)
	cache.Put("a", 1)
	cache.Put("b", 2)
	cache.Put("c", 3)

	_, ok := cache.Get("a")
	assert.False(t, ok)
	v, ok := cache.Get("c")
	require.True(t, ok)
	assert.Equal(t, 3, v)
}
