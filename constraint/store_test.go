package constraint

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/c360studio/semstreams/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQueryService returns canned rows per property and counts queries.
type fakeQueryService struct {
	mu      sync.Mutex
	rows    []map[string]string
	err     error
	calls   atomic.Int64
	release chan struct{} // when set, Select blocks until closed
}

func (f *fakeQueryService) Select(ctx context.Context, query string) ([]map[string]string, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func oneOfRows() []map[string]string {
	return []map[string]string{
		{"id": "P31$c1", "type": "http://www.wikidata.org/entity/Q21510859", "qual": "P2305", "value": "http://www.wikidata.org/entity/Q5"},
		{"id": "P31$c1", "type": "http://www.wikidata.org/entity/Q21510859", "qual": "P2305", "value": "http://www.wikidata.org/entity/Q6"},
	}
}

func TestStoreFetchesAndCaches(t *testing.T) {
	svc := &fakeQueryService{rows: oneOfRows()}
	store := NewStore(svc, time.Minute, nil)

	defs, err := store.ConstraintsFor(context.Background(), "P31")
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, KindOneOf, defs[0].Kind)
	assert.Equal(t, "P31", defs[0].Property)
	assert.Equal(t, []string{"Q5", "Q6"}, defs[0].Params.Values)

	// Second call is served from cache.
	_, err = store.ConstraintsFor(context.Background(), "P31")
	require.NoError(t, err)
	assert.Equal(t, int64(1), svc.calls.Load())
}

func TestStoreCachesEmptyResult(t *testing.T) {
	svc := &fakeQueryService{}
	store := NewStore(svc, time.Minute, nil)

	defs, err := store.ConstraintsFor(context.Background(), "P999")
	require.NoError(t, err)
	assert.Empty(t, defs)

	_, err = store.ConstraintsFor(context.Background(), "P999")
	require.NoError(t, err)
	// "No constraints" is cached, not re-fetched.
	assert.Equal(t, int64(1), svc.calls.Load())
}

func TestStoreTTLExpiry(t *testing.T) {
	svc := &fakeQueryService{rows: oneOfRows()}
	store := NewStore(svc, 10*time.Millisecond, nil)

	_, err := store.ConstraintsFor(context.Background(), "P31")
	require.NoError(t, err)

	time.Sleep(25 * time.Millisecond)

	_, err = store.ConstraintsFor(context.Background(), "P31")
	require.NoError(t, err)
	assert.Equal(t, int64(2), svc.calls.Load())
}

func TestStoreFetchError(t *testing.T) {
	// NonRetryable keeps the test from sitting through retry backoff.
	svc := &fakeQueryService{err: retry.NonRetryable(errors.New("query rejected"))}
	store := NewStore(svc, time.Minute, nil)

	_, err := store.ConstraintsFor(context.Background(), "P31")
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "P31", fetchErr.Property)

	// Errors are not cached; the next call fetches again.
	svc.mu.Lock()
	svc.err = nil
	svc.rows = oneOfRows()
	svc.mu.Unlock()

	defs, err := store.ConstraintsFor(context.Background(), "P31")
	require.NoError(t, err)
	assert.Len(t, defs, 1)
}

func TestStoreMalformedRow(t *testing.T) {
	svc := &fakeQueryService{rows: []map[string]string{{"qual": "P2305"}}}
	store := NewStore(svc, time.Minute, nil)

	_, err := store.ConstraintsFor(context.Background(), "P31")
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
}

func TestStoreCoalescesConcurrentFetches(t *testing.T) {
	svc := &fakeQueryService{rows: oneOfRows(), release: make(chan struct{})}
	store := NewStore(svc, time.Minute, nil)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.ConstraintsFor(context.Background(), "P31")
		}(i)
	}

	// Give every goroutine a chance to enter the store before releasing
	// the single in-flight fetch.
	time.Sleep(20 * time.Millisecond)
	close(svc.release)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), svc.calls.Load())
}

func TestStorePurge(t *testing.T) {
	svc := &fakeQueryService{rows: oneOfRows()}
	store := NewStore(svc, time.Minute, nil)

	_, err := store.ConstraintsFor(context.Background(), "P31")
	require.NoError(t, err)

	store.Purge("P31")

	_, err = store.ConstraintsFor(context.Background(), "P31")
	require.NoError(t, err)
	assert.Equal(t, int64(2), svc.calls.Load())
}
