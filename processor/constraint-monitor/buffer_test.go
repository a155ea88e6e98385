package constraintmonitor

import (
	"testing"
	"time"

	"github.com/c360studio/claimwatch/span"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferFlushIdle(t *testing.T) {
	b := newBurstBuffer()
	b.Add(span.ChangeEntry{EntityID: "Q1", OldRevisionID: 100, NewRevisionID: 101})
	b.Add(span.ChangeEntry{EntityID: "Q1", OldRevisionID: 101, NewRevisionID: 102})
	b.Add(span.ChangeEntry{EntityID: "Q2", OldRevisionID: 200, NewRevisionID: 201})

	// Nothing is idle yet.
	assert.Empty(t, b.FlushIdle(time.Minute))
	assert.Equal(t, 2, b.Pending())

	// With a zero idle threshold everything flushes.
	bursts := b.FlushIdle(0)
	require.Len(t, bursts, 2)
	assert.Equal(t, 0, b.Pending())

	sizes := map[string]int{}
	for _, burst := range bursts {
		sizes[burst[0].EntityID] = len(burst)
	}
	assert.Equal(t, 2, sizes["Q1"])
	assert.Equal(t, 1, sizes["Q2"])
}

func TestBufferActivityResetsIdleClock(t *testing.T) {
	b := newBurstBuffer()
	b.Add(span.ChangeEntry{EntityID: "Q1", OldRevisionID: 100, NewRevisionID: 101})

	time.Sleep(15 * time.Millisecond)
	b.Add(span.ChangeEntry{EntityID: "Q1", OldRevisionID: 101, NewRevisionID: 102})

	// The second edit refreshed the entity; a 10ms idle cutoff keeps it.
	assert.Empty(t, b.FlushIdle(10*time.Millisecond))
	assert.Equal(t, 1, b.Pending())
}

func TestBufferFlushAll(t *testing.T) {
	b := newBurstBuffer()
	b.Add(span.ChangeEntry{EntityID: "Q1", OldRevisionID: 100, NewRevisionID: 101})
	b.Add(span.ChangeEntry{EntityID: "Q2", OldRevisionID: 200, NewRevisionID: 201})

	bursts := b.FlushAll()
	assert.Len(t, bursts, 2)
	assert.Equal(t, 0, b.Pending())
	assert.Empty(t, b.FlushAll())
}
