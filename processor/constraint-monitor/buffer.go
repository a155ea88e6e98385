package constraintmonitor

import (
	"sync"
	"time"

	"github.com/c360studio/claimwatch/span"
)

// burstBuffer accumulates edit events per entity until the entity goes
// quiet. Evaluation on flush rather than per edit keeps self-correcting
// edit sequences from being reported as transient violations.
type burstBuffer struct {
	mu       sync.Mutex
	byEntity map[string][]span.ChangeEntry
	lastSeen map[string]time.Time
}

func newBurstBuffer() *burstBuffer {
	return &burstBuffer{
		byEntity: make(map[string][]span.ChangeEntry),
		lastSeen: make(map[string]time.Time),
	}
}

// Add appends one edit to its entity's pending burst.
func (b *burstBuffer) Add(entry span.ChangeEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byEntity[entry.EntityID] = append(b.byEntity[entry.EntityID], entry)
	b.lastSeen[entry.EntityID] = time.Now()
}

// FlushIdle removes and returns the pending bursts of entities with no
// activity since the idle cutoff.
func (b *burstBuffer) FlushIdle(idle time.Duration) [][]span.ChangeEntry {
	cutoff := time.Now().Add(-idle)

	b.mu.Lock()
	defer b.mu.Unlock()
	var out [][]span.ChangeEntry
	for entity, seen := range b.lastSeen {
		if seen.After(cutoff) {
			continue
		}
		out = append(out, b.byEntity[entity])
		delete(b.byEntity, entity)
		delete(b.lastSeen, entity)
	}
	return out
}

// FlushAll removes and returns every pending burst, for shutdown.
func (b *burstBuffer) FlushAll() [][]span.ChangeEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]span.ChangeEntry, 0, len(b.byEntity))
	for entity, entries := range b.byEntity {
		out = append(out, entries)
		delete(b.byEntity, entity)
		delete(b.lastSeen, entity)
	}
	return out
}

// Pending reports the number of entities with buffered edits.
func (b *burstBuffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.byEntity)
}
