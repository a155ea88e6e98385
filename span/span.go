// Package span collapses a tagged burst of edits to one revision pair,
// so evaluation never runs against a self-correcting intermediate state
// such as an editor fixing their own typo seconds later.
package span

import (
	"fmt"
	"time"
)

// ChangeEntry is one edit reported by the revision stream.
type ChangeEntry struct {
	EntityID      string
	OldRevisionID int64
	NewRevisionID int64
	Tags          []string
	Author        string
	Timestamp     time.Time
}

// Span bounds a logical change: the revision immediately preceding the
// first edit of the burst and the revision produced by its last edit.
type Span struct {
	EntityID     string
	BaseRevision int64
	NewRevision  int64
	Edits        int
}

// SpanResolutionError reports a burst the resolver cannot collapse,
// a caller logic error rather than a transient condition.
type SpanResolutionError struct {
	Reason string
}

func (e *SpanResolutionError) Error() string {
	return fmt.Sprintf("resolve revision span: %s", e.Reason)
}

// Resolve collapses an ordered burst of edits to the revision pair that
// bounds it. The burst must be non-empty, single-entity and contiguous:
// each edit must start from the revision the previous one produced.
func Resolve(entries []ChangeEntry) (Span, error) {
	if len(entries) == 0 {
		return Span{}, &SpanResolutionError{Reason: "empty burst"}
	}

	first := entries[0]
	for i, entry := range entries[1:] {
		if entry.EntityID != first.EntityID {
			return Span{}, &SpanResolutionError{Reason: fmt.Sprintf(
				"burst spans entities %s and %s", first.EntityID, entry.EntityID)}
		}
		if entry.OldRevisionID != entries[i].NewRevisionID {
			return Span{}, &SpanResolutionError{Reason: fmt.Sprintf(
				"non-contiguous revisions: edit %d starts at %d, previous ended at %d",
				i+1, entry.OldRevisionID, entries[i].NewRevisionID)}
		}
	}

	last := entries[len(entries)-1]
	return Span{
		EntityID:     first.EntityID,
		BaseRevision: first.OldRevisionID,
		NewRevision:  last.NewRevisionID,
		Edits:        len(entries),
	}, nil
}

// CollapseSessions splits an ordered change sequence into bursts of
// consecutive edits to the same entity that belong to one logical
// change: edits sharing a stream tag, or edits by the same author
// following each other within the session window. Each burst is a
// candidate for Resolve.
func CollapseSessions(entries []ChangeEntry, window time.Duration) [][]ChangeEntry {
	var bursts [][]ChangeEntry
	var current []ChangeEntry

	for _, entry := range entries {
		if len(current) > 0 && !sameSession(current[len(current)-1], entry, window) {
			bursts = append(bursts, current)
			current = nil
		}
		current = append(current, entry)
	}
	if len(current) > 0 {
		bursts = append(bursts, current)
	}
	return bursts
}

func sameSession(prev, next ChangeEntry, window time.Duration) bool {
	if prev.EntityID != next.EntityID {
		return false
	}
	// A shared tag marks the edits as one batch regardless of author or
	// spacing, e.g. a tool tagging every edit of a mass change.
	if sharesTag(prev.Tags, next.Tags) {
		return true
	}
	return prev.Author == next.Author &&
		next.Timestamp.Sub(prev.Timestamp) <= window
}

func sharesTag(a, b []string) bool {
	for _, tag := range a {
		for _, other := range b {
			if tag == other {
				return true
			}
		}
	}
	return false
}
