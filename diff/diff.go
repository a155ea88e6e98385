// Package diff reduces two revision snapshots of the same entity to the
// minimal set of statement-level changes, keyed by property.
package diff

import (
	"fmt"

	"github.com/c360studio/claimwatch/model"
)

// EntityMismatchError reports a diff attempted across two different
// entities. It is a caller logic error, not retryable.
type EntityMismatchError struct {
	Base string
	New  string
}

func (e *EntityMismatchError) Error() string {
	return fmt.Sprintf("cannot diff revisions of different entities: %s vs %s", e.Base, e.New)
}

// PropertyDelta classifies every statement ID of one property across the
// two revisions. Each ID appears in exactly one bucket.
type PropertyDelta struct {
	Added     []string
	Removed   []string
	Modified  []string
	Unchanged []string
}

// Touched reports whether the property carries any actual change.
func (d PropertyDelta) Touched() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Modified) > 0
}

// ChangeSet is the output of Diff: the per-property statement deltas
// between a base and a new revision of one entity.
type ChangeSet struct {
	entityID string
	baseRev  int64
	newRev   int64
	order    []string
	deltas   map[string]PropertyDelta
}

// EntityID returns the entity both revisions belong to.
func (c *ChangeSet) EntityID() string { return c.entityID }

// BaseRevision returns the base revision ID.
func (c *ChangeSet) BaseRevision() int64 { return c.baseRev }

// NewRevision returns the new revision ID.
func (c *ChangeSet) NewRevision() int64 { return c.newRev }

// Properties returns every property present in either revision, in the
// order first seen scanning base then new. The order is deterministic but
// not semantically significant.
func (c *ChangeSet) Properties() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Touched returns the properties with at least one added, removed or
// modified statement, in Properties order.
func (c *ChangeSet) Touched() []string {
	var out []string
	for _, p := range c.order {
		if c.deltas[p].Touched() {
			out = append(out, p)
		}
	}
	return out
}

// Delta returns the classified statement IDs for one property.
func (c *ChangeSet) Delta(property string) (PropertyDelta, bool) {
	d, ok := c.deltas[property]
	return d, ok
}

// Empty reports whether no property was touched.
func (c *ChangeSet) Empty() bool {
	return len(c.Touched()) == 0
}

// Diff computes the statement-level delta between two revisions of the
// same entity. The caller is responsible for passing base and new in
// causal order; added/removed are directional relative to that
// orientation. Statement identity is solely the stable ID: value equality
// never re-matches a re-issued statement to an old one.
func Diff(base, new *model.RevisionWrapper) (*ChangeSet, error) {
	if base.EntityID() != new.EntityID() {
		return nil, &EntityMismatchError{Base: base.EntityID(), New: new.EntityID()}
	}

	cs := &ChangeSet{
		entityID: base.EntityID(),
		baseRev:  base.RevisionID(),
		newRev:   new.RevisionID(),
		deltas:   make(map[string]PropertyDelta),
	}

	seen := make(map[string]bool)
	for _, p := range base.Properties() {
		seen[p] = true
		cs.order = append(cs.order, p)
	}
	for _, p := range new.Properties() {
		if !seen[p] {
			seen[p] = true
			cs.order = append(cs.order, p)
		}
	}

	for _, p := range cs.order {
		baseStmts := base.Statements(p)
		newStmts := new.Statements(p)

		newByID := make(map[string]model.Statement, len(newStmts))
		for _, s := range newStmts {
			newByID[s.ID] = s
		}
		baseIDs := make(map[string]bool, len(baseStmts))

		var delta PropertyDelta
		for _, s := range baseStmts {
			baseIDs[s.ID] = true
			other, ok := newByID[s.ID]
			switch {
			case !ok:
				delta.Removed = append(delta.Removed, s.ID)
			case s.EqualContent(other):
				delta.Unchanged = append(delta.Unchanged, s.ID)
			default:
				delta.Modified = append(delta.Modified, s.ID)
			}
		}
		for _, s := range newStmts {
			if !baseIDs[s.ID] {
				delta.Added = append(delta.Added, s.ID)
			}
		}
		cs.deltas[p] = delta
	}

	return cs, nil
}
