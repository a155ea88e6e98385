package model

import "fmt"

// MalformedEntityError reports an entity payload that cannot form a valid
// snapshot, such as a statement without a stable ID. It is not retryable.
type MalformedEntityError struct {
	EntityID string
	Reason   string
}

func (e *MalformedEntityError) Error() string {
	return fmt.Sprintf("malformed entity %s: %s", e.EntityID, e.Reason)
}

// RevisionWrapper is an immutable snapshot of one entity's statements at
// one revision. Two wrappers of the same entity at different revisions
// share no mutable state, so diffing them is purely value-based.
type RevisionWrapper struct {
	entityID   string
	revisionID int64
	order      []string // property IDs in first-seen order
	claims     map[string][]Statement
}

// NewRevisionWrapper builds a snapshot from a raw statement list.
// Statement order within a property and property first-seen order are
// preserved. Returns a MalformedEntityError if the entity ID is empty or
// any statement lacks a stable ID or property ID.
func NewRevisionWrapper(entityID string, revisionID int64, statements []Statement) (*RevisionWrapper, error) {
	if entityID == "" {
		return nil, &MalformedEntityError{Reason: "empty entity id"}
	}
	w := &RevisionWrapper{
		entityID:   entityID,
		revisionID: revisionID,
		claims:     make(map[string][]Statement),
	}
	for i, s := range statements {
		if s.ID == "" {
			return nil, &MalformedEntityError{EntityID: entityID, Reason: fmt.Sprintf("statement %d has no stable id", i)}
		}
		if s.Property == "" {
			return nil, &MalformedEntityError{EntityID: entityID, Reason: fmt.Sprintf("statement %s has no property id", s.ID)}
		}
		if s.Rank == "" {
			s.Rank = RankNormal
		}
		if _, ok := w.claims[s.Property]; !ok {
			w.order = append(w.order, s.Property)
		}
		w.claims[s.Property] = append(w.claims[s.Property], s.clone())
	}
	return w, nil
}

// EntityID returns the entity this snapshot belongs to.
func (w *RevisionWrapper) EntityID() string { return w.entityID }

// RevisionID returns the revision this snapshot was taken at.
func (w *RevisionWrapper) RevisionID() int64 { return w.revisionID }

// Properties returns all property IDs present, in first-seen order.
func (w *RevisionWrapper) Properties() []string {
	out := make([]string, len(w.order))
	copy(out, w.order)
	return out
}

// HasProperty reports whether any statement is declared under the property.
func (w *RevisionWrapper) HasProperty(property string) bool {
	return len(w.claims[property]) > 0
}

// Statements returns the statements declared under a property, in
// declaration order. The returned slice is a deep copy; mutating it does
// not affect the snapshot. An absent property yields an empty slice.
func (w *RevisionWrapper) Statements(property string) []Statement {
	stmts := w.claims[property]
	out := make([]Statement, len(stmts))
	for i, s := range stmts {
		out[i] = s.clone()
	}
	return out
}

// ActiveStatements returns the non-deprecated statements under a property.
func (w *RevisionWrapper) ActiveStatements(property string) []Statement {
	var out []Statement
	for _, s := range w.claims[property] {
		if s.Rank != RankDeprecated {
			out = append(out, s.clone())
		}
	}
	return out
}

// BestStatements returns the statements that count as current truth for a
// property: the preferred-rank ones when any exist, otherwise the
// normal-rank ones. Deprecated statements never qualify.
func (w *RevisionWrapper) BestStatements(property string) []Statement {
	best := RankNormal
	var out []Statement
	for _, s := range w.claims[property] {
		if s.Rank == RankPreferred && best != RankPreferred {
			best = RankPreferred
			out = out[:0]
		}
		if s.Rank == best {
			out = append(out, s.clone())
		}
	}
	return out
}

// HasStatementValue reports whether any active statement under the property
// carries a value matching the given constraint value list.
func (w *RevisionWrapper) HasStatementValue(property string, values []string) bool {
	for _, s := range w.claims[property] {
		if s.Rank == RankDeprecated {
			continue
		}
		if s.Value.InValues(values) {
			return true
		}
	}
	return false
}
