package model

// Rank marks statement priority. Deprecated statements are excluded from
// most constraint checks; preferred statements shadow normal ones when a
// checker needs the "best value" for a property.
type Rank string

const (
	RankDeprecated Rank = "deprecated"
	RankNormal     Rank = "normal"
	RankPreferred  Rank = "preferred"
)

// Snak is one property/value pair, used for qualifiers and reference parts.
type Snak struct {
	Property string `json:"property"`
	Value    Value  `json:"value"`
}

// Reference is one provenance record on a statement: an ordered list of
// snaks. References are not constraint-checked directly.
type Reference struct {
	Snaks []Snak `json:"snaks"`
}

// Statement is a single property/value assertion on an entity. The ID is
// stable across edits that do not touch the statement and is the sole
// identity used when diffing revisions.
type Statement struct {
	ID         string      `json:"id"`
	Property   string      `json:"property"`
	Value      Value       `json:"value"`
	Qualifiers []Snak      `json:"qualifiers,omitempty"`
	References []Reference `json:"references,omitempty"`
	Rank       Rank        `json:"rank"`
}

// QualifierValues returns the values of all qualifiers under the given
// property, in declaration order. Qualifiers of the same property may
// repeat.
func (s Statement) QualifierValues(property string) []Value {
	var out []Value
	for _, q := range s.Qualifiers {
		if q.Property == property {
			out = append(out, q.Value)
		}
	}
	return out
}

// QualifierProperties returns the distinct qualifier property IDs in
// declaration order.
func (s Statement) QualifierProperties() []string {
	var out []string
	seen := make(map[string]bool)
	for _, q := range s.Qualifiers {
		if !seen[q.Property] {
			seen[q.Property] = true
			out = append(out, q.Property)
		}
	}
	return out
}

// EqualContent reports whether two statements have the same value,
// qualifiers and rank. References are deliberately excluded: they carry
// provenance, not asserted content, and a reference-only edit must not
// count as a modification for constraint purposes. Identity (the ID field)
// is never part of content equality.
func (s Statement) EqualContent(o Statement) bool {
	if s.Property != o.Property || s.Rank != o.Rank {
		return false
	}
	if !s.Value.Equal(o.Value) {
		return false
	}
	if len(s.Qualifiers) != len(o.Qualifiers) {
		return false
	}
	for i := range s.Qualifiers {
		if s.Qualifiers[i].Property != o.Qualifiers[i].Property {
			return false
		}
		if !s.Qualifiers[i].Value.Equal(o.Qualifiers[i].Value) {
			return false
		}
	}
	return true
}

// clone returns a deep copy so that no slice is shared between two
// revision snapshots.
func (s Statement) clone() Statement {
	out := s
	if s.Qualifiers != nil {
		out.Qualifiers = make([]Snak, len(s.Qualifiers))
		copy(out.Qualifiers, s.Qualifiers)
	}
	if s.References != nil {
		out.References = make([]Reference, len(s.References))
		for i, ref := range s.References {
			snaks := make([]Snak, len(ref.Snaks))
			copy(snaks, ref.Snaks)
			out.References[i] = Reference{Snaks: snaks}
		}
	}
	return out
}
