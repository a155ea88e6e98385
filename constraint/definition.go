// Package constraint models property-constraint definitions and resolves
// them per property from the declarative query service, with an in-process
// TTL cache.
package constraint

import "github.com/c360studio/claimwatch/model"

// Kind names one constraint semantics. The set is open: new kinds appear
// upstream without a synchronized deployment, and an unknown kind must
// degrade to an inapplicable verdict rather than fail.
type Kind string

const (
	KindOneOf              Kind = "one-of"
	KindNoneOf             Kind = "none-of"
	KindFormat             Kind = "format"
	KindUnits              Kind = "units"
	KindInteger            Kind = "integer"
	KindNoBounds           Kind = "no-bounds"
	KindRange              Kind = "range"
	KindValueType          Kind = "value-type"
	KindValueRequires      Kind = "value-requires"
	KindInverse            Kind = "inverse"
	KindSymmetric          Kind = "symmetric"
	KindNoSelfLink         Kind = "no-self-link"
	KindAllowedQualifiers  Kind = "allowed-qualifiers"
	KindRequiredQualifiers Kind = "required-qualifiers"
	KindSingleValue        Kind = "single-value"
	KindItemRequires       Kind = "item-requires"
	KindConflictsWith      Kind = "conflicts-with"
	KindSubjectType        Kind = "subject-type"
	KindPropertyScope      Kind = "property-scope"
)

// Status weights a constraint: mandatory constraints are hard rules,
// suggestions are advisory only.
type Status string

const (
	StatusMandatory  Status = "mandatory"
	StatusRegular    Status = "regular"
	StatusSuggestion Status = "suggestion"
)

// Scope restricts where a constrained property may be checked: as a main
// statement, as a qualifier, or inside a reference.
type Scope string

const (
	ScopeMain      Scope = "main"
	ScopeQualifier Scope = "qualifier"
	ScopeReference Scope = "reference"
)

// Params carries the kind-specific parameters of a definition. Only the
// fields a kind consumes are populated; the rest stay zero.
type Params struct {
	// Property is the other property a relational kind refers to
	// (item-requires, conflicts-with, value-requires, inverse).
	Property string `json:"property,omitempty"`

	// Values is the allowed/forbidden/required value list, as entity IDs
	// plus the "novalue"/"somevalue" sentinels.
	Values []string `json:"values,omitempty"`

	// Classes and Relations parameterize the type kinds: the target (or
	// subject) must reach one of Classes via the Relations properties.
	Classes   []string `json:"classes,omitempty"`
	Relations []string `json:"relations,omitempty"`

	// Pattern is the regular expression of a format constraint.
	Pattern string `json:"pattern,omitempty"`

	// Units lists the permitted unit entity IDs, with "novalue" standing
	// for "dimensionless allowed".
	Units []string `json:"units,omitempty"`

	// Lower and Upper bound a range constraint; both are quantity or time
	// values. A nil bound is open.
	Lower *model.Value `json:"lower,omitempty"`
	Upper *model.Value `json:"upper,omitempty"`

	// AllowedScopes is the scope whitelist of a property-scope constraint.
	AllowedScopes []Scope `json:"allowed_scopes,omitempty"`

	// Exceptions lists entity IDs exempt from the check.
	Exceptions []string `json:"exceptions,omitempty"`
}

// Definition is one constraint declared on a property. The ID is the
// stable ID of the constraint statement itself.
type Definition struct {
	ID       string  `json:"id"`
	Property string  `json:"property"`
	Kind     Kind    `json:"kind"`
	Status   Status  `json:"status"`
	Scopes   []Scope `json:"scopes,omitempty"`
	Params   Params  `json:"params"`
}

// AppliesTo reports whether the constraint may be checked in the given
// scope. An empty scope list means all scopes.
func (d Definition) AppliesTo(scope Scope) bool {
	if len(d.Scopes) == 0 {
		return true
	}
	for _, s := range d.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Exempts reports whether the entity is on the constraint's exception
// list.
func (d Definition) Exempts(entityID string) bool {
	for _, e := range d.Params.Exceptions {
		if e == entityID {
			return true
		}
	}
	return false
}
