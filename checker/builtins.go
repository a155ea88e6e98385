package checker

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/c360studio/claimwatch/constraint"
	"github.com/c360studio/claimwatch/model"
)

func builtins() []Checker {
	return []Checker{
		oneOfChecker{},
		noneOfChecker{},
		formatChecker{},
		unitsChecker{},
		integerChecker{},
		noBoundsChecker{},
		rangeChecker{},
		valueTypeChecker{},
		valueRequiresChecker{},
		inverseChecker{},
		symmetricChecker{},
		noSelfLinkChecker{},
		allowedQualifiersChecker{},
		requiredQualifiersChecker{},
		singleValueChecker{},
		itemRequiresChecker{},
		conflictsWithChecker{},
		subjectTypeChecker{},
		propertyScopeChecker{},
	}
}

// statementCheck runs a per-statement violation predicate over the active
// (non-deprecated) statements of the constrained property. No statements
// or an exempt entity is inapplicable; any violating statement violates
// the constraint.
func statementCheck(snap *model.RevisionWrapper, def constraint.Definition, violates func(model.Statement) (bool, error)) (Verdict, error) {
	if def.Exempts(snap.EntityID()) {
		return VerdictInapplicable, nil
	}
	stmts := snap.ActiveStatements(def.Property)
	if len(stmts) == 0 {
		return VerdictInapplicable, nil
	}
	verdict := VerdictSatisfied
	for _, s := range stmts {
		bad, err := violates(s)
		if err != nil {
			return VerdictError, err
		}
		if bad {
			verdict = VerdictViolated
		}
	}
	return verdict, nil
}

// valueCheck runs a per-value violation predicate over every use of the
// constrained property the definition's scopes admit: main statement
// values, qualifier values, or both. No uses or an exempt entity is
// inapplicable; any violating value violates the constraint.
func valueCheck(snap *model.RevisionWrapper, def constraint.Definition, violates func(model.Value) (bool, error)) (Verdict, error) {
	if def.Exempts(snap.EntityID()) {
		return VerdictInapplicable, nil
	}
	values := scopedValues(snap, def)
	if len(values) == 0 {
		return VerdictInapplicable, nil
	}
	verdict := VerdictSatisfied
	for _, v := range values {
		bad, err := violates(v)
		if err != nil {
			return VerdictError, err
		}
		if bad {
			verdict = VerdictViolated
		}
	}
	return verdict, nil
}

// scopedValues collects the values the constrained property carries in
// the scopes the definition admits: main statement values, and qualifier
// values on the active statements of every property. Reference snaks are
// not checked.
func scopedValues(snap *model.RevisionWrapper, def constraint.Definition) []model.Value {
	var values []model.Value
	if def.AppliesTo(constraint.ScopeMain) {
		for _, s := range snap.ActiveStatements(def.Property) {
			values = append(values, s.Value)
		}
	}
	if def.AppliesTo(constraint.ScopeQualifier) {
		for _, property := range snap.Properties() {
			for _, s := range snap.ActiveStatements(property) {
				values = append(values, s.QualifierValues(def.Property)...)
			}
		}
	}
	return values
}

// entityCheck runs an entity-level satisfaction predicate. The constraint
// only applies when the constrained property is present at all.
func entityCheck(snap *model.RevisionWrapper, def constraint.Definition, satisfied func() (bool, error)) (Verdict, error) {
	if def.Exempts(snap.EntityID()) {
		return VerdictInapplicable, nil
	}
	if len(snap.ActiveStatements(def.Property)) == 0 {
		return VerdictInapplicable, nil
	}
	ok, err := satisfied()
	if err != nil {
		return VerdictError, err
	}
	if ok {
		return VerdictSatisfied, nil
	}
	return VerdictViolated, nil
}

type oneOfChecker struct{}

func (oneOfChecker) Kind() constraint.Kind { return constraint.KindOneOf }

func (oneOfChecker) Check(_ context.Context, snap *model.RevisionWrapper, def constraint.Definition, _ Lookup) (Verdict, error) {
	return valueCheck(snap, def, func(v model.Value) (bool, error) {
		return !v.InValues(def.Params.Values), nil
	})
}

type noneOfChecker struct{}

func (noneOfChecker) Kind() constraint.Kind { return constraint.KindNoneOf }

func (noneOfChecker) Check(_ context.Context, snap *model.RevisionWrapper, def constraint.Definition, _ Lookup) (Verdict, error) {
	return valueCheck(snap, def, func(v model.Value) (bool, error) {
		return v.InValues(def.Params.Values), nil
	})
}

type formatChecker struct{}

func (formatChecker) Kind() constraint.Kind { return constraint.KindFormat }

func (formatChecker) Check(_ context.Context, snap *model.RevisionWrapper, def constraint.Definition, _ Lookup) (Verdict, error) {
	re, err := regexp.Compile(`\A(?:` + def.Params.Pattern + `)\z`)
	if err != nil {
		return VerdictError, fmt.Errorf("compile format pattern %q: %w", def.Params.Pattern, err)
	}
	return valueCheck(snap, def, func(v model.Value) (bool, error) {
		text, ok := formatText(v)
		if !ok {
			return false, nil
		}
		return !re.MatchString(text), nil
	})
}

// formatText extracts the text a format constraint matches against.
func formatText(v model.Value) (string, bool) {
	switch v.Kind {
	case model.ValueKindString:
		return v.Str, true
	case model.ValueKindMonolingual:
		return v.Monolingual.Text, true
	default:
		return "", false
	}
}

type unitsChecker struct{}

func (unitsChecker) Kind() constraint.Kind { return constraint.KindUnits }

func (unitsChecker) Check(_ context.Context, snap *model.RevisionWrapper, def constraint.Definition, _ Lookup) (Verdict, error) {
	return valueCheck(snap, def, func(v model.Value) (bool, error) {
		if v.Kind != model.ValueKindQuantity {
			return false, nil
		}
		unit := v.Quantity.Unit
		if unit == "" {
			// Dimensionless is only allowed when the list says so.
			return !contains(def.Params.Units, "novalue"), nil
		}
		return !contains(def.Params.Units, unit), nil
	})
}

type integerChecker struct{}

func (integerChecker) Kind() constraint.Kind { return constraint.KindInteger }

func (integerChecker) Check(_ context.Context, snap *model.RevisionWrapper, def constraint.Definition, _ Lookup) (Verdict, error) {
	return valueCheck(snap, def, func(v model.Value) (bool, error) {
		return v.Kind == model.ValueKindQuantity && !v.Quantity.IsInteger(), nil
	})
}

type noBoundsChecker struct{}

func (noBoundsChecker) Kind() constraint.Kind { return constraint.KindNoBounds }

func (noBoundsChecker) Check(_ context.Context, snap *model.RevisionWrapper, def constraint.Definition, _ Lookup) (Verdict, error) {
	return valueCheck(snap, def, func(v model.Value) (bool, error) {
		return v.Kind == model.ValueKindQuantity && v.Quantity.HasBounds(), nil
	})
}

type rangeChecker struct{}

func (rangeChecker) Kind() constraint.Kind { return constraint.KindRange }

func (rangeChecker) Check(_ context.Context, snap *model.RevisionWrapper, def constraint.Definition, _ Lookup) (Verdict, error) {
	return valueCheck(snap, def, func(v model.Value) (bool, error) {
		below, err := outsideBound(v, def.Params.Lower, -1)
		if err != nil || below {
			return below, err
		}
		return outsideBound(v, def.Params.Upper, 1)
	})
}

// outsideBound reports whether the value falls on the `direction` side of
// the bound (-1 below a lower bound, +1 above an upper bound). Values of
// a different kind than the bound are skipped.
func outsideBound(v model.Value, bound *model.Value, direction int) (bool, error) {
	if bound == nil || v.Kind != bound.Kind {
		return false, nil
	}
	switch v.Kind {
	case model.ValueKindQuantity:
		cmp, err := model.CompareAmounts(v.Quantity.Amount, bound.Quantity.Amount)
		if err != nil {
			return false, err
		}
		return cmp == direction, nil
	case model.ValueKindTime:
		cmp, err := v.Time.Compare(*bound.Time)
		if err != nil {
			return false, err
		}
		return cmp == direction, nil
	default:
		return false, nil
	}
}

type valueTypeChecker struct{}

func (valueTypeChecker) Kind() constraint.Kind { return constraint.KindValueType }

func (valueTypeChecker) Check(ctx context.Context, snap *model.RevisionWrapper, def constraint.Definition, lookup Lookup) (Verdict, error) {
	return valueCheck(snap, def, func(v model.Value) (bool, error) {
		id, ok := v.EntityID()
		if !ok {
			return false, nil
		}
		isMember, err := lookup.IsInstanceOf(ctx, id, def.Params.Relations, def.Params.Classes)
		if err != nil {
			return false, err
		}
		return !isMember, nil
	})
}

type valueRequiresChecker struct{}

func (valueRequiresChecker) Kind() constraint.Kind { return constraint.KindValueRequires }

func (valueRequiresChecker) Check(ctx context.Context, snap *model.RevisionWrapper, def constraint.Definition, lookup Lookup) (Verdict, error) {
	return valueCheck(snap, def, func(v model.Value) (bool, error) {
		id, ok := v.EntityID()
		if !ok {
			return false, nil
		}
		target, err := lookup.Entity(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				return true, nil
			}
			return false, err
		}
		required := target.ActiveStatements(def.Params.Property)
		if len(required) == 0 {
			return true, nil
		}
		if len(def.Params.Values) == 0 {
			return false, nil
		}
		return !target.HasStatementValue(def.Params.Property, def.Params.Values), nil
	})
}

type inverseChecker struct{}

func (inverseChecker) Kind() constraint.Kind { return constraint.KindInverse }

func (inverseChecker) Check(ctx context.Context, snap *model.RevisionWrapper, def constraint.Definition, lookup Lookup) (Verdict, error) {
	return valueCheck(snap, def, func(v model.Value) (bool, error) {
		return missingBacklink(ctx, lookup, v, def.Params.Property, snap.EntityID())
	})
}

type symmetricChecker struct{}

func (symmetricChecker) Kind() constraint.Kind { return constraint.KindSymmetric }

func (symmetricChecker) Check(ctx context.Context, snap *model.RevisionWrapper, def constraint.Definition, lookup Lookup) (Verdict, error) {
	return valueCheck(snap, def, func(v model.Value) (bool, error) {
		return missingBacklink(ctx, lookup, v, def.Property, snap.EntityID())
	})
}

// missingBacklink reports whether the value's target entity lacks a
// statement of `property` pointing back at `source`. A deleted target
// counts as missing.
func missingBacklink(ctx context.Context, lookup Lookup, v model.Value, property, source string) (bool, error) {
	id, ok := v.EntityID()
	if !ok {
		return false, nil
	}
	target, err := lookup.Entity(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return true, nil
		}
		return false, err
	}
	return !target.HasStatementValue(property, []string{source}), nil
}

type noSelfLinkChecker struct{}

func (noSelfLinkChecker) Kind() constraint.Kind { return constraint.KindNoSelfLink }

func (noSelfLinkChecker) Check(_ context.Context, snap *model.RevisionWrapper, def constraint.Definition, _ Lookup) (Verdict, error) {
	return valueCheck(snap, def, func(v model.Value) (bool, error) {
		id, ok := v.EntityID()
		return ok && id == snap.EntityID(), nil
	})
}

type allowedQualifiersChecker struct{}

func (allowedQualifiersChecker) Kind() constraint.Kind { return constraint.KindAllowedQualifiers }

func (allowedQualifiersChecker) Check(_ context.Context, snap *model.RevisionWrapper, def constraint.Definition, _ Lookup) (Verdict, error) {
	return statementCheck(snap, def, func(s model.Statement) (bool, error) {
		for _, p := range s.QualifierProperties() {
			if !contains(def.Params.Values, p) {
				return true, nil
			}
		}
		return false, nil
	})
}

type requiredQualifiersChecker struct{}

func (requiredQualifiersChecker) Kind() constraint.Kind { return constraint.KindRequiredQualifiers }

func (requiredQualifiersChecker) Check(_ context.Context, snap *model.RevisionWrapper, def constraint.Definition, _ Lookup) (Verdict, error) {
	return statementCheck(snap, def, func(s model.Statement) (bool, error) {
		present := s.QualifierProperties()
		for _, required := range def.Params.Values {
			if !contains(present, required) {
				return true, nil
			}
		}
		return false, nil
	})
}

type singleValueChecker struct{}

func (singleValueChecker) Kind() constraint.Kind { return constraint.KindSingleValue }

func (singleValueChecker) Check(_ context.Context, snap *model.RevisionWrapper, def constraint.Definition, _ Lookup) (Verdict, error) {
	return entityCheck(snap, def, func() (bool, error) {
		// Best-rank truth: a preferred statement shadows normal ones, so
		// a property with one preferred and many normal values is fine.
		return len(snap.BestStatements(def.Property)) <= 1, nil
	})
}

type itemRequiresChecker struct{}

func (itemRequiresChecker) Kind() constraint.Kind { return constraint.KindItemRequires }

func (itemRequiresChecker) Check(_ context.Context, snap *model.RevisionWrapper, def constraint.Definition, _ Lookup) (Verdict, error) {
	return entityCheck(snap, def, func() (bool, error) {
		if len(snap.ActiveStatements(def.Params.Property)) == 0 {
			return false, nil
		}
		if len(def.Params.Values) == 0 {
			return true, nil
		}
		return snap.HasStatementValue(def.Params.Property, def.Params.Values), nil
	})
}

type conflictsWithChecker struct{}

func (conflictsWithChecker) Kind() constraint.Kind { return constraint.KindConflictsWith }

func (conflictsWithChecker) Check(_ context.Context, snap *model.RevisionWrapper, def constraint.Definition, _ Lookup) (Verdict, error) {
	return entityCheck(snap, def, func() (bool, error) {
		if len(snap.ActiveStatements(def.Params.Property)) == 0 {
			return true, nil
		}
		if len(def.Params.Values) == 0 {
			return false, nil
		}
		return !snap.HasStatementValue(def.Params.Property, def.Params.Values), nil
	})
}

type subjectTypeChecker struct{}

func (subjectTypeChecker) Kind() constraint.Kind { return constraint.KindSubjectType }

func (subjectTypeChecker) Check(ctx context.Context, snap *model.RevisionWrapper, def constraint.Definition, lookup Lookup) (Verdict, error) {
	return entityCheck(snap, def, func() (bool, error) {
		var bases []string
		for _, rel := range def.Params.Relations {
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
			if contains(def.Params.Classes, base) {
				return true, nil
			}
		}
		return lookup.AnySubclassOf(ctx, bases, def.Params.Classes)
	})
}

type propertyScopeChecker struct{}

func (propertyScopeChecker) Kind() constraint.Kind { return constraint.KindPropertyScope }

func (propertyScopeChecker) Check(_ context.Context, snap *model.RevisionWrapper, def constraint.Definition, _ Lookup) (Verdict, error) {
	if def.Exempts(snap.EntityID()) {
		return VerdictInapplicable, nil
	}
	mainUses := len(snap.ActiveStatements(def.Property))
	qualifierUses := 0
	for _, property := range snap.Properties() {
		for _, s := range snap.ActiveStatements(property) {
			qualifierUses += len(s.QualifierValues(def.Property))
		}
	}
	if mainUses == 0 && qualifierUses == 0 {
		return VerdictInapplicable, nil
	}
	if mainUses > 0 && !scopeAllowed(def.Params.AllowedScopes, constraint.ScopeMain) {
		return VerdictViolated, nil
	}
	if qualifierUses > 0 && !scopeAllowed(def.Params.AllowedScopes, constraint.ScopeQualifier) {
		return VerdictViolated, nil
	}
	return VerdictSatisfied, nil
}

func scopeAllowed(allowed []constraint.Scope, scope constraint.Scope) bool {
	for _, s := range allowed {
		if s == scope {
			return true
		}
	}
	return false
}

// IsNotFound reports whether the error marks a missing entity.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
