// Package evaluate orchestrates constraint evaluation: it diffs two
// entity revisions, resolves the constraints declared on every touched
// property, runs the per-kind checkers against both states and labels
// how each constraint transitioned across the edit.
package evaluate

import (
	"context"
	"log/slog"

	"github.com/c360studio/claimwatch/checker"
	"github.com/c360studio/claimwatch/constraint"
	"github.com/c360studio/claimwatch/diff"
	"github.com/c360studio/claimwatch/model"
)

// ConstraintSource resolves the constraints declared on a property. The
// constraint store satisfies it; tests inject deterministic fakes.
type ConstraintSource interface {
	ConstraintsFor(ctx context.Context, property string) ([]constraint.Definition, error)
}

// Transition labels how a constraint's verdict moved between the base
// and new revision of an edit.
type Transition string

const (
	TransitionNewlyViolated      Transition = "newly-violated"
	TransitionNewlySatisfied     Transition = "newly-satisfied"
	TransitionUnchangedViolated  Transition = "unchanged-violated"
	TransitionUnchangedSatisfied Transition = "unchanged-satisfied"
)

// Result is the outcome of one constraint against the new entity state.
// Results are produced fresh per call and never cached: reference data
// such as the class hierarchy drifts independently of the entity.
type Result struct {
	ConstraintID string
	Property     string
	Kind         constraint.Kind
	Status       constraint.Status
	Verdict      checker.Verdict
	Base         checker.Verdict
	Transition   Transition
	Err          error
}

// Evaluator runs constraint checks over entity revisions. It is
// stateless apart from the injected collaborators, so callers may share
// one instance across goroutines and parallelize across entities.
type Evaluator struct {
	source   ConstraintSource
	registry *checker.Registry
	lookup   checker.Lookup
	logger   *slog.Logger
}

// New creates an evaluator over the constraint source, checker registry
// and reference-data lookup.
func New(source ConstraintSource, registry *checker.Registry, lookup checker.Lookup, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{source: source, registry: registry, lookup: lookup, logger: logger}
}

// EvaluateChange diffs the two revisions and evaluates every constraint
// declared on a touched property, against the full new entity state and,
// for transition labeling, against the base state too. Properties used as
// qualifiers on a touched property's statements get their qualifier-scoped
// constraints evaluated as well, since those values moved with the edit.
// Constraints on properties outside the diff are never reported;
// full-entity drift from reference-data changes is out of scope here.
//
// A constraint fetch failure aborts the call with the store's FetchError
// so the caller can retry the whole evaluation; per-constraint checker
// failures are contained as an error verdict on that one result.
func (e *Evaluator) EvaluateChange(ctx context.Context, base, next *model.RevisionWrapper) ([]Result, error) {
	changes, err := diff.Diff(base, next)
	if err != nil {
		return nil, err
	}

	var results []Result
	touched := changes.Touched()
	seen := make(map[string]bool, len(touched))
	for _, property := range touched {
		seen[property] = true
		defs, err := e.source.ConstraintsFor(ctx, property)
		if err != nil {
			return nil, err
		}
		for _, def := range defs {
			if !checkableScope(def) {
				continue
			}
			results = append(results, e.changeResult(ctx, base, next, def))
		}
	}

	// Qualifier properties riding on touched statements changed with them
	// even though their own main statements did not; their qualifier-scoped
	// constraints are re-evaluated too.
	for _, property := range touched {
		for _, qualifier := range qualifierProperties(base, next, property) {
			if seen[qualifier] {
				continue
			}
			seen[qualifier] = true
			defs, err := e.source.ConstraintsFor(ctx, qualifier)
			if err != nil {
				return nil, err
			}
			for _, def := range defs {
				if !def.AppliesTo(constraint.ScopeQualifier) {
					continue
				}
				results = append(results, e.changeResult(ctx, base, next, def))
			}
		}
	}
	return results, nil
}

// changeResult evaluates one constraint against both revisions and labels
// the transition.
func (e *Evaluator) changeResult(ctx context.Context, base, next *model.RevisionWrapper, def constraint.Definition) Result {
	baseVerdict, _ := e.check(ctx, base, def)
	newVerdict, checkErr := e.check(ctx, next, def)
	return Result{
		ConstraintID: def.ID,
		Property:     def.Property,
		Kind:         def.Kind,
		Status:       def.Status,
		Verdict:      newVerdict,
		Base:         baseVerdict,
		Transition:   transition(baseVerdict, newVerdict),
		Err:          checkErr,
	}
}

// checkableScope reports whether any modeled scope admits the constraint.
// Constraints scoped exclusively to references are skipped: reference
// snaks are provenance and not checked.
func checkableScope(def constraint.Definition) bool {
	return def.AppliesTo(constraint.ScopeMain) || def.AppliesTo(constraint.ScopeQualifier)
}

// qualifierProperties returns the distinct qualifier property IDs used on
// the property's statements in either revision, in declaration order.
func qualifierProperties(base, next *model.RevisionWrapper, property string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, snap := range []*model.RevisionWrapper{base, next} {
		for _, s := range snap.ActiveStatements(property) {
			for _, q := range s.QualifierProperties() {
				if !seen[q] {
					seen[q] = true
					out = append(out, q)
				}
			}
		}
	}
	return out
}

// EvaluateEntity evaluates an entity snapshot with no prior base, for
// cold evaluation of newly created entities. Transitions are always
// unchanged since there is nothing to compare against.
func (e *Evaluator) EvaluateEntity(ctx context.Context, snap *model.RevisionWrapper) ([]Result, error) {
	var results []Result
	seen := make(map[string]bool)
	for _, property := range snap.Properties() {
		seen[property] = true
		defs, err := e.source.ConstraintsFor(ctx, property)
		if err != nil {
			return nil, err
		}
		for _, def := range defs {
			if !checkableScope(def) {
				continue
			}
			results = append(results, e.entityResult(ctx, snap, def))
		}
	}

	// Properties used only as qualifiers never appear in Properties();
	// their qualifier-scoped constraints still apply.
	for _, property := range snap.Properties() {
		for _, s := range snap.ActiveStatements(property) {
			for _, qualifier := range s.QualifierProperties() {
				if seen[qualifier] {
					continue
				}
				seen[qualifier] = true
				defs, err := e.source.ConstraintsFor(ctx, qualifier)
				if err != nil {
					return nil, err
				}
				for _, def := range defs {
					if !def.AppliesTo(constraint.ScopeQualifier) {
						continue
					}
					results = append(results, e.entityResult(ctx, snap, def))
				}
			}
		}
	}
	return results, nil
}

// entityResult evaluates one constraint against a single snapshot.
// Transitions are always unchanged since there is no base to compare
// against; an error verdict gets no label.
func (e *Evaluator) entityResult(ctx context.Context, snap *model.RevisionWrapper, def constraint.Definition) Result {
	verdict, checkErr := e.check(ctx, snap, def)

	t := TransitionUnchangedSatisfied
	switch verdict {
	case checker.VerdictViolated:
		t = TransitionUnchangedViolated
	case checker.VerdictError:
		t = ""
	}
	return Result{
		ConstraintID: def.ID,
		Property:     def.Property,
		Kind:         def.Kind,
		Status:       def.Status,
		Verdict:      verdict,
		Transition:   t,
		Err:          checkErr,
	}
}

// check contains checker failures: a broken checker or malformed
// reference data yields an error verdict for that one constraint and
// never aborts the rest of the evaluation.
func (e *Evaluator) check(ctx context.Context, snap *model.RevisionWrapper, def constraint.Definition) (checker.Verdict, error) {
	verdict, err := e.registry.Check(ctx, snap, def, e.lookup)
	if err != nil {
		e.logger.Warn("Checker failed, containing as error verdict",
			"constraint", def.ID,
			"kind", def.Kind,
			"entity", snap.EntityID(),
			"error", err)
		return checker.VerdictError, err
	}
	return verdict, nil
}

// transition labels the verdict pair. An error verdict on the new state
// gets no label since the constraint's true state is unknown.
func transition(base, next checker.Verdict) Transition {
	if next == checker.VerdictError {
		return ""
	}
	switch {
	case next == checker.VerdictViolated && base == checker.VerdictViolated:
		return TransitionUnchangedViolated
	case next == checker.VerdictViolated:
		return TransitionNewlyViolated
	case base == checker.VerdictViolated:
		return TransitionNewlySatisfied
	default:
		return TransitionUnchangedSatisfied
	}
}
