package checker

import (
	"context"
	"testing"

	"github.com/c360studio/claimwatch/constraint"
	"github.com/c360studio/claimwatch/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	kind    constraint.Kind
	verdict Verdict
}

func (s stubChecker) Kind() constraint.Kind { return s.kind }

func (s stubChecker) Check(context.Context, *model.RevisionWrapper, constraint.Definition, Lookup) (Verdict, error) {
	return s.verdict, nil
}

func TestRegistryDispatch(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(stubChecker{kind: constraint.KindOneOf, verdict: VerdictViolated}))

	snap := snapshot(t, "Q1", stmt("Q1$a", "P31", model.EntityValue("Q5")))
	verdict, err := r.Check(context.Background(), snap, constraint.Definition{Kind: constraint.KindOneOf}, nil)
	require.NoError(t, err)
	assert.Equal(t, VerdictViolated, verdict)
}

func TestRegistryRejectsDuplicateKind(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(stubChecker{kind: constraint.KindOneOf}))
	assert.Error(t, r.Register(stubChecker{kind: constraint.KindOneOf}))
}

func TestRegistryUnknownKindIsInapplicable(t *testing.T) {
	r := NewRegistry(nil)
	snap := snapshot(t, "Q1", stmt("Q1$a", "P31", model.EntityValue("Q5")))

	verdict, err := r.Check(context.Background(), snap, constraint.Definition{Kind: constraint.Kind("citation-needed")}, nil)
	require.NoError(t, err)
	assert.Equal(t, VerdictInapplicable, verdict)
}

func TestDefaultRegistryCoversBuiltins(t *testing.T) {
	r := DefaultRegistry(nil)
	snap := snapshot(t, "Q1", stmt("Q1$a", "P31", model.EntityValue("Q5")))

	def := constraint.Definition{
		Property: "P31",
		Kind:     constraint.KindOneOf,
		Params:   constraint.Params{Values: []string{"Q5"}},
	}
	verdict, err := r.Check(context.Background(), snap, def, nil)
	require.NoError(t, err)
	assert.Equal(t, VerdictSatisfied, verdict)
}
