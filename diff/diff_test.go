package diff

import (
	"testing"

	"github.com/c360studio/claimwatch/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rev(t *testing.T, entityID string, revisionID int64, stmts ...model.Statement) *model.RevisionWrapper {
	t.Helper()
	w, err := model.NewRevisionWrapper(entityID, revisionID, stmts)
	require.NoError(t, err)
	return w
}

func entityStmt(id, property, target string) model.Statement {
	return model.Statement{
		ID:       id,
		Property: property,
		Value:    model.EntityValue(target),
		Rank:     model.RankNormal,
	}
}

func TestDiffIdempotence(t *testing.T) {
	r := rev(t, "Q1", 10,
		entityStmt("Q1$s1", "P31", "Q5"),
		entityStmt("Q1$s2", "P27", "Q183"),
	)

	cs, err := Diff(r, r)
	require.NoError(t, err)

	assert.True(t, cs.Empty())
	assert.Empty(t, cs.Touched())
	for _, p := range cs.Properties() {
		d, ok := cs.Delta(p)
		require.True(t, ok)
		assert.Empty(t, d.Added)
		assert.Empty(t, d.Removed)
		assert.Empty(t, d.Modified)
		assert.Len(t, d.Unchanged, 1)
	}
}

func TestDiffSymmetry(t *testing.T) {
	base := rev(t, "Q1", 10,
		entityStmt("Q1$s1", "P31", "Q5"),
		entityStmt("Q1$s2", "P27", "Q183"),
		entityStmt("Q1$s3", "P19", "Q64"),
	)
	new := rev(t, "Q1", 11,
		entityStmt("Q1$s1", "P31", "Q5"),      // unchanged
		entityStmt("Q1$s2", "P27", "Q142"),    // modified
		entityStmt("Q1$s4", "P106", "Q36180"), // added
	)

	forward, err := Diff(base, new)
	require.NoError(t, err)
	backward, err := Diff(new, base)
	require.NoError(t, err)

	for _, p := range forward.Properties() {
		fd, _ := forward.Delta(p)
		bd, _ := backward.Delta(p)
		assert.ElementsMatch(t, fd.Added, bd.Removed, "property %s", p)
		assert.ElementsMatch(t, fd.Removed, bd.Added, "property %s", p)
		assert.ElementsMatch(t, fd.Modified, bd.Modified, "property %s", p)
		assert.ElementsMatch(t, fd.Unchanged, bd.Unchanged, "property %s", p)
	}
}

func TestDiffIdentityStability(t *testing.T) {
	base := rev(t, "Q1", 10, entityStmt("Q1$s1", "P31", "Q5"))
	new := rev(t, "Q1", 11, entityStmt("Q1$s1", "P31", "Q4167410"))

	cs, err := Diff(base, new)
	require.NoError(t, err)

	d, ok := cs.Delta("P31")
	require.True(t, ok)
	assert.Equal(t, []string{"Q1$s1"}, d.Modified)
	assert.Empty(t, d.Added)
	assert.Empty(t, d.Removed)
}

// A re-issued statement under the same property with a new ID but the old
// value must pair as removed+added, never as modified.
func TestDiffNoValueRematching(t *testing.T) {
	base := rev(t, "Q1", 10, entityStmt("Q1$s1", "P31", "Q5"))
	new := rev(t, "Q1", 11, entityStmt("Q1$s9", "P31", "Q5"))

	cs, err := Diff(base, new)
	require.NoError(t, err)

	d, _ := cs.Delta("P31")
	assert.Equal(t, []string{"Q1$s9"}, d.Added)
	assert.Equal(t, []string{"Q1$s1"}, d.Removed)
	assert.Empty(t, d.Modified)
	assert.Empty(t, d.Unchanged)
}

func TestDiffClassificationClosure(t *testing.T) {
	base := rev(t, "Q1", 10,
		entityStmt("Q1$s1", "P31", "Q5"),
		entityStmt("Q1$s2", "P31", "Q215627"),
		entityStmt("Q1$s3", "P27", "Q183"),
	)
	new := rev(t, "Q1", 11,
		entityStmt("Q1$s1", "P31", "Q5"),
		entityStmt("Q1$s4", "P31", "Q795052"),
		entityStmt("Q1$s3", "P27", "Q142"),
		entityStmt("Q1$s5", "P106", "Q36180"),
	)

	cs, err := Diff(base, new)
	require.NoError(t, err)

	union := map[string][]string{
		"P31":  {"Q1$s1", "Q1$s2", "Q1$s4"},
		"P27":  {"Q1$s3"},
		"P106": {"Q1$s5"},
	}
	for p, ids := range union {
		d, ok := cs.Delta(p)
		require.True(t, ok, "property %s", p)

		var all []string
		all = append(all, d.Added...)
		all = append(all, d.Removed...)
		all = append(all, d.Modified...)
		all = append(all, d.Unchanged...)
		assert.ElementsMatch(t, ids, all, "property %s", p)
	}
}

func TestDiffRankChangeIsModification(t *testing.T) {
	s := entityStmt("Q1$s1", "P31", "Q5")
	base := rev(t, "Q1", 10, s)
	s.Rank = model.RankPreferred
	new := rev(t, "Q1", 11, s)

	cs, err := Diff(base, new)
	require.NoError(t, err)

	d, _ := cs.Delta("P31")
	assert.Equal(t, []string{"Q1$s1"}, d.Modified)
}

// A reference-only edit is not a content change.
func TestDiffReferenceEditIgnored(t *testing.T) {
	s := entityStmt("Q1$s1", "P31", "Q5")
	base := rev(t, "Q1", 10, s)
	s.References = []model.Reference{
		{Snaks: []model.Snak{{Property: "P248", Value: model.EntityValue("Q36578")}}},
	}
	new := rev(t, "Q1", 11, s)

	cs, err := Diff(base, new)
	require.NoError(t, err)
	assert.True(t, cs.Empty())
}

func TestDiffEntityMismatch(t *testing.T) {
	a := rev(t, "Q1", 10)
	b := rev(t, "Q2", 11)

	_, err := Diff(a, b)
	var mismatch *EntityMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "Q1", mismatch.Base)
	assert.Equal(t, "Q2", mismatch.New)
}

func TestDiffPropertyOrderDeterministic(t *testing.T) {
	base := rev(t, "Q1", 10,
		entityStmt("Q1$s1", "P31", "Q5"),
		entityStmt("Q1$s2", "P27", "Q183"),
	)
	new := rev(t, "Q1", 11,
		entityStmt("Q1$s3", "P106", "Q36180"),
		entityStmt("Q1$s1", "P31", "Q5"),
	)

	cs, err := Diff(base, new)
	require.NoError(t, err)

	// Base properties first in base order, then new-only ones in new order.
	assert.Equal(t, []string{"P31", "P27", "P106"}, cs.Properties())
	assert.Equal(t, []string{"P27", "P106"}, cs.Touched())
}
