package constraint

import (
	"testing"

	"github.com/c360studio/claimwatch/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateRangeQuantity(t *testing.T) {
	defs := translateRows("P2044", []Row{
		{ID: "P2044$c1", TypeItem: "Q21510860", Qualifier: "P2313", Value: "-500"},
		{ID: "P2044$c1", TypeItem: "Q21510860", Qualifier: "P2312", Value: "+9000"},
	})
	require.Len(t, defs, 1)

	def := defs[0]
	assert.Equal(t, KindRange, def.Kind)
	require.NotNil(t, def.Params.Lower)
	require.NotNil(t, def.Params.Upper)
	assert.Equal(t, model.ValueKindQuantity, def.Params.Lower.Kind)
	assert.Equal(t, "-500", def.Params.Lower.Quantity.Amount)
	assert.Equal(t, "+9000", def.Params.Upper.Quantity.Amount)
}

func TestTranslateRangeTime(t *testing.T) {
	defs := translateRows("P569", []Row{
		{ID: "P569$c1", TypeItem: "Q21510860", Qualifier: "P2310", Value: "+1800-00-00T00:00:00Z"},
		{ID: "P569$c1", TypeItem: "Q21510860", Qualifier: "P2311", Value: "somevalue"},
	})
	require.Len(t, defs, 1)

	def := defs[0]
	require.NotNil(t, def.Params.Lower)
	assert.Equal(t, model.ValueKindTime, def.Params.Lower.Kind)
	assert.Equal(t, 9, def.Params.Lower.Time.Precision)
	// "somevalue" (now) leaves the bound open.
	assert.Nil(t, def.Params.Upper)
}

func TestTranslateStatusAndScope(t *testing.T) {
	defs := translateRows("P31", []Row{
		{ID: "P31$c1", TypeItem: "Q21510859", Qualifier: "P2305", Value: "Q5"},
		{ID: "P31$c1", TypeItem: "Q21510859", Qualifier: "P2316", Value: "Q21502408"},
		{ID: "P31$c1", TypeItem: "Q21510859", Qualifier: "P4680", Value: "Q46466787"},
		{ID: "P31$c1", TypeItem: "Q21510859", Qualifier: "P2303", Value: "Q42"},
	})
	require.Len(t, defs, 1)

	def := defs[0]
	assert.Equal(t, StatusMandatory, def.Status)
	assert.Equal(t, []Scope{ScopeMain}, def.Scopes)
	assert.True(t, def.Exempts("Q42"))
	assert.False(t, def.Exempts("Q43"))
	assert.True(t, def.AppliesTo(ScopeMain))
	assert.False(t, def.AppliesTo(ScopeQualifier))
}

func TestTranslateItemRequires(t *testing.T) {
	defs := translateRows("P569", []Row{
		{ID: "P569$c1", TypeItem: "Q21503247", Qualifier: "P2306", Value: "P31"},
		{ID: "P569$c1", TypeItem: "Q21503247", Qualifier: "P2305", Value: "Q5"},
	})
	require.Len(t, defs, 1)
	assert.Equal(t, KindItemRequires, defs[0].Kind)
	assert.Equal(t, "P31", defs[0].Params.Property)
	assert.Equal(t, []string{"Q5"}, defs[0].Params.Values)
}

func TestTranslateSubjectType(t *testing.T) {
	defs := translateRows("P569", []Row{
		{ID: "P569$c1", TypeItem: "Q21503250", Qualifier: "P2308", Value: "Q5"},
		{ID: "P569$c1", TypeItem: "Q21503250", Qualifier: "P2309", Value: "Q21503252"},
	})
	require.Len(t, defs, 1)
	assert.Equal(t, KindSubjectType, defs[0].Kind)
	assert.Equal(t, []string{"Q5"}, defs[0].Params.Classes)
	assert.Equal(t, []string{"P31"}, defs[0].Params.Relations)
}

func TestTranslateRequiredQualifiers(t *testing.T) {
	defs := translateRows("P39", []Row{
		{ID: "P39$c1", TypeItem: "Q21510856", Qualifier: "P2306", Value: "P580"},
		{ID: "P39$c1", TypeItem: "Q21510856", Qualifier: "P2306", Value: "P582"},
	})
	require.Len(t, defs, 1)
	assert.Equal(t, KindRequiredQualifiers, defs[0].Kind)
	assert.ElementsMatch(t, []string{"P580", "P582"}, defs[0].Params.Values)
	assert.Empty(t, defs[0].Params.Property)
}

func TestTranslateDropsInvalid(t *testing.T) {
	defs := translateRows("P31", []Row{
		// Unknown kind item.
		{ID: "P31$c1", TypeItem: "Q99999999", Qualifier: "", Value: ""},
		// Format with an uncompilable pattern.
		{ID: "P31$c2", TypeItem: "Q21502404", Qualifier: "P1793", Value: "[unclosed"},
		// one-of without values.
		{ID: "P31$c3", TypeItem: "Q21510859"},
		// Valid integer constraint survives.
		{ID: "P31$c4", TypeItem: "Q52848401"},
	})
	require.Len(t, defs, 1)
	assert.Equal(t, KindInteger, defs[0].Kind)
}

func TestTranslateUnits(t *testing.T) {
	defs := translateRows("P2048", []Row{
		{ID: "P2048$c1", TypeItem: "Q21514353", Qualifier: "P2305", Value: "Q11573"},
		{ID: "P2048$c1", TypeItem: "Q21514353", Qualifier: "P2305", Value: "novalue"},
	})
	require.Len(t, defs, 1)
	assert.Equal(t, KindUnits, defs[0].Kind)
	assert.ElementsMatch(t, []string{"Q11573", "novalue"}, defs[0].Params.Units)
	assert.Empty(t, defs[0].Params.Values)
}
