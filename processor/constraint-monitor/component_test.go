package constraintmonitor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/c360studio/claimwatch/checker"
	"github.com/c360studio/claimwatch/constraint"
	"github.com/c360studio/claimwatch/evaluate"
	"github.com/c360studio/claimwatch/span"
	"github.com/c360studio/claimwatch/wikiapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSource serves canned constraint definitions and records which
// properties were asked for.
type recordingSource struct {
	defs      map[string][]constraint.Definition
	requested []string
}

func (s *recordingSource) ConstraintsFor(_ context.Context, property string) ([]constraint.Definition, error) {
	s.requested = append(s.requested, property)
	return s.defs[property], nil
}

// A burst whose base revision is zero is an entity creation: the new
// state is evaluated in full instead of being dropped as a missing
// revision.
func TestEvaluateBurstCreation(t *testing.T) {
	entityQ7 := `{"id": "Q7", "claims": {"P31": [{"id": "Q7$a", "rank": "normal", "mainsnak": {"snaktype": "value", "property": "P31", "datavalue": {"type": "wikibase-entityid", "value": {"id": "Q5"}}}}]}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "5", r.URL.Query().Get("revids"))
		fmt.Fprintf(w, `{"query": {"pages": [{"title": "Q7", "revisions": [{"revid": 5, "slots": {"main": {"content": %q}}}]}]}}`, entityQ7)
	}))
	defer srv.Close()

	source := &recordingSource{defs: map[string][]constraint.Definition{
		"P31": {{
			ID:       "P31$oneof",
			Property: "P31",
			Kind:     constraint.KindOneOf,
			Params:   constraint.Params{Values: []string{"Q5"}},
		}},
	}}

	c := &Component{
		name:      "constraint-monitor",
		config:    DefaultConfig(),
		logger:    slog.Default(),
		wiki:      wikiapi.NewClient(srv.URL, "", 0),
		evaluator: evaluate.New(source, checker.DefaultRegistry(nil), nil, nil),
		buffer:    newBurstBuffer(),
	}

	c.evaluateBurst(context.Background(), []span.ChangeEntry{
		{EntityID: "Q7", OldRevisionID: 0, NewRevisionID: 5},
	})

	// The created entity's constraints were resolved and checked rather
	// than the burst being skipped for its missing base revision.
	assert.Equal(t, []string{"P31"}, source.requested)
}

func TestBuildReport(t *testing.T) {
	c := &Component{config: DefaultConfig()}
	sp := span.Span{EntityID: "Q42", BaseRevision: 100, NewRevision: 103, Edits: 3}

	results := []evaluate.Result{
		{
			ConstraintID: "P31$c1",
			Property:     "P31",
			Kind:         constraint.KindOneOf,
			Status:       constraint.StatusMandatory,
			Verdict:      checker.VerdictViolated,
			Transition:   evaluate.TransitionNewlyViolated,
		},
		{
			ConstraintID: "P31$c2",
			Property:     "P31",
			Kind:         constraint.KindSingleValue,
			Verdict:      checker.VerdictSatisfied,
			Transition:   evaluate.TransitionUnchangedSatisfied,
		},
		{
			ConstraintID: "P31$c3",
			Property:     "P31",
			Kind:         constraint.KindFormat,
			Verdict:      checker.VerdictError,
			Err:          assert.AnError,
		},
	}

	report := c.buildReport(sp, results)

	assert.NotEmpty(t, report.ReportID)
	assert.Equal(t, "Q42", report.EntityID)
	assert.Equal(t, int64(100), report.BaseRevision)
	assert.Equal(t, int64(103), report.NewRevision)
	assert.Equal(t, 3, report.Edits)
	assert.Equal(t, 1, report.NewlyViolated)
	require.Len(t, report.Results, 3)

	assert.Equal(t, "newly-violated", report.Results[0].Transition)
	assert.Equal(t, "one-of", report.Results[0].Kind)
	assert.Equal(t, "mandatory", report.Results[0].Status)
	assert.NotEmpty(t, report.Results[2].Error)
}

// Every report gets a fresh id so downstream consumers can deduplicate.
func TestBuildReportUniqueIDs(t *testing.T) {
	c := &Component{config: DefaultConfig()}
	sp := span.Span{EntityID: "Q42", BaseRevision: 1, NewRevision: 2, Edits: 1}

	a := c.buildReport(sp, nil)
	b := c.buildReport(sp, nil)
	assert.NotEqual(t, a.ReportID, b.ReportID)
}
