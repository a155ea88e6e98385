package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/c360studio/claimwatch/checker"
	"github.com/c360studio/claimwatch/constraint"
	"github.com/c360studio/claimwatch/evaluate"
	"github.com/c360studio/claimwatch/sparql"
	"github.com/c360studio/claimwatch/wikiapi"
	"github.com/spf13/cobra"
)

// checkCmd evaluates one entity or one revision pair directly against
// the wiki, without NATS. Useful for spot checks and debugging checker
// behavior.
func checkCmd(configPath, logLevel *string) *cobra.Command {
	var (
		baseRev int64
		newRev  int64
	)

	cmd := &cobra.Command{
		Use:   "check [entity-id]",
		Short: "Evaluate constraints for one entity or revision pair",
		Long: `Check evaluates property constraints directly against the wiki.

With an entity id, the entity's current state is evaluated in full.
With --base and --new revision ids, only the constraints on properties
touched between the two revisions are evaluated, with transition labels.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(*logLevel)

			cfg, err := loadConfig(*configPath, logger)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			queries := sparql.NewClient(cfg.Wikibase.SPARQLURL, cfg.Wikibase.UserAgent, cfg.Wikibase.Timeout.Std())
			wiki := wikiapi.NewClient(cfg.Wikibase.APIURL, cfg.Wikibase.UserAgent, cfg.Wikibase.Timeout.Std())
			store := constraint.NewStore(queries, cfg.Store.TTL.Std(), logger)
			lookup := wikiapi.NewRefLookup(wiki, queries, cfg.Store.LookupCacheSize)
			evaluator := evaluate.New(store, checker.DefaultRegistry(logger), lookup, logger)

			ctx := cmd.Context()

			var results []evaluate.Result
			switch {
			case baseRev != 0 && newRev != 0:
				base, err := wiki.GetRevision(ctx, baseRev)
				if err != nil {
					return fmt.Errorf("fetch base revision: %w", err)
				}
				next, err := wiki.GetRevision(ctx, newRev)
				if err != nil {
					return fmt.Errorf("fetch new revision: %w", err)
				}
				results, err = evaluator.EvaluateChange(ctx, base, next)
				if err != nil {
					return fmt.Errorf("evaluate change: %w", err)
				}
			case len(args) == 1:
				snap, err := lookup.Entity(ctx, args[0])
				if err != nil {
					return fmt.Errorf("fetch entity: %w", err)
				}
				results, err = evaluator.EvaluateEntity(ctx, snap)
				if err != nil {
					return fmt.Errorf("evaluate entity: %w", err)
				}
			default:
				return fmt.Errorf("either an entity id or both --base and --new are required")
			}

			return printResults(results)
		},
	}

	cmd.Flags().Int64Var(&baseRev, "base", 0, "Base revision id")
	cmd.Flags().Int64Var(&newRev, "new", 0, "New revision id")

	return cmd
}

type printedResult struct {
	ConstraintID string `json:"constraint_id"`
	Property     string `json:"property"`
	Kind         string `json:"kind"`
	Status       string `json:"status,omitempty"`
	Verdict      string `json:"verdict"`
	Transition   string `json:"transition,omitempty"`
	Error        string `json:"error,omitempty"`
}

func printResults(results []evaluate.Result) error {
	out := make([]printedResult, 0, len(results))
	for _, r := range results {
		p := printedResult{
			ConstraintID: r.ConstraintID,
			Property:     r.Property,
			Kind:         string(r.Kind),
			Status:       string(r.Status),
			Verdict:      string(r.Verdict),
			Transition:   string(r.Transition),
		}
		if r.Err != nil {
			p.Error = r.Err.Error()
		}
		out = append(out, p)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
