package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"slidereel/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check external tools, directories and the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var db preflight.Pinger
			if st, err := ctx.openStore(); err == nil {
				db = st
			}
			results := preflight.RunAll(cmd.Context(), cfg, db)
			if db == nil {
				results = append(results, preflight.Result{Name: "Database", Detail: "could not open"})
			}

			if ctx.jsonOutput() {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(results))
				for _, result := range results {
					kind := statusOK
					if !result.Passed {
						kind = statusError
					}
					rows = append(rows, []string{
						result.Name,
						colorizeText(kind, statusKindLabel(kind), colorize),
						result.Detail,
					})
				}
				fmt.Fprint(out, renderTable(out, []string{"Check", "Status", "Detail"}, rows, nil))
			}

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d preflight check(s) failed", len(failed))
			}
			return nil
		},
	}
}
