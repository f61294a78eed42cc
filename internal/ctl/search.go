package ctl

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"horas/internal/core"
)

func (a *app) newSearchCommand() *cobra.Command {
	var rf rangeFlags
	cmd := &cobra.Command{
		Use:   "search TERM",
		Short: "Find allocations by project name or description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := a.resolveRange(rf)
			if err != nil {
				return err
			}
			ledger, err := a.ledger(cmd.Context())
			if err != nil {
				return err
			}
			results, err := ledger.SearchAllocations(cmd.Context(), a.user, start, end, strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.asJSON {
				return writeJSON(out, results)
			}
			if len(results) == 0 {
				fmt.Fprintln(out, mutedStyle.Render("no matching allocations"))
				return nil
			}
			tw := newTable(out)
			for _, r := range results {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					r.Date,
					nameOr(r.ProjectName, r.ProjectID),
					core.FormatHours(r.Hours),
					r.Description)
			}
			return tw.Flush()
		},
	}
	rf.register(cmd)
	return cmd
}
