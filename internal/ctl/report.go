package ctl

import (
	"fmt"

	"github.com/spf13/cobra"

	"horas/internal/core"
)

// rangeFlags is the --start/--end pair shared by report and search.
type rangeFlags struct {
	start string
	end   string
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.start, "start", "", "first date of the range (default first of the current month)")
	cmd.Flags().StringVar(&f.end, "end", "", "last date of the range (default last of the current month)")
}

func (a *app) resolveRange(f rangeFlags) (core.Date, core.Date, error) {
	now := a.opts.Now()
	month := core.MonthPeriod(now.Year(), now.Month())
	start, end := month.Start, month.End
	var err error
	if f.start != "" {
		if start, err = core.ParseDate(f.start); err != nil {
			return core.Date{}, core.Date{}, err
		}
	}
	if f.end != "" {
		if end, err = core.ParseDate(f.end); err != nil {
			return core.Date{}, core.Date{}, err
		}
	}
	return start, end, nil
}

func (a *app) newReportCommand() *cobra.Command {
	report := &cobra.Command{
		Use:   "report",
		Short: "Aggregate hours over a date range",
	}
	report.AddCommand(a.newProjectReportCommand(), a.newWeekReportCommand(), a.newSummaryCommand())
	return report
}

func (a *app) newProjectReportCommand() *cobra.Command {
	var (
		rf     rangeFlags
		filter core.ProjectFilter
	)
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Hours per project with their share of the total",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := a.resolveRange(rf)
			if err != nil {
				return err
			}
			ledger, err := a.ledger(cmd.Context())
			if err != nil {
				return err
			}
			report, err := ledger.GetProjectRollup(cmd.Context(), a.user, start, end, filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.asJSON {
				return writeJSON(out, report)
			}

			heading(out, fmt.Sprintf("Projects %s to %s", report.Start, report.End))
			tw := newTable(out)
			for _, e := range report.Entries {
				fmt.Fprintf(tw, "%s\t%s\t%.1f%%\t%d records\tlast %s\n",
					nameOr(e.ProjectName, e.ProjectID),
					core.FormatHours(e.TotalHours),
					e.Percentage,
					e.RecordCount,
					e.LastActivityDate)
			}
			fmt.Fprintf(tw, "Total\t%s\n", core.FormatHours(report.GrandTotal))
			return tw.Flush()
		},
	}
	rf.register(cmd)
	cmd.Flags().StringVar(&filter.ProjectID, "project", "", "only this project id")
	cmd.Flags().StringVarP(&filter.NameQuery, "query", "q", "", "only projects whose name contains this text")
	return cmd
}

func (a *app) newWeekReportCommand() *cobra.Command {
	var rf rangeFlags
	cmd := &cobra.Command{
		Use:   "weeks",
		Short: "Totals per week",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := a.resolveRange(rf)
			if err != nil {
				return err
			}
			ledger, err := a.ledger(cmd.Context())
			if err != nil {
				return err
			}
			weeks, err := ledger.GetWeekRollup(cmd.Context(), a.user, start, end)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.asJSON {
				return writeJSON(out, weeks)
			}
			tw := newTable(out)
			fmt.Fprintln(tw, headerStyle.Render("Week")+"\tTotal\tDistributed\tComplete\tPartial\tOver")
			for _, w := range weeks {
				fmt.Fprintf(tw, "%s..%s\t%s\t%s\t%d\t%d\t%d\n",
					w.Start, w.End,
					core.FormatHours(w.TotalHours),
					core.FormatHours(w.DistributedHours),
					w.CompleteDays, w.PartialDays, w.OverAllocatedDays)
			}
			return tw.Flush()
		},
	}
	rf.register(cmd)
	return cmd
}

func (a *app) newSummaryCommand() *cobra.Command {
	var rf rangeFlags
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Totals and day counts for a range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := a.resolveRange(rf)
			if err != nil {
				return err
			}
			ledger, err := a.ledger(cmd.Context())
			if err != nil {
				return err
			}
			s, err := ledger.GetSummary(cmd.Context(), a.user, start, end)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.asJSON {
				return writeJSON(out, s)
			}
			heading(out, fmt.Sprintf("Summary %s to %s", s.Start, s.End))
			fmt.Fprintf(out, "total %s  distributed %s  remaining %s\n",
				core.FormatHours(s.TotalHours), core.FormatHours(s.DistributedHours), core.FormatHours(s.Remaining))
			fmt.Fprintf(out, "%d recorded  %s %d  %s %d  %s %d\n",
				s.RecordedDays,
				completeStyle.Render("complete"), s.CompleteDays,
				partialStyle.Render("partial"), s.PartialDays,
				overStyle.Render("over-allocated"), s.OverAllocatedDays)
			return nil
		},
	}
	rf.register(cmd)
	return cmd
}
