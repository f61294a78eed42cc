package ctl

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"horas/internal/core"
	"horas/internal/services"
)

func (a *app) newDayCommand() *cobra.Command {
	day := &cobra.Command{
		Use:   "day",
		Short: "Inspect or record a single day",
	}
	day.AddCommand(a.newDayShowCommand(), a.newDayTotalCommand(), a.newDayAllocateCommand())
	return day
}

func (a *app) newDayShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show DATE",
		Short: "Show a day's total, allocations and reconciliation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := core.ParseDate(args[0])
			if err != nil {
				return err
			}
			ledger, err := a.ledger(cmd.Context())
			if err != nil {
				return err
			}
			view, err := ledger.GetDayView(cmd.Context(), a.user, date)
			if err != nil {
				return err
			}
			if a.asJSON {
				return writeJSON(cmd.OutOrStdout(), view)
			}
			return printDay(cmd.OutOrStdout(), view)
		},
	}
}

func (a *app) newDayTotalCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "total DATE HOURS",
		Short:   "Record the clocked total of a day",
		Example: "  horasctl day total 2025-03-03 830",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := core.ParseDate(args[0])
			if err != nil {
				return err
			}
			ledger, err := a.ledger(cmd.Context())
			if err != nil {
				return err
			}
			l, err := ledger.OpenDay(cmd.Context(), a.user, date)
			if err != nil {
				return err
			}
			result, err := ledger.RecordTotalHours(cmd.Context(), l, args[1])
			if err != nil {
				return err
			}
			if a.asJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s total %s  %s\n", date, result.Display, statusLabel(result.Status, false))
			return nil
		},
	}
}

func (a *app) newDayAllocateCommand() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "allocate DATE PROJECT[/STAGE[/TASK]]=HOURS...",
		Short: "Replace a day's allocations",
		Long: `allocate replaces every allocation of the day with the given set.
The day's total must already be recorded.`,
		Example: "  horasctl day allocate 2025-03-03 portal/design=4 portal/build/api=330 internal=030",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := core.ParseDate(args[0])
			if err != nil {
				return err
			}
			drafts := make([]services.AllocationDraft, 0, len(args)-1)
			for _, spec := range args[1:] {
				d, err := parseAllocationSpec(spec)
				if err != nil {
					return err
				}
				d.Description = description
				drafts = append(drafts, d)
			}
			inputs, err := services.ParseDrafts(drafts)
			if err != nil {
				return err
			}

			ledger, err := a.ledger(cmd.Context())
			if err != nil {
				return err
			}
			l, err := ledger.OpenDay(cmd.Context(), a.user, date)
			if err != nil {
				return err
			}
			result, err := ledger.RecordAllocations(cmd.Context(), l, inputs)
			if err != nil {
				return err
			}
			if a.asJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s distributed %s of %s, remaining %s  %s\n",
				date,
				core.FormatHours(result.DistributedHours),
				core.FormatHours(l.TotalHours()),
				core.FormatHours(result.Remaining),
				statusLabel(result.Status, result.OverAllocated))
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "description stored on every allocation")
	return cmd
}

// parseAllocationSpec reads PROJECT[/STAGE[/TASK]]=HOURS.
func parseAllocationSpec(spec string) (services.AllocationDraft, error) {
	path, hours, ok := strings.Cut(spec, "=")
	if !ok || strings.TrimSpace(hours) == "" {
		return services.AllocationDraft{}, fmt.Errorf("allocation %q: want PROJECT[/STAGE[/TASK]]=HOURS", spec)
	}
	parts := strings.Split(path, "/")
	if len(parts) > 3 || strings.TrimSpace(parts[0]) == "" {
		return services.AllocationDraft{}, fmt.Errorf("allocation %q: want PROJECT[/STAGE[/TASK]]=HOURS", spec)
	}
	d := services.AllocationDraft{ProjectID: parts[0], Hours: hours}
	if len(parts) > 1 {
		d.StageID = parts[1]
	}
	if len(parts) > 2 {
		d.TaskID = parts[2]
	}
	return d, nil
}

func printDay(w io.Writer, v core.DayView) error {
	heading(w, v.Date.Format("Monday 2006-01-02"))
	fmt.Fprintf(w, "total %s  distributed %s  remaining %s  %s\n",
		core.FormatHours(v.TotalHours),
		core.FormatHours(v.DistributedHours),
		core.FormatHours(v.Remaining),
		statusLabel(v.Status, v.OverAllocated))
	if len(v.Allocations) == 0 {
		return nil
	}
	tw := newTable(w)
	for _, al := range v.Allocations {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n",
			nameOr(al.ProjectName, al.ProjectID),
			nameOr(al.StageName, al.StageID),
			nameOr(al.TaskName, al.TaskID),
			core.FormatHours(al.Hours),
			al.Description)
	}
	return tw.Flush()
}

func nameOr(name, id string) string {
	switch {
	case name != "":
		return name
	case id != "":
		return id
	default:
		return "-"
	}
}
