package ctl

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"horas/internal/core"
	"horas/internal/services"
)

func (a *app) newCalendarCommand() *cobra.Command {
	var (
		year  int
		month int
		week  string
	)
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show the month (or week) calendar with each day's status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, err := a.ledger(cmd.Context())
			if err != nil {
				return err
			}

			var period core.Period
			if week != "" {
				anchor, err := core.ParseDate(week)
				if err != nil {
					return err
				}
				if period, err = services.ResolvePeriod(services.PeriodWeek, anchor, ledger.WeekStart()); err != nil {
					return err
				}
			} else {
				now := a.opts.Now()
				if year == 0 {
					year = now.Year()
				}
				if month == 0 {
					month = int(now.Month())
				}
				if month < 1 || month > 12 {
					return fmt.Errorf("month %d out of range", month)
				}
				period = core.MonthPeriod(year, time.Month(month))
			}

			days, err := ledger.GetCalendar(cmd.Context(), a.user, period)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.asJSON {
				return writeJSON(out, days)
			}

			heading(out, fmt.Sprintf("%s to %s (weeks start %s)", period.Start, period.End, strings.ToLower(ledger.WeekStart().String())))
			tw := newTable(out)
			for _, d := range days {
				label := d.Date.Format("Mon 02 Jan")
				if !d.InCurrentPeriod {
					label = mutedStyle.Render(label)
				}
				if d.Status == core.StatusNone && d.TotalHours == 0 {
					fmt.Fprintf(tw, "%s\t\t\t\t%s\n", label, statusLabel(d.Status, false))
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					label,
					core.FormatHours(d.TotalHours),
					core.FormatHours(d.DistributedHours),
					core.FormatHours(d.Remaining),
					statusLabel(d.Status, d.OverAllocated))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "calendar year (default current)")
	cmd.Flags().IntVar(&month, "month", 0, "calendar month 1-12 (default current)")
	cmd.Flags().StringVar(&week, "week", "", "show the week containing this date instead of a month")
	cmd.MarkFlagsMutuallyExclusive("week", "month")
	return cmd
}
