package ctl

import (
	"fmt"

	"github.com/spf13/cobra"

	"horas/internal/core"
)

type parsedInput struct {
	Input   string  `json:"input"`
	Hours   float64 `json:"hours"`
	Display string  `json:"display,omitempty"`
	Error   string  `json:"error,omitempty"`
}

func (a *app) newParseCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "parse INPUT...",
		Short:   "Show how duration inputs are read",
		Example: "  horasctl parse 8 730 10:30 1h15",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := make([]parsedInput, 0, len(args))
			for _, in := range args {
				h, err := core.ParseDurationInput(in)
				if err != nil {
					results = append(results, parsedInput{Input: in, Error: err.Error()})
					continue
				}
				h = core.ToStorageDecimal(h)
				results = append(results, parsedInput{Input: in, Hours: h, Display: core.FormatHours(h)})
			}

			out := cmd.OutOrStdout()
			if a.asJSON {
				return writeJSON(out, results)
			}
			tw := newTable(out)
			for _, r := range results {
				if r.Error != "" {
					fmt.Fprintf(tw, "%s\t%s\n", r.Input, overStyle.Render(r.Error))
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%.2f\n", r.Input, r.Display, r.Hours)
			}
			return tw.Flush()
		},
	}
}
