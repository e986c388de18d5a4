package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newSweepCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Report missed slots and flag them in the calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.with(cmd, optionalCalendar, func(ctx context.Context, a *app) error {
				report, err := a.svc.Sweep(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(report.Missed) == 0 {
					fmt.Fprintln(out, mutedStyle.Render("No missed slots."))
					return nil
				}
				titles, err := subtaskTitles(ctx, a.svc)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, headerStyle.Render("Missed slots"))
				for _, s := range report.Missed {
					fmt.Fprintf(out, "%s %s-%s  %s\n", s.Date, s.Start.Local().Format(clockLayout), s.End.Local().Format(clockLayout),
						failedStyle.Render(titles[s.SubtaskID]))
				}
				if report.Flagged > 0 {
					fmt.Fprintf(out, "Flagged %d calendar events\n", report.Flagged)
				}
				return nil
			})
		},
	}
}
