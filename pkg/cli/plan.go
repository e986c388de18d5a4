package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/taskquest/pkg/service"
)

func newPlanCmd(opts *options) *cobra.Command {
	var sync bool
	cmd := &cobra.Command{
		Use:   "plan [DATE]",
		Short: "Plan a day into sprint slots",
		Long: `Plan regenerates every unlocked slot of DATE (today by default) and fills
them with pending subtasks. Locked slots and, with --sync, busy time in the
calendar are planned around.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := noCalendar
			if sync {
				mode = requireCalendar
			}
			return opts.with(cmd, mode, func(ctx context.Context, a *app) error {
				date, err := parseDate(firstArg(args), a.svc.Now())
				if err != nil {
					return err
				}
				plan, report, err := a.svc.PlanDay(ctx, date, service.PlanOptions{Sync: sync})
				if plan.Date != "" {
					titles, terr := subtaskTitles(ctx, a.svc)
					if terr != nil {
						return terr
					}
					renderPlan(cmd.OutOrStdout(), plan, titles)
				}
				if sync && plan.Date != "" {
					renderSync(cmd.OutOrStdout(), report)
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&sync, "sync", false, "Publish the plan to Google Calendar")
	return cmd
}

func newSlotCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slot",
		Short: "Inspect, reserve and lock slots",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list [DATE]",
		Short: "Show the stored slots of a day",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.with(cmd, noCalendar, func(ctx context.Context, a *app) error {
				date, err := parseDate(firstArg(args), a.svc.Now())
				if err != nil {
					return err
				}
				slots, err := a.svc.Day(ctx, date)
				if err != nil {
					return err
				}
				titles, err := subtaskTitles(ctx, a.svc)
				if err != nil {
					return err
				}
				renderDay(cmd.OutOrStdout(), date.Format("2006-01-02"), slots, titles)
				return nil
			})
		},
	})

	var subtask string
	reserve := &cobra.Command{
		Use:   "reserve DATE START END",
		Short: "Reserve a locked slot, e.g. reserve today 13:00 14:00",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.with(cmd, noCalendar, func(ctx context.Context, a *app) error {
				date, err := parseDate(args[0], a.svc.Now())
				if err != nil {
					return err
				}
				start, err := atClock(date, args[1])
				if err != nil {
					return err
				}
				end, err := atClock(date, args[2])
				if err != nil {
					return err
				}
				subtaskID := ""
				if subtask != "" {
					if subtaskID, err = resolveSubtask(ctx, a.svc, subtask); err != nil {
						return err
					}
				}
				slot, err := a.svc.ReserveSlot(ctx, start, end, subtaskID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reserved %s-%s as slot %s\n", start.Format(clockLayout), end.Format(clockLayout), slot.ID)
				return nil
			})
		},
	}
	reserve.Flags().StringVar(&subtask, "subtask", "", "Subtask to pin into the slot")
	cmd.AddCommand(reserve)

	cmd.AddCommand(newSlotLockCmd(opts, "lock", "Protect a slot from replanning", true))
	cmd.AddCommand(newSlotLockCmd(opts, "unlock", "Let the planner replace a slot", false))
	return cmd
}

func newSlotLockCmd(opts *options, use, short string, locked bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " SLOT_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.with(cmd, noCalendar, func(ctx context.Context, a *app) error {
				var err error
				if locked {
					err = a.svc.LockSlot(ctx, args[0])
				} else {
					err = a.svc.UnlockSlot(ctx, args[0])
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Slot %s %sed\n", args[0], use)
				return nil
			})
		},
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
