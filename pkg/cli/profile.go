package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/taskquest/pkg/service"
)

func newProfileCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show level, rank, streak and achievements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.with(cmd, noCalendar, func(ctx context.Context, a *app) error {
				summary, err := a.svc.Profile(ctx)
				if err != nil {
					return err
				}
				renderProfile(cmd.OutOrStdout(), summary, a.svc.Now())
				return nil
			})
		},
	}
}

func newSessionCmd(opts *options) *cobra.Command {
	var in service.Session
	cmd := &cobra.Command{
		Use:   "session MINUTES",
		Short: "Log a timed focus session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			minutes, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid minutes %q", args[0])
			}
			in.Minutes = minutes
			return opts.with(cmd, noCalendar, func(ctx context.Context, a *app) error {
				award, err := a.svc.LogSession(ctx, in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged a %d minute session\n", in.Minutes)
				renderAward(cmd.OutOrStdout(), award)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&in.FocusScore, "focus", 0, "Self-rated focus from 0 to 100")
	cmd.Flags().BoolVar(&in.DungeonMode, "dungeon", false, "Worked in dungeon mode")
	return cmd
}
