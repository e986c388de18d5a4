package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/taskquest/pkg/model"
	"github.com/harrisonrobin/taskquest/pkg/service"
)

func newSubtaskCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subtask",
		Short: "Manage the schedulable pieces of a task",
	}

	var (
		estimate time.Duration
		tags     []string
	)
	add := &cobra.Command{
		Use:   "add TASK_ID TITLE...",
		Short: "Add a subtask to a task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.with(cmd, noCalendar, func(ctx context.Context, a *app) error {
				taskID, err := resolveTask(ctx, a.svc, args[0])
				if err != nil {
					return err
				}
				st, err := a.svc.AddSubtask(ctx, service.NewSubtask{
					TaskID:           taskID,
					Title:            strings.Join(args[1:], " "),
					EstimatedMinutes: int(estimate / time.Minute),
					Tags:             tags,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added subtask %s #%d %s\n", shortID(st.ID), st.Seq, st.Title)
				return nil
			})
		},
	}
	add.Flags().DurationVarP(&estimate, "estimate", "e", 0, "Estimated effort, e.g. 45m")
	add.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Tags; energy:low|medium|high sets the energy level")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "list [TASK_ID]",
		Short: "List subtasks of one task or of all tasks",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.with(cmd, noCalendar, func(ctx context.Context, a *app) error {
				taskID := ""
				if len(args) == 1 {
					var err error
					if taskID, err = resolveTask(ctx, a.svc, args[0]); err != nil {
						return err
					}
				}
				subtasks, err := a.svc.ListSubtasks(ctx, taskID)
				if err != nil {
					return err
				}
				if len(subtasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("No subtasks."))
					return nil
				}
				renderSubtasks(cmd.OutOrStdout(), subtasks)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status ID STATUS",
		Short: "Set a subtask to todo, in-progress, done or blocked",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := model.ParseSubtaskStatus(args[1])
			if err != nil {
				return err
			}
			return opts.with(cmd, noCalendar, func(ctx context.Context, a *app) error {
				id, err := resolveSubtask(ctx, a.svc, args[0])
				if err != nil {
					return err
				}
				if err := a.svc.SetSubtaskStatus(ctx, id, status); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Subtask %s is now %s\n", shortID(id), status)
				return nil
			})
		},
	})
	return cmd
}
