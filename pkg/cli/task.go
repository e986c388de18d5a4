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

func newTaskCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create tasks and move them through their lifecycle",
	}
	cmd.AddCommand(newTaskAddCmd(opts))
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.with(cmd, noCalendar, func(ctx context.Context, a *app) error {
				tasks, err := a.svc.ListTasks(ctx)
				if err != nil {
					return err
				}
				renderTasks(cmd.OutOrStdout(), tasks)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show ID",
		Short: "Show a task with its subtasks and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.with(cmd, noCalendar, func(ctx context.Context, a *app) error {
				id, err := resolveTask(ctx, a.svc, args[0])
				if err != nil {
					return err
				}
				t, err := a.svc.GetTask(ctx, id)
				if err != nil {
					return err
				}
				subtasks, err := a.svc.ListSubtasks(ctx, id)
				if err != nil {
					return err
				}
				renderTask(cmd.OutOrStdout(), t, subtasks)
				return nil
			})
		},
	})

	cmd.AddCommand(newTransitionCmd(opts, "start", "Start working on a task", func(ctx context.Context, svc *service.Service, id string, _ *cobra.Command) (model.Task, error) {
		return svc.Start(ctx, id)
	}))
	cmd.AddCommand(newTransitionCmd(opts, "resume", "Resume a paused task", func(ctx context.Context, svc *service.Service, id string, _ *cobra.Command) (model.Task, error) {
		return svc.Resume(ctx, id)
	}))
	cmd.AddCommand(newTransitionCmd(opts, "restart", "Return a failed task to the backlog", func(ctx context.Context, svc *service.Service, id string, _ *cobra.Command) (model.Task, error) {
		return svc.Restart(ctx, id)
	}))

	pause := newTransitionCmd(opts, "pause", "Pause the active task", func(ctx context.Context, svc *service.Service, id string, cmd *cobra.Command) (model.Task, error) {
		reason, _ := cmd.Flags().GetString("reason")
		return svc.Pause(ctx, id, reason)
	})
	pause.Flags().String("reason", "", "Why the task was paused")
	cmd.AddCommand(pause)

	fail := newTransitionCmd(opts, "fail", "Give up on a task", func(ctx context.Context, svc *service.Service, id string, cmd *cobra.Command) (model.Task, error) {
		note, _ := cmd.Flags().GetString("note")
		return svc.Fail(ctx, id, note)
	})
	fail.Flags().String("note", "", "Note recorded with the failure")
	cmd.AddCommand(fail)

	cmd.AddCommand(newTaskCompleteCmd(opts))
	return cmd
}

func newTaskAddCmd(opts *options) *cobra.Command {
	var (
		in       service.NewTask
		estimate time.Duration
		due      string
	)
	cmd := &cobra.Command{
		Use:   "add TITLE...",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.with(cmd, noCalendar, func(ctx context.Context, a *app) error {
				in.Title = strings.Join(args, " ")
				in.EstimatedMinutes = int(estimate / time.Minute)
				d, err := parseDue(due, a.svc.Now().Location())
				if err != nil {
					return err
				}
				in.Due = d
				t, err := a.svc.CreateTask(ctx, in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created task %s %s\n", shortID(t.ID), t.Title)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&in.Category, "category", "c", "general", "programming, finance, music or general")
	cmd.Flags().StringVarP(&in.Difficulty, "difficulty", "d", "basic", "basic, intermediate or advanced")
	cmd.Flags().IntVarP(&in.Priority, "priority", "p", 3, "Priority from 1 (low) to 5 (high)")
	cmd.Flags().DurationVarP(&estimate, "estimate", "e", 0, "Estimated effort, e.g. 90m")
	cmd.Flags().StringVar(&due, "due", "", "Due date, YYYY-MM-DD or \"YYYY-MM-DD HH:MM\"")
	cmd.Flags().IntVar(&in.ValueScore, "value", 0, "Value score used when planning")
	return cmd
}

type transitionFunc func(ctx context.Context, svc *service.Service, id string, cmd *cobra.Command) (model.Task, error)

func newTransitionCmd(opts *options, use, short string, fn transitionFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.with(cmd, noCalendar, func(ctx context.Context, a *app) error {
				id, err := resolveTask(ctx, a.svc, args[0])
				if err != nil {
					return err
				}
				t, err := fn(ctx, a.svc, id, cmd)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s is now %s\n", shortID(t.ID), t.Title, stateTag(t.State))
				return nil
			})
		},
	}
}

func newTaskCompleteCmd(opts *options) *cobra.Command {
	var co service.CompleteOptions
	cmd := &cobra.Command{
		Use:   "complete ID",
		Short: "Complete a task and collect its XP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.with(cmd, noCalendar, func(ctx context.Context, a *app) error {
				id, err := resolveTask(ctx, a.svc, args[0])
				if err != nil {
					return err
				}
				t, award, err := a.svc.Complete(ctx, id, co)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s %s completed in %dm\n", shortID(t.ID), t.Title, *t.ActualMinutes)
				renderAward(out, award)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&co.FocusScore, "focus", 0, "Self-rated focus from 0 to 100")
	cmd.Flags().BoolVar(&co.DungeonMode, "dungeon", false, "Worked in dungeon mode")
	cmd.Flags().StringVar(&co.Note, "note", "", "Note recorded with the completion")
	return cmd
}
