package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harrisonrobin/taskquest/pkg/model"
	"github.com/harrisonrobin/taskquest/pkg/orgmode"
	"github.com/harrisonrobin/taskquest/pkg/service"
	"github.com/harrisonrobin/taskquest/pkg/taskwarrior"
)

func newImportCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import tasks from Taskwarrior or Org-mode",
	}

	var run bool
	tw := &cobra.Command{
		Use:   "taskwarrior [FILTER...]",
		Short: "Import pending tasks from `task export` JSON on stdin",
		Long: `Reads the JSON written by "task export" from stdin. With --run the export is
taken directly from the task binary, optionally narrowed by FILTER.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.with(cmd, noCalendar, func(ctx context.Context, a *app) error {
				client := taskwarrior.NewClient()
				var (
					tasks []taskwarrior.Task
					err   error
				)
				if run {
					tasks, err = client.GetTasks(ctx, args)
				} else {
					tasks, err = client.ParseTasks(cmd.InOrStdin())
				}
				if err != nil {
					return err
				}

				var imported []model.ImportedTask
				for _, t := range tasks {
					it, ok, err := taskwarrior.Convert(t)
					if err != nil {
						a.log.Warn("Skipping unreadable task", zap.String("uuid", t.UUID), zap.Error(err))
						continue
					}
					if ok {
						imported = append(imported, it)
					}
				}
				return importTasks(ctx, cmd.OutOrStdout(), a.svc, imported)
			})
		},
	}
	tw.Flags().BoolVar(&run, "run", false, "Run `task export` instead of reading stdin")
	cmd.AddCommand(tw)

	cmd.AddCommand(&cobra.Command{
		Use:   "org FILE...",
		Short: "Import TODO headings from Org-mode files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imported, err := orgmode.ParseFiles(args)
			if err != nil {
				return err
			}
			return opts.with(cmd, noCalendar, func(ctx context.Context, a *app) error {
				return importTasks(ctx, cmd.OutOrStdout(), a.svc, imported)
			})
		},
	})
	return cmd
}

func importTasks(ctx context.Context, w io.Writer, svc *service.Service, in []model.ImportedTask) error {
	report, err := svc.Import(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Imported %d tasks with %d subtasks", report.Tasks, report.Subtasks)
	if report.Skipped > 0 {
		fmt.Fprint(w, mutedStyle.Render(fmt.Sprintf(" (%d already present)", report.Skipped)))
	}
	fmt.Fprintln(w)
	return nil
}
