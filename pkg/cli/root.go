// Package cli is the taskquest command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// options are the persistent flags shared by every command.
type options struct {
	configPath string
	calendar   string
	verbose    bool
}

// NewRootCmd builds a fresh command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "taskquest",
		Short: "Gamified task tracking and day planning",
		Long: `taskquest tracks tasks through their lifecycle, awards XP for finished work
and plans each day into sprint slots that can be published to Google Calendar.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default ~/.config/taskquest/config.yaml)")
	root.PersistentFlags().StringVar(&opts.calendar, "calendar", "", "Google Calendar name to sync with (overrides config)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(newAuthCmd(opts))
	root.AddCommand(newConfigCmd(opts))
	root.AddCommand(newTaskCmd(opts))
	root.AddCommand(newSubtaskCmd(opts))
	root.AddCommand(newPlanCmd(opts))
	root.AddCommand(newSlotCmd(opts))
	root.AddCommand(newProfileCmd(opts))
	root.AddCommand(newSessionCmd(opts))
	root.AddCommand(newImportCmd(opts))
	root.AddCommand(newSweepCmd(opts))
	return root
}

// Execute runs the root command
func Execute(version string) error {
	root := NewRootCmd()
	root.Version = version
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
