package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harrisonrobin/taskquest/pkg/auth"
	"github.com/harrisonrobin/taskquest/pkg/config"
)

func newAuthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with Google Calendar",
		Long: `Runs the OAuth browser flow using credentials.json from the configuration
directory and stores a fresh token, replacing any existing one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			log, err := opts.logger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			dir, err := config.Dir()
			if err != nil {
				return fmt.Errorf("could not find path to configuration directory: %w", err)
			}
			a := auth.New(dir, log)
			if err := a.Reset(); err != nil {
				return err
			}
			log.Debug("Removed existing token", zap.String("path", a.TokenPath()))

			if _, err := a.Client(cmd.Context(), auth.Scopes); err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Authentication successful! Token saved to %s\n", a.TokenPath())
			return nil
		},
	}
}
