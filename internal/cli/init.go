package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize labledger storage",
		Long:  "Create the configuration and data directories, then open the ledger once so its store exists.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resources int
			err := a.withSession(cmd, func(_ context.Context, s *session) error {
				resources = len(s.ledger.Resources())
				return nil
			})
			if err != nil {
				return err
			}
			dataDir, err := a.resolveDataDir()
			if err != nil {
				return err
			}

			if a.jsonMode {
				return printJSON(cmd, map[string]any{
					"config_dir": a.configDir,
					"data_dir":   dataDir,
					"backend":    a.cfg.GetString(cfgKeyBackend),
					"resources":  resources,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "labledger initialized successfully")
			fmt.Fprintln(out, "  config:", a.configDir)
			fmt.Fprintln(out, "  data:  ", dataDir)
			return nil
		},
	}
}
