package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/labledger/internal/notify"
)

func newEventsCmd(a *app) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List events recorded in the events file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(_ context.Context, s *session) error {
				if s.events == nil {
					return fmt.Errorf("no events file: set %q in %s", cfgKeyEventsFile, configFileExt)
				}
				records, err := notify.ReadFile(s.events.Path())
				if err != nil {
					return system(err)
				}
				out := make([]notify.Record, 0, len(records))
				for _, r := range records {
					if kind == "" || r.Kind == kind {
						out = append(out, r)
					}
				}
				if a.jsonMode {
					return printJSON(cmd, out)
				}
				for _, r := range out {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%-20s\t%d\t%s\n", formatTime(r.At), r.Kind, r.Resource, r.Payload)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "only list events of this kind")
	return cmd
}
