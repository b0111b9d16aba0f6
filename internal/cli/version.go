package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/labledger/pkg/labledger"
)

const modulePath = "github.com/mesh-intelligence/labledger"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the labledger version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "labledger v%s\nmodule: %s\n", labledger.Version, modulePath)
			return nil
		},
	}
}
