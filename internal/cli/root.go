// Package cli implements the labledger command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/labledger/internal/paths"
	"github.com/mesh-intelligence/labledger/pkg/labledger"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// app holds global flag values and the loaded configuration for one
// command tree.
type app struct {
	configDir string
	dataDir   string
	jsonMode  bool
	as        string
	now       string

	cfg *viper.Viper
}

// NewRootCmd creates the top-level "labledger" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:     "labledger",
		Short:   "Staked reservations for shared lab resources",
		Long:    "labledger keeps a catalog of shared resources (lab space, instruments,\nequipment) and grants exclusive, time-boxed reservations against a stake.",
		Version: labledger.Version,
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.loadConfig()
		},
	}

	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "", "configuration directory (default: platform config dir, or $"+paths.EnvConfigDir+")")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "data directory (default: $(CWD)/"+paths.DefaultDataDirName+")")
	root.PersistentFlags().BoolVar(&a.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().StringVar(&a.as, "as", "", "calling account (default: account from config.yaml)")
	root.PersistentFlags().StringVar(&a.now, "now", "", "evaluate at this instant, RFC3339 or unix seconds (default: wall clock)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newResourceCmd(a))
	root.AddCommand(newReserveCmd(a))
	root.AddCommand(newReleaseCmd(a))
	root.AddCommand(newStatusCmd(a))
	root.AddCommand(newHistoryCmd(a))
	root.AddCommand(newStakeCmd(a))
	root.AddCommand(newExpiredCmd(a))
	root.AddCommand(newWalletCmd(a))
	root.AddCommand(newCatalogCmd(a))
	root.AddCommand(newEventsCmd(a))
	root.AddCommand(newServeCmd(a))

	return root
}

// Execute runs the root command, prints any error and returns the exit code.
func Execute() int {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return exitCode(err)
}

// sysError marks a failure of the environment (disk, database) rather than
// of the caller's input.
type sysError struct {
	err error
}

func (e *sysError) Error() string { return e.err.Error() }
func (e *sysError) Unwrap() error { return e.err }

// system wraps err as a sysError. Nil stays nil.
func system(err error) error {
	if err == nil {
		return nil
	}
	return &sysError{err: err}
}

// exitCode maps an error to the process exit code. Everything that is not a
// sysError is the caller's fault: bad flags, unknown resources, rejected
// reservations.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var se *sysError
	if errors.As(err, &se) {
		return exitSysError
	}
	return exitUserError
}
