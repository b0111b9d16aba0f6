package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/labledger/pkg/types"
)

func newReserveCmd(a *app) *cobra.Command {
	var (
		duration time.Duration
		stake    string
	)
	cmd := &cobra.Command{
		Use:   "reserve <id>",
		Short: "Reserve a resource against a stake",
		Long: `Reserve grants the calling account exclusive use of a resource for the
given duration (at most 168h). The stake is held in escrow until release.
A lapsed reservation is cleared and its holder refunded first.`,
		Example: "  labledger reserve 3 --duration 2h --stake 0.5 --as alice",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			caller, err := a.caller()
			if err != nil {
				return err
			}
			amount, err := types.ParseAmount(stake)
			if err != nil {
				return err
			}
			now, err := a.clock()
			if err != nil {
				return err
			}

			return a.withSession(cmd, func(ctx context.Context, s *session) error {
				receipt, err := s.ledger.Reserve(ctx, id, caller, duration, amount, now)
				if err != nil {
					return classify(err)
				}
				if a.jsonMode {
					return printJSON(cmd, receipt)
				}
				w := cmd.OutOrStdout()
				if c := receipt.Cleared; c != nil {
					fmt.Fprintf(w, "Cleared lapsed reservation of %s (refunded %s)\n", c.FormerHolder, c.Refunded)
				}
				fmt.Fprintf(w, "Reserved resource %d for %s until %s (staked %s)\n",
					receipt.ResourceID, receipt.Reserver, formatTime(receipt.End), receipt.Staked)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 0, "reservation length, e.g. 90m or 48h")
	cmd.Flags().StringVar(&stake, "stake", types.MinStake.String(), "stake to hold in escrow")
	cmd.MarkFlagRequired("duration")
	return cmd
}

func newReleaseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "release <id>",
		Short: "Release a reservation and refund its stake",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			caller, err := a.caller()
			if err != nil {
				return err
			}

			return a.withSession(cmd, func(ctx context.Context, s *session) error {
				receipt, err := s.ledger.Release(ctx, id, caller)
				if err != nil {
					return classify(err)
				}
				if a.jsonMode {
					return printJSON(cmd, receipt)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Released resource %d (refunded %s to %s)\n",
					receipt.ResourceID, receipt.Refunded, receipt.Reserver)
				return nil
			})
		},
	}
}
