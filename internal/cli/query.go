package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/labledger/pkg/types"
)

// statusView is the logical state of a resource at an instant.
type statusView struct {
	ID               types.ResourceID `json:"id"`
	Name             string           `json:"name"`
	Reserved         bool             `json:"reserved"`
	Reserver         types.Account    `json:"reserver,omitempty"`
	RemainingSeconds int64            `json:"remaining_seconds"`
	At               time.Time        `json:"at"`
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Show whether a resource is reserved now (or at --now)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			now, err := a.clock()
			if err != nil {
				return err
			}

			return a.withSession(cmd, func(_ context.Context, s *session) error {
				r, err := s.ledger.Resource(id)
				if err != nil {
					return classify(err)
				}
				reserver, reserved, err := s.ledger.CurrentReserver(id, now)
				if err != nil {
					return classify(err)
				}
				remaining, err := s.ledger.RemainingTime(id, now)
				if err != nil {
					return classify(err)
				}
				view := statusView{
					ID:               id,
					Name:             r.Name,
					Reserved:         reserved,
					Reserver:         reserver,
					RemainingSeconds: int64(remaining / time.Second),
					At:               now,
				}
				if a.jsonMode {
					return printJSON(cmd, view)
				}
				w := cmd.OutOrStdout()
				if !reserved {
					fmt.Fprintf(w, "Resource %d (%s) is available\n", id, r.Name)
					return nil
				}
				fmt.Fprintf(w, "Resource %d (%s) is reserved by %s for another %s\n", id, r.Name, reserver, remaining)
				return nil
			})
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "List every account that has reserved a resource, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return a.withSession(cmd, func(_ context.Context, s *session) error {
				entries, err := s.ledger.HistoryEntries(id)
				if err != nil {
					return classify(err)
				}
				if a.jsonMode {
					if entries == nil {
						entries = []types.HistoryEntry{}
					}
					return printJSON(cmd, entries)
				}
				for _, e := range entries {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", e.Seq, formatTime(e.At), e.Account)
				}
				return nil
			})
		},
	}
}

func newStakeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stake [account]",
		Short: "Show the total stake an account has in uncleared reservations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := accountArg(a, args)
			if err != nil {
				return err
			}

			return a.withSession(cmd, func(_ context.Context, s *session) error {
				total := s.ledger.TotalStaked(account)
				if a.jsonMode {
					return printJSON(cmd, map[string]any{"account": account, "total_staked": total})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s has %s staked\n", account, total)
				return nil
			})
		},
	}
}

func newExpiredCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "expired",
		Short: "List resources whose reservation has lapsed but is not yet cleared",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now, err := a.clock()
			if err != nil {
				return err
			}

			return a.withSession(cmd, func(_ context.Context, s *session) error {
				expired := s.ledger.Expired(now)
				if a.jsonMode {
					if expired == nil {
						expired = []types.Resource{}
					}
					return printJSON(cmd, expired)
				}
				for _, r := range expired {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\tended %s\n",
						r.ID, r.Name, r.Reservation.Reserver, formatTime(r.Reservation.End))
				}
				return nil
			})
		},
	}
}

// accountArg returns the optional account argument, or the caller.
func accountArg(a *app, args []string) (types.Account, error) {
	if len(args) == 1 {
		acct := types.Account(args[0])
		if !acct.Valid() {
			return "", types.ErrInvalidAccount
		}
		return acct, nil
	}
	return a.caller()
}
