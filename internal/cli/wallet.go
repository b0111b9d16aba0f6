package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/labledger/internal/sqlite"
	"github.com/mesh-intelligence/labledger/pkg/types"
)

func newWalletCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Inspect and fund the escrow wallet (sqlite backend)",
	}
	cmd.AddCommand(newWalletDepositCmd(a))
	cmd.AddCommand(newWalletWithdrawCmd(a))
	cmd.AddCommand(newWalletBalanceCmd(a))
	cmd.AddCommand(newWalletTransfersCmd(a))
	return cmd
}

func newWalletDepositCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "deposit <account> <amount>",
		Short:   "Credit an account (managers only)",
		Example: "  labledger wallet deposit alice 2.5 --as lab-admin",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := a.caller()
			if err != nil {
				return err
			}
			if !a.managers().IsAuthorizedManager(caller) {
				return types.ErrNotManager
			}
			account := types.Account(args[0])
			amount, err := types.ParseAmount(args[1])
			if err != nil {
				return err
			}

			return a.withSession(cmd, func(ctx context.Context, s *session) error {
				w, err := s.requireWallet()
				if err != nil {
					return err
				}
				if err := w.Deposit(ctx, account, amount); err != nil {
					return classify(err)
				}
				return printBalance(ctx, a, cmd, w, account)
			})
		},
	}
}

func newWalletWithdrawCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <amount>",
		Short: "Debit the caller's available balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := a.caller()
			if err != nil {
				return err
			}
			amount, err := types.ParseAmount(args[0])
			if err != nil {
				return err
			}

			return a.withSession(cmd, func(ctx context.Context, s *session) error {
				w, err := s.requireWallet()
				if err != nil {
					return err
				}
				if err := w.Withdraw(ctx, caller, amount); err != nil {
					return classify(err)
				}
				return printBalance(ctx, a, cmd, w, caller)
			})
		},
	}
}

func newWalletBalanceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "balance [account]",
		Short: "Show available and held balances",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := accountArg(a, args)
			if err != nil {
				return err
			}
			return a.withSession(cmd, func(ctx context.Context, s *session) error {
				w, err := s.requireWallet()
				if err != nil {
					return err
				}
				return printBalance(ctx, a, cmd, w, account)
			})
		},
	}
}

func newWalletTransfersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "transfers [account]",
		Short: "List an account's transfer journal, oldest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := accountArg(a, args)
			if err != nil {
				return err
			}
			return a.withSession(cmd, func(ctx context.Context, s *session) error {
				w, err := s.requireWallet()
				if err != nil {
					return err
				}
				transfers, err := w.Transfers(ctx, account)
				if err != nil {
					return classify(err)
				}
				if a.jsonMode {
					if transfers == nil {
						transfers = []types.Transfer{}
					}
					return printJSON(cmd, transfers)
				}
				for _, t := range transfers {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%-8s\t%s\n", formatTime(t.At), t.TransferID, t.Kind, t.Amount)
				}
				return nil
			})
		},
	}
}

func printBalance(ctx context.Context, a *app, cmd *cobra.Command, w *sqlite.Wallet, account types.Account) error {
	bal, err := w.Balance(ctx, account)
	if err != nil {
		return classify(err)
	}
	if a.jsonMode {
		return printJSON(cmd, bal)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: available %s, held %s\n", bal.Account, bal.Available, bal.Held)
	return nil
}
