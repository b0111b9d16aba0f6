package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/labledger/pkg/types"
)

func newResourceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resource",
		Short: "Manage the resource catalog",
	}
	cmd.AddCommand(newResourceCreateCmd(a))
	cmd.AddCommand(newResourceGetCmd(a))
	cmd.AddCommand(newResourceListCmd(a))
	return cmd
}

func newResourceCreateCmd(a *app) *cobra.Command {
	var (
		category  string
		custodian string
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Add a resource to the catalog (managers only)",
		Example: `  labledger resource create "Confocal microscope" --category instrument --as lab-admin
  labledger resource create "Bay 3" --category space --custodian facilities`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := a.caller()
			if err != nil {
				return err
			}
			cat, err := types.ParseCategory(category)
			if err != nil {
				return fmt.Errorf("%w (valid: %s)", err, categoryList())
			}
			now, err := a.clock()
			if err != nil {
				return err
			}

			return a.withSession(cmd, func(ctx context.Context, s *session) error {
				id, err := s.ledger.CreateResource(ctx, caller, types.NewResource{
					Name:      args[0],
					Category:  cat,
					Custodian: types.Account(custodian),
				}, now)
				if err != nil {
					return classify(err)
				}
				r, err := s.ledger.Resource(id)
				if err != nil {
					return classify(err)
				}
				if a.jsonMode {
					return printJSON(cmd, r)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created resource %d: %s (%s)\n", r.ID, r.Name, r.Category)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "resource category ("+categoryList()+")")
	cmd.Flags().StringVar(&custodian, "custodian", "", "initial holder account")
	cmd.MarkFlagRequired("category")
	return cmd
}

func newResourceGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show the stored record of a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withSession(cmd, func(_ context.Context, s *session) error {
				r, err := s.ledger.Resource(id)
				if err != nil {
					return classify(err)
				}
				if a.jsonMode {
					return printJSON(cmd, r)
				}
				printResource(cmd, r)
				return nil
			})
		},
	}
}

func newResourceListCmd(a *app) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the catalog in ID order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter types.Category
			if category != "" {
				cat, err := types.ParseCategory(category)
				if err != nil {
					return fmt.Errorf("%w (valid: %s)", err, categoryList())
				}
				filter = cat
			}
			now, err := a.clock()
			if err != nil {
				return err
			}

			return a.withSession(cmd, func(_ context.Context, s *session) error {
				var out []types.Resource
				for _, r := range s.ledger.Resources() {
					if filter == "" || r.Category == filter {
						out = append(out, r)
					}
				}
				if a.jsonMode {
					if out == nil {
						out = []types.Resource{}
					}
					return printJSON(cmd, out)
				}
				w := cmd.OutOrStdout()
				for _, r := range out {
					state := "available"
					if r.ReservedAt(now) {
						state = "reserved by " + string(r.Reservation.Reserver)
					} else if r.ExpiredAt(now) {
						state = "expired"
					}
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.ID, r.Category, r.Name, state)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only list this category")
	return cmd
}

// printResource writes the human-readable form of a stored record.
func printResource(cmd *cobra.Command, r types.Resource) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "ID:        %d\n", r.ID)
	fmt.Fprintf(w, "Name:      %s\n", r.Name)
	fmt.Fprintf(w, "Category:  %s\n", r.Category)
	if r.Custodian != "" {
		fmt.Fprintf(w, "Custodian: %s\n", r.Custodian)
	}
	fmt.Fprintf(w, "Created:   %s\n", formatTime(r.CreatedAt))
	if res := r.Reservation; res != nil {
		fmt.Fprintf(w, "Reserver:  %s\n", res.Reserver)
		fmt.Fprintf(w, "Window:    %s to %s\n", formatTime(res.Start), formatTime(res.End))
		fmt.Fprintf(w, "Staked:    %s\n", res.Staked)
	}
}

func categoryList() string {
	cats := types.Categories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
