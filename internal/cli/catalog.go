package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/labledger/internal/jsonl"
	"github.com/mesh-intelligence/labledger/pkg/types"
)

// catalogEntry is one line of a catalog file.
type catalogEntry struct {
	Name      string         `json:"name"`
	Category  types.Category `json:"category"`
	Custodian types.Account  `json:"custodian,omitempty"`
}

func newCatalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Move the resource catalog in and out as JSONL",
	}
	cmd.AddCommand(newCatalogExportCmd(a))
	cmd.AddCommand(newCatalogImportCmd(a))
	return cmd
}

func newCatalogExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write every catalog entry to a JSONL file, in ID order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(_ context.Context, s *session) error {
				resources := s.ledger.Resources()
				entries := make([]catalogEntry, len(resources))
				for i, r := range resources {
					entries[i] = catalogEntry{Name: r.Name, Category: r.Category, Custodian: r.Custodian}
				}
				if err := jsonl.Marshal(args[0], entries); err != nil {
					return system(fmt.Errorf("export catalog: %w", err))
				}
				if a.jsonMode {
					return printJSON(cmd, map[string]any{"file": args[0], "exported": len(entries)})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d resources to %s\n", len(entries), args[0])
				return nil
			})
		},
	}
}

func newCatalogImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Create a resource for every entry of a JSONL file (managers only)",
		Long: `Import appends the entries of a catalog file to the catalog. New IDs are
assigned in file order. Every entry is checked before the first is created,
but the import is not atomic: each entry is its own commit, so a failure
part way through keeps the entries created before it. The error names the
failing entry and how many were created.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := a.caller()
			if err != nil {
				return err
			}
			now, err := a.clock()
			if err != nil {
				return err
			}
			entries, err := jsonl.Unmarshal[catalogEntry](args[0])
			if err != nil {
				return fmt.Errorf("read catalog: %w", err)
			}
			for i, e := range entries {
				if strings.TrimSpace(e.Name) == "" {
					return fmt.Errorf("entry %d: %w", i, types.ErrNameEmpty)
				}
				if !e.Category.Valid() {
					return fmt.Errorf("entry %d: %w: %q", i, types.ErrInvalidCategory, e.Category)
				}
			}

			return a.withSession(cmd, func(ctx context.Context, s *session) error {
				ids := make([]types.ResourceID, 0, len(entries))
				for i, e := range entries {
					id, err := s.ledger.CreateResource(ctx, caller, types.NewResource{
						Name:      e.Name,
						Category:  e.Category,
						Custodian: e.Custodian,
					}, now)
					if err != nil {
						return classify(fmt.Errorf("entry %d (%d created before it): %w", i, len(ids), err))
					}
					ids = append(ids, id)
				}
				if a.jsonMode {
					return printJSON(cmd, map[string]any{"file": args[0], "imported": ids})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d resources from %s\n", len(ids), args[0])
				return nil
			})
		},
	}
}
