package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/labledger/pkg/types"
)

// callerErrors are the ledger and wallet rejections caused by input rather
// than by the environment.
var callerErrors = []error{
	types.ErrResourceNotFound,
	types.ErrDurationTooLong,
	types.ErrInvalidDuration,
	types.ErrInsufficientStake,
	types.ErrStakeOverflow,
	types.ErrAlreadyReserved,
	types.ErrNotReserved,
	types.ErrNotReserver,
	types.ErrInvalidAccount,
	types.ErrNameEmpty,
	types.ErrInvalidCategory,
	types.ErrNotManager,
	types.ErrInsufficientFunds,
	types.ErrInvalidAmount,
	types.ErrAmountPrecision,
}

// classify marks errors outside callerErrors as system failures. An escrow
// failure is a system failure unless the wallet refused for lack of funds.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if types.IsEscrowFailure(err) && !errors.Is(err, types.ErrInsufficientFunds) {
		return system(err)
	}
	for _, target := range callerErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return system(err)
}

// printJSON writes v as indented JSON to the command's output.
func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return system(fmt.Errorf("marshal JSON: %w", err))
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

// parseID parses a resource ID argument.
func parseID(s string) (types.ResourceID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid resource id %q", s)
	}
	return types.ResourceID(n), nil
}

// clock returns the instant given by --now, or the wall clock.
func (a *app) clock() (time.Time, error) {
	if a.now == "" {
		return time.Now().UTC(), nil
	}
	if sec, err := strconv.ParseInt(a.now, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, a.now)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --now %q: want RFC3339 or unix seconds", a.now)
	}
	return t.UTC(), nil
}

// formatTime renders instants the same way in every human-readable view.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
