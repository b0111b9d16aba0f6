package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Account identifies a reserver, custodian or resource manager.
type Account string

// Valid reports whether the account identifier is usable.
func (a Account) Valid() bool {
	return strings.TrimSpace(string(a)) != ""
}

// Amount is a stake value in micro-units. One whole unit is UnitScale.
type Amount int64

// UnitScale is the number of micro-units per whole unit.
const UnitScale Amount = 1_000_000

// unitDecimals is the number of fractional digits UnitScale provides.
const unitDecimals = 6

// Amount parsing errors.
var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrAmountPrecision = errors.New("amount has more than 6 fractional digits")
)

// ParseAmount parses a decimal string such as "0.1" or "12" into micro-units.
// Negative values and more than six fractional digits are rejected.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" && (!hasDot || frac == "") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if len(frac) > unitDecimals {
		return 0, fmt.Errorf("%w: %q", ErrAmountPrecision, s)
	}

	var w int64
	if whole != "" {
		v, err := strconv.ParseInt(whole, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
		w = v
	}

	var f int64
	if frac != "" {
		padded := frac + strings.Repeat("0", unitDecimals-len(frac))
		v, err := strconv.ParseInt(padded, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
		f = v
	}

	if w > (1<<63-1-f)/int64(UnitScale) {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidAmount, s)
	}
	return Amount(w*int64(UnitScale) + f), nil
}

// String formats the amount as a decimal with trailing zeros trimmed,
// e.g. 100000 -> "0.1" and 2000000 -> "2".
func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}
	whole := v / int64(UnitScale)
	frac := v % int64(UnitScale)
	if frac == 0 {
		return fmt.Sprintf("%s%d", sign, whole)
	}
	fs := strings.TrimRight(fmt.Sprintf("%06d", frac), "0")
	return fmt.Sprintf("%s%d.%s", sign, whole, fs)
}
