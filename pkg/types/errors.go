package types

import (
	"errors"
	"fmt"
)

// Reservation errors. Every error returned by the ledger means no state
// changed; callers decide whether to retry.
var (
	ErrResourceNotFound  = errors.New("resource not found")
	ErrDurationTooLong   = errors.New("duration exceeds maximum of 7 days")
	ErrInvalidDuration   = errors.New("duration must be at least one second")
	ErrInsufficientStake = errors.New("stake below minimum")
	ErrAlreadyReserved   = errors.New("resource already reserved")
	ErrNotReserved       = errors.New("resource is not reserved")
	ErrNotReserver       = errors.New("caller is not the reserver")
	ErrInvalidAccount    = errors.New("account must not be empty")
	ErrStakeOverflow     = errors.New("stake total would overflow")
)

// Catalog errors.
var (
	ErrNameEmpty       = errors.New("resource name must not be empty")
	ErrInvalidCategory = errors.New("invalid category")
	ErrNotManager      = errors.New("caller is not an authorized resource manager")
)

// Escrow errors. ErrRefundFailed and ErrHoldFailed wrap the escrow's cause.
var (
	ErrRefundFailed       = errors.New("refund transfer failed")
	ErrHoldFailed         = errors.New("stake hold failed")
	ErrInsufficientFunds  = errors.New("insufficient available balance")
	ErrInsufficientEscrow = errors.New("insufficient held balance")
)

// Store errors.
var (
	ErrStoreClosed     = errors.New("store is closed")
	ErrAlreadyAttached = errors.New("store is already attached")
	ErrCorruptSnapshot = errors.New("stored state is inconsistent")
	ErrBackendEmpty    = errors.New("backend must not be empty")
	ErrBackendUnknown  = errors.New("unknown backend")
	ErrDSNEmpty        = errors.New("backend requires a DSN")
	ErrStaleState      = errors.New("stored state changed by another writer")
)

// AlreadyReservedError reports the account currently holding a resource.
// It matches ErrAlreadyReserved under errors.Is.
type AlreadyReservedError struct {
	Holder Account
}

func (e *AlreadyReservedError) Error() string {
	return fmt.Sprintf("%s by %s", ErrAlreadyReserved, e.Holder)
}

// Is makes errors.Is(err, ErrAlreadyReserved) succeed.
func (e *AlreadyReservedError) Is(target error) bool {
	return target == ErrAlreadyReserved
}

// NotReserverError reports the account that actually holds the reservation.
// It matches ErrNotReserver under errors.Is.
type NotReserverError struct {
	Actual Account
}

func (e *NotReserverError) Error() string {
	return fmt.Sprintf("%s (held by %s)", ErrNotReserver, e.Actual)
}

// Is makes errors.Is(err, ErrNotReserver) succeed.
func (e *NotReserverError) Is(target error) bool {
	return target == ErrNotReserver
}

// IsNotFound returns true if err reports a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrResourceNotFound)
}

// IsEscrowFailure returns true if err came from a failed value transfer.
func IsEscrowFailure(err error) bool {
	return errors.Is(err, ErrRefundFailed) || errors.Is(err, ErrHoldFailed)
}
