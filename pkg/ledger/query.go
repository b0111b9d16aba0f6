package ledger

import (
	"time"

	"github.com/mesh-intelligence/labledger/pkg/types"
)

// Queries are read-only and take the reader lock. Each returns copies.

// Resource returns the full record for id, including a lapsed reservation
// that has not been cleared yet.
func (l *Ledger) Resource(id types.ResourceID) (types.Resource, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	r, err := l.lookup(id)
	if err != nil {
		return types.Resource{}, err
	}
	return r.Clone(), nil
}

// Resources returns the whole catalog in ID order.
func (l *Ledger) Resources() []types.Resource {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]types.Resource, len(l.resources))
	for i, r := range l.resources {
		out[i] = r.Clone()
	}
	return out
}

// IsReserved reports whether id is actively held at now.
func (l *Ledger) IsReserved(id types.ResourceID, now time.Time) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	r, err := l.lookup(id)
	if err != nil {
		return false, err
	}
	return r.ReservedAt(now), nil
}

// CurrentReserver returns the active holder of id at now. The boolean is
// false when the resource is available or its reservation has lapsed.
func (l *Ledger) CurrentReserver(id types.ResourceID, now time.Time) (types.Account, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	r, err := l.lookup(id)
	if err != nil {
		return "", false, err
	}
	if !r.ReservedAt(now) {
		return "", false, nil
	}
	return r.Reservation.Reserver, true, nil
}

// RemainingTime returns how long the active reservation on id still runs,
// or zero when the resource is not actively reserved.
func (l *Ledger) RemainingTime(id types.ResourceID, now time.Time) (time.Duration, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	r, err := l.lookup(id)
	if err != nil {
		return 0, err
	}
	if !r.ReservedAt(now) {
		return 0, nil
	}
	return r.Reservation.End.Sub(now), nil
}

// ReservationHistory returns every account that has reserved id, oldest
// first. The log is append-only.
func (l *Ledger) ReservationHistory(id types.ResourceID) ([]types.Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, err := l.lookup(id); err != nil {
		return nil, err
	}
	entries := l.history[id]
	out := make([]types.Account, len(entries))
	for i, h := range entries {
		out[i] = h.Account
	}
	return out, nil
}

// HistoryEntries returns the reservation log of id with timestamps.
func (l *Ledger) HistoryEntries(id types.ResourceID) ([]types.HistoryEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, err := l.lookup(id); err != nil {
		return nil, err
	}
	return append([]types.HistoryEntry{}, l.history[id]...), nil
}

// TotalStaked returns the account's running stake total, which includes
// lapsed reservations not yet cleared.
func (l *Ledger) TotalStaked(account types.Account) types.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.stakes[account]
}

// Expired returns resources whose reservation has lapsed at now but is
// still on record, awaiting release or the next Reserve.
func (l *Ledger) Expired(now time.Time) []types.Resource {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []types.Resource
	for _, r := range l.resources {
		if r.ExpiredAt(now) {
			out = append(out, r.Clone())
		}
	}
	return out
}
