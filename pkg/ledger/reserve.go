package ledger

import (
	"context"
	"time"

	"github.com/mesh-intelligence/labledger/pkg/types"
)

// Reserve installs a reservation on a resource for duration, holding stake
// from the requester. Checks run in a fixed order and the first failure
// wins: resource exists, duration within MaxDuration, stake at least
// MinStake, requester named, resource not actively reserved.
//
// A lapsed reservation still on record is cleared first: its stake is
// refunded to the former holder and ReservationExpired is emitted before
// ResourceReserved.
func (l *Ledger) Reserve(ctx context.Context, id types.ResourceID, requester types.Account, duration time.Duration, stake types.Amount, now time.Time) (types.ReservationReceipt, error) {
	if err := ctx.Err(); err != nil {
		return types.ReservationReceipt{}, err
	}
	now = now.UTC().Truncate(time.Second)

	l.mu.Lock()
	defer l.mu.Unlock()

	var receipt types.ReservationReceipt
	err := l.serialize(ctx, func() error {
		var err error
		receipt, err = l.reserve(ctx, id, requester, duration, stake, now)
		return err
	})
	if err != nil {
		return types.ReservationReceipt{}, err
	}

	if receipt.Cleared != nil {
		l.logger.Debug("expired reservation cleared",
			"resource", id, "former_holder", receipt.Cleared.FormerHolder, "refunded", receipt.Cleared.Refunded)
	}
	l.logger.Debug("resource reserved",
		"resource", id, "reserver", requester, "staked", stake, "end", receipt.End)
	return receipt, nil
}

func (l *Ledger) reserve(ctx context.Context, id types.ResourceID, requester types.Account, duration time.Duration, stake types.Amount, now time.Time) (types.ReservationReceipt, error) {
	stored, err := l.lookup(id)
	if err != nil {
		return types.ReservationReceipt{}, err
	}
	if duration > types.MaxDuration {
		return types.ReservationReceipt{}, types.ErrDurationTooLong
	}
	duration = duration.Truncate(time.Second)
	if duration <= 0 {
		return types.ReservationReceipt{}, types.ErrInvalidDuration
	}
	if stake < types.MinStake {
		return types.ReservationReceipt{}, types.ErrInsufficientStake
	}
	if !requester.Valid() {
		return types.ReservationReceipt{}, types.ErrInvalidAccount
	}
	if stored.ReservedAt(now) {
		return types.ReservationReceipt{}, &types.AlreadyReservedError{Holder: stored.Reservation.Reserver}
	}

	m := l.begin()
	next := stored.Clone()
	receipt := types.ReservationReceipt{
		ResourceID: id,
		Reserver:   requester,
		Start:      now,
		End:        now.Add(duration),
		Staked:     stake,
	}

	if prev := next.Reservation; prev != nil {
		m.dropStake(prev.Reserver, prev.Staked)
		m.events = append(m.events, types.ReservationExpired{ID: id, FormerHolder: prev.Reserver})
		receipt.Cleared = &types.ExpiredClear{FormerHolder: prev.Reserver, Refunded: prev.Staked}
	}
	if err := m.addStake(requester, stake); err != nil {
		return types.ReservationReceipt{}, err
	}

	if prev := receipt.Cleared; prev != nil {
		if err := m.refund(ctx, prev.FormerHolder, prev.Refunded); err != nil {
			return types.ReservationReceipt{}, m.abort(ctx, err)
		}
	}
	if err := m.hold(ctx, requester, stake); err != nil {
		return types.ReservationReceipt{}, m.abort(ctx, err)
	}

	next.Reservation = &types.Reservation{
		Reserver: requester,
		Start:    receipt.Start,
		End:      receipt.End,
		Staked:   stake,
	}
	m.update(stored, next)
	m.changes.History = append(m.changes.History, types.HistoryEntry{
		ResourceID: id,
		Seq:        int64(len(l.history[id])),
		Account:    requester,
		At:         now,
	})
	m.events = append(m.events, types.ResourceReserved{
		ID:       id,
		Reserver: requester,
		Staked:   stake,
		End:      receipt.End,
	})

	if err := m.commit(ctx); err != nil {
		return types.ReservationReceipt{}, err
	}
	m.apply(ctx)
	return receipt, nil
}

// Release clears the requester's reservation and refunds its stake. It is
// allowed after the reservation has lapsed as long as the record has not
// been cleared by another Reserve.
func (l *Ledger) Release(ctx context.Context, id types.ResourceID, requester types.Account) (types.RefundReceipt, error) {
	if err := ctx.Err(); err != nil {
		return types.RefundReceipt{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var receipt types.RefundReceipt
	err := l.serialize(ctx, func() error {
		var err error
		receipt, err = l.release(ctx, id, requester)
		return err
	})
	if err != nil {
		return types.RefundReceipt{}, err
	}

	l.logger.Debug("resource released", "resource", id, "reserver", requester, "refunded", receipt.Refunded)
	return receipt, nil
}

func (l *Ledger) release(ctx context.Context, id types.ResourceID, requester types.Account) (types.RefundReceipt, error) {
	stored, err := l.lookup(id)
	if err != nil {
		return types.RefundReceipt{}, err
	}
	held := stored.Reservation
	if held == nil {
		return types.RefundReceipt{}, types.ErrNotReserved
	}
	if held.Reserver != requester {
		return types.RefundReceipt{}, &types.NotReserverError{Actual: held.Reserver}
	}

	m := l.begin()
	if err := m.refund(ctx, requester, held.Staked); err != nil {
		return types.RefundReceipt{}, m.abort(ctx, err)
	}
	m.dropStake(requester, held.Staked)

	next := stored.Clone()
	next.Reservation = nil
	m.update(stored, next)
	m.events = append(m.events, types.ResourceReleased{ID: id, Reserver: requester, Staked: held.Staked})

	if err := m.commit(ctx); err != nil {
		return types.RefundReceipt{}, err
	}
	receipt := types.RefundReceipt{ResourceID: id, Reserver: requester, Refunded: held.Staked}
	m.apply(ctx)
	return receipt, nil
}
