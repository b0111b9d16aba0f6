package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/mesh-intelligence/labledger/pkg/types"
)

// Transfer directions recorded by a mutation.
const (
	transferHold   = "hold"
	transferRefund = "refund"
)

type transfer struct {
	kind    string
	account types.Account
	amount  types.Amount
}

// mutation collects one operation's escrow transfers, store writes and
// events. Nothing becomes visible until apply runs; transfers already made
// are reversed in LIFO order when a later step fails.
type mutation struct {
	l       *Ledger
	done    []transfer
	changes types.Changeset
	events  []types.Event
}

func (l *Ledger) begin() *mutation {
	return &mutation{
		l:       l,
		changes: types.Changeset{Stakes: make(map[types.Account]types.Amount)},
	}
}

func (m *mutation) hold(ctx context.Context, account types.Account, amount types.Amount) error {
	if err := m.l.escrow.Hold(ctx, account, amount); err != nil {
		return fmt.Errorf("%w: %s from %s: %w", types.ErrHoldFailed, amount, account, err)
	}
	m.done = append(m.done, transfer{kind: transferHold, account: account, amount: amount})
	return nil
}

func (m *mutation) refund(ctx context.Context, account types.Account, amount types.Amount) error {
	if err := m.l.escrow.Refund(ctx, account, amount); err != nil {
		return fmt.Errorf("%w: %s to %s: %w", types.ErrRefundFailed, amount, account, err)
	}
	m.done = append(m.done, transfer{kind: transferRefund, account: account, amount: amount})
	return nil
}

// stake returns the account's total as modified so far by this mutation.
func (m *mutation) stake(account types.Account) types.Amount {
	return m.l.stakes[account] + m.changes.Stakes[account]
}

// addStake records a new stake on the account's total, rejecting one that
// would overflow it.
func (m *mutation) addStake(account types.Account, delta types.Amount) error {
	if m.stake(account) > types.Amount(math.MaxInt64)-delta {
		return types.ErrStakeOverflow
	}
	m.changes.Stakes[account] += delta
	return nil
}

// dropStake records the release of amount from the account's total.
func (m *mutation) dropStake(account types.Account, amount types.Amount) {
	m.changes.Stakes[account] -= amount
}

// create inserts a new resource.
func (m *mutation) create(r types.Resource) {
	m.changes.Created = append(m.changes.Created, r)
}

// update replaces stored's reservation with next's, guarded by the
// reservation stored now.
func (m *mutation) update(stored *types.Resource, next types.Resource) {
	var prior *types.Reservation
	if stored.Reservation != nil {
		res := *stored.Reservation
		prior = &res
	}
	m.changes.Updated = append(m.changes.Updated, types.ResourceUpdate{Resource: next, Prior: prior})
}

// abort reverses every transfer made so far and returns cause, joined with
// any compensation failure.
func (m *mutation) abort(ctx context.Context, cause error) error {
	ctx = context.WithoutCancel(ctx)
	for i := len(m.done) - 1; i >= 0; i-- {
		t := m.done[i]
		var err error
		switch t.kind {
		case transferHold:
			err = m.l.escrow.Refund(ctx, t.account, t.amount)
		case transferRefund:
			err = m.l.escrow.Hold(ctx, t.account, t.amount)
		}
		if err != nil {
			m.l.logger.Error("escrow compensation failed",
				"transfer", t.kind, "account", t.account, "amount", t.amount, "error", err)
			cause = errors.Join(cause, fmt.Errorf("reversing %s of %s for %s: %w", t.kind, t.amount, t.account, err))
			continue
		}
		m.l.logger.Warn("escrow transfer reversed",
			"transfer", t.kind, "account", t.account, "amount", t.amount)
	}
	m.done = nil
	return cause
}

// commit writes the changeset to the store, aborting on failure.
func (m *mutation) commit(ctx context.Context) error {
	if m.l.store == nil || m.changes.Empty() {
		return nil
	}
	if err := m.l.store.Commit(ctx, &m.changes); err != nil {
		return m.abort(ctx, fmt.Errorf("committing changes: %w", err))
	}
	return nil
}

// apply makes the committed changeset visible and emits events. The caller
// must hold the writer lock.
func (m *mutation) apply(ctx context.Context) {
	l := m.l
	for _, r := range m.changes.Created {
		l.resources = append(l.resources, r.Clone())
	}
	for _, u := range m.changes.Updated {
		l.resources[u.Resource.ID] = u.Resource.Clone()
	}
	for a, delta := range m.changes.Stakes {
		if total := l.stakes[a] + delta; total != 0 {
			l.stakes[a] = total
		} else {
			delete(l.stakes, a)
		}
	}
	for _, h := range m.changes.History {
		l.history[h.ResourceID] = append(l.history[h.ResourceID], h)
	}
	for _, e := range m.events {
		l.sink.Notify(ctx, e)
	}
}
