package types

import "context"

// Snapshot is the full persisted state handed to the ledger on open.
type Snapshot struct {
	// Resources in ID order; IDs must be dense starting at 0.
	Resources []Resource

	// Stakes holds the running stake total per account.
	Stakes map[Account]Amount

	// History holds each resource's reservation log in Seq order.
	History map[ResourceID][]HistoryEntry
}

// Changeset is the set of writes produced by one ledger operation. A Store
// applies it atomically or not at all, and only if the stored state still
// matches the state the writes were computed from. Otherwise Commit fails
// with ErrStaleState and writes nothing.
type Changeset struct {
	// Created resources are inserted. Each ID must equal the number of
	// resources already stored.
	Created []Resource

	// Updated resources get new reservation columns, provided the stored
	// reservation still equals Prior.
	Updated []ResourceUpdate

	// Stakes are deltas added to each account's running total; a total
	// that reaches zero removes the row.
	Stakes map[Account]Amount

	// History entries are appended. Each Seq must equal the length of the
	// resource's stored history.
	History []HistoryEntry
}

// ResourceUpdate replaces a resource's reservation. Name, category,
// custodian and creation time are never rewritten.
type ResourceUpdate struct {
	Resource Resource

	// Prior is the reservation the update was computed from; nil means the
	// resource was free.
	Prior *Reservation
}

// Empty reports whether the changeset carries no writes.
func (c *Changeset) Empty() bool {
	return c == nil || (len(c.Created) == 0 && len(c.Updated) == 0 && len(c.Stakes) == 0 && len(c.History) == 0)
}

// Store persists ledger state. Load is called once when the ledger opens;
// Commit is called for every mutation before the ledger makes it visible.
type Store interface {
	// Load returns the persisted state. An empty store returns an empty
	// snapshot, not an error.
	Load(ctx context.Context) (*Snapshot, error)

	// Commit applies the changeset in a single transaction, or returns
	// ErrStaleState when another writer changed the state it depends on.
	Commit(ctx context.Context, c *Changeset) error

	// Close releases backend resources. Idempotent.
	Close() error
}
