package types

import (
	"strings"
	"time"
)

// Reservation limits.
const (
	// MaxDuration is the longest a single reservation may last.
	MaxDuration = 7 * 24 * time.Hour

	// MinStake is the smallest stake accepted for a reservation (0.1 unit).
	MinStake Amount = UnitScale / 10
)

// ResourceID is the dense, sequential identifier of a catalog entry.
type ResourceID uint64

// Category classifies a resource. The set is closed.
type Category string

// Resource categories.
const (
	CategoryLab        Category = "lab"
	CategoryBook       Category = "book"
	CategoryInstrument Category = "instrument"
	CategoryEquipment  Category = "equipment"
	CategorySpace      Category = "space"
)

// validCategories is the set of recognized categories.
var validCategories = map[Category]bool{
	CategoryLab:        true,
	CategoryBook:       true,
	CategoryInstrument: true,
	CategoryEquipment:  true,
	CategorySpace:      true,
}

// Categories returns every category in display order.
func Categories() []Category {
	return []Category{CategoryLab, CategoryBook, CategoryInstrument, CategoryEquipment, CategorySpace}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return validCategories[c]
}

// ParseCategory maps a case-insensitive name ("LAB", "Space") to a Category.
// Returns ErrInvalidCategory for anything outside the closed set.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", ErrInvalidCategory
	}
	return c, nil
}

// Reservation is the active (or lapsed but uncleared) hold on a resource.
type Reservation struct {
	Reserver Account   `json:"reserver"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Staked   Amount    `json:"staked"`
}

// ActiveAt reports whether the reservation still holds the resource at now.
func (r *Reservation) ActiveAt(now time.Time) bool {
	return r != nil && now.Before(r.End)
}

// Equal reports whether r and o describe the same reservation. Two nil
// reservations are equal.
func (r *Reservation) Equal(o *Reservation) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.Reserver == o.Reserver && r.Start.Equal(o.Start) && r.End.Equal(o.End) && r.Staked == o.Staked
}

// Resource is a catalog entry. Name and Category never change after creation.
type Resource struct {
	ID          ResourceID   `json:"id"`
	Name        string       `json:"name"`
	Category    Category     `json:"category"`
	Custodian   Account      `json:"custodian,omitempty"`
	Reservation *Reservation `json:"reservation,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Clone returns a deep copy so callers never share the ledger's record.
func (r Resource) Clone() Resource {
	if r.Reservation != nil {
		res := *r.Reservation
		r.Reservation = &res
	}
	return r
}

// ReservedAt reports whether the resource is held at now. A lapsed record
// that has not been cleared yet reports false.
func (r Resource) ReservedAt(now time.Time) bool {
	return r.Reservation.ActiveAt(now)
}

// ExpiredAt reports whether the resource carries a lapsed, uncleared record.
func (r Resource) ExpiredAt(now time.Time) bool {
	return r.Reservation != nil && !now.Before(r.Reservation.End)
}

// NewResource is the input to CreateResource.
type NewResource struct {
	Name      string   `json:"name"`
	Category  Category `json:"category"`
	Custodian Account  `json:"custodian,omitempty"`
}

// HistoryEntry is one line of a resource's append-only reservation log.
type HistoryEntry struct {
	ResourceID ResourceID `json:"resource_id"`
	Seq        int64      `json:"seq"`
	Account    Account    `json:"account"`
	At         time.Time  `json:"at"`
}

// ExpiredClear describes a lapsed reservation cleared on the way to a new one.
type ExpiredClear struct {
	FormerHolder Account `json:"former_holder"`
	Refunded     Amount  `json:"refunded"`
}

// ReservationReceipt is returned by a successful Reserve.
type ReservationReceipt struct {
	ResourceID ResourceID    `json:"resource_id"`
	Reserver   Account       `json:"reserver"`
	Start      time.Time     `json:"start"`
	End        time.Time     `json:"end"`
	Staked     Amount        `json:"staked"`
	Cleared    *ExpiredClear `json:"cleared,omitempty"`
}

// RefundReceipt is returned by a successful Release.
type RefundReceipt struct {
	ResourceID ResourceID `json:"resource_id"`
	Reserver   Account    `json:"reserver"`
	Refunded   Amount     `json:"refunded"`
}
