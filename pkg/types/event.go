package types

import "time"

// Event kinds, used as the "kind" field of serialized events.
const (
	EventResourceCreated    = "resource_created"
	EventResourceReserved   = "resource_reserved"
	EventResourceReleased   = "resource_released"
	EventReservationExpired = "reservation_expired"
)

// Event is a notification emitted after a committed state change.
type Event interface {
	// Kind returns one of the Event* constants.
	Kind() string

	// Resource returns the resource the event concerns.
	Resource() ResourceID
}

// ResourceCreated is emitted when a catalog entry is added.
type ResourceCreated struct {
	ID       ResourceID `json:"id"`
	Name     string     `json:"name"`
	Category Category   `json:"category"`
}

func (e ResourceCreated) Kind() string         { return EventResourceCreated }
func (e ResourceCreated) Resource() ResourceID { return e.ID }

// ResourceReserved is emitted when a reservation is installed.
type ResourceReserved struct {
	ID       ResourceID `json:"id"`
	Reserver Account    `json:"reserver"`
	Staked   Amount     `json:"staked"`
	End      time.Time  `json:"end"`
}

func (e ResourceReserved) Kind() string         { return EventResourceReserved }
func (e ResourceReserved) Resource() ResourceID { return e.ID }

// ResourceReleased is emitted when the reserver releases a resource.
type ResourceReleased struct {
	ID       ResourceID `json:"id"`
	Reserver Account    `json:"reserver"`
	Staked   Amount     `json:"staked"`
}

func (e ResourceReleased) Kind() string         { return EventResourceReleased }
func (e ResourceReleased) Resource() ResourceID { return e.ID }

// ReservationExpired is emitted when a lapsed reservation is cleared by a
// subsequent Reserve.
type ReservationExpired struct {
	ID           ResourceID `json:"id"`
	FormerHolder Account    `json:"former_holder"`
}

func (e ReservationExpired) Kind() string         { return EventReservationExpired }
func (e ReservationExpired) Resource() ResourceID { return e.ID }
