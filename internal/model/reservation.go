package model

import "time"

// Reservation statuses.
const (
	ReservationQueued         = "queued"
	ReservationAwaitingPickup = "awaiting_pickup"
	ReservationLoaned         = "loaned"
	ReservationExpired        = "expired"
	ReservationCancelled      = "cancelled"
	ReservationCompleted      = "completed"
)

// Reservation represents a claim on a future copy of a book. Reservations
// wait in a per-book FIFO queue until a copy frees up, then hold an
// awaiting_pickup slot until effectuated, cancelled, or expired.
type Reservation struct {
	ID          int64      `json:"id"`
	BookID      int64      `json:"book_id"`
	RequesterID int64      `json:"requester_id"`
	Status      string     `json:"status"`
	PickupAt    *time.Time `json:"pickup_at,omitempty"`
	NotifiedAt  *time.Time `json:"notified_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// QueuePosition is the 1-indexed position among queued reservations for
	// the same book. Only populated on creation and listing.
	QueuePosition int `json:"queue_position,omitempty"`

	// Joined fields (not always populated).
	BookTitle      string `json:"book_title,omitempty"`
	RequesterName  string `json:"requester_name,omitempty"`
	RequesterEmail string `json:"-"`
}

// Terminal reports whether the reservation has reached a final state.
func (r *Reservation) Terminal() bool {
	switch r.Status {
	case ReservationExpired, ReservationCancelled, ReservationCompleted:
		return true
	}
	return false
}

// PickupDeadline returns the time after which an awaiting_pickup reservation
// expires: the scheduled pickup slot when one was chosen, otherwise the
// notification time plus the configured pickup window.
func (r *Reservation) PickupDeadline(window time.Duration) (time.Time, bool) {
	if r.Status != ReservationAwaitingPickup {
		return time.Time{}, false
	}
	if r.PickupAt != nil {
		return *r.PickupAt, true
	}
	if r.NotifiedAt != nil {
		return r.NotifiedAt.Add(window), true
	}
	return time.Time{}, false
}
