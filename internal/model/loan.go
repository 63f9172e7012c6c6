package model

import "time"

// Loan represents one checkout of one copy of a book. A loan is open until
// returned; returning is a one-way transition.
type Loan struct {
	ID            int64      `json:"id"`
	BookID        int64      `json:"book_id"`
	BorrowerID    int64      `json:"borrower_id"`
	ReservationID *int64     `json:"reservation_id,omitempty"`
	LoanedAt      time.Time  `json:"loaned_at"`
	DueAt         time.Time  `json:"due_at"`
	Returned      bool       `json:"returned"`
	ReturnedAt    *time.Time `json:"returned_at,omitempty"`

	// Joined fields (not always populated).
	BookTitle     string `json:"book_title,omitempty"`
	BorrowerName  string `json:"borrower_name,omitempty"`
	BorrowerEmail string `json:"-"`
}

// IsOverdue reports whether an open loan is past its due date.
func (l *Loan) IsOverdue(now time.Time) bool {
	return !l.Returned && now.After(l.DueAt)
}
