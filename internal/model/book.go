package model

import "time"

// Book represents a catalog title with a pool of interchangeable copies
// (quantity-based, not individually tracked units).
type Book struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Author        string     `json:"author"`
	Publisher     string     `json:"publisher,omitempty"`
	PublishedYear int        `json:"published_year,omitempty"`
	Genre         string     `json:"genre,omitempty"`
	Description   string     `json:"description,omitempty"`
	TotalCopies   int        `json:"total_copies"`
	LentCopies    int        `json:"lent_copies"`
	CoverMime     string     `json:"cover_mime,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

// AvailableCopies returns the number of copies not currently lent out.
func (b *Book) AvailableCopies() int {
	return b.TotalCopies - b.LentCopies
}

// IsAvailable reports whether at least one copy can be lent.
func (b *Book) IsAvailable() bool {
	return b.AvailableCopies() > 0
}

// Active reports whether the book is still part of the catalog.
func (b *Book) Active() bool {
	return b.DeletedAt == nil
}
