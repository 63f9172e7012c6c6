package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
)

// newTestBook creates a catalog entry with the given copy count.
func newTestBook(t *testing.T, database *sql.DB, title string, copies int) *model.Book {
	t.Helper()
	book, err := CreateBook(context.Background(), database, &model.Book{
		Title:       title,
		Author:      "Test Author",
		TotalCopies: copies,
	})
	if err != nil {
		t.Fatalf("creating test book: %v", err)
	}
	return book
}

// newTestUser creates a student account.
func newTestUser(t *testing.T, database *sql.DB, ra, name string) *model.User {
	t.Helper()
	user, err := CreateUser(context.Background(), database, ra, name, ra+"@school.example", "3B", "hash", model.RoleStudent)
	if err != nil {
		t.Fatalf("creating test user: %v", err)
	}
	return user
}

func TestCreateAndGetBook(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	book := newTestBook(t, database, "Dom Casmurro", 3)
	if book.TotalCopies != 3 || book.LentCopies != 0 {
		t.Errorf("expected 3 total / 0 lent, got %d / %d", book.TotalCopies, book.LentCopies)
	}
	if book.AvailableCopies() != 3 {
		t.Errorf("expected 3 available, got %d", book.AvailableCopies())
	}

	got, err := GetBook(ctx, database, book.ID)
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if got == nil || got.Title != "Dom Casmurro" {
		t.Errorf("unexpected book: %+v", got)
	}
}

func TestListBooksSearch(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	newTestBook(t, database, "Dom Casmurro", 1)
	newTestBook(t, database, "Quincas Borba", 1)

	books, err := ListBooks(ctx, database, "casmurro", "")
	if err != nil {
		t.Fatalf("ListBooks: %v", err)
	}
	if len(books) != 1 {
		t.Fatalf("expected 1 match, got %d", len(books))
	}
	if books[0].Title != "Dom Casmurro" {
		t.Errorf("unexpected match: %q", books[0].Title)
	}
}

func TestUpdateBookCannotShrinkBelowLent(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	book := newTestBook(t, database, "Dom Casmurro", 3)
	borrower := newTestUser(t, database, "100001", "Ana")

	// Lend two copies.
	if _, err := CreateLoan(ctx, database, book.ID, borrower.ID, nil); err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
	other := newTestUser(t, database, "100002", "Bruno")
	if _, err := CreateLoan(ctx, database, book.ID, other.ID, nil); err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}

	// Shrinking to 1 would orphan one lent copy.
	book.TotalCopies = 1
	err := UpdateBook(ctx, database, book)
	if !errors.Is(err, model.ErrInvariantViolation) {
		t.Errorf("expected ErrInvariantViolation, got %v", err)
	}

	// Shrinking to exactly the lent count is allowed.
	book.TotalCopies = 2
	if err := UpdateBook(ctx, database, book); err != nil {
		t.Errorf("expected shrink to lent count to succeed, got %v", err)
	}
}

func TestDeleteBookBlocksLending(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	book := newTestBook(t, database, "Dom Casmurro", 2)
	borrower := newTestUser(t, database, "100001", "Ana")

	if err := DeleteBook(ctx, database, book.ID); err != nil {
		t.Fatalf("DeleteBook: %v", err)
	}

	_, err := CreateLoan(ctx, database, book.ID, borrower.ID, nil)
	if !errors.Is(err, model.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable lending a deleted book, got %v", err)
	}

	got, _ := GetBook(ctx, database, book.ID)
	if got == nil || got.Active() {
		t.Error("expected book to be soft-deleted but still readable")
	}
}

func TestBookCoverRoundTrip(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	book := newTestBook(t, database, "Dom Casmurro", 1)

	if err := SetBookCover(ctx, database, book.ID, []byte{0xff, 0xd8, 0xff}, "image/jpeg"); err != nil {
		t.Fatalf("SetBookCover: %v", err)
	}

	data, mime, err := GetBookCover(ctx, database, book.ID)
	if err != nil {
		t.Fatalf("GetBookCover: %v", err)
	}
	if len(data) != 3 || mime != "image/jpeg" {
		t.Errorf("unexpected cover: %d bytes, mime %q", len(data), mime)
	}
}
