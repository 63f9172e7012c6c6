package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
)

func TestCreateLoanDecrementsAvailability(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	book := newTestBook(t, database, "Dom Casmurro", 2)
	borrower := newTestUser(t, database, "100001", "Ana")

	loan, err := CreateLoan(ctx, database, book.ID, borrower.ID, nil)
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
	if loan.Returned {
		t.Error("new loan should be open")
	}
	if loan.BookTitle != "Dom Casmurro" || loan.BorrowerName != "Ana" {
		t.Errorf("expected joined fields, got %+v", loan)
	}

	got, _ := GetBook(ctx, database, book.ID)
	if got.LentCopies != 1 {
		t.Errorf("expected 1 lent copy, got %d", got.LentCopies)
	}
}

func TestLoanDueDateUsesLoanPeriod(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if err := SetSettingInt(ctx, database, SettingLoanPeriodDays, 7); err != nil {
		t.Fatalf("SetSettingInt: %v", err)
	}

	book := newTestBook(t, database, "Dom Casmurro", 1)
	borrower := newTestUser(t, database, "100001", "Ana")

	loan, err := CreateLoan(ctx, database, book.ID, borrower.ID, nil)
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}

	want := loan.LoanedAt.Add(7 * 24 * time.Hour)
	if diff := loan.DueAt.Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Errorf("expected due date 7 days after loan, got %v (loaned %v)", loan.DueAt, loan.LoanedAt)
	}
}

func TestCreateLoanNoCopiesLeft(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	book := newTestBook(t, database, "Dom Casmurro", 1)
	ana := newTestUser(t, database, "100001", "Ana")
	bruno := newTestUser(t, database, "100002", "Bruno")

	if _, err := CreateLoan(ctx, database, book.ID, ana.ID, nil); err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}

	_, err := CreateLoan(ctx, database, book.ID, bruno.ID, nil)
	if !errors.Is(err, model.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestCreateLoanUnknownBook(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	borrower := newTestUser(t, database, "100001", "Ana")

	_, err := CreateLoan(ctx, database, 999, borrower.ID, nil)
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReturnLoanIsIdempotentFailure(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	book := newTestBook(t, database, "Dom Casmurro", 1)
	borrower := newTestUser(t, database, "100001", "Ana")

	loan, _ := CreateLoan(ctx, database, book.ID, borrower.ID, nil)

	returned, promoted, err := ReturnLoan(ctx, database, loan.ID, nil)
	if err != nil {
		t.Fatalf("ReturnLoan: %v", err)
	}
	if !returned.Returned || returned.ReturnedAt == nil {
		t.Error("expected loan to be marked returned")
	}
	if promoted != nil {
		t.Errorf("expected no promotion with empty queue, got %+v", promoted)
	}

	got, _ := GetBook(ctx, database, book.ID)
	if got.LentCopies != 0 {
		t.Errorf("expected 0 lent copies after return, got %d", got.LentCopies)
	}

	// A second return must fail and must not touch the counter again.
	_, _, err = ReturnLoan(ctx, database, loan.ID, nil)
	if !errors.Is(err, model.ErrAlreadyReturned) {
		t.Errorf("expected ErrAlreadyReturned, got %v", err)
	}
	got, _ = GetBook(ctx, database, book.ID)
	if got.LentCopies != 0 {
		t.Errorf("expected counter unchanged by double return, got %d", got.LentCopies)
	}
}

func TestReturnLoanPromotesOldestQueued(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	book := newTestBook(t, database, "Dom Casmurro", 1)
	ana := newTestUser(t, database, "100001", "Ana")
	bruno := newTestUser(t, database, "100002", "Bruno")
	carla := newTestUser(t, database, "100003", "Carla")

	loan, _ := CreateLoan(ctx, database, book.ID, ana.ID, nil)

	first, err := CreateReservation(ctx, database, book.ID, bruno.ID, nil)
	if err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}
	if _, err := CreateReservation(ctx, database, book.ID, carla.ID, nil); err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}

	_, promoted, err := ReturnLoan(ctx, database, loan.ID, nil)
	if err != nil {
		t.Fatalf("ReturnLoan: %v", err)
	}
	if promoted == nil {
		t.Fatal("expected a promoted reservation")
	}
	if promoted.ID != first.ID {
		t.Errorf("expected oldest reservation %d promoted, got %d", first.ID, promoted.ID)
	}
	if promoted.Status != model.ReservationAwaitingPickup {
		t.Errorf("expected awaiting_pickup, got %q", promoted.Status)
	}
	if promoted.NotifiedAt == nil {
		t.Error("expected notified_at to be stamped on promotion")
	}

	// The copy freed by the return is held for the promoted requester.
	got, _ := GetBook(ctx, database, book.ID)
	if got.LentCopies != 0 {
		t.Errorf("expected 0 lent copies, got %d", got.LentCopies)
	}
}

func TestConcurrentLoansNeverOvercommit(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	const copies = 3
	const attempts = 20

	book := newTestBook(t, database, "Dom Casmurro", copies)

	borrowers := make([]*model.User, attempts)
	for i := range borrowers {
		borrowers[i] = newTestUser(t, database, "2000"+string(rune('A'+i)), "Student")
	}

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(borrowerID int64) {
			defer wg.Done()
			_, err := CreateLoan(ctx, database, book.ID, borrowerID, nil)
			results <- err
		}(borrowers[i].ID)
	}
	wg.Wait()
	close(results)

	var successes, unavailable int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, model.ErrUnavailable):
			unavailable++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if successes != copies {
		t.Errorf("expected exactly %d successful loans, got %d", copies, successes)
	}
	if unavailable != attempts-copies {
		t.Errorf("expected %d unavailable errors, got %d", attempts-copies, unavailable)
	}

	got, _ := GetBook(ctx, database, book.ID)
	if got.LentCopies != copies {
		t.Errorf("expected %d lent copies, got %d", copies, got.LentCopies)
	}
}

func TestListLoansScoping(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	book := newTestBook(t, database, "Dom Casmurro", 2)
	ana := newTestUser(t, database, "100001", "Ana")
	bruno := newTestUser(t, database, "100002", "Bruno")

	loan, _ := CreateLoan(ctx, database, book.ID, ana.ID, nil)
	CreateLoan(ctx, database, book.ID, bruno.ID, nil)

	all, err := ListLoans(ctx, database, 0, false)
	if err != nil {
		t.Fatalf("ListLoans: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 loans, got %d", len(all))
	}

	mine, _ := ListLoans(ctx, database, ana.ID, false)
	if len(mine) != 1 || mine[0].BorrowerID != ana.ID {
		t.Errorf("expected only Ana's loan, got %+v", mine)
	}

	ReturnLoan(ctx, database, loan.ID, nil)
	open, _ := ListLoans(ctx, database, 0, true)
	if len(open) != 1 || open[0].BorrowerID != bruno.ID {
		t.Errorf("expected only Bruno's open loan, got %+v", open)
	}
}

func TestDueSoonLoans(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	book := newTestBook(t, database, "Dom Casmurro", 1)
	borrower := newTestUser(t, database, "100001", "Ana")

	loan, _ := CreateLoan(ctx, database, book.ID, borrower.ID, nil)

	// Default loan period is 15 days; a 3-day window just before the due
	// date must find it, a window before that must not.
	within, err := DueSoonLoans(ctx, database, loan.DueAt.Add(-2*24*time.Hour), 3*24*time.Hour)
	if err != nil {
		t.Fatalf("DueSoonLoans: %v", err)
	}
	if len(within) != 1 {
		t.Errorf("expected loan within reminder window, got %d", len(within))
	}

	early, _ := DueSoonLoans(ctx, database, loan.LoanedAt, 3*24*time.Hour)
	if len(early) != 0 {
		t.Errorf("expected no loans in early window, got %d", len(early))
	}
}
