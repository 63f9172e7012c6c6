package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
)

// CreateLoan checks out one copy of a book to a borrower. The availability
// check, the counter increment, and the loan row are one transaction, so N
// concurrent loans against k free copies produce exactly k successes.
func CreateLoan(ctx context.Context, db *sql.DB, bookID, borrowerID int64, actorID *int64) (*model.Loan, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	book, err := getBook(ctx, tx, bookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, model.ErrNotFound
	}
	if !book.Active() {
		return nil, model.ErrUnavailable
	}

	id, err := createLoanTx(ctx, tx, bookID, borrowerID, nil, time.Now())
	if err != nil {
		return nil, err
	}

	if err := RecordAction(ctx, tx, actorID, "loan", id, model.ActionCreate,
		fmt.Sprintf("Loan created for book %d.", bookID)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing loan: %w", err)
	}

	return GetLoan(ctx, db, id)
}

// createLoanTx inserts the loan row and claims a copy inside an existing
// transaction. Shared by direct loans and reservation effectuation.
func createLoanTx(ctx context.Context, tx *sql.Tx, bookID, borrowerID int64, reservationID *int64, now time.Time) (int64, error) {
	if err := lendCopy(ctx, tx, bookID); err != nil {
		return 0, err
	}

	period, err := GetSettingInt(ctx, tx, SettingLoanPeriodDays, DefaultLoanPeriodDays)
	if err != nil {
		return 0, err
	}
	dueAt := now.AddDate(0, 0, period)

	result, err := tx.ExecContext(ctx,
		`INSERT INTO loans (book_id, borrower_id, reservation_id, loaned_at, due_at)
		 VALUES (?, ?, ?, ?, ?)`,
		bookID, borrowerID, reservationID, now, dueAt,
	)
	if err != nil {
		return 0, fmt.Errorf("creating loan: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting loan id: %w", err)
	}
	return id, nil
}

// ReturnLoan closes an open loan: frees the copy, completes the linked
// reservation (if the loan came from one), and advances the book's
// reservation queue. Returning an already-returned loan fails with
// ErrAlreadyReturned and leaves the counters untouched. Returns the
// reservation promoted to awaiting_pickup, if any, so the caller can notify
// its requester.
func ReturnLoan(ctx context.Context, db *sql.DB, loanID int64, actorID *int64) (*model.Loan, *model.Reservation, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var bookID int64
	var reservationID *int64
	err = tx.QueryRowContext(ctx,
		`SELECT book_id, reservation_id FROM loans WHERE id = ?`, loanID,
	).Scan(&bookID, &reservationID)
	if err == sql.ErrNoRows {
		return nil, nil, model.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("getting loan: %w", err)
	}

	now := time.Now()

	// The returned flag flips exactly once; a second return matches no row.
	result, err := tx.ExecContext(ctx,
		`UPDATE loans SET returned = 1, returned_at = ? WHERE id = ? AND returned = 0`,
		now, loanID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("returning loan: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, nil, fmt.Errorf("returning loan: %w", err)
	}
	if n == 0 {
		return nil, nil, model.ErrAlreadyReturned
	}

	if err := returnCopy(ctx, tx, bookID); err != nil {
		return nil, nil, err
	}

	if reservationID != nil {
		_, err = tx.ExecContext(ctx,
			`UPDATE reservations SET status = 'completed', updated_at = ?
			 WHERE id = ? AND status = 'loaned'`,
			now, *reservationID,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("completing reservation: %w", err)
		}
	}

	promoted, err := advanceQueue(ctx, tx, bookID, now)
	if err != nil {
		return nil, nil, err
	}

	if err := RecordAction(ctx, tx, actorID, "loan", loanID, model.ActionUpdate, "Loan returned."); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("committing return: %w", err)
	}

	loan, err := GetLoan(ctx, db, loanID)
	if err != nil {
		return nil, nil, err
	}
	return loan, promoted, nil
}

const loanSelect = `SELECT l.id, l.book_id, l.borrower_id, l.reservation_id,
       l.loaned_at, l.due_at, l.returned, l.returned_at,
       b.title AS book_title, u.name AS borrower_name, u.email AS borrower_email
FROM loans l
JOIN books b ON b.id = l.book_id
JOIN users u ON u.id = l.borrower_id`

func scanLoan(rows *sql.Rows) (*model.Loan, error) {
	l := &model.Loan{}
	if err := rows.Scan(&l.ID, &l.BookID, &l.BorrowerID, &l.ReservationID,
		&l.LoanedAt, &l.DueAt, &l.Returned, &l.ReturnedAt,
		&l.BookTitle, &l.BorrowerName, &l.BorrowerEmail); err != nil {
		return nil, fmt.Errorf("scanning loan: %w", err)
	}
	return l, nil
}

// GetLoan returns a loan by ID, with book and borrower details joined.
func GetLoan(ctx context.Context, db *sql.DB, id int64) (*model.Loan, error) {
	l := &model.Loan{}
	err := db.QueryRowContext(ctx, loanSelect+` WHERE l.id = ?`, id,
	).Scan(&l.ID, &l.BookID, &l.BorrowerID, &l.ReservationID,
		&l.LoanedAt, &l.DueAt, &l.Returned, &l.ReturnedAt,
		&l.BookTitle, &l.BorrowerName, &l.BorrowerEmail)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting loan: %w", err)
	}
	return l, nil
}

// ListLoans returns loans newest first. A non-zero borrowerID restricts the
// result to one borrower; openOnly drops returned loans.
func ListLoans(ctx context.Context, db *sql.DB, borrowerID int64, openOnly bool) ([]model.Loan, error) {
	query := loanSelect + ` WHERE 1=1`
	var args []any

	if borrowerID != 0 {
		query += ` AND l.borrower_id = ?`
		args = append(args, borrowerID)
	}
	if openOnly {
		query += ` AND l.returned = 0`
	}
	query += ` ORDER BY l.loaned_at DESC, l.id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing loans: %w", err)
	}
	defer rows.Close()

	var loans []model.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, *l)
	}
	return loans, rows.Err()
}

// DueSoonLoans returns open loans due within the given window, used for
// return reminders.
func DueSoonLoans(ctx context.Context, db *sql.DB, now time.Time, within time.Duration) ([]model.Loan, error) {
	rows, err := db.QueryContext(ctx,
		loanSelect+` WHERE l.returned = 0 AND l.due_at > ? AND l.due_at <= ?
		 ORDER BY l.due_at`,
		now, now.Add(within),
	)
	if err != nil {
		return nil, fmt.Errorf("listing due loans: %w", err)
	}
	defer rows.Close()

	var loans []model.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, *l)
	}
	return loans, rows.Err()
}
