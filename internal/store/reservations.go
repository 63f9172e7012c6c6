package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
)

const reservationSelect = `SELECT r.id, r.book_id, r.requester_id, r.status,
       r.pickup_at, r.notified_at, r.created_at, r.updated_at,
       b.title AS book_title, u.name AS requester_name, u.email AS requester_email
FROM reservations r
JOIN books b ON b.id = r.book_id
JOIN users u ON u.id = r.requester_id`

func scanReservation(row *sql.Row) (*model.Reservation, error) {
	r := &model.Reservation{}
	err := row.Scan(&r.ID, &r.BookID, &r.RequesterID, &r.Status,
		&r.PickupAt, &r.NotifiedAt, &r.CreatedAt, &r.UpdatedAt,
		&r.BookTitle, &r.RequesterName, &r.RequesterEmail)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning reservation: %w", err)
	}
	return r, nil
}

// CreateReservation queues a claim on a book that has no free copies. With a
// scheduled pickup slot the reservation starts in awaiting_pickup; otherwise
// it joins the per-book FIFO queue.
func CreateReservation(ctx context.Context, db *sql.DB, bookID, requesterID int64, pickupAt *time.Time) (*model.Reservation, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	book, err := getBook(ctx, tx, bookID)
	if err != nil {
		return nil, err
	}
	if book == nil || !book.Active() {
		return nil, model.ErrNotFound
	}
	if book.IsAvailable() {
		return nil, model.ErrBookAvailable
	}

	var active int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations
		 WHERE book_id = ? AND requester_id = ? AND status IN ('queued', 'awaiting_pickup')`,
		bookID, requesterID,
	).Scan(&active)
	if err != nil {
		return nil, fmt.Errorf("checking active reservations: %w", err)
	}
	if active > 0 {
		return nil, model.ErrDuplicateReservation
	}

	now := time.Now()
	var id int64

	if pickupAt != nil {
		if pickupAt.Before(now) {
			return nil, model.ErrInvalidSchedule
		}

		// The pickup slot must not collide with another held reservation.
		var conflicts int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM reservations
			 WHERE book_id = ? AND status = 'awaiting_pickup' AND pickup_at = ?`,
			bookID, *pickupAt,
		).Scan(&conflicts)
		if err != nil {
			return nil, fmt.Errorf("checking pickup conflicts: %w", err)
		}
		if conflicts > 0 {
			return nil, model.ErrInvalidSchedule
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO reservations (book_id, requester_id, status, pickup_at, notified_at, created_at, updated_at)
			 VALUES (?, ?, 'awaiting_pickup', ?, ?, ?, ?)`,
			bookID, requesterID, *pickupAt, now, now, now,
		)
		if err != nil {
			return nil, fmt.Errorf("creating reservation: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("getting reservation id: %w", err)
		}
	} else {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO reservations (book_id, requester_id, status, created_at, updated_at)
			 VALUES (?, ?, 'queued', ?, ?)`,
			bookID, requesterID, now, now,
		)
		if err != nil {
			return nil, fmt.Errorf("creating reservation: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("getting reservation id: %w", err)
		}
	}

	if err := RecordAction(ctx, tx, &requesterID, "reservation", id, model.ActionCreate,
		fmt.Sprintf("Reservation created for book %d.", bookID)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing reservation: %w", err)
	}

	return GetReservation(ctx, db, id)
}

// GetReservation returns a reservation by ID with its queue position.
func GetReservation(ctx context.Context, db *sql.DB, id int64) (*model.Reservation, error) {
	r, err := scanReservation(db.QueryRowContext(ctx, reservationSelect+` WHERE r.id = ?`, id))
	if err != nil || r == nil {
		return r, err
	}

	if r.Status == model.ReservationQueued {
		pos, err := queuePosition(ctx, db, r)
		if err != nil {
			return nil, err
		}
		r.QueuePosition = pos
	}
	return r, nil
}

// queuePosition returns the 1-indexed position of a queued reservation:
// the number of queued reservations for the same book created strictly
// earlier (ties broken by lower id), plus one.
func queuePosition(ctx context.Context, q querier, r *model.Reservation) (int, error) {
	var earlier int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations
		 WHERE book_id = ? AND status = 'queued'
		   AND (created_at < ? OR (created_at = ? AND id < ?))`,
		r.BookID, r.CreatedAt, r.CreatedAt, r.ID,
	).Scan(&earlier)
	if err != nil {
		return 0, fmt.Errorf("computing queue position: %w", err)
	}
	return earlier + 1, nil
}

// ListReservations returns reservations newest first. A non-zero requesterID
// restricts the result to one requester; activeOnly drops terminal states.
func ListReservations(ctx context.Context, db *sql.DB, requesterID int64, activeOnly bool) ([]model.Reservation, error) {
	query := reservationSelect + ` WHERE 1=1`
	var args []any

	if requesterID != 0 {
		query += ` AND r.requester_id = ?`
		args = append(args, requesterID)
	}
	if activeOnly {
		query += ` AND r.status IN ('queued', 'awaiting_pickup', 'loaned')`
	}
	query += ` ORDER BY r.created_at DESC, r.id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing reservations: %w", err)
	}
	defer rows.Close()

	var reservations []model.Reservation
	for rows.Next() {
		var r model.Reservation
		if err := rows.Scan(&r.ID, &r.BookID, &r.RequesterID, &r.Status,
			&r.PickupAt, &r.NotifiedAt, &r.CreatedAt, &r.UpdatedAt,
			&r.BookTitle, &r.RequesterName, &r.RequesterEmail); err != nil {
			return nil, fmt.Errorf("scanning reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range reservations {
		if reservations[i].Status == model.ReservationQueued {
			pos, err := queuePosition(ctx, db, &reservations[i])
			if err != nil {
				return nil, err
			}
			reservations[i].QueuePosition = pos
		}
	}
	return reservations, nil
}

// advanceQueue offers a freed copy to the oldest queued reservation for the
// book: it becomes awaiting_pickup and is stamped with the notification time.
// Ordering is creation time ascending, ties broken by lowest id, so the
// outcome is deterministic. No-op when the queue is empty.
func advanceQueue(ctx context.Context, tx *sql.Tx, bookID int64, now time.Time) (*model.Reservation, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM reservations
		 WHERE book_id = ? AND status = 'queued'
		 ORDER BY created_at, id
		 LIMIT 1`, bookID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("selecting next reservation: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE reservations SET status = 'awaiting_pickup', notified_at = ?, updated_at = ?
		 WHERE id = ?`,
		now, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("promoting reservation: %w", err)
	}

	return scanReservation(tx.QueryRowContext(ctx, reservationSelect+` WHERE r.id = ?`, id))
}

// EffectuateReservation converts a held reservation into an actual loan.
// Valid only from awaiting_pickup; the book must still be active and have a
// free copy.
func EffectuateReservation(ctx context.Context, db *sql.DB, reservationID int64, actorID *int64) (*model.Loan, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	r, err := scanReservation(tx.QueryRowContext(ctx, reservationSelect+` WHERE r.id = ?`, reservationID))
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, model.ErrNotFound
	}
	if r.Status != model.ReservationAwaitingPickup {
		return nil, model.ErrInvalidTransition
	}

	book, err := getBook(ctx, tx, r.BookID)
	if err != nil {
		return nil, err
	}
	if book == nil || !book.Active() {
		return nil, model.ErrUnavailable
	}

	now := time.Now()
	loanID, err := createLoanTx(ctx, tx, r.BookID, r.RequesterID, &r.ID, now)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE reservations SET status = 'loaned', updated_at = ? WHERE id = ?`,
		now, r.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("marking reservation loaned: %w", err)
	}

	if err := RecordAction(ctx, tx, actorID, "reservation", r.ID, model.ActionUpdate,
		fmt.Sprintf("Reservation effectuated as loan %d.", loanID)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing effectuation: %w", err)
	}

	return GetLoan(ctx, db, loanID)
}

// CancelReservation cancels a reservation from any non-terminal state. When
// the reservation held an awaiting_pickup slot, the slot is re-offered to the
// next queued requester; the promoted reservation is returned so the caller
// can notify them.
func CancelReservation(ctx context.Context, db *sql.DB, reservationID int64, actorID *int64) (*model.Reservation, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	r, err := scanReservation(tx.QueryRowContext(ctx, reservationSelect+` WHERE r.id = ?`, reservationID))
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, model.ErrNotFound
	}
	if r.Terminal() {
		return nil, model.ErrInvalidTransition
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx,
		`UPDATE reservations SET status = 'cancelled', updated_at = ? WHERE id = ?`,
		now, r.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("cancelling reservation: %w", err)
	}

	var promoted *model.Reservation
	if r.Status == model.ReservationAwaitingPickup {
		promoted, err = advanceQueue(ctx, tx, r.BookID, now)
		if err != nil {
			return nil, err
		}
	}

	if err := RecordAction(ctx, tx, actorID, "reservation", r.ID, model.ActionDeactivate,
		"Reservation cancelled."); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing cancellation: %w", err)
	}

	return promoted, nil
}

// ExpireReservations transitions every awaiting_pickup reservation whose
// pickup window has fully elapsed to expired, then re-offers each freed slot
// to the next queued requester. Invoked periodically by an external
// scheduler. Returns the expired and the newly promoted reservations.
func ExpireReservations(ctx context.Context, db *sql.DB, now time.Time) (expired, promoted []model.Reservation, err error) {
	windowDays, err := GetSettingInt(ctx, db, SettingPickupWindowDays, DefaultPickupWindowDays)
	if err != nil {
		return nil, nil, err
	}
	window := time.Duration(windowDays) * 24 * time.Hour

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		reservationSelect+` WHERE r.status = 'awaiting_pickup' ORDER BY r.id`)
	if err != nil {
		return nil, nil, fmt.Errorf("listing held reservations: %w", err)
	}

	var candidates []model.Reservation
	for rows.Next() {
		var r model.Reservation
		if err := rows.Scan(&r.ID, &r.BookID, &r.RequesterID, &r.Status,
			&r.PickupAt, &r.NotifiedAt, &r.CreatedAt, &r.UpdatedAt,
			&r.BookTitle, &r.RequesterName, &r.RequesterEmail); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("scanning reservation: %w", err)
		}
		candidates = append(candidates, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, nil, err
	}
	rows.Close()

	// Each expired reservation frees one offer slot for its book.
	freedSlots := make(map[int64]int)
	for _, r := range candidates {
		deadline, ok := r.PickupDeadline(window)
		if !ok || !now.After(deadline) {
			continue
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE reservations SET status = 'expired', updated_at = ? WHERE id = ?`,
			now, r.ID,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("expiring reservation: %w", err)
		}

		r.Status = model.ReservationExpired
		expired = append(expired, r)
		freedSlots[r.BookID]++
	}

	for bookID, slots := range freedSlots {
		for i := 0; i < slots; i++ {
			p, err := advanceQueue(ctx, tx, bookID, now)
			if err != nil {
				return nil, nil, err
			}
			if p == nil {
				break
			}
			promoted = append(promoted, *p)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("committing expiry sweep: %w", err)
	}

	return expired, promoted, nil
}
