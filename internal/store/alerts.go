package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
)

// EvaluateStockAlerts re-derives the stock alerts for a book from its current
// copy counts. It runs after every successful copies change, inside the same
// transaction, so alerts never drift from the counters:
//
//   - 0 < available <= threshold: one open low_stock alert, out_of_stock resolved
//   - available == 0:             one open out_of_stock alert, low_stock resolved
//   - available > threshold:      both resolved
func EvaluateStockAlerts(ctx context.Context, q querier, bookID int64) error {
	book, err := getBook(ctx, q, bookID)
	if err != nil {
		return err
	}
	if book == nil {
		return model.ErrNotFound
	}

	threshold, err := GetSettingInt(ctx, q, SettingLowStockThreshold, DefaultLowStockThreshold)
	if err != nil {
		return err
	}

	available := book.AvailableCopies()
	switch {
	case available == 0:
		if err := resolveStockAlert(ctx, q, bookID, model.AlertLowStock); err != nil {
			return err
		}
		return ensureStockAlert(ctx, q, bookID, model.AlertOutOfStock, model.SeverityError,
			fmt.Sprintf("Out of stock: %s", book.Title),
			fmt.Sprintf("All %d copies of %q are lent out.", book.TotalCopies, book.Title))

	case available <= threshold:
		if err := resolveStockAlert(ctx, q, bookID, model.AlertOutOfStock); err != nil {
			return err
		}
		return ensureStockAlert(ctx, q, bookID, model.AlertLowStock, model.SeverityWarning,
			fmt.Sprintf("Low stock: %s", book.Title),
			fmt.Sprintf("Only %d of %d copies of %q still available.", available, book.TotalCopies, book.Title))

	default:
		if err := resolveStockAlert(ctx, q, bookID, model.AlertLowStock); err != nil {
			return err
		}
		return resolveStockAlert(ctx, q, bookID, model.AlertOutOfStock)
	}
}

// ensureStockAlert creates the open (book, category) alert if absent, or
// refreshes its message when the quantity changed. The partial unique index
// on open alerts guarantees at most one row either way.
func ensureStockAlert(ctx context.Context, q querier, bookID int64, category, severity, subject, message string) error {
	result, err := q.ExecContext(ctx,
		`UPDATE alerts SET subject = ?, message = ?
		 WHERE book_id = ? AND category = ? AND resolved = 0`,
		subject, message, bookID, category,
	)
	if err != nil {
		return fmt.Errorf("refreshing stock alert: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("refreshing stock alert: %w", err)
	}
	if n > 0 {
		return nil
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO alerts (book_id, category, subject, message, severity, visibility)
		 VALUES (?, ?, ?, ?, ?, 'staff')`,
		bookID, category, subject, message, severity,
	)
	if err != nil {
		return fmt.Errorf("creating stock alert: %w", err)
	}
	return nil
}

// resolveStockAlert closes the open (book, category) alert, if any.
func resolveStockAlert(ctx context.Context, q querier, bookID int64, category string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE alerts SET resolved = 1, resolved_at = CURRENT_TIMESTAMP
		 WHERE book_id = ? AND category = ? AND resolved = 0`,
		bookID, category,
	)
	if err != nil {
		return fmt.Errorf("resolving stock alert: %w", err)
	}
	return nil
}

// CreateAlert posts a manual staff alert.
func CreateAlert(ctx context.Context, db *sql.DB, a *model.Alert) (*model.Alert, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO alerts (book_id, category, subject, message, severity, visibility, publish_at, expire_at)
		 VALUES (?, 'manual', ?, ?, ?, ?, ?, ?)`,
		a.BookID, a.Subject, a.Message, a.Severity, a.Visibility, a.PublishAt, a.ExpireAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating alert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting alert id: %w", err)
	}

	return GetAlert(ctx, db, id)
}

// GetAlert returns an alert by ID.
func GetAlert(ctx context.Context, db *sql.DB, id int64) (*model.Alert, error) {
	a := &model.Alert{}
	err := db.QueryRowContext(ctx,
		`SELECT id, book_id, category, subject, message, severity, visibility,
		        resolved, resolved_at, publish_at, expire_at, notification_sent, created_at
		 FROM alerts WHERE id = ?`, id,
	).Scan(&a.ID, &a.BookID, &a.Category, &a.Subject, &a.Message, &a.Severity, &a.Visibility,
		&a.Resolved, &a.ResolvedAt, &a.PublishAt, &a.ExpireAt, &a.NotificationSent, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting alert: %w", err)
	}
	return a, nil
}

// ListAlerts returns alerts. Staff see every open alert; everyone else sees
// only open, public alerts within their publish/expire window.
func ListAlerts(ctx context.Context, db *sql.DB, staff bool, now time.Time) ([]model.Alert, error) {
	query := `SELECT id, book_id, category, subject, message, severity, visibility,
	                 resolved, resolved_at, publish_at, expire_at, notification_sent, created_at
	          FROM alerts WHERE resolved = 0`
	var args []any

	if !staff {
		query += ` AND visibility = 'public'
		           AND (publish_at IS NULL OR publish_at <= ?)
		           AND (expire_at IS NULL OR expire_at > ?)`
		args = append(args, now, now)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		var a model.Alert
		if err := rows.Scan(&a.ID, &a.BookID, &a.Category, &a.Subject, &a.Message, &a.Severity, &a.Visibility,
			&a.Resolved, &a.ResolvedAt, &a.PublishAt, &a.ExpireAt, &a.NotificationSent, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// ResolveAlert manually closes an open alert.
func ResolveAlert(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE alerts SET resolved = 1, resolved_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND resolved = 0`,
		id,
	)
	if err != nil {
		return fmt.Errorf("resolving alert: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolving alert: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ExpireAlerts resolves every open alert whose expire_at has passed.
// Returns the number of alerts resolved.
func ExpireAlerts(ctx context.Context, db *sql.DB, now time.Time) (int64, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE alerts SET resolved = 1, resolved_at = ?
		 WHERE resolved = 0 AND expire_at IS NOT NULL AND expire_at < ?`,
		now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("expiring alerts: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expiring alerts: %w", err)
	}
	return n, nil
}

// UnnotifiedAlerts returns open alerts whose staff notification has not been
// dispatched yet.
func UnnotifiedAlerts(ctx context.Context, db *sql.DB) ([]model.Alert, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, book_id, category, subject, message, severity, visibility,
		        resolved, resolved_at, publish_at, expire_at, notification_sent, created_at
		 FROM alerts WHERE resolved = 0 AND notification_sent = 0
		 ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing unnotified alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		var a model.Alert
		if err := rows.Scan(&a.ID, &a.BookID, &a.Category, &a.Subject, &a.Message, &a.Severity, &a.Visibility,
			&a.Resolved, &a.ResolvedAt, &a.PublishAt, &a.ExpireAt, &a.NotificationSent, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// MarkAlertNotified records that the staff notification for an alert went out.
func MarkAlertNotified(ctx context.Context, db *sql.DB, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE alerts SET notification_sent = 1 WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("marking alert notified: %w", err)
	}
	return nil
}
