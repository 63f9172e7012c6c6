package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/knjiznica/internal/model"
)

// RecordAction appends an audit-log entry. It runs on either a database or a
// transaction so state transitions can log inside their own transaction.
func RecordAction(ctx context.Context, q querier, userID *int64, objectType string, objectID int64, action, details string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO actions (user_id, object_type, object_id, action, details)
		 VALUES (?, ?, ?, ?, ?)`,
		userID, objectType, objectID, action, details,
	)
	if err != nil {
		return fmt.Errorf("recording action: %w", err)
	}
	return nil
}

// ListActions returns the most recent audit-log entries, newest first.
func ListActions(ctx context.Context, db *sql.DB, limit int) ([]model.Action, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.QueryContext(ctx,
		`SELECT a.id, a.user_id, a.object_type, a.object_id, a.action, a.details, a.created_at,
		        COALESCE(u.name, '') AS user_name
		 FROM actions a
		 LEFT JOIN users u ON u.id = a.user_id
		 ORDER BY a.id DESC
		 LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing actions: %w", err)
	}
	defer rows.Close()

	var actions []model.Action
	for rows.Next() {
		var a model.Action
		var details sql.NullString
		if err := rows.Scan(&a.ID, &a.UserID, &a.ObjectType, &a.ObjectID, &a.Action, &details, &a.CreatedAt, &a.UserName); err != nil {
			return nil, fmt.Errorf("scanning action: %w", err)
		}
		a.Details = details.String
		actions = append(actions, a)
	}
	return actions, rows.Err()
}
