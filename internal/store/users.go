package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/knjiznica/internal/model"
)

// CreateUser creates a new user account.
func CreateUser(ctx context.Context, db *sql.DB, ra, name, email, class, passwordHash, role string) (*model.User, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO users (ra, name, email, class, password_hash, role) VALUES (?, ?, ?, ?, ?, ?)`,
		ra, name, email, class, passwordHash, role,
	)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user id: %w", err)
	}

	return GetUser(ctx, db, id)
}

// GetUser returns a user by ID.
func GetUser(ctx context.Context, db *sql.DB, id int64) (*model.User, error) {
	u := &model.User{}
	var class sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, ra, name, email, class, password_hash, role, created_at, deleted_at
		 FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.RA, &u.Name, &u.Email, &class, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	u.Class = class.String
	return u, nil
}

// GetUserByEmail returns a user by email (including soft-deleted for auth checks).
func GetUserByEmail(ctx context.Context, db *sql.DB, email string) (*model.User, error) {
	u := &model.User{}
	var class sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, ra, name, email, class, password_hash, role, created_at, deleted_at
		 FROM users WHERE email = ?`, email,
	).Scan(&u.ID, &u.RA, &u.Name, &u.Email, &class, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	u.Class = class.String
	return u, nil
}

// ListUsers returns all non-deleted users, optionally filtered by role.
func ListUsers(ctx context.Context, db *sql.DB, role string) ([]model.User, error) {
	var rows *sql.Rows
	var err error

	if role != "" {
		rows, err = db.QueryContext(ctx,
			`SELECT id, ra, name, email, class, password_hash, role, created_at, deleted_at
			 FROM users WHERE deleted_at IS NULL AND role = ? ORDER BY name`, role,
		)
	} else {
		rows, err = db.QueryContext(ctx,
			`SELECT id, ra, name, email, class, password_hash, role, created_at, deleted_at
			 FROM users WHERE deleted_at IS NULL ORDER BY name`,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		var class sql.NullString
		if err := rows.Scan(&u.ID, &u.RA, &u.Name, &u.Email, &class, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.DeletedAt); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		u.Class = class.String
		users = append(users, u)
	}
	return users, rows.Err()
}

// StaffEmails returns the email addresses of all active staff accounts
// (teachers and admins), used for staff alert notifications.
func StaffEmails(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT email FROM users
		 WHERE deleted_at IS NULL AND role IN ('admin', 'teacher')
		 ORDER BY email`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing staff emails: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scanning staff email: %w", err)
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

// UpdateUser updates a user's profile fields and role.
func UpdateUser(ctx context.Context, db *sql.DB, id int64, name, class, role string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET name = ?, class = ?, role = ? WHERE id = ? AND deleted_at IS NULL`,
		name, class, role, id,
	)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	return nil
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, db *sql.DB, id int64, passwordHash string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return nil
}

// DeleteUser soft-deletes a user.
func DeleteUser(ctx context.Context, db *sql.DB, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}
