package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Policy setting keys. Values are stored as strings in the settings table and
// seeded by the migrations, so they survive restarts and can be tuned at
// runtime through the settings API.
const (
	SettingLowStockThreshold = "low_stock_threshold"
	SettingLoanPeriodDays    = "loan_period_days"
	SettingPickupWindowDays  = "pickup_window_days"
)

// Policy defaults, used when a key is missing from the settings table.
const (
	DefaultLowStockThreshold = 3
	DefaultLoanPeriodDays    = 15
	DefaultPickupWindowDays  = 3
)

// GetJWTSecret retrieves the JWT secret from the database.
// If no secret exists, it generates one, stores it, and returns it.
// Uses INSERT OR IGNORE + re-SELECT to avoid TOCTOU race on concurrent startup.
func GetJWTSecret(ctx context.Context, db *sql.DB) (string, error) {
	// Try to generate and insert first (safe against races).
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}
	candidate := hex.EncodeToString(buf)

	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES ('jwt_secret', ?)`,
		candidate,
	)
	if err != nil {
		return "", fmt.Errorf("storing jwt_secret: %w", err)
	}

	// Always read back (either our insert or the existing value).
	var secret string
	err = db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = 'jwt_secret'`,
	).Scan(&secret)
	if err != nil {
		return "", fmt.Errorf("querying jwt_secret: %w", err)
	}

	return secret, nil
}

// GetSettingInt returns an integer setting, falling back to def when the key
// is missing or malformed.
func GetSettingInt(ctx context.Context, q querier, key string, def int) (int, error) {
	var value string
	err := q.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return def, nil
	}
	if err != nil {
		return 0, fmt.Errorf("querying setting %s: %w", key, err)
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return def, nil
	}
	return n, nil
}

// SetSettingInt stores an integer setting.
func SetSettingInt(ctx context.Context, db *sql.DB, key string, value int) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, strconv.Itoa(value),
	)
	if err != nil {
		return fmt.Errorf("storing setting %s: %w", key, err)
	}
	return nil
}
