package db

import (
	"database/sql"
	"fmt"
)

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: Seed default policy settings so that fresh and upgraded
	// databases share the same effective configuration.
	`INSERT OR IGNORE INTO settings (key, value) VALUES ('low_stock_threshold', '3')`,
	`INSERT OR IGNORE INTO settings (key, value) VALUES ('loan_period_days', '15')`,
	`INSERT OR IGNORE INTO settings (key, value) VALUES ('pickup_window_days', '3')`,
}

// Migrate ensures the schema and applies the migrations.
func Migrate(db *sql.DB) error {
	if err := EnsureSchema(db); err != nil {
		return err
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
