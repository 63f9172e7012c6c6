package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    ra            TEXT NOT NULL,
    name          TEXT NOT NULL,
    email         TEXT NOT NULL,
    class         TEXT,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'student' CHECK (role IN ('admin', 'teacher', 'student')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_active
    ON users(email) WHERE deleted_at IS NULL;

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_ra_active
    ON users(ra) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS books (
    id             INTEGER PRIMARY KEY,
    title          TEXT NOT NULL,
    author         TEXT NOT NULL,
    publisher      TEXT,
    published_year INTEGER,
    genre          TEXT,
    description    TEXT,
    total_copies   INTEGER NOT NULL DEFAULT 1 CHECK (total_copies >= 0),
    lent_copies    INTEGER NOT NULL DEFAULT 0 CHECK (lent_copies >= 0 AND lent_copies <= total_copies),
    cover          BLOB,
    cover_mime     TEXT,
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at     DATETIME
);

CREATE TABLE IF NOT EXISTS loans (
    id             INTEGER PRIMARY KEY,
    book_id        INTEGER NOT NULL REFERENCES books(id),
    borrower_id    INTEGER NOT NULL REFERENCES users(id),
    reservation_id INTEGER REFERENCES reservations(id),
    loaned_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    due_at         DATETIME NOT NULL,
    returned       INTEGER NOT NULL DEFAULT 0 CHECK (returned IN (0, 1)),
    returned_at    DATETIME
);

CREATE INDEX IF NOT EXISTS idx_loans_borrower ON loans(borrower_id);
CREATE INDEX IF NOT EXISTS idx_loans_book_open ON loans(book_id) WHERE returned = 0;

CREATE TABLE IF NOT EXISTS reservations (
    id           INTEGER PRIMARY KEY,
    book_id      INTEGER NOT NULL REFERENCES books(id),
    requester_id INTEGER NOT NULL REFERENCES users(id),
    status       TEXT NOT NULL DEFAULT 'queued'
                 CHECK (status IN ('queued', 'awaiting_pickup', 'loaned', 'expired', 'cancelled', 'completed')),
    pickup_at    DATETIME,
    notified_at  DATETIME,
    created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_reservations_one_active
    ON reservations(book_id, requester_id)
    WHERE status IN ('queued', 'awaiting_pickup');

CREATE INDEX IF NOT EXISTS idx_reservations_queue
    ON reservations(book_id, created_at, id) WHERE status = 'queued';

CREATE TABLE IF NOT EXISTS alerts (
    id                INTEGER PRIMARY KEY,
    book_id           INTEGER REFERENCES books(id),
    category          TEXT NOT NULL CHECK (category IN ('low_stock', 'out_of_stock', 'manual')),
    subject           TEXT NOT NULL,
    message           TEXT NOT NULL,
    severity          TEXT NOT NULL DEFAULT 'info' CHECK (severity IN ('info', 'warning', 'error', 'critical')),
    visibility        TEXT NOT NULL DEFAULT 'staff' CHECK (visibility IN ('staff', 'public')),
    resolved          INTEGER NOT NULL DEFAULT 0 CHECK (resolved IN (0, 1)),
    resolved_at       DATETIME,
    publish_at        DATETIME,
    expire_at         DATETIME,
    notification_sent INTEGER NOT NULL DEFAULT 0 CHECK (notification_sent IN (0, 1)),
    created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_open_per_book_category
    ON alerts(book_id, category)
    WHERE resolved = 0 AND book_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS actions (
    id          INTEGER PRIMARY KEY,
    user_id     INTEGER REFERENCES users(id),
    object_type TEXT NOT NULL,
    object_id   INTEGER NOT NULL,
    action      TEXT NOT NULL CHECK (action IN ('create', 'update', 'deactivate')),
    details     TEXT,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
