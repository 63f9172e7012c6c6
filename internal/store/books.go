package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/knjiznica/internal/model"
)

// CreateBook adds a new title to the catalog.
func CreateBook(ctx context.Context, db *sql.DB, b *model.Book) (*model.Book, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO books (title, author, publisher, published_year, genre, description, total_copies)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.Title, b.Author, b.Publisher, b.PublishedYear, b.Genre, b.Description, b.TotalCopies,
	)
	if err != nil {
		return nil, fmt.Errorf("creating book: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting book id: %w", err)
	}

	return GetBook(ctx, db, id)
}

// GetBook returns a book by ID.
func GetBook(ctx context.Context, db *sql.DB, id int64) (*model.Book, error) {
	return getBook(ctx, db, id)
}

func getBook(ctx context.Context, q querier, id int64) (*model.Book, error) {
	b := &model.Book{}
	var publisher, genre, description, coverMime sql.NullString
	var publishedYear sql.NullInt64
	err := q.QueryRowContext(ctx,
		`SELECT id, title, author, publisher, published_year, genre, description,
		        total_copies, lent_copies, cover_mime, created_at, updated_at, deleted_at
		 FROM books WHERE id = ?`, id,
	).Scan(&b.ID, &b.Title, &b.Author, &publisher, &publishedYear, &genre, &description,
		&b.TotalCopies, &b.LentCopies, &coverMime, &b.CreatedAt, &b.UpdatedAt, &b.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting book: %w", err)
	}
	b.Publisher = publisher.String
	b.PublishedYear = int(publishedYear.Int64)
	b.Genre = genre.String
	b.Description = description.String
	b.CoverMime = coverMime.String
	return b, nil
}

// ListBooks returns all non-deleted books, optionally filtered by a search
// query matching title/author/description and by genre.
func ListBooks(ctx context.Context, db *sql.DB, query, genre string) ([]model.Book, error) {
	sqlQuery := `SELECT id, title, author, publisher, published_year, genre, description,
	                    total_copies, lent_copies, cover_mime, created_at, updated_at, deleted_at
	             FROM books WHERE deleted_at IS NULL`
	var args []any

	if query != "" {
		sqlQuery += ` AND (title LIKE ? OR author LIKE ? OR description LIKE ?)`
		like := "%" + query + "%"
		args = append(args, like, like, like)
	}
	if genre != "" {
		sqlQuery += ` AND genre = ?`
		args = append(args, genre)
	}
	sqlQuery += ` ORDER BY title`

	rows, err := db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	defer rows.Close()

	var books []model.Book
	for rows.Next() {
		var b model.Book
		var publisher, g, description, coverMime sql.NullString
		var publishedYear sql.NullInt64
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &publisher, &publishedYear, &g, &description,
			&b.TotalCopies, &b.LentCopies, &coverMime, &b.CreatedAt, &b.UpdatedAt, &b.DeletedAt); err != nil {
			return nil, fmt.Errorf("scanning book: %w", err)
		}
		b.Publisher = publisher.String
		b.PublishedYear = int(publishedYear.Int64)
		b.Genre = g.String
		b.Description = description.String
		b.CoverMime = coverMime.String
		books = append(books, b)
	}
	return books, rows.Err()
}

// UpdateBook updates a book's metadata. Copy totals can only grow or shrink
// down to the number of copies currently lent out; the schema CHECK rejects
// anything lower.
func UpdateBook(ctx context.Context, db *sql.DB, b *model.Book) error {
	result, err := db.ExecContext(ctx,
		`UPDATE books SET title = ?, author = ?, publisher = ?, published_year = ?,
		        genre = ?, description = ?, total_copies = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL AND lent_copies <= ?`,
		b.Title, b.Author, b.Publisher, b.PublishedYear, b.Genre, b.Description,
		b.TotalCopies, b.ID, b.TotalCopies,
	)
	if err != nil {
		return fmt.Errorf("updating book: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating book: %w", err)
	}
	if n == 0 {
		return model.ErrInvariantViolation
	}

	// The new total may have moved the availability across a threshold.
	if err := EvaluateStockAlerts(ctx, db, b.ID); err != nil {
		return err
	}
	return nil
}

// DeleteBook soft-deletes a book, removing it from the catalog.
func DeleteBook(ctx context.Context, db *sql.DB, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE books SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting book: %w", err)
	}
	return nil
}

// SetBookCover sets a book's cover image data.
func SetBookCover(ctx context.Context, db *sql.DB, id int64, cover []byte, mime string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE books SET cover = ?, cover_mime = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		cover, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting book cover: %w", err)
	}
	return nil
}

// GetBookCover returns a book's cover image data and MIME type.
func GetBookCover(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var cover []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT cover, cover_mime FROM books WHERE id = ?`, id,
	).Scan(&cover, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting book cover: %w", err)
	}
	return cover, mime.String, nil
}

// lendCopy increments a book's lent-copies counter. The availability check
// and the increment are a single guarded UPDATE, so two concurrent loans can
// never both claim the last copy.
func lendCopy(ctx context.Context, tx *sql.Tx, bookID int64) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE books SET lent_copies = lent_copies + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL AND lent_copies < total_copies`,
		bookID,
	)
	if err != nil {
		return fmt.Errorf("lending copy: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("lending copy: %w", err)
	}
	if n == 0 {
		return model.ErrUnavailable
	}

	return EvaluateStockAlerts(ctx, tx, bookID)
}

// returnCopy decrements a book's lent-copies counter. A guard miss means the
// counter would go negative, which indicates a bug and is surfaced instead
// of clamped.
func returnCopy(ctx context.Context, tx *sql.Tx, bookID int64) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE books SET lent_copies = lent_copies - 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND lent_copies > 0`,
		bookID,
	)
	if err != nil {
		return fmt.Errorf("returning copy: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("returning copy: %w", err)
	}
	if n == 0 {
		return model.ErrInvariantViolation
	}

	return EvaluateStockAlerts(ctx, tx, bookID)
}
