package api

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/erazemk/knjiznica/internal/imaging"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// BooksHandler handles catalog endpoints.
type BooksHandler struct {
	DB *sql.DB
}

type bookRequest struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	Publisher     string `json:"publisher"`
	PublishedYear int    `json:"published_year"`
	Genre         string `json:"genre"`
	Description   string `json:"description"`
	TotalCopies   int    `json:"total_copies"`
}

// List handles GET /api/books with optional ?q= and ?genre= filters.
func (h *BooksHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	genre := r.URL.Query().Get("genre")

	books, err := store.ListBooks(r.Context(), h.DB, query, genre)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list books")
		return
	}
	if books == nil {
		books = []model.Book{}
	}
	jsonResponse(w, http.StatusOK, books)
}

// Create handles POST /api/books.
func (h *BooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == "" || req.Author == "" {
		jsonError(w, http.StatusBadRequest, "title and author required")
		return
	}
	if req.TotalCopies < 0 {
		jsonError(w, http.StatusBadRequest, "total_copies must not be negative")
		return
	}

	book, err := store.CreateBook(r.Context(), h.DB, &model.Book{
		Title:         req.Title,
		Author:        req.Author,
		Publisher:     req.Publisher,
		PublishedYear: req.PublishedYear,
		Genre:         req.Genre,
		Description:   req.Description,
		TotalCopies:   req.TotalCopies,
	})
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to create book")
		return
	}

	if claims := GetClaims(r.Context()); claims != nil {
		_ = store.RecordAction(r.Context(), h.DB, &claims.UserID, "book", book.ID, model.ActionCreate,
			"Book added to catalog.")
	}

	jsonResponse(w, http.StatusCreated, book)
}

// Get handles GET /api/books/{id}.
func (h *BooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	book, err := store.GetBook(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get book")
		return
	}
	if book == nil || !book.Active() {
		jsonError(w, http.StatusNotFound, "book not found")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"book":             book,
		"available_copies": book.AvailableCopies(),
	})
}

// Update handles PUT /api/books/{id}.
func (h *BooksHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	var req bookRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == "" || req.Author == "" {
		jsonError(w, http.StatusBadRequest, "title and author required")
		return
	}
	if req.TotalCopies < 0 {
		jsonError(w, http.StatusBadRequest, "total_copies must not be negative")
		return
	}

	err = store.UpdateBook(r.Context(), h.DB, &model.Book{
		ID:            id,
		Title:         req.Title,
		Author:        req.Author,
		Publisher:     req.Publisher,
		PublishedYear: req.PublishedYear,
		Genre:         req.Genre,
		Description:   req.Description,
		TotalCopies:   req.TotalCopies,
	})
	if err != nil {
		storeError(w, err, "failed to update book")
		return
	}

	if claims := GetClaims(r.Context()); claims != nil {
		_ = store.RecordAction(r.Context(), h.DB, &claims.UserID, "book", id, model.ActionUpdate,
			"Book updated.")
	}

	book, _ := store.GetBook(r.Context(), h.DB, id)
	jsonResponse(w, http.StatusOK, book)
}

// Delete handles DELETE /api/books/{id} (soft delete).
func (h *BooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	if err := store.DeleteBook(r.Context(), h.DB, id); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to delete book")
		return
	}

	if claims := GetClaims(r.Context()); claims != nil {
		_ = store.RecordAction(r.Context(), h.DB, &claims.UserID, "book", id, model.ActionDeactivate,
			"Book removed from catalog.")
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "book deleted"})
}

// UploadCover handles PUT /api/books/{id}/cover.
func (h *BooksHandler) UploadCover(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	book, err := store.GetBook(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get book")
		return
	}
	if book == nil || !book.Active() {
		jsonError(w, http.StatusNotFound, "book not found")
		return
	}

	// Limit to 5 MB.
	r.Body = http.MaxBytesReader(w, r.Body, 5<<20)

	if err := r.ParseMultipartForm(5 << 20); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("cover")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "cover file required")
		return
	}
	defer file.Close()

	processed, err := imaging.ProcessCover(file)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.SetBookCover(r.Context(), h.DB, id, processed.Data, processed.MIME); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to save cover")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "cover uploaded"})
}

// GetCover handles GET /api/books/{id}/cover.
func (h *BooksHandler) GetCover(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	data, mime, err := store.GetBookCover(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get cover")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no cover")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}
