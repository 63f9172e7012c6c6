package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/notify"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string, notifier notify.Dispatcher) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db, Notifier: notifier}
	booksHandler := &BooksHandler{DB: db}
	loansHandler := &LoansHandler{DB: db, Notifier: notifier}
	reservationsHandler := &ReservationsHandler{DB: db, Notifier: notifier}
	alertsHandler := &AlertsHandler{DB: db, Notifier: notifier}
	settingsHandler := &SettingsHandler{DB: db}
	actionsHandler := &ActionsHandler{DB: db}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireStaff := RequireRole(model.RoleTeacher)

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("GET /api/auth/me", authMW(http.HandlerFunc(authHandler.Me)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	// Users: self-read allowed, everything else admin only.
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(http.HandlerFunc(usersHandler.Get)))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Books: read (all roles), write (staff).
	mux.Handle("GET /api/books", authMW(http.HandlerFunc(booksHandler.List)))
	mux.Handle("POST /api/books", authMW(requireStaff(http.HandlerFunc(booksHandler.Create))))
	mux.Handle("GET /api/books/{id}", authMW(http.HandlerFunc(booksHandler.Get)))
	mux.Handle("PUT /api/books/{id}", authMW(requireStaff(http.HandlerFunc(booksHandler.Update))))
	mux.Handle("DELETE /api/books/{id}", authMW(requireStaff(http.HandlerFunc(booksHandler.Delete))))
	mux.Handle("PUT /api/books/{id}/cover", authMW(requireStaff(http.HandlerFunc(booksHandler.UploadCover))))
	mux.Handle("GET /api/books/{id}/cover", authMW(http.HandlerFunc(booksHandler.GetCover)))

	// Loans: staff register checkouts and returns, students read their own.
	mux.Handle("POST /api/loans", authMW(requireStaff(http.HandlerFunc(loansHandler.Create))))
	mux.Handle("GET /api/loans", authMW(http.HandlerFunc(loansHandler.List)))
	mux.Handle("GET /api/loans/{id}", authMW(http.HandlerFunc(loansHandler.Get)))
	mux.Handle("POST /api/loans/{id}/return", authMW(requireStaff(http.HandlerFunc(loansHandler.Return))))
	mux.Handle("POST /api/loans/reminders", authMW(requireAdmin(http.HandlerFunc(loansHandler.SendReminders))))

	// Reservations: anyone can queue up, staff effectuate pickups.
	mux.Handle("POST /api/reservations", authMW(http.HandlerFunc(reservationsHandler.Create)))
	mux.Handle("GET /api/reservations", authMW(http.HandlerFunc(reservationsHandler.List)))
	mux.Handle("GET /api/reservations/{id}", authMW(http.HandlerFunc(reservationsHandler.Get)))
	mux.Handle("POST /api/reservations/{id}/effectuate", authMW(requireStaff(http.HandlerFunc(reservationsHandler.Effectuate))))
	mux.Handle("DELETE /api/reservations/{id}", authMW(http.HandlerFunc(reservationsHandler.Cancel)))
	mux.Handle("POST /api/reservations/sweep", authMW(requireAdmin(http.HandlerFunc(reservationsHandler.Sweep))))

	// Alerts: read (all roles, visibility-filtered), write (staff).
	mux.Handle("GET /api/alerts", authMW(http.HandlerFunc(alertsHandler.List)))
	mux.Handle("POST /api/alerts", authMW(requireStaff(http.HandlerFunc(alertsHandler.Create))))
	mux.Handle("POST /api/alerts/{id}/resolve", authMW(requireStaff(http.HandlerFunc(alertsHandler.Resolve))))
	mux.Handle("POST /api/alerts/sweep", authMW(requireAdmin(http.HandlerFunc(alertsHandler.Sweep))))

	// Settings and audit log (admin only).
	mux.Handle("GET /api/settings", authMW(requireAdmin(http.HandlerFunc(settingsHandler.Get))))
	mux.Handle("PUT /api/settings", authMW(requireAdmin(http.HandlerFunc(settingsHandler.Update))))
	mux.Handle("GET /api/actions", authMW(requireAdmin(http.HandlerFunc(actionsHandler.List))))

	return mux
}
