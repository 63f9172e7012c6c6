package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
)

// openAlerts returns the open stock alerts for a book keyed by category.
func openAlerts(t *testing.T, database *sql.DB, bookID int64) map[string]model.Alert {
	t.Helper()
	alerts, err := ListAlerts(context.Background(), database, true, time.Now())
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	byCategory := make(map[string]model.Alert)
	for _, a := range alerts {
		if a.BookID != nil && *a.BookID == bookID {
			byCategory[a.Category] = a
		}
	}
	return byCategory
}

func TestStockAlertThresholdCrossings(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	// Default threshold is 3.
	book := newTestBook(t, database, "Dom Casmurro", 4)

	var loans []*model.Loan
	for i := 0; i < 4; i++ {
		borrower := newTestUser(t, database, "10000"+string(rune('1'+i)), "Student")
		loan, err := CreateLoan(ctx, database, book.ID, borrower.ID, nil)
		if err != nil {
			t.Fatalf("CreateLoan %d: %v", i, err)
		}
		loans = append(loans, loan)
	}

	// 0 available: out_of_stock open, low_stock closed.
	open := openAlerts(t, database, book.ID)
	if _, ok := open[model.AlertOutOfStock]; !ok {
		t.Error("expected open out_of_stock alert at 0 available")
	}
	if _, ok := open[model.AlertLowStock]; ok {
		t.Error("expected low_stock alert resolved at 0 available")
	}

	// One return: 1 available, low_stock reopens, out_of_stock resolves.
	if _, _, err := ReturnLoan(ctx, database, loans[0].ID, nil); err != nil {
		t.Fatalf("ReturnLoan: %v", err)
	}
	open = openAlerts(t, database, book.ID)
	if _, ok := open[model.AlertLowStock]; !ok {
		t.Error("expected open low_stock alert at 1 available")
	}
	if _, ok := open[model.AlertOutOfStock]; ok {
		t.Error("expected out_of_stock alert resolved at 1 available")
	}

	// Remaining returns: above threshold, everything resolves.
	for _, loan := range loans[1:] {
		ReturnLoan(ctx, database, loan.ID, nil)
	}
	open = openAlerts(t, database, book.ID)
	if len(open) != 0 {
		t.Errorf("expected no open stock alerts at full availability, got %v", open)
	}
}

func TestStockAlertsNeverDuplicate(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	book := newTestBook(t, database, "Dom Casmurro", 2)
	ana := newTestUser(t, database, "100001", "Ana")
	bruno := newTestUser(t, database, "100002", "Bruno")

	// Both loans keep availability inside the low-stock band.
	loan, _ := CreateLoan(ctx, database, book.ID, ana.ID, nil)
	ReturnLoan(ctx, database, loan.ID, nil)
	loan, _ = CreateLoan(ctx, database, book.ID, bruno.ID, nil)
	ReturnLoan(ctx, database, loan.ID, nil)

	alerts, _ := ListAlerts(ctx, database, true, time.Now())
	count := 0
	for _, a := range alerts {
		if a.Category == model.AlertLowStock && a.BookID != nil && *a.BookID == book.ID {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one open low_stock alert, got %d", count)
	}
}

func TestRaisingThresholdViaSettings(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if err := SetSettingInt(ctx, database, SettingLowStockThreshold, 1); err != nil {
		t.Fatalf("SetSettingInt: %v", err)
	}

	book := newTestBook(t, database, "Dom Casmurro", 3)
	ana := newTestUser(t, database, "100001", "Ana")

	// 2 available with threshold 1: no alert.
	CreateLoan(ctx, database, book.ID, ana.ID, nil)
	if open := openAlerts(t, database, book.ID); len(open) != 0 {
		t.Errorf("expected no alerts above custom threshold, got %v", open)
	}
}

func TestManualAlertLifecycle(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	alert, err := CreateAlert(ctx, database, &model.Alert{
		Subject:    "Inventory day",
		Message:    "The library closes early on Friday.",
		Severity:   model.SeverityInfo,
		Visibility: model.VisibilityPublic,
	})
	if err != nil {
		t.Fatalf("CreateAlert: %v", err)
	}
	if alert.Category != model.AlertManual {
		t.Errorf("expected manual category, got %q", alert.Category)
	}

	if err := ResolveAlert(ctx, database, alert.ID); err != nil {
		t.Fatalf("ResolveAlert: %v", err)
	}

	if err := ResolveAlert(ctx, database, alert.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound resolving twice, got %v", err)
	}
}

func TestAlertVisibilityAndWindow(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	future := time.Now().Add(24 * time.Hour)
	CreateAlert(ctx, database, &model.Alert{
		Subject:    "Next week",
		Message:    "Scheduled maintenance.",
		Severity:   model.SeverityInfo,
		Visibility: model.VisibilityPublic,
		PublishAt:  &future,
	})
	CreateAlert(ctx, database, &model.Alert{
		Subject:    "Staff only",
		Message:    "Shelving backlog.",
		Severity:   model.SeverityWarning,
		Visibility: model.VisibilityStaff,
	})

	public, _ := ListAlerts(ctx, database, false, time.Now())
	if len(public) != 0 {
		t.Errorf("expected no public alerts before publish time, got %d", len(public))
	}

	staff, _ := ListAlerts(ctx, database, true, time.Now())
	if len(staff) != 2 {
		t.Errorf("expected staff to see both alerts, got %d", len(staff))
	}
}

func TestExpireAlertsSweep(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	CreateAlert(ctx, database, &model.Alert{
		Subject:    "Old notice",
		Message:    "Already over.",
		Severity:   model.SeverityInfo,
		Visibility: model.VisibilityPublic,
		ExpireAt:   &past,
	})

	n, err := ExpireAlerts(ctx, database, time.Now())
	if err != nil {
		t.Fatalf("ExpireAlerts: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 alert expired, got %d", n)
	}
}

func TestUnnotifiedAlertsFlow(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	alert, _ := CreateAlert(ctx, database, &model.Alert{
		Subject:    "Shelving backlog",
		Message:    "Returns piling up.",
		Severity:   model.SeverityWarning,
		Visibility: model.VisibilityStaff,
	})

	pending, err := UnnotifiedAlerts(ctx, database)
	if err != nil {
		t.Fatalf("UnnotifiedAlerts: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending alert, got %d", len(pending))
	}

	if err := MarkAlertNotified(ctx, database, alert.ID); err != nil {
		t.Fatalf("MarkAlertNotified: %v", err)
	}

	pending, _ = UnnotifiedAlerts(ctx, database)
	if len(pending) != 0 {
		t.Errorf("expected no pending alerts after marking, got %d", len(pending))
	}
}
