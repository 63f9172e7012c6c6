package notify

import (
	"context"
	"strings"
	"testing"
)

func TestRenderLoanCreated(t *testing.T) {
	subject, body, err := Render(TemplateLoanCreated, map[string]string{
		"Name":     "Ana Silva",
		"Title":    "Dom Casmurro",
		"LoanDate": "2025-03-01",
		"DueDate":  "2025-03-16",
	})
	if err != nil {
		t.Fatalf("failed to render template: %v", err)
	}

	if !strings.Contains(subject, "Dom Casmurro") {
		t.Errorf("expected subject to contain book title, got %q", subject)
	}

	for _, want := range []string{"Ana Silva", "Dom Casmurro", "2025-03-16"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected body to contain %q", want)
		}
	}
}

func TestRenderReservationReady(t *testing.T) {
	_, body, err := Render(TemplateReservationReady, map[string]string{
		"Name":           "Bruno Costa",
		"Title":          "Capitães da Areia",
		"PickupDeadline": "2025-03-05",
	})
	if err != nil {
		t.Fatalf("failed to render template: %v", err)
	}

	if !strings.Contains(body, "2025-03-05") {
		t.Errorf("expected body to contain the pickup deadline, got %q", body)
	}
}

func TestRenderStaffAlertWithoutBook(t *testing.T) {
	_, body, err := Render(TemplateStaffAlert, map[string]string{
		"AlertTitle": "Inventory check",
		"Category":   "other",
		"Severity":   "info",
		"Message":    "Annual inventory starts Monday",
	})
	if err != nil {
		t.Fatalf("failed to render template: %v", err)
	}

	if strings.Contains(body, "Book:") {
		t.Errorf("expected no book line when no title is set, got %q", body)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	if _, _, err := Render("no-such-template", nil); err == nil {
		t.Error("expected an error for an unknown template key")
	}
}

func TestNewIntentAssignsID(t *testing.T) {
	a := NewIntent(TemplateWelcome, "a@school.example", nil)
	b := NewIntent(TemplateWelcome, "b@school.example", nil)

	if a.ID == "" || b.ID == "" {
		t.Fatal("expected intents to have IDs")
	}
	if a.ID == b.ID {
		t.Error("expected distinct intent IDs")
	}
}

func TestSendSkipsEmptyRecipient(t *testing.T) {
	// Must not panic or dispatch anything.
	Send(context.Background(), LogDispatcher{}, Intent{Template: TemplateWelcome})
}
