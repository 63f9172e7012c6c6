package store

import (
	"context"
	"testing"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
)

func TestLoanTransitionsAreAudited(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	book := newTestBook(t, database, "Dom Casmurro", 1)
	borrower := newTestUser(t, database, "100001", "Ana")
	actor := newTestUser(t, database, "000001", "Librarian")

	loan, _ := CreateLoan(ctx, database, book.ID, borrower.ID, &actor.ID)
	ReturnLoan(ctx, database, loan.ID, &actor.ID)

	actions, err := ListActions(ctx, database, 10)
	if err != nil {
		t.Fatalf("ListActions: %v", err)
	}

	var creates, updates int
	for _, a := range actions {
		if a.ObjectType != "loan" {
			continue
		}
		switch a.Action {
		case model.ActionCreate:
			creates++
		case model.ActionUpdate:
			updates++
		}
		if a.UserName != "Librarian" {
			t.Errorf("expected actor name joined, got %q", a.UserName)
		}
	}
	if creates != 1 || updates != 1 {
		t.Errorf("expected 1 create and 1 update for the loan, got %d / %d", creates, updates)
	}
}

func TestListActionsNewestFirstWithLimit(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := RecordAction(ctx, database, nil, "book", int64(i+1), model.ActionCreate, ""); err != nil {
			t.Fatalf("RecordAction: %v", err)
		}
	}

	actions, err := ListActions(ctx, database, 3)
	if err != nil {
		t.Fatalf("ListActions: %v", err)
	}
	if len(actions) != 3 {
		t.Fatalf("expected 3 actions, got %d", len(actions))
	}
	if actions[0].ObjectID != 5 {
		t.Errorf("expected newest action first, got object %d", actions[0].ObjectID)
	}
}
