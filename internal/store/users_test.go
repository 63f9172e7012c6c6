package store

import (
	"context"
	"testing"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
)

func TestCreateAndGetUserByEmail(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, database, "100001", "Ana Silva", "ana@school.example", "3B", "hash", model.RoleStudent)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	got, err := GetUserByEmail(ctx, database, "ana@school.example")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got == nil || got.ID != user.ID || got.Class != "3B" {
		t.Errorf("unexpected user: %+v", got)
	}
}

func TestDuplicateEmailRejected(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := CreateUser(ctx, database, "100001", "Ana", "ana@school.example", "", "hash", model.RoleStudent); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if _, err := CreateUser(ctx, database, "100002", "Other Ana", "ana@school.example", "", "hash", model.RoleStudent); err == nil {
		t.Error("expected error for duplicate email")
	}
}

func TestDeletedUserFreesEmail(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "100001", "Ana", "ana@school.example", "", "hash", model.RoleStudent)
	if err := DeleteUser(ctx, database, user.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	// The partial unique index only covers active accounts.
	if _, err := CreateUser(ctx, database, "100001", "Ana Again", "ana@school.example", "", "hash", model.RoleStudent); err != nil {
		t.Errorf("expected deleted user's email to be reusable, got %v", err)
	}
}

func TestListUsersByRole(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateUser(ctx, database, "100001", "Ana", "ana@school.example", "", "hash", model.RoleStudent)
	CreateUser(ctx, database, "200001", "Prof. Dias", "dias@school.example", "", "hash", model.RoleTeacher)
	CreateUser(ctx, database, "000001", "Admin", "admin@school.example", "", "hash", model.RoleAdmin)

	students, err := ListUsers(ctx, database, model.RoleStudent)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(students) != 1 || students[0].Role != model.RoleStudent {
		t.Errorf("expected 1 student, got %+v", students)
	}

	all, _ := ListUsers(ctx, database, "")
	if len(all) != 3 {
		t.Errorf("expected 3 users, got %d", len(all))
	}
}

func TestStaffEmails(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateUser(ctx, database, "100001", "Ana", "ana@school.example", "", "hash", model.RoleStudent)
	CreateUser(ctx, database, "200001", "Prof. Dias", "dias@school.example", "", "hash", model.RoleTeacher)
	CreateUser(ctx, database, "000001", "Admin", "admin@school.example", "", "hash", model.RoleAdmin)

	emails, err := StaffEmails(ctx, database)
	if err != nil {
		t.Fatalf("StaffEmails: %v", err)
	}
	if len(emails) != 2 {
		t.Errorf("expected 2 staff emails, got %v", emails)
	}
	for _, e := range emails {
		if e == "ana@school.example" {
			t.Error("student email must not be included")
		}
	}
}

func TestUpdateUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "100001", "Ana", "ana@school.example", "3B", "hash", model.RoleStudent)

	if err := UpdateUser(ctx, database, user.ID, "Ana Silva", "4A", model.RoleTeacher); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}

	got, _ := GetUser(ctx, database, user.ID)
	if got.Name != "Ana Silva" || got.Class != "4A" || got.Role != model.RoleTeacher {
		t.Errorf("unexpected user after update: %+v", got)
	}
}

func TestRoleAtLeast(t *testing.T) {
	if !model.RoleAtLeast(model.RoleAdmin, model.RoleTeacher) {
		t.Error("admin should satisfy teacher requirement")
	}
	if model.RoleAtLeast(model.RoleStudent, model.RoleTeacher) {
		t.Error("student should not satisfy teacher requirement")
	}
	if !model.RoleAtLeast(model.RoleStudent, model.RoleStudent) {
		t.Error("role should satisfy itself")
	}
}
