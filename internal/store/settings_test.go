package store

import (
	"context"
	"testing"

	"github.com/erazemk/knjiznica/internal/db"
)

func TestGetJWTSecretPersists(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	secret, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatalf("GetJWTSecret: %v", err)
	}
	if secret == "" {
		t.Fatal("expected non-empty secret")
	}

	again, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatalf("GetJWTSecret second call: %v", err)
	}
	if again != secret {
		t.Error("expected the same secret on repeated calls")
	}
}

func TestPolicySettingsSeededByMigrations(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	threshold, err := GetSettingInt(ctx, database, SettingLowStockThreshold, 0)
	if err != nil {
		t.Fatalf("GetSettingInt: %v", err)
	}
	if threshold != DefaultLowStockThreshold {
		t.Errorf("expected seeded threshold %d, got %d", DefaultLowStockThreshold, threshold)
	}

	period, _ := GetSettingInt(ctx, database, SettingLoanPeriodDays, 0)
	if period != DefaultLoanPeriodDays {
		t.Errorf("expected seeded loan period %d, got %d", DefaultLoanPeriodDays, period)
	}
}

func TestSetSettingIntUpserts(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if err := SetSettingInt(ctx, database, SettingPickupWindowDays, 5); err != nil {
		t.Fatalf("SetSettingInt: %v", err)
	}
	if err := SetSettingInt(ctx, database, SettingPickupWindowDays, 7); err != nil {
		t.Fatalf("SetSettingInt overwrite: %v", err)
	}

	got, _ := GetSettingInt(ctx, database, SettingPickupWindowDays, 0)
	if got != 7 {
		t.Errorf("expected 7, got %d", got)
	}
}

func TestGetSettingIntDefault(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	got, err := GetSettingInt(ctx, database, "nonexistent_key", 42)
	if err != nil {
		t.Fatalf("GetSettingInt: %v", err)
	}
	if got != 42 {
		t.Errorf("expected default 42, got %d", got)
	}
}
