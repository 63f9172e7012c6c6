package store

import (
	"context"
	"testing"
	"time"

	"github.com/erazemk/knjiznica/internal/db"
)

func TestRevokeAndCheckToken(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	revoked, err := IsTokenRevoked(ctx, database, "some-jti")
	if err != nil {
		t.Fatalf("IsTokenRevoked: %v", err)
	}
	if revoked {
		t.Error("expected unknown JTI to be valid")
	}

	if err := RevokeToken(ctx, database, "some-jti", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}

	revoked, err = IsTokenRevoked(ctx, database, "some-jti")
	if err != nil {
		t.Fatalf("IsTokenRevoked after revoke: %v", err)
	}
	if !revoked {
		t.Error("expected revoked JTI to be reported")
	}
}

func TestRevokeTokenIdempotent(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	exp := time.Now().Add(time.Hour)
	if err := RevokeToken(ctx, database, "jti", exp); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if err := RevokeToken(ctx, database, "jti", exp); err != nil {
		t.Errorf("expected repeated revocation to succeed, got %v", err)
	}
}
