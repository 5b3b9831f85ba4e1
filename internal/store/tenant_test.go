package store

import (
	"errors"
	"testing"

	"github.com/dukerupert/overhill/internal/database"
)

func setupTenantTestDB(t *testing.T) *TenantStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewTenantStore(db)
}

func TestTenantCreateAndGet(t *testing.T) {
	ts := setupTenantTestDB(t)

	userID := int64(7)
	tenant, err := ts.Create(&userID, "Sam Renter", "sam@example.com")
	if err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	if tenant.UserID == nil || *tenant.UserID != 7 {
		t.Errorf("user_id = %v, want 7", tenant.UserID)
	}
	if tenant.FullName != "Sam Renter" {
		t.Errorf("full_name = %q, want %q", tenant.FullName, "Sam Renter")
	}

	got, err := ts.GetByUserID(7)
	if err != nil {
		t.Fatalf("get by user: %v", err)
	}
	if got == nil || got.ID != tenant.ID {
		t.Errorf("got = %+v, want tenant %d", got, tenant.ID)
	}

	missing, err := ts.GetByUserID(999)
	if err != nil {
		t.Fatalf("get by user: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown user, got %+v", missing)
	}
}

func TestTenantUnboundRows(t *testing.T) {
	ts := setupTenantTestDB(t)

	// Multiple pre-provisioned seats with no identity are allowed; the
	// partial unique index only applies once user_id is set.
	if _, err := ts.Create(nil, "Seat One", ""); err != nil {
		t.Fatalf("create first unbound tenant: %v", err)
	}
	if _, err := ts.Create(nil, "Seat Two", ""); err != nil {
		t.Fatalf("create second unbound tenant: %v", err)
	}
}

func TestTenantBindUser(t *testing.T) {
	ts := setupTenantTestDB(t)

	seat, err := ts.Create(nil, "Pre-provisioned", "invited@example.com")
	if err != nil {
		t.Fatalf("create tenant: %v", err)
	}

	bound, err := ts.BindUser(seat.ID, 10)
	if err != nil {
		t.Fatalf("bind user: %v", err)
	}
	if bound.UserID == nil || *bound.UserID != 10 {
		t.Errorf("user_id = %v, want 10", bound.UserID)
	}

	// Re-binding the same identity is a no-op success
	again, err := ts.BindUser(seat.ID, 10)
	if err != nil {
		t.Fatalf("rebind same user: %v", err)
	}
	if again.UserID == nil || *again.UserID != 10 {
		t.Errorf("user_id = %v, want 10 after rebind", again.UserID)
	}

	// A different identity can never take a claimed seat
	_, err = ts.BindUser(seat.ID, 11)
	if !errors.Is(err, ErrTenantClaimed) {
		t.Errorf("bind other user err = %v, want ErrTenantClaimed", err)
	}
	got, _ := ts.GetByID(seat.ID)
	if *got.UserID != 10 {
		t.Errorf("user_id = %d, want 10 after failed rebind", *got.UserID)
	}
}

func TestTenantBindUserMissing(t *testing.T) {
	ts := setupTenantTestDB(t)

	_, err := ts.BindUser(12345, 10)
	if err == nil {
		t.Fatal("expected error for missing tenant")
	}
	if errors.Is(err, ErrTenantClaimed) {
		t.Error("missing tenant should not read as claimed")
	}
}
