package store

import (
	"testing"

	"github.com/dukerupert/overhill/internal/database"
)

func setupLeaseTestDB(t *testing.T) (*LeaseStore, *TenantStore, *PropertyStore, *UnitStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewLeaseStore(db), NewTenantStore(db), NewPropertyStore(db), NewUnitStore(db)
}

func TestLeaseGetActiveByUnit(t *testing.T) {
	ls, ts, ps, us := setupLeaseTestDB(t)

	property, _ := ps.Create(1, "Rosewood Court", "")
	unit, _ := us.Create(property.ID, "2A")

	// No lease yet
	summary, err := ls.GetActiveByUnit(unit.ID)
	if err != nil {
		t.Fatalf("get active lease: %v", err)
	}
	if summary != nil {
		t.Errorf("expected nil, got %+v", summary)
	}

	leaseID, err := ls.Create(unit.ID)
	if err != nil {
		t.Fatalf("create lease: %v", err)
	}

	// Lease with no primary tenant still resolves to nil
	summary, err = ls.GetActiveByUnit(unit.ID)
	if err != nil {
		t.Fatalf("get active lease: %v", err)
	}
	if summary != nil {
		t.Errorf("expected nil without primary tenant, got %+v", summary)
	}

	secondary, _ := ts.Create(nil, "Roommate", "")
	if err := ls.AddTenant(leaseID, secondary.ID, false); err != nil {
		t.Fatalf("add secondary tenant: %v", err)
	}
	primary, _ := ts.Create(nil, "Primary", "")
	if err := ls.AddTenant(leaseID, primary.ID, true); err != nil {
		t.Fatalf("add primary tenant: %v", err)
	}

	summary, err = ls.GetActiveByUnit(unit.ID)
	if err != nil {
		t.Fatalf("get active lease: %v", err)
	}
	if summary == nil {
		t.Fatal("expected lease summary")
	}
	if summary.LeaseID != leaseID {
		t.Errorf("lease_id = %d, want %d", summary.LeaseID, leaseID)
	}
	if summary.PrimaryTenantID != primary.ID {
		t.Errorf("primary_tenant_id = %d, want %d", summary.PrimaryTenantID, primary.ID)
	}
}

func TestLeaseGetActiveByTenant(t *testing.T) {
	ls, ts, ps, us := setupLeaseTestDB(t)

	property, _ := ps.Create(1, "Rosewood Court", "")
	unit, _ := us.Create(property.ID, "2A")
	tenant, _ := ts.Create(nil, "Sam", "")

	summary, err := ls.GetActiveByTenant(tenant.ID)
	if err != nil {
		t.Fatalf("get active lease: %v", err)
	}
	if summary != nil {
		t.Errorf("expected nil, got %+v", summary)
	}

	leaseID, _ := ls.Create(unit.ID)
	if err := ls.AddTenant(leaseID, tenant.ID, true); err != nil {
		t.Fatalf("add tenant: %v", err)
	}

	summary, err = ls.GetActiveByTenant(tenant.ID)
	if err != nil {
		t.Fatalf("get active lease: %v", err)
	}
	if summary == nil {
		t.Fatal("expected lease summary")
	}
	if summary.UnitID != unit.ID {
		t.Errorf("unit_id = %d, want %d", summary.UnitID, unit.ID)
	}
}
