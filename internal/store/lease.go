package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/overhill/internal/model"
)

type LeaseStore struct {
	db *sql.DB
}

func NewLeaseStore(db *sql.DB) *LeaseStore {
	return &LeaseStore{db: db}
}

func scanLeaseSummary(scanner interface{ Scan(...any) error }) (*model.LeaseSummary, error) {
	var ls model.LeaseSummary
	err := scanner.Scan(&ls.LeaseID, &ls.UnitID, &ls.PrimaryTenantID)
	if err != nil {
		return nil, err
	}
	return &ls, nil
}

// GetActiveByUnit returns the active lease for a unit together with its
// primary-tenant slot, or nil when the unit has no active lease or the lease
// has no primary tenant. The two cases are deliberately not distinguished;
// callers fall back the same way for both.
func (s *LeaseStore) GetActiveByUnit(unitID int64) (*model.LeaseSummary, error) {
	row := s.db.QueryRow(
		`SELECT l.id, l.unit_id, lt.tenant_id
		 FROM leases l
		 JOIN lease_tenants lt ON lt.lease_id = l.id AND lt.is_primary = 1
		 WHERE l.unit_id = ? AND l.status = 'active'
		 ORDER BY l.created_at DESC LIMIT 1`,
		unitID,
	)
	ls, err := scanLeaseSummary(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active lease by unit: %w", err)
	}
	return ls, nil
}

// GetActiveByTenant returns the active lease the tenant holds a slot on,
// or nil if there is none.
func (s *LeaseStore) GetActiveByTenant(tenantID int64) (*model.LeaseSummary, error) {
	row := s.db.QueryRow(
		`SELECT l.id, l.unit_id, lt.tenant_id
		 FROM leases l
		 JOIN lease_tenants lt ON lt.lease_id = l.id
		 WHERE lt.tenant_id = ? AND l.status = 'active'
		 ORDER BY l.created_at DESC LIMIT 1`,
		tenantID,
	)
	ls, err := scanLeaseSummary(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active lease by tenant: %w", err)
	}
	return ls, nil
}

// Create inserts an active lease for a unit. Used by fixtures and operator
// tooling; lease lifecycle has no API surface here.
func (s *LeaseStore) Create(unitID int64) (int64, error) {
	result, err := s.db.Exec(`INSERT INTO leases (unit_id, status) VALUES (?, 'active')`, unitID)
	if err != nil {
		return 0, fmt.Errorf("insert lease: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// AddTenant attaches a tenant to a lease, optionally as the primary occupant.
func (s *LeaseStore) AddTenant(leaseID, tenantID int64, primary bool) error {
	p := 0
	if primary {
		p = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO lease_tenants (lease_id, tenant_id, is_primary) VALUES (?, ?, ?)`,
		leaseID, tenantID, p,
	)
	if err != nil {
		return fmt.Errorf("add lease tenant: %w", err)
	}
	return nil
}
