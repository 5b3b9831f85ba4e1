package model

// LeaseSummary is the slice of a lease the acceptance flow needs: the lease
// itself and its primary-tenant slot.
type LeaseSummary struct {
	LeaseID         int64 `json:"lease_id"`
	UnitID          int64 `json:"unit_id"`
	PrimaryTenantID int64 `json:"primary_tenant_id"`
}
