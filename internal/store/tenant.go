package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/overhill/internal/model"
)

// ErrTenantClaimed is returned by BindUser when the tenant's seat is already
// bound to a different identity. A tenant's user_id, once set, is never
// overwritten.
var ErrTenantClaimed = errors.New("tenant already claimed by another user")

type TenantStore struct {
	db *sql.DB
}

func NewTenantStore(db *sql.DB) *TenantStore {
	return &TenantStore{db: db}
}

func scanTenant(scanner interface{ Scan(...any) error }) (*model.Tenant, error) {
	var t model.Tenant
	var userID sql.NullInt64

	err := scanner.Scan(&t.ID, &userID, &t.FullName, &t.Email, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		t.UserID = &userID.Int64
	}
	return &t, nil
}

const tenantCols = `id, user_id, full_name, email, created_at, updated_at`

func (s *TenantStore) Create(userID *int64, fullName, email string) (*model.Tenant, error) {
	var uid sql.NullInt64
	if userID != nil {
		uid = sql.NullInt64{Int64: *userID, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO tenants (user_id, full_name, email) VALUES (?, ?, ?)`,
		uid, fullName, email,
	)
	if err != nil {
		return nil, fmt.Errorf("insert tenant: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *TenantStore) GetByID(id int64) (*model.Tenant, error) {
	row := s.db.QueryRow(`SELECT `+tenantCols+` FROM tenants WHERE id = ?`, id)
	t, err := scanTenant(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return t, nil
}

func (s *TenantStore) GetByUserID(userID int64) (*model.Tenant, error) {
	row := s.db.QueryRow(`SELECT `+tenantCols+` FROM tenants WHERE user_id = ?`, userID)
	t, err := scanTenant(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant by user: %w", err)
	}
	return t, nil
}

// BindUser links a pre-provisioned tenant seat to an identity. The update is
// conditional so a seat claimed by one identity can never be rebound to
// another; binding the same identity again is a no-op success.
func (s *TenantStore) BindUser(tenantID, userID int64) (*model.Tenant, error) {
	result, err := s.db.Exec(
		`UPDATE tenants SET user_id = ?, updated_at = datetime('now')
		 WHERE id = ? AND (user_id IS NULL OR user_id = ?)`,
		userID, tenantID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("bind tenant to user: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		existing, err := s.GetByID(tenantID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("bind tenant to user: tenant %d not found", tenantID)
		}
		return nil, ErrTenantClaimed
	}
	return s.GetByID(tenantID)
}
