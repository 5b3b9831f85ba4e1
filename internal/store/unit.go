package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/overhill/internal/model"
)

type UnitStore struct {
	db *sql.DB
}

func NewUnitStore(db *sql.DB) *UnitStore {
	return &UnitStore{db: db}
}

func scanUnit(scanner interface{ Scan(...any) error }) (*model.Unit, error) {
	var u model.Unit
	err := scanner.Scan(&u.ID, &u.PropertyID, &u.UnitNumber, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const unitCols = `id, property_id, unit_number, created_at, updated_at`

func (s *UnitStore) Create(propertyID int64, unitNumber string) (*model.Unit, error) {
	result, err := s.db.Exec(
		`INSERT INTO units (property_id, unit_number) VALUES (?, ?)`,
		propertyID, unitNumber,
	)
	if err != nil {
		return nil, fmt.Errorf("insert unit: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UnitStore) GetByID(id int64) (*model.Unit, error) {
	row := s.db.QueryRow(`SELECT `+unitCols+` FROM units WHERE id = ?`, id)
	u, err := scanUnit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get unit: %w", err)
	}
	return u, nil
}
