package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/overhill/internal/model"
)

type PropertyStore struct {
	db *sql.DB
}

func NewPropertyStore(db *sql.DB) *PropertyStore {
	return &PropertyStore{db: db}
}

func scanProperty(scanner interface{ Scan(...any) error }) (*model.Property, error) {
	var p model.Property
	err := scanner.Scan(&p.ID, &p.OwnerUserID, &p.Name, &p.Address, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const propertyCols = `id, owner_user_id, name, address, created_at, updated_at`

func (s *PropertyStore) Create(ownerUserID int64, name, address string) (*model.Property, error) {
	result, err := s.db.Exec(
		`INSERT INTO properties (owner_user_id, name, address) VALUES (?, ?, ?)`,
		ownerUserID, name, address,
	)
	if err != nil {
		return nil, fmt.Errorf("insert property: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *PropertyStore) GetByID(id int64) (*model.Property, error) {
	row := s.db.QueryRow(`SELECT `+propertyCols+` FROM properties WHERE id = ?`, id)
	p, err := scanProperty(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get property: %w", err)
	}
	return p, nil
}
