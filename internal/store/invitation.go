package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/overhill/internal/model"
)

// ErrAlreadyAccepted is returned by Consume when the conditional update
// matched no row because accepted_at was already set. Concurrent acceptance
// attempts on the same code serialize here.
var ErrAlreadyAccepted = errors.New("invitation already accepted")

type InvitationStore struct {
	db *sql.DB
}

func NewInvitationStore(db *sql.DB) *InvitationStore {
	return &InvitationStore{db: db}
}

func scanInvitation(scanner interface{ Scan(...any) error }) (*model.Invitation, error) {
	var inv model.Invitation
	var unitID, acceptedBy sql.NullInt64
	var acceptedAt sql.NullTime
	var inviterName, inviterEmail, propertyName, unitNumber sql.NullString

	err := scanner.Scan(
		&inv.ID, &inv.Code, &inv.Email, &unitID, &inv.InvitedByUserID,
		&inviterName, &inviterEmail, &inv.ExpiresAt, &acceptedAt, &acceptedBy,
		&inv.CreatedAt, &propertyName, &unitNumber,
	)
	if err != nil {
		return nil, err
	}

	if unitID.Valid {
		inv.UnitID = &unitID.Int64
	}
	if acceptedAt.Valid {
		inv.AcceptedAt = &acceptedAt.Time
	}
	if acceptedBy.Valid {
		inv.AcceptedByUserID = &acceptedBy.Int64
	}
	if inviterName.Valid && inviterName.String != "" {
		inv.InviterName = &inviterName.String
	}
	if inviterEmail.Valid && inviterEmail.String != "" {
		inv.InviterEmail = &inviterEmail.String
	}
	if propertyName.Valid {
		inv.PropertyName = &propertyName.String
	}
	if unitNumber.Valid {
		inv.UnitNumber = &unitNumber.String
	}
	return &inv, nil
}

const invitationCols = `i.id, i.code, i.email, i.unit_id, i.invited_by_user_id,
	i.inviter_name, i.inviter_email, i.expires_at, i.accepted_at, i.accepted_by_user_id,
	i.created_at, p.name, u.unit_number`

const invitationJoin = `FROM invitations i
	LEFT JOIN units u ON u.id = i.unit_id
	LEFT JOIN properties p ON p.id = u.property_id`

// GetByCode returns the invitation with denormalized property/unit display
// fields, or nil if no invitation matches the code.
func (s *InvitationStore) GetByCode(code string) (*model.Invitation, error) {
	row := s.db.QueryRow(`SELECT `+invitationCols+` `+invitationJoin+` WHERE i.code = ?`, code)
	inv, err := scanInvitation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invitation by code: %w", err)
	}
	return inv, nil
}

// CreateInvitationParams holds the fields for a new invitation row.
type CreateInvitationParams struct {
	Code            string
	Email           string
	UnitID          *int64
	InvitedByUserID int64
	InviterName     string
	InviterEmail    string
	ExpiresAt       time.Time
}

// Create inserts a new invitation. Existing invitations for the same
// recipient are left untouched; history is the audit trail.
func (s *InvitationStore) Create(p CreateInvitationParams) (*model.Invitation, error) {
	var unitID sql.NullInt64
	if p.UnitID != nil {
		unitID = sql.NullInt64{Int64: *p.UnitID, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO invitations (code, email, unit_id, invited_by_user_id, inviter_name, inviter_email, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Code, p.Email, unitID, p.InvitedByUserID, p.InviterName, p.InviterEmail, p.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert invitation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+invitationCols+` `+invitationJoin+` WHERE i.id = ?`, id)
	return scanInvitation(row)
}

// Consume marks the invitation accepted in a single conditional update.
// The accepted_at IS NULL guard makes the row the serialization point for
// concurrent acceptance: exactly one caller wins, the rest get
// ErrAlreadyAccepted.
func (s *InvitationStore) Consume(code string, userID int64) error {
	result, err := s.db.Exec(
		`UPDATE invitations SET accepted_at = datetime('now'), accepted_by_user_id = ?
		 WHERE code = ? AND accepted_at IS NULL`,
		userID, code,
	)
	if err != nil {
		return fmt.Errorf("consume invitation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAlreadyAccepted
	}
	return nil
}
