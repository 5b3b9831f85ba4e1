package model

import "time"

// Invitation is a single-use, time-bounded offer identified by an opaque code.
// UnitID is nil for platform-only invitations. Once AcceptedAt is set the
// invitation is permanently consumed; rows are never deleted, a resend inserts
// a fresh row instead.
//
// Inviter name/email are snapshotted at creation time (identities live in the
// auth service, there is nothing local to join against). Property name and
// unit number come from LEFT JOINs and are nil for platform-only invitations.
type Invitation struct {
	ID               int64      `json:"id"`
	Code             string     `json:"code"`
	Email            string     `json:"email"`
	UnitID           *int64     `json:"unit_id"`
	InvitedByUserID  int64      `json:"invited_by_user_id"`
	InviterName      *string    `json:"inviter_name,omitempty"`
	InviterEmail     *string    `json:"inviter_email,omitempty"`
	PropertyName     *string    `json:"property_name,omitempty"`
	UnitNumber       *string    `json:"unit_number,omitempty"`
	ExpiresAt        time.Time  `json:"expires_at"`
	AcceptedAt       *time.Time `json:"accepted_at"`
	AcceptedByUserID *int64     `json:"accepted_by_user_id"`
	CreatedAt        time.Time  `json:"created_at"`
}
