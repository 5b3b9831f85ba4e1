package model

import "time"

// Tenant is an occupant profile, independent of any login identity.
// UserID stays nil until an account claims the seat through invitation
// acceptance.
type Tenant struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"user_id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
