package invite

import (
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/overhill/internal/model"
)

// InvitationReader is the read side of the invitation store.
type InvitationReader interface {
	GetByCode(code string) (*model.Invitation, error)
}

// Validator classifies invitation codes. It performs at most one lookup and
// has no side effects; safe to call repeatedly and concurrently.
type Validator struct {
	invitations InvitationReader
	logger      *slog.Logger
}

func NewValidator(invitations InvitationReader, logger *slog.Logger) *Validator {
	return &Validator{invitations: invitations, logger: logger}
}

// Validate checks a code and returns a normalized descriptor. A missing row
// and a storage fault both read as "invalid or expired" to the caller so the
// endpoint can't be used as an oracle for which codes exist.
func (v *Validator) Validate(code string) Validation {
	code = strings.TrimSpace(code)
	if code == "" {
		return Validation{Reason: ReasonTokenRequired, Error: "Token is required"}
	}

	inv, err := v.invitations.GetByCode(code)
	if err != nil {
		v.logger.Error("invitation lookup", "error", err)
		return Validation{Reason: ReasonLookupFailed, Error: "Invalid or expired token"}
	}
	if inv == nil {
		return Validation{Reason: ReasonInvalid, Error: "Invalid or expired token"}
	}

	// Order matters: an expired invitation reads as expired even if it was
	// also accepted at some point.
	if !inv.ExpiresAt.After(time.Now().UTC()) {
		return Validation{Reason: ReasonExpired, Error: "Token has expired"}
	}
	if inv.AcceptedAt != nil {
		return Validation{Reason: ReasonAlreadyUsed, Error: "Token has already been used"}
	}

	out := Validation{
		Valid:     true,
		Email:     inv.Email,
		UnitID:    inv.UnitID,
		Code:      code,
		InvitedBy: inv.InvitedByUserID,
	}
	if inv.InviterName != nil {
		out.InviterName = *inv.InviterName
	}
	if inv.InviterEmail != nil {
		out.InviterEmail = *inv.InviterEmail
	}
	if inv.PropertyName != nil {
		out.PropertyName = *inv.PropertyName
	}
	if inv.UnitNumber != nil {
		out.UnitNumber = *inv.UnitNumber
	}
	return out
}
