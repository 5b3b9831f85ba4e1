// Package invite implements the tenant invitation flow: token validation,
// the acceptance saga, and resending invitations. Collaborators (stores, the
// identity gateway, the event bus) are passed in behind small interfaces so
// every path is testable with substitutes.
package invite

import (
	"errors"

	"github.com/dukerupert/overhill/internal/model"
)

// Role assigned to an identity when it redeems an invitation.
const RoleTenant = "tenant"

// Event names emitted on the bus.
const (
	EventAccepted = "invitation.accepted"
	EventResent   = "invitation.resent"
)

// Reason classifies why a token failed validation. Invalid, expired and used
// all present the same way to end users; the distinction exists for logs and
// for callers that branch on the taxonomy.
type Reason string

const (
	ReasonTokenRequired Reason = "token_required"
	ReasonInvalid       Reason = "invalid_or_expired"
	ReasonExpired       Reason = "expired"
	ReasonAlreadyUsed   Reason = "already_used"
	// ReasonLookupFailed marks an infrastructure fault during lookup. It is
	// reported to the caller like an invalid token so code probing can't
	// distinguish the two, but logged distinctly.
	ReasonLookupFailed Reason = "validation_failed"
)

// Validation is the client-facing result of validating a token. Display
// fields are omitted entirely when their source relation is absent.
type Validation struct {
	Valid        bool   `json:"valid"`
	Error        string `json:"error,omitempty"`
	Email        string `json:"email,omitempty"`
	UnitID       *int64 `json:"unit_id,omitempty"`
	InviterName  string `json:"inviter_name,omitempty"`
	InviterEmail string `json:"inviter_email,omitempty"`
	PropertyName string `json:"property_name,omitempty"`
	UnitNumber   string `json:"unit_number,omitempty"`

	// Internal carry-through for the saga, not part of the payload.
	Reason    Reason `json:"-"`
	Code      string `json:"-"`
	InvitedBy int64  `json:"-"`
}

// FailureKind classifies terminal saga failures.
type FailureKind string

const (
	// FailInvalidToken: validation rejected the code. Not retryable with the
	// same code.
	FailInvalidToken FailureKind = "invalid_token"
	// FailConflict: a concurrent acceptance won the consume race.
	FailConflict FailureKind = "conflict"
	// FailConsume: infrastructure fault before any side effect. Safe to retry.
	FailConsume FailureKind = "consume_failed"
	// FailResolution: the unit-linked bind failed after the invitation was
	// consumed. Retryable, but leaves a consumed-invitation/unclaimed-tenant
	// window that is reconciled out of band.
	FailResolution FailureKind = "resolution_failed"
)

type Failure struct {
	Kind      FailureKind
	Reason    Reason
	Message   string
	Retryable bool
}

// Outcome is the saga's unified result. Failure is nil on every success path,
// including degraded successes where the invitation was consumed but a
// secondary step fell over; those carry Warnings and possibly no Tenant.
type Outcome struct {
	Accepted      bool          `json:"accepted"`
	Tenant        *model.Tenant `json:"tenant,omitempty"`
	EmailVerified bool          `json:"email_verified"`
	Message       string        `json:"message,omitempty"`
	Warnings      []string      `json:"warnings,omitempty"`

	Failure *Failure `json:"-"`
}

// Receipt is the result of a successful resend.
type Receipt struct {
	Sent      bool   `json:"sent"`
	Recipient string `json:"recipient"`
}

var (
	// ErrNotFound: a link in the tenant→lease→unit→property chain is missing.
	ErrNotFound = errors.New("not found")
	// ErrForbidden: the requesting inviter does not own the property chain.
	ErrForbidden = errors.New("forbidden")
)
