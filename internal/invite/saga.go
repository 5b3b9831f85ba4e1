package invite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.uber.org/multierr"

	"github.com/dukerupert/overhill/internal/model"
	"github.com/dukerupert/overhill/internal/store"
)

// InvitationConsumer marks invitations accepted. Consume must be an atomic
// conditional write; see store.InvitationStore.
type InvitationConsumer interface {
	Consume(code string, userID int64) error
}

// TenantDirectory is the tenant side of the tenancy store.
type TenantDirectory interface {
	GetByUserID(userID int64) (*model.Tenant, error)
	Create(userID *int64, fullName, email string) (*model.Tenant, error)
	BindUser(tenantID, userID int64) (*model.Tenant, error)
}

// LeaseDirectory resolves the active lease and primary-tenant slot for a unit.
type LeaseDirectory interface {
	GetActiveByUnit(unitID int64) (*model.LeaseSummary, error)
}

// IdentityGateway updates identity records in the auth service.
type IdentityGateway interface {
	SetRoleAndVerified(ctx context.Context, userID int64, role string, verified bool) error
}

// Emitter is the fire-and-forget notification hook.
type Emitter interface {
	Emit(name string, payload map[string]any)
}

const degradedMessage = "Invitation accepted, but your tenant profile could not be set up automatically."

// Saga orchestrates invitation acceptance: validate, consume, elevate+verify,
// resolve tenant. Steps run sequentially; consumption comes before any tenant
// resolution so a token can never be redeemed twice even when later steps
// fail. Role elevation and email verification are best-effort and accumulate
// into warnings instead of aborting.
type Saga struct {
	validator   *Validator
	invitations InvitationConsumer
	tenants     TenantDirectory
	leases      LeaseDirectory
	identity    IdentityGateway
	events      Emitter
	logger      *slog.Logger
}

func NewSaga(
	validator *Validator,
	invitations InvitationConsumer,
	tenants TenantDirectory,
	leases LeaseDirectory,
	identity IdentityGateway,
	events Emitter,
	logger *slog.Logger,
) *Saga {
	return &Saga{
		validator:   validator,
		invitations: invitations,
		tenants:     tenants,
		leases:      leases,
		identity:    identity,
		events:      events,
		logger:      logger,
	}
}

// Accept redeems a code for the given identity. Every path returns a typed
// Outcome; nothing escapes the saga boundary as a transport error.
func (s *Saga) Accept(ctx context.Context, code string, userID int64) Outcome {
	v := s.validator.Validate(code)
	if !v.Valid {
		return Outcome{Failure: &Failure{Kind: FailInvalidToken, Reason: v.Reason, Message: v.Error}}
	}

	// Consume first: the single-use guarantee is the strongest contract and
	// must hold even if everything after this point fails.
	if err := s.invitations.Consume(v.Code, userID); err != nil {
		if errors.Is(err, store.ErrAlreadyAccepted) {
			return Outcome{Failure: &Failure{Kind: FailConflict, Reason: ReasonAlreadyUsed, Message: "Token has already been used"}}
		}
		s.logger.Error("consume invitation", "user_id", userID, "error", err)
		return Outcome{Failure: &Failure{
			Kind:      FailConsume,
			Message:   "Could not accept the invitation, please try again",
			Retryable: true,
		}}
	}

	out := Outcome{Accepted: true, EmailVerified: true}
	var nonFatal error

	// Redeeming a secret delivered to the invited address proves ownership of
	// it, so the account is verified here without a second round trip.
	if err := s.identity.SetRoleAndVerified(ctx, userID, RoleTenant, true); err != nil {
		out.EmailVerified = false
		out.Warnings = append(out.Warnings, "account role and email verification could not be updated")
		nonFatal = multierr.Append(nonFatal, fmt.Errorf("set role and verified: %w", err))
	}

	if v.UnitID == nil {
		s.resolvePlatform(&out, &nonFatal, v, userID)
	} else {
		if f := s.resolveUnit(&out, &nonFatal, v, userID); f != nil {
			out.Failure = f
			return out
		}
	}

	payload := map[string]any{
		"user_id":        userID,
		"notify_user_id": v.InvitedBy,
		"email_verified": out.EmailVerified,
	}
	if out.Tenant != nil {
		payload["tenant_id"] = out.Tenant.ID
	}
	if v.UnitID != nil {
		payload["unit_id"] = *v.UnitID
	}
	if v.PropertyName != "" {
		payload["property_name"] = v.PropertyName
	}
	s.events.Emit(EventAccepted, payload)

	if nonFatal != nil {
		s.logger.Warn("invitation accepted with warnings", "user_id", userID, "errors", nonFatal)
	}
	return out
}

// resolvePlatform finds or creates a standalone tenant profile. The
// invitation is already consumed, so failures degrade rather than abort.
func (s *Saga) resolvePlatform(out *Outcome, nonFatal *error, v Validation, userID int64) {
	existing, err := s.tenants.GetByUserID(userID)
	if err != nil {
		s.degrade(out, nonFatal, fmt.Errorf("find tenant by user: %w", err))
		return
	}
	if existing != nil {
		out.Tenant = existing
		return
	}

	created, err := s.tenants.Create(&userID, "", v.Email)
	if err != nil {
		s.degrade(out, nonFatal, fmt.Errorf("create tenant: %w", err))
		return
	}
	out.Tenant = created
}

// resolveUnit claims the pre-provisioned primary-tenant seat on the unit's
// active lease. A missing lease or slot falls back to a standalone profile;
// only a failed bind is surfaced as a retryable failure.
func (s *Saga) resolveUnit(out *Outcome, nonFatal *error, v Validation, userID int64) *Failure {
	summary, err := s.leases.GetActiveByUnit(*v.UnitID)
	if err != nil {
		*nonFatal = multierr.Append(*nonFatal, fmt.Errorf("find lease by unit: %w", err))
		summary = nil
	}

	if summary == nil {
		created, err := s.tenants.Create(&userID, "", v.Email)
		if err != nil {
			s.degrade(out, nonFatal, fmt.Errorf("create fallback tenant: %w", err))
			return nil
		}
		out.Tenant = created
		return nil
	}

	bound, err := s.tenants.BindUser(summary.PrimaryTenantID, userID)
	if err != nil {
		// The invitation is already consumed; this leaves a spent code with
		// an unclaimed seat until retried or reconciled by an operator.
		s.logger.Error("bind tenant after consume",
			"tenant_id", summary.PrimaryTenantID, "user_id", userID, "error", err)
		return &Failure{
			Kind:      FailResolution,
			Message:   "Invitation was accepted but the tenancy could not be linked, please try again",
			Retryable: !errors.Is(err, store.ErrTenantClaimed),
		}
	}
	out.Tenant = bound
	return nil
}

func (s *Saga) degrade(out *Outcome, nonFatal *error, err error) {
	*nonFatal = multierr.Append(*nonFatal, err)
	out.Tenant = nil
	out.Message = degradedMessage
	out.Warnings = append(out.Warnings, "tenant profile needs manual follow-up")
}
