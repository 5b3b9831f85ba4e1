package invite

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/overhill/internal/model"
	"github.com/dukerupert/overhill/internal/store"
)

type TenantReader interface {
	GetByID(id int64) (*model.Tenant, error)
}

type LeaseChain interface {
	GetActiveByTenant(tenantID int64) (*model.LeaseSummary, error)
}

type UnitReader interface {
	GetByID(id int64) (*model.Unit, error)
}

type PropertyReader interface {
	GetByID(id int64) (*model.Property, error)
}

type InvitationCreator interface {
	Create(p store.CreateInvitationParams) (*model.Invitation, error)
}

// IdentityDirectory resolves identity profiles from the auth service.
type IdentityDirectory interface {
	UserProfile(ctx context.Context, userID int64) (name, email string, err error)
}

const invitationTTL = 7 * 24 * time.Hour

// Resender issues a fresh invitation for a known tenant. It shares the
// invitation data model with the validator but not the saga.
type Resender struct {
	tenants     TenantReader
	leases      LeaseChain
	units       UnitReader
	properties  PropertyReader
	identity    IdentityDirectory
	invitations InvitationCreator
	events      Emitter
	baseURL     string
	logger      *slog.Logger
}

func NewResender(
	tenants TenantReader,
	leases LeaseChain,
	units UnitReader,
	properties PropertyReader,
	identity IdentityDirectory,
	invitations InvitationCreator,
	events Emitter,
	baseURL string,
	logger *slog.Logger,
) *Resender {
	return &Resender{
		tenants:     tenants,
		leases:      leases,
		units:       units,
		properties:  properties,
		identity:    identity,
		invitations: invitations,
		events:      events,
		baseURL:     baseURL,
		logger:      logger,
	}
}

// Resend walks tenant → lease → unit → property to confirm the inviter owns
// the chain, then inserts a new invitation row with a fresh code and 7-day
// expiry and emits a notification event. Prior invitations are left as-is for
// the audit trail. Delivery is asynchronous; Resend never blocks on it.
func (r *Resender) Resend(ctx context.Context, inviterID, tenantID int64) (*Receipt, error) {
	tenant, err := r.tenants.GetByID(tenantID)
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	if tenant == nil {
		return nil, ErrNotFound
	}

	lease, err := r.leases.GetActiveByTenant(tenantID)
	if err != nil {
		return nil, fmt.Errorf("get lease: %w", err)
	}
	if lease == nil {
		return nil, ErrNotFound
	}

	unit, err := r.units.GetByID(lease.UnitID)
	if err != nil {
		return nil, fmt.Errorf("get unit: %w", err)
	}
	if unit == nil {
		return nil, ErrNotFound
	}

	property, err := r.properties.GetByID(unit.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("get property: %w", err)
	}
	if property == nil {
		return nil, ErrNotFound
	}
	if property.OwnerUserID != inviterID {
		return nil, ErrForbidden
	}

	// No destination without a linked identity; this is a hard failure.
	if tenant.UserID == nil {
		return nil, fmt.Errorf("resend invitation: tenant %d has no linked account", tenantID)
	}
	_, recipient, err := r.identity.UserProfile(ctx, *tenant.UserID)
	if err != nil {
		return nil, fmt.Errorf("resolve recipient email: %w", err)
	}
	if recipient == "" {
		return nil, fmt.Errorf("resend invitation: no email for user %d", *tenant.UserID)
	}

	// Snapshot the inviter for the invitation's display fields; tolerable if
	// the lookup fails, the email still goes out.
	inviterName, inviterEmail, err := r.identity.UserProfile(ctx, inviterID)
	if err != nil {
		r.logger.Warn("inviter profile lookup", "user_id", inviterID, "error", err)
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}

	inv, err := r.invitations.Create(store.CreateInvitationParams{
		Code:            code,
		Email:           recipient,
		UnitID:          &lease.UnitID,
		InvitedByUserID: inviterID,
		InviterName:     inviterName,
		InviterEmail:    inviterEmail,
		ExpiresAt:       time.Now().UTC().Add(invitationTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}

	r.events.Emit(EventResent, map[string]any{
		"email":         recipient,
		"code":          inv.Code,
		"url":           fmt.Sprintf("%s/invite?code=%s", r.baseURL, inv.Code),
		"expires_at":    inv.ExpiresAt.Format(time.RFC3339),
		"property_name": property.Name,
	})

	return &Receipt{Sent: true, Recipient: recipient}, nil
}

// generateCode returns a 64-char hex code. Invitation codes are bearer
// credentials, so they come from crypto/rand, never a seeded PRNG.
func generateCode() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
