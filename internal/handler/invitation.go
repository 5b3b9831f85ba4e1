package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/overhill/internal/auth"
	"github.com/dukerupert/overhill/internal/invite"
)

type InvitationHandler struct {
	validator *invite.Validator
	saga      *invite.Saga
	resender  *invite.Resender
	logger    *slog.Logger
}

func NewInvitationHandler(v *invite.Validator, s *invite.Saga, r *invite.Resender, logger *slog.Logger) *InvitationHandler {
	return &InvitationHandler{validator: v, saga: s, resender: r, logger: logger}
}

type validateRequest struct {
	Token string `json:"token"`
}

// Validate handles POST /api/invitations/validate. Valid and invalid tokens
// both return 200; the verdict lives in the body so the endpoint leaks
// nothing through status codes.
func (h *InvitationHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	writeJSON(w, http.StatusOK, h.validator.Validate(req.Token))
}

type acceptRequest struct {
	Token string `json:"token"`
}

type acceptError struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Accept handles POST /api/invitations/accept.
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req acceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	out := h.saga.Accept(r.Context(), req.Token, userID)
	if out.Failure == nil {
		writeJSON(w, http.StatusOK, out)
		return
	}

	f := out.Failure
	switch f.Kind {
	case invite.FailInvalidToken:
		writeJSON(w, http.StatusBadRequest, acceptError{Error: f.Message})
	case invite.FailConflict:
		writeJSON(w, http.StatusConflict, acceptError{Error: f.Message})
	default:
		writeJSON(w, http.StatusInternalServerError, acceptError{Error: f.Message, Retryable: f.Retryable})
	}
}

// Resend handles POST /api/tenants/{id}/invitation/resend.
func (h *InvitationHandler) Resend(w http.ResponseWriter, r *http.Request) {
	inviterID := auth.UserID(r.Context())

	tenantID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	receipt, err := h.resender.Resend(r.Context(), inviterID, tenantID)
	if err != nil {
		switch {
		case errors.Is(err, invite.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "tenant not found"})
		case errors.Is(err, invite.ErrForbidden):
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "you do not manage this tenant"})
		default:
			h.logger.Error("resend invitation", "tenant_id", tenantID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to resend invitation"})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Invitation sent to " + receipt.Recipient,
	})
}
