package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/vouchnet/internal/model"
	"github.com/sakif/vouchnet/internal/service"
)

// Vouching is the part of *service.VouchService the handler uses.
type Vouching interface {
	CheckVouchEligibility(ctx context.Context, developerID string) (*model.VouchEligibility, error)
	CreateVouch(ctx context.Context, voucherID string, in service.CreateVouchInput) (*model.Vouch, error)
	RevokeVouch(ctx context.Context, vouchID, voucherID, reason string) (*model.Vouch, error)
	ListReceived(ctx context.Context, developerID string) (*service.ReceivedVouches, error)
	ListGiven(ctx context.Context, developerID string) ([]model.Vouch, error)
}

// VouchHandler serves the vouching endpoints. Writes act as the developer
// profile linked to the session user.
type VouchHandler struct {
	vouches  Vouching
	resolver DeveloperResolver
	logger   *slog.Logger
}

func NewVouchHandler(vouches Vouching, resolver DeveloperResolver, logger *slog.Logger) *VouchHandler {
	return &VouchHandler{vouches: vouches, resolver: resolver, logger: logger}
}

type createVouchRequest struct {
	VouchedUserID  string   `json:"vouchedUserId" validate:"required"`
	SkillsEndorsed []string `json:"skillsEndorsed" validate:"required,min=1"`
	Message        string   `json:"message" validate:"max=1000"`
}

type revokeVouchRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// HandleCreate creates a vouch from the caller to another developer.
//
// HTTP: POST /api/vouches
// REQUEST BODY: {"vouchedUserId": "...", "skillsEndorsed": ["solidity"], "message": "..."}
//
// Every protocol rule (tier, eligibility, duplicates, monthly limit) is
// enforced by the service; a failed eligibility check comes back with the
// full list of reasons.
func (h *VouchHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	voucherID, ok := callerDeveloperID(w, r, h.resolver)
	if !ok {
		return
	}

	var req createVouchRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, err)
		return
	}

	vouch, err := h.vouches.CreateVouch(r.Context(), voucherID, service.CreateVouchInput{
		VouchedUserID:  req.VouchedUserID,
		SkillsEndorsed: req.SkillsEndorsed,
		Message:        req.Message,
	})
	if err != nil {
		logIfInternal(h.logger, "create vouch failed", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, vouch)
}

// HandleEligibility reports whether a developer can receive vouches.
//
// HTTP: GET /api/vouches/eligibility/{id}
func (h *VouchHandler) HandleEligibility(w http.ResponseWriter, r *http.Request) {
	eligibility, err := h.vouches.CheckVouchEligibility(r.Context(), r.PathValue("id"))
	if err != nil {
		logIfInternal(h.logger, "eligibility check failed", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eligibility)
}

// HandleReceived lists the active vouches a developer has received.
//
// HTTP: GET /api/vouches/{id}
func (h *VouchHandler) HandleReceived(w http.ResponseWriter, r *http.Request) {
	received, err := h.vouches.ListReceived(r.Context(), r.PathValue("id"))
	if err != nil {
		logIfInternal(h.logger, "list received vouches failed", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, received)
}

// HandleGiven lists the active vouches a developer has given.
//
// HTTP: GET /api/vouches/{id}/given
func (h *VouchHandler) HandleGiven(w http.ResponseWriter, r *http.Request) {
	given, err := h.vouches.ListGiven(r.Context(), r.PathValue("id"))
	if err != nil {
		logIfInternal(h.logger, "list given vouches failed", err)
		writeError(w, err)
		return
	}
	if given == nil {
		given = []model.Vouch{}
	}
	writeJSON(w, http.StatusOK, given)
}

// HandleRevoke revokes one of the caller's vouches. The body is optional.
//
// HTTP: DELETE /api/vouches/{id}
// REQUEST BODY: {"reason": "..."}
func (h *VouchHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	voucherID, ok := callerDeveloperID(w, r, h.resolver)
	if !ok {
		return
	}

	var req revokeVouchRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, err)
		return
	}

	vouch, err := h.vouches.RevokeVouch(r.Context(), r.PathValue("id"), voucherID, req.Reason)
	if err != nil {
		logIfInternal(h.logger, "revoke vouch failed", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vouch)
}
