package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/vouchnet/internal/model"
	"github.com/sakif/vouchnet/internal/service"
)

// ReputationEngine is the part of *service.ReputationService the handler
// uses. Tests swap in a fake.
type ReputationEngine interface {
	CalculateReputation(ctx context.Context, developerID string) (*service.Breakdown, error)
	GetOrCalculateReputation(ctx context.Context, developerID string) (*model.ReputationScore, error)
	GetReputationHistory(ctx context.Context, developerID string) ([]model.ReputationHistory, error)
	RecalculateAll(ctx context.Context) (*service.BatchResult, error)
}

// ReputationHandler exposes the reputation engine over HTTP.
//
// ROUTES:
//
//	POST /api/reputation/calculate/{id}   → full breakdown
//	GET  /api/reputation/{id}             → latest score (calculated on first read)
//	GET  /api/reputation/{id}/history     → newest first
//	POST /api/reputation/recalculate-all  → {success, failed}, operator only
type ReputationHandler struct {
	engine ReputationEngine
	logger *slog.Logger
}

func NewReputationHandler(engine ReputationEngine, logger *slog.Logger) *ReputationHandler {
	return &ReputationHandler{engine: engine, logger: logger}
}

// HandleCalculate recomputes and persists a developer's reputation.
//
// HTTP: POST /api/reputation/calculate/{id}
func (h *ReputationHandler) HandleCalculate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	breakdown, err := h.engine.CalculateReputation(r.Context(), id)
	if err != nil {
		logIfInternal(h.logger, "calculate reputation failed", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

// HandleGet returns the latest stored score. A developer that was never
// scored gets a calculation on the spot.
//
// HTTP: GET /api/reputation/{id}
func (h *ReputationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	score, err := h.engine.GetOrCalculateReputation(r.Context(), r.PathValue("id"))
	if err != nil {
		logIfInternal(h.logger, "get reputation failed", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

// HandleHistory returns the recent score history.
//
// HTTP: GET /api/reputation/{id}/history
func (h *ReputationHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.engine.GetReputationHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		logIfInternal(h.logger, "reputation history failed", err)
		writeError(w, err)
		return
	}
	if history == nil {
		history = []model.ReputationHistory{}
	}
	writeJSON(w, http.StatusOK, history)
}

// HandleRecalculateAll runs the batch recalculation synchronously. The route
// sits behind the operator key.
//
// HTTP: POST /api/reputation/recalculate-all
func (h *ReputationHandler) HandleRecalculateAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.RecalculateAll(r.Context())
	if err != nil {
		logIfInternal(h.logger, "recalculate all failed", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
