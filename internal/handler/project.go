package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/vouchnet/internal/model"
	"github.com/sakif/vouchnet/internal/service"
)

// Projects is the part of *service.ProjectService the handler uses.
type Projects interface {
	Create(ctx context.Context, developerID string, in service.ProjectInput) (*model.Project, error)
	Update(ctx context.Context, developerID, id string, in service.ProjectInput) (*model.Project, error)
	Delete(ctx context.Context, developerID, id string) error
	Sync(ctx context.Context, developerID, id string) (*model.Project, error)
}

// ProjectHandler manages the caller's portfolio. All routes need a session
// and the service rejects callers that do not own the project.
type ProjectHandler struct {
	projects Projects
	resolver DeveloperResolver
	logger   *slog.Logger
}

func NewProjectHandler(projects Projects, resolver DeveloperResolver, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, resolver: resolver, logger: logger}
}

type projectRequest struct {
	Title           string   `json:"title" validate:"required,max=100"`
	Description     string   `json:"description" validate:"max=5000"`
	Technologies    []string `json:"technologies" validate:"max=30"`
	LivePlatformURL string   `json:"livePlatformUrl"`
	RepositoryURL   string   `json:"repositoryUrl"`
}

func (req projectRequest) input() service.ProjectInput {
	return service.ProjectInput{
		Title:           req.Title,
		Description:     req.Description,
		Technologies:    req.Technologies,
		LivePlatformURL: req.LivePlatformURL,
		RepositoryURL:   req.RepositoryURL,
	}
}

// HandleCreate adds a project to the caller's portfolio.
//
// HTTP: POST /api/projects
func (h *ProjectHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	developerID, ok := callerDeveloperID(w, r, h.resolver)
	if !ok {
		return
	}

	var req projectRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.projects.Create(r.Context(), developerID, req.input())
	if err != nil {
		logIfInternal(h.logger, "create project failed", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// HandleUpdate replaces a project's editable fields.
//
// HTTP: PUT /api/projects/{id}
func (h *ProjectHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	developerID, ok := callerDeveloperID(w, r, h.resolver)
	if !ok {
		return
	}

	var req projectRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.projects.Update(r.Context(), developerID, r.PathValue("id"), req.input())
	if err != nil {
		logIfInternal(h.logger, "update project failed", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleDelete removes a project.
//
// HTTP: DELETE /api/projects/{id}
func (h *ProjectHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	developerID, ok := callerDeveloperID(w, r, h.resolver)
	if !ok {
		return
	}

	if err := h.projects.Delete(r.Context(), developerID, r.PathValue("id")); err != nil {
		logIfInternal(h.logger, "delete project failed", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSync refreshes star and fork counts from GitHub.
//
// HTTP: POST /api/projects/{id}/sync
func (h *ProjectHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	developerID, ok := callerDeveloperID(w, r, h.resolver)
	if !ok {
		return
	}

	p, err := h.projects.Sync(r.Context(), developerID, r.PathValue("id"))
	if err != nil {
		logIfInternal(h.logger, "sync project failed", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
