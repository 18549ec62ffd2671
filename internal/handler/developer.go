package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/vouchnet/internal/github"
	"github.com/sakif/vouchnet/internal/model"
	"github.com/sakif/vouchnet/internal/service"
)

// Developers is the part of *service.DeveloperService the handler uses.
type Developers interface {
	List(ctx context.Context, tierFilter string, limit, offset int) ([]model.Developer, error)
	Get(ctx context.Context, id string) (*model.Developer, error)
	UpdateProfile(ctx context.Context, developerID string, in service.ProfileInput) (*model.Developer, error)
	GitHubStats(ctx context.Context, developerID string) (*github.Stats, error)
}

// ProjectLister lists a developer's portfolio.
type ProjectLister interface {
	ListByDeveloper(ctx context.Context, developerID string) ([]model.Project, error)
}

// DeveloperHandler serves developer profiles.
//
// ROUTES:
//
//	GET /api/developers?tier=&limit=&offset=
//	GET /api/developers/{id}
//	GET /api/developers/{id}/github
//	GET /api/developers/{id}/projects
//	PUT /api/developers/me            (auth)
type DeveloperHandler struct {
	developers Developers
	projects   ProjectLister
	resolver   DeveloperResolver
	logger     *slog.Logger
}

func NewDeveloperHandler(developers Developers, projects ProjectLister, resolver DeveloperResolver, logger *slog.Logger) *DeveloperHandler {
	return &DeveloperHandler{
		developers: developers,
		projects:   projects,
		resolver:   resolver,
		logger:     logger,
	}
}

// updateProfileRequest mirrors service.ProfileInput. Absent fields stay
// untouched, so every field is a pointer.
type updateProfileRequest struct {
	DisplayName *string           `json:"displayName" validate:"omitnil,max=100"`
	Bio         *string           `json:"bio" validate:"omitnil,max=2000"`
	Location    *string           `json:"location" validate:"omitnil,max=100"`
	GitHubURL   *string           `json:"githubUrl"`
	Contact     *string           `json:"contact" validate:"omitnil,max=200"`
	SocialLinks map[string]string `json:"socialLinks" validate:"omitempty,max=10"`
}

// HandleList lists developers, highest reputation first.
//
// HTTP: GET /api/developers?tier=TIER_2&limit=20&offset=0
func (h *DeveloperHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, err)
		return
	}

	devs, err := h.developers.List(r.Context(), r.URL.Query().Get("tier"), limit, offset)
	if err != nil {
		logIfInternal(h.logger, "list developers failed", err)
		writeError(w, err)
		return
	}
	if devs == nil {
		devs = []model.Developer{}
	}
	writeJSON(w, http.StatusOK, devs)
}

// HandleGet returns one developer profile.
//
// HTTP: GET /api/developers/{id}
func (h *DeveloperHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	dev, err := h.developers.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		logIfInternal(h.logger, "get developer failed", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// HandleGitHub returns live GitHub contribution stats. Upstream failures
// surface as 502 here, unlike the reputation engine which scores them as 0.
//
// HTTP: GET /api/developers/{id}/github
func (h *DeveloperHandler) HandleGitHub(w http.ResponseWriter, r *http.Request) {
	stats, err := h.developers.GitHubStats(r.Context(), r.PathValue("id"))
	if err != nil {
		if isDomainError(err) {
			writeError(w, err)
			return
		}
		h.logger.Warn("github stats unavailable", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   "upstream_error",
			Message: "GitHub is unavailable, try again later",
		})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleProjects lists a developer's projects.
//
// HTTP: GET /api/developers/{id}/projects
func (h *DeveloperHandler) HandleProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.ListByDeveloper(r.Context(), r.PathValue("id"))
	if err != nil {
		logIfInternal(h.logger, "list projects failed", err)
		writeError(w, err)
		return
	}
	if projects == nil {
		projects = []model.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

// HandleUpdateMe edits the caller's own profile. Tier and score are not
// editable.
//
// HTTP: PUT /api/developers/me
func (h *DeveloperHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	developerID, ok := callerDeveloperID(w, r, h.resolver)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, err)
		return
	}

	dev, err := h.developers.UpdateProfile(r.Context(), developerID, service.ProfileInput{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		Location:    req.Location,
		GitHubURL:   req.GitHubURL,
		Contact:     req.Contact,
		SocialLinks: req.SocialLinks,
	})
	if err != nil {
		logIfInternal(h.logger, "update profile failed", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}
