package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/sakif/vouchnet/internal/apperror"
	"github.com/sakif/vouchnet/internal/github"
	"github.com/sakif/vouchnet/internal/model"
	"github.com/sakif/vouchnet/internal/repository"
)

// Project field limits.
const (
	MaxProjectTitleLength       = 100
	MaxProjectDescriptionLength = 5000
	MaxTechnologies             = 30
	MaxTechnologyLength         = 50
)

// RepositorySource looks up a single repository's counters.
// *github.Client satisfies it.
type RepositorySource interface {
	Repository(ctx context.Context, owner, name string) (*github.Repository, error)
}

// ProjectInput carries the owner-editable project fields. Verification and
// the GitHub counters are not part of it: the counters come from Sync and
// verification happens outside the API.
type ProjectInput struct {
	Title           string
	Description     string
	Technologies    []string
	LivePlatformURL string
	RepositoryURL   string
}

// ProjectService manages a developer's portfolio. Only the owning developer
// may change a project.
type ProjectService struct {
	store  repository.Store
	repos  RepositorySource
	logger *slog.Logger
}

func NewProjectService(store repository.Store, repos RepositorySource, logger *slog.Logger) *ProjectService {
	return &ProjectService{store: store, repos: repos, logger: logger}
}

// Create validates and saves a new project owned by developerID.
func (s *ProjectService) Create(ctx context.Context, developerID string, in ProjectInput) (*model.Project, error) {
	if _, err := s.store.GetDeveloperByID(ctx, developerID); err != nil {
		return nil, err
	}

	p := &model.Project{DeveloperID: developerID}
	if err := applyProjectInput(p, in); err != nil {
		return nil, err
	}

	if err := s.store.CreateProject(ctx, p); err != nil {
		s.logger.Error("failed to create project",
			slog.String("developerID", developerID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating project: %w", err)
	}

	s.logger.Info("project created",
		slog.String("id", p.ID),
		slog.String("developerID", developerID),
	)
	return p, nil
}

func (s *ProjectService) Get(ctx context.Context, id string) (*model.Project, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "project ID is required")
	}
	return s.store.GetProjectByID(ctx, id)
}

// ListByDeveloper returns the developer's projects, newest first.
func (s *ProjectService) ListByDeveloper(ctx context.Context, developerID string) ([]model.Project, error) {
	if _, err := s.store.GetDeveloperByID(ctx, developerID); err != nil {
		return nil, err
	}
	projects, err := s.store.ListProjectsByDeveloper(ctx, developerID)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return projects, nil
}

// Update replaces the editable fields of a project the caller owns.
func (s *ProjectService) Update(ctx context.Context, developerID, id string, in ProjectInput) (*model.Project, error) {
	p, err := s.owned(ctx, developerID, id)
	if err != nil {
		return nil, err
	}
	if err := applyProjectInput(p, in); err != nil {
		return nil, err
	}

	if err := s.store.UpdateProject(ctx, p); err != nil {
		s.logger.Error("failed to update project",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating project: %w", err)
	}

	s.logger.Info("project updated", slog.String("id", p.ID))
	return p, nil
}

// Delete removes a project the caller owns.
func (s *ProjectService) Delete(ctx context.Context, developerID, id string) error {
	if _, err := s.owned(ctx, developerID, id); err != nil {
		return err
	}
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return err
	}

	s.logger.Info("project deleted", slog.String("id", id))
	return nil
}

// Sync refreshes githubStars and githubForks from the project's repository.
func (s *ProjectService) Sync(ctx context.Context, developerID, id string) (*model.Project, error) {
	p, err := s.owned(ctx, developerID, id)
	if err != nil {
		return nil, err
	}

	owner, name, ok := github.ParseRepositoryURL(p.RepositoryURL)
	if !ok {
		return nil, apperror.BadRequest("project has no GitHub repository URL to sync from")
	}
	if s.repos == nil {
		return nil, apperror.BadRequest("GitHub integration is not configured")
	}

	repo, err := s.repos.Repository(ctx, owner, name)
	if err != nil {
		s.logger.Warn("project sync failed",
			slog.String("id", p.ID),
			slog.String("repository", owner+"/"+name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("fetching repository %s/%s: %w", owner, name, err)
	}

	p.GitHubStars = repo.Stars
	p.GitHubForks = repo.Forks
	if err := s.store.UpdateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("saving synced project: %w", err)
	}

	s.logger.Info("project synced",
		slog.String("id", p.ID),
		slog.Int("stars", p.GitHubStars),
		slog.Int("forks", p.GitHubForks),
	)
	return p, nil
}

// owned loads a project and checks developerID owns it.
func (s *ProjectService) owned(ctx context.Context, developerID, id string) (*model.Project, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.DeveloperID != developerID {
		return nil, apperror.Forbidden("only the owner can modify this project")
	}
	return p, nil
}

func applyProjectInput(p *model.Project, in ProjectInput) error {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return apperror.ValidationFailed("title", "project title is required")
	}
	if utf8.RuneCountInString(title) > MaxProjectTitleLength {
		return apperror.ValidationFailed("title",
			fmt.Sprintf("project title must be %d characters or less", MaxProjectTitleLength))
	}
	description := strings.TrimSpace(in.Description)
	if utf8.RuneCountInString(description) > MaxProjectDescriptionLength {
		return apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxProjectDescriptionLength))
	}

	techs, err := normalizeTechnologies(in.Technologies)
	if err != nil {
		return err
	}

	live := strings.TrimSpace(in.LivePlatformURL)
	if live != "" && !isHTTPURL(live) {
		return apperror.ValidationFailed("livePlatformUrl", "livePlatformUrl must be an http(s) URL")
	}
	repoURL := strings.TrimSpace(in.RepositoryURL)
	if repoURL != "" && !isHTTPURL(repoURL) {
		return apperror.ValidationFailed("repositoryUrl", "repositoryUrl must be an http(s) URL")
	}

	p.Title = title
	p.Description = description
	p.Technologies = techs
	p.LivePlatformURL = live
	p.RepositoryURL = repoURL
	return nil
}

// normalizeTechnologies trims and de-duplicates case-insensitively, keeping
// the first spelling seen.
func normalizeTechnologies(in []string) ([]string, error) {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, tech := range in {
		tech = strings.TrimSpace(tech)
		if tech == "" {
			continue
		}
		if utf8.RuneCountInString(tech) > MaxTechnologyLength {
			return nil, apperror.ValidationFailed("technologies",
				fmt.Sprintf("each technology must be %d characters or less", MaxTechnologyLength))
		}
		key := strings.ToLower(tech)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tech)
	}
	if len(out) > MaxTechnologies {
		return nil, apperror.ValidationFailed("technologies",
			fmt.Sprintf("at most %d technologies are allowed", MaxTechnologies))
	}
	return out, nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
