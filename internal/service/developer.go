package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/vouchnet/internal/apperror"
	"github.com/sakif/vouchnet/internal/github"
	"github.com/sakif/vouchnet/internal/model"
	"github.com/sakif/vouchnet/internal/repository"
	"github.com/sakif/vouchnet/internal/tier"
)

// Profile field limits.
const (
	MaxDisplayNameLength = 100
	MaxBioLength         = 2000
	MaxLocationLength    = 100
	MaxContactLength     = 200
	MaxSocialLinks       = 10
)

// ProfileInput is the editable part of a developer profile. Nil fields are
// left unchanged; an empty string clears the field.
type ProfileInput struct {
	DisplayName *string
	Bio         *string
	Location    *string
	GitHubURL   *string
	Contact     *string
	SocialLinks map[string]string
}

// DeveloperService serves the developer read paths and profile edits.
// Tier and score are never written here; only the reputation engine does.
type DeveloperService struct {
	store  repository.Store
	source ContributionSource
	logger *slog.Logger
}

func NewDeveloperService(store repository.Store, source ContributionSource, logger *slog.Logger) *DeveloperService {
	return &DeveloperService{store: store, source: source, logger: logger}
}

// List returns developers, highest reputation first, optionally limited to
// one tier.
func (s *DeveloperService) List(ctx context.Context, tierFilter string, limit, offset int) ([]model.Developer, error) {
	filter := model.DeveloperFilter{Limit: limit, Offset: offset}
	if tierFilter != "" {
		t := tier.Tier(strings.ToUpper(strings.TrimSpace(tierFilter)))
		if !t.Valid() {
			return nil, apperror.ValidationFailed("tier",
				fmt.Sprintf("unknown tier %q, expected one of TIER_1..TIER_4", tierFilter))
		}
		filter.Tier = t
	}

	devs, err := s.store.ListDevelopers(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list developers", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing developers: %w", err)
	}
	return devs, nil
}

func (s *DeveloperService) Get(ctx context.Context, id string) (*model.Developer, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "developer ID is required")
	}
	return s.store.GetDeveloperByID(ctx, id)
}

// UpdateProfile applies in to the developer's profile.
func (s *DeveloperService) UpdateProfile(ctx context.Context, developerID string, in ProfileInput) (*model.Developer, error) {
	dev, err := s.store.GetDeveloperByID(ctx, developerID)
	if err != nil {
		return nil, err
	}

	fields := []struct {
		name  string
		in    *string
		dst   *string
		limit int
	}{
		{"displayName", in.DisplayName, &dev.DisplayName, MaxDisplayNameLength},
		{"bio", in.Bio, &dev.Bio, MaxBioLength},
		{"location", in.Location, &dev.Location, MaxLocationLength},
		{"contact", in.Contact, &dev.Contact, MaxContactLength},
	}
	for _, f := range fields {
		if f.in == nil {
			continue
		}
		v := strings.TrimSpace(*f.in)
		if utf8.RuneCountInString(v) > f.limit {
			return nil, apperror.ValidationFailed(f.name,
				fmt.Sprintf("%s must be %d characters or less", f.name, f.limit))
		}
		*f.dst = v
	}

	if in.GitHubURL != nil {
		link := strings.TrimSpace(*in.GitHubURL)
		if link != "" {
			if _, ok := github.UsernameFromURL(link); !ok {
				return nil, apperror.ValidationFailed("githubUrl", "githubUrl must be a github.com profile URL")
			}
		}
		dev.GitHubURL = link
	}

	if in.SocialLinks != nil {
		links, err := normalizeSocialLinks(in.SocialLinks)
		if err != nil {
			return nil, err
		}
		dev.SocialLinks = links
	}

	if err := s.store.UpdateDeveloperProfile(ctx, dev); err != nil {
		s.logger.Error("failed to update developer profile",
			slog.String("developerID", developerID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating developer profile: %w", err)
	}

	s.logger.Info("developer profile updated", slog.String("developerID", dev.ID))
	return dev, nil
}

func normalizeSocialLinks(in map[string]string) (map[string]string, error) {
	if len(in) > MaxSocialLinks {
		return nil, apperror.ValidationFailed("socialLinks",
			fmt.Sprintf("at most %d social links are allowed", MaxSocialLinks))
	}
	out := make(map[string]string, len(in))
	for name, link := range in {
		name = strings.ToLower(strings.TrimSpace(name))
		link = strings.TrimSpace(link)
		if name == "" || link == "" {
			continue
		}
		if !isHTTPURL(link) {
			return nil, apperror.ValidationFailed("socialLinks",
				fmt.Sprintf("social link %q must be an http(s) URL", name))
		}
		out[name] = link
	}
	return out, nil
}

// GitHubStats returns the contribution data the reputation engine would
// use for this developer. Unlike the engine, failures are reported.
func (s *DeveloperService) GitHubStats(ctx context.Context, developerID string) (*github.Stats, error) {
	dev, err := s.store.GetDeveloperByID(ctx, developerID)
	if err != nil {
		return nil, err
	}
	username, ok := github.UsernameFromURL(dev.GitHubURL)
	if !ok {
		return nil, apperror.BadRequest("developer has no GitHub profile linked")
	}
	if s.source == nil {
		return nil, apperror.BadRequest("GitHub integration is not configured")
	}

	stats, err := s.source.UserStats(ctx, username)
	if err != nil {
		s.logger.Warn("github stats lookup failed",
			slog.String("developerID", dev.ID),
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("fetching github stats for %s: %w", username, err)
	}
	return stats, nil
}
