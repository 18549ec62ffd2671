package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/vouchnet/internal/apperror"
	"github.com/sakif/vouchnet/internal/auth"
	"github.com/sakif/vouchnet/internal/model"
	"github.com/sakif/vouchnet/internal/repository"
)

// AuthService turns a GitHub login into a session.
//
//	AuthHandler (HTTP) → AuthService → Store (users, developers)
//	                               ↘ TokenService (JWT)
//
// Every User owns exactly one Developer profile. It is created on the first
// login, prefilled from the GitHub profile, and left alone afterwards so
// profile edits are never overwritten by a later login.
type AuthService struct {
	store  repository.Store
	tokens *auth.TokenService
	logger *slog.Logger
}

func NewAuthService(store repository.Store, tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{
		store:  store,
		tokens: tokens,
		logger: logger,
	}
}

// AuthResult bundles what the callback handler needs to set the cookie.
type AuthResult struct {
	User      *model.User
	Developer *model.Developer
	Token     string
	// NewDeveloper is true when this login created the developer profile.
	NewDeveloper bool
}

// Me is the /api/me payload.
type Me struct {
	User      *model.User      `json:"user"`
	Developer *model.Developer `json:"developer"`
}

// LoginOrRegisterGitHub upserts the user by GitHub ID, makes sure a
// developer profile exists and issues a session token.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user := &model.User{
		GitHubID:  ghUser.ID,
		Login:     ghUser.Login,
		Email:     ghUser.Email,
		AvatarURL: ghUser.AvatarURL,
	}

	var (
		dev     *model.Developer
		created bool
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := tx.Upsert(ctx, user); err != nil {
			return fmt.Errorf("upserting user (githubID=%d): %w", ghUser.ID, err)
		}

		var err error
		dev, created, err = ensureDeveloper(ctx, tx, user.ID, ghUser)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("developerID", dev.ID),
		slog.String("login", user.Login),
		slog.Bool("newDeveloper", created),
	)

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{
		User:         user,
		Developer:    dev,
		Token:        token,
		NewDeveloper: created,
	}, nil
}

// ensureDeveloper returns the user's developer profile, creating it from the
// GitHub profile when missing.
func ensureDeveloper(ctx context.Context, tx repository.Store, userID string, gh *auth.GitHubUser) (*model.Developer, bool, error) {
	dev, err := tx.GetDeveloperByUserID(ctx, userID)
	if err == nil {
		return dev, false, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, false, fmt.Errorf("loading developer for user %s: %w", userID, err)
	}

	displayName := gh.Name
	if displayName == "" {
		displayName = gh.Login
	}
	dev = &model.Developer{
		UserID:      userID,
		DisplayName: displayName,
		Bio:         gh.Bio,
		Location:    gh.Location,
		GitHubURL:   gh.ProfileURL(),
		Contact:     gh.Email,
	}
	if err := tx.CreateDeveloper(ctx, dev); err != nil {
		return nil, false, fmt.Errorf("creating developer for user %s: %w", userID, err)
	}
	return dev, true, nil
}

// Me returns the user and developer profile behind a session.
func (s *AuthService) Me(ctx context.Context, userID string) (*Me, error) {
	if userID == "" {
		return nil, apperror.ValidationFailed("userId", "user ID is required")
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	dev, err := s.store.GetDeveloperByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Me{User: user, Developer: dev}, nil
}

// DeveloperIDForUser resolves the caller's developer profile ID. Write
// endpoints act as the developer, while the session only carries the user.
func (s *AuthService) DeveloperIDForUser(ctx context.Context, userID string) (string, error) {
	dev, err := s.store.GetDeveloperByUserID(ctx, userID)
	if err != nil {
		return "", err
	}
	return dev.ID, nil
}

// ValidateToken returns the user ID encoded in a session token.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	return userID, nil
}
