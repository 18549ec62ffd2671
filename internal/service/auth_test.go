package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/vouchnet/internal/apperror"
	"github.com/sakif/vouchnet/internal/auth"
	"github.com/sakif/vouchnet/internal/model"
	"github.com/sakif/vouchnet/internal/repository"
	"github.com/sakif/vouchnet/internal/repository/memory"
)

func newTestAuthService(t *testing.T, store repository.Store) *AuthService {
	t.Helper()
	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	require.NoError(t, err)
	return NewAuthService(store, ts, testLogger())
}

func TestLoginOrRegisterGitHub_NewUserGetsDeveloper(t *testing.T) {
	store := memory.New()
	svc := newTestAuthService(t, store)

	result, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{
		ID:       42,
		Login:    "octocat",
		Email:    "octocat@github.com",
		Name:     "The Octocat",
		Bio:      "mascot",
		Location: "San Francisco",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.User.ID)
	assert.NotEmpty(t, result.Token)
	assert.True(t, result.NewDeveloper)

	dev := result.Developer
	assert.Equal(t, result.User.ID, dev.UserID)
	assert.Equal(t, "The Octocat", dev.DisplayName)
	assert.Equal(t, "https://github.com/octocat", dev.GitHubURL)
	assert.Equal(t, "mascot", dev.Bio)
	assert.Equal(t, "San Francisco", dev.Location)
}

func TestLoginOrRegisterGitHub_SecondLoginKeepsProfile(t *testing.T) {
	store := memory.New()
	svc := newTestAuthService(t, store)
	ctx := context.Background()

	first, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 99, Login: "old-login", Bio: "from github"})
	require.NoError(t, err)

	edited := *first.Developer
	edited.Bio = "edited by hand"
	require.NoError(t, store.UpdateDeveloperProfile(ctx, &edited))

	second, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 99, Login: "new-login", Bio: "from github"})
	require.NoError(t, err)

	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, "new-login", second.User.Login)
	assert.False(t, second.NewDeveloper)
	assert.Equal(t, first.Developer.ID, second.Developer.ID)
	assert.Equal(t, "edited by hand", second.Developer.Bio)
}

func TestLoginOrRegisterGitHub_TokenIsValid(t *testing.T) {
	svc := newTestAuthService(t, memory.New())

	result, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{ID: 1, Login: "testuser"})
	require.NoError(t, err)

	userID, err := svc.ValidateToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, userID)
}

func TestLoginOrRegisterGitHub_NilUser(t *testing.T) {
	svc := newTestAuthService(t, memory.New())

	_, err := svc.LoginOrRegisterGitHub(context.Background(), nil)
	assert.Error(t, err)
}

// failingDeveloperCreate makes profile creation fail so the user upsert in
// the same transaction has to roll back.
type failingDeveloperCreate struct {
	*memory.Store
}

func (f failingDeveloperCreate) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	return f.Store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		return fn(ctx, rejectCreateDeveloper{tx})
	})
}

type rejectCreateDeveloper struct {
	repository.Store
}

func (rejectCreateDeveloper) CreateDeveloper(context.Context, *model.Developer) error {
	return errors.New("database is on fire")
}

func TestLoginOrRegisterGitHub_RollsBackUserOnFailure(t *testing.T) {
	mem := memory.New()
	svc := newTestAuthService(t, failingDeveloperCreate{mem})

	_, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{ID: 5, Login: "unlucky"})
	require.Error(t, err)

	// A rolled back upsert leaves no user behind, so a retry creates one.
	ok := newTestAuthService(t, mem)
	result, err := ok.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{ID: 5, Login: "unlucky"})
	require.NoError(t, err)
	assert.True(t, result.NewDeveloper)
}

func TestMe(t *testing.T) {
	svc := newTestAuthService(t, memory.New())
	ctx := context.Background()

	result, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 7, Login: "findme"})
	require.NoError(t, err)

	me, err := svc.Me(ctx, result.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "findme", me.User.Login)
	assert.Equal(t, result.Developer.ID, me.Developer.ID)

	devID, err := svc.DeveloperIDForUser(ctx, result.User.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Developer.ID, devID)

	_, err = svc.Me(ctx, "nobody")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = svc.Me(ctx, "")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}
