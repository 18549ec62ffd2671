package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/vouchnet/internal/apperror"
	"github.com/sakif/vouchnet/internal/github"
	"github.com/sakif/vouchnet/internal/handler"
	"github.com/sakif/vouchnet/internal/model"
	"github.com/sakif/vouchnet/internal/repository/memory"
	"github.com/sakif/vouchnet/internal/service"
	"github.com/sakif/vouchnet/internal/tier"
)

type stubRepos map[string]*github.Repository

func (s stubRepos) Repository(_ context.Context, owner, name string) (*github.Repository, error) {
	if r, ok := s[owner+"/"+name]; ok {
		return r, nil
	}
	return nil, apperror.NotFound("github repository", owner+"/"+name)
}

func newProjectHandler(t *testing.T) (*handler.ProjectHandler, *memory.Store) {
	t.Helper()
	store := memory.New()
	repos := stubRepos{"dao/governor": {FullName: "dao/governor", Stars: 88, Forks: 9}}
	h := handler.NewProjectHandler(service.NewProjectService(store, repos, testLogger()), authService(t, store), testLogger())
	return h, store
}

func TestProjectHandler_Lifecycle(t *testing.T) {
	h, store := newProjectHandler(t)
	owner := newMember(t, store, tier.Tier3, false)
	other := newMember(t, store, tier.Tier3, false)

	rr := httptest.NewRecorder()
	h.HandleCreate(rr, request(http.MethodPost, "/api/projects", map[string]any{
		"title":         "Governor",
		"technologies":  []string{"Solidity"},
		"repositoryUrl": "https://github.com/dao/governor",
	}, nil, owner.UserID))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	p := decodeBody[model.Project](t, rr)
	assert.Equal(t, owner.DeveloperID, p.DeveloperID)
	assert.False(t, p.IsVerified)

	ids := map[string]string{"id": p.ID}

	rr = httptest.NewRecorder()
	h.HandleUpdate(rr, request(http.MethodPut, "/", map[string]any{"title": "hijacked"}, ids, other.UserID))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	h.HandleUpdate(rr, request(http.MethodPut, "/", map[string]any{
		"title":           "Governor v2",
		"livePlatformUrl": "https://gov.example.org",
		"repositoryUrl":   "https://github.com/dao/governor",
	}, ids, owner.UserID))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Governor v2", decodeBody[model.Project](t, rr).Title)

	rr = httptest.NewRecorder()
	h.HandleSync(rr, request(http.MethodPost, "/", nil, ids, owner.UserID))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	synced := decodeBody[model.Project](t, rr)
	assert.Equal(t, 88, synced.GitHubStars)
	assert.Equal(t, 9, synced.GitHubForks)

	rr = httptest.NewRecorder()
	h.HandleDelete(rr, request(http.MethodDelete, "/", nil, ids, other.UserID))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	h.HandleDelete(rr, request(http.MethodDelete, "/", nil, ids, owner.UserID))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	h.HandleSync(rr, request(http.MethodPost, "/", nil, ids, owner.UserID))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestProjectHandler_CreateValidation(t *testing.T) {
	h, store := newProjectHandler(t)
	owner := newMember(t, store, tier.Tier4, false)

	cases := []struct {
		name  string
		body  any
		field string
	}{
		{"missing title", map[string]any{"description": "no title"}, "title"},
		{"malformed json", `{"title":`, "body"},
		{"bad live url", map[string]any{"title": "x", "livePlatformUrl": "ftp://x"}, "livePlatformUrl"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.HandleCreate(rr, request(http.MethodPost, "/api/projects", tc.body, nil, owner.UserID))
			require.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tc.field, decodeError(t, rr).Field)
		})
	}
}
