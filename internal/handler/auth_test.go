package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/vouchnet/internal/auth"
	"github.com/sakif/vouchnet/internal/handler"
	"github.com/sakif/vouchnet/internal/repository/memory"
	"github.com/sakif/vouchnet/internal/service"
)

// fakeProvider stands in for GitHub's OAuth endpoints.
type fakeProvider struct {
	user *auth.GitHubUser
	err  error
}

func (f *fakeProvider) AuthURL(state string) string {
	return "https://github.test/login/oauth/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeProvider) Exchange(_ context.Context, code string) (*auth.GitHubUser, error) {
	if f.err != nil {
		return nil, f.err
	}
	if code != "good-code" {
		return nil, errors.New("bad_verification_code")
	}
	return f.user, nil
}

func newAuthHandler(t *testing.T, provider *fakeProvider) (*handler.AuthHandler, *service.AuthService, *memory.Store) {
	t.Helper()
	store := memory.New()
	sessions := authService(t, store)
	h := handler.NewAuthHandler(provider, sessions, handler.CookieOptions{TTL: time.Hour, Secure: true}, testLogger())
	return h, sessions, store
}

func cookieNamed(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuthHandler_Login(t *testing.T) {
	h, _, _ := newAuthHandler(t, &fakeProvider{})

	rr := httptest.NewRecorder()
	h.HandleGitHubLogin(rr, httptest.NewRequest(http.MethodGet, "/auth/github/login", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	state := cookieNamed(rr, "oauth_state")
	require.NotNil(t, state)
	assert.True(t, state.HttpOnly)
	assert.True(t, state.Secure)
	assert.Contains(t, rr.Header().Get("Location"), "state="+state.Value)
}

func callback(query string, stateCookie string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/auth/github/callback?"+query, nil)
	if stateCookie != "" {
		req.AddCookie(&http.Cookie{Name: "oauth_state", Value: stateCookie})
	}
	return req
}

func TestAuthHandler_Callback(t *testing.T) {
	provider := &fakeProvider{user: &auth.GitHubUser{ID: 4242, Login: "vitalik-fan", Bio: "EVM tinkerer"}}
	h, sessions, _ := newAuthHandler(t, provider)

	rr := httptest.NewRecorder()
	h.HandleGitHubCallback(rr, callback("code=good-code&state=s1", "s1"))

	require.Equal(t, http.StatusSeeOther, rr.Code, rr.Body.String())
	assert.Equal(t, "/", rr.Header().Get("Location"))

	session := cookieNamed(rr, auth.CookieName)
	require.NotNil(t, session)
	assert.Equal(t, int(time.Hour.Seconds()), session.MaxAge)
	assert.True(t, session.HttpOnly)

	userID, err := sessions.ValidateToken(session.Value)
	require.NoError(t, err)

	me, err := sessions.Me(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "vitalik-fan", me.User.Login)
	assert.Equal(t, "EVM tinkerer", me.Developer.Bio)
}

func TestAuthHandler_CallbackRejects(t *testing.T) {
	cases := []struct {
		name     string
		provider *fakeProvider
		req      *http.Request
		want     int
	}{
		{"no state cookie", &fakeProvider{}, callback("code=good-code&state=s1", ""), http.StatusBadRequest},
		{"state mismatch", &fakeProvider{}, callback("code=good-code&state=evil", "s1"), http.StatusBadRequest},
		{"missing code", &fakeProvider{}, callback("state=s1", "s1"), http.StatusBadRequest},
		{"exchange fails", &fakeProvider{err: errors.New("github down")}, callback("code=good-code&state=s1", "s1"), http.StatusBadGateway},
		{"user denied", &fakeProvider{}, callback("error=access_denied&state=s1", "s1"), http.StatusSeeOther},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, _, _ := newAuthHandler(t, tc.provider)
			rr := httptest.NewRecorder()
			h.HandleGitHubCallback(rr, tc.req)

			assert.Equal(t, tc.want, rr.Code)
			assert.Nil(t, cookieNamed(rr, auth.CookieName), "no session on failure")
		})
	}
}

func TestAuthHandler_LogoutAndMe(t *testing.T) {
	provider := &fakeProvider{user: &auth.GitHubUser{ID: 7, Login: "sato"}}
	h, sessions, _ := newAuthHandler(t, provider)

	rr := httptest.NewRecorder()
	h.HandleLogout(rr, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	cleared := cookieNamed(rr, auth.CookieName)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)

	result, err := sessions.LoginOrRegisterGitHub(context.Background(), provider.user)
	require.NoError(t, err)

	rr = httptest.NewRecorder()
	h.HandleMe(rr, request(http.MethodGet, "/api/me", nil, nil, result.User.ID))
	require.Equal(t, http.StatusOK, rr.Code)
	me := decodeBody[service.Me](t, rr)
	assert.Equal(t, result.Developer.ID, me.Developer.ID)

	rr = httptest.NewRecorder()
	h.HandleMe(rr, request(http.MethodGet, "/api/me", nil, nil, ""))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
