package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sakif/vouchnet/internal/auth"
	"github.com/sakif/vouchnet/internal/handler"
	"github.com/sakif/vouchnet/internal/model"
	"github.com/sakif/vouchnet/internal/repository/memory"
	"github.com/sakif/vouchnet/internal/service"
	"github.com/sakif/vouchnet/internal/tier"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// member is a user with a linked developer profile.
type member struct {
	UserID      string
	DeveloperID string
}

var githubSeq int64

// newMember creates a user and its developer profile. An eligible member
// passes every vouch eligibility rule.
func newMember(t *testing.T, store *memory.Store, tr tier.Tier, eligible bool) member {
	t.Helper()
	ctx := context.Background()

	githubSeq++
	user := &model.User{GitHubID: githubSeq, Login: fmt.Sprintf("user%d", githubSeq)}
	require.NoError(t, store.Upsert(ctx, user))

	dev := &model.Developer{UserID: user.ID, DisplayName: user.Login}
	score := 5.0
	if eligible {
		dev.Bio = "protocol engineer"
		dev.Location = "Lisbon"
		dev.GitHubURL = "https://github.com/" + user.Login
		score = 42
	}
	require.NoError(t, store.CreateDeveloper(ctx, dev))
	store.SetDeveloperTimes(dev.ID, time.Now().AddDate(0, 0, -90), time.Now())
	require.NoError(t, store.UpdateDeveloperReputation(ctx, dev.ID, score, tr))

	if eligible {
		for i := range 2 {
			require.NoError(t, store.CreateProject(ctx, &model.Project{
				DeveloperID: dev.ID,
				Title:       fmt.Sprintf("verified %d", i),
				IsVerified:  true,
			}))
		}
	}
	return member{UserID: user.ID, DeveloperID: dev.ID}
}

// authService returns the resolver the write handlers use.
func authService(t *testing.T, store *memory.Store) *service.AuthService {
	t.Helper()
	tokens, err := auth.NewTokenService("handler-test-secret-0123456789")
	require.NoError(t, err)
	return service.NewAuthService(store, tokens, testLogger())
}

// request builds a request with optional JSON body, path values and caller.
func request(method, target string, body any, pathValues map[string]string, userID string) *http.Request {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range pathValues {
		req.SetPathValue(k, v)
	}
	if userID != "" {
		req = req.WithContext(auth.ContextWithUserID(req.Context(), userID))
	}
	return req
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out), "body: %s", rr.Body.String())
	return out
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	return decodeBody[handler.ErrorResponse](t, rr)
}
