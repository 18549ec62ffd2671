package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/vouchnet/internal/apperror"
)

// newTestServer fakes the two endpoints UserStats calls. alice owns 101 repos
// (so pagination is exercised); every third repo is a fork.
func newTestServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /users/alice", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"login":"alice","followers":120}`)
	})

	mux.HandleFunc("GET /users/alice/repos", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		start, end := 0, 100
		if page == 2 {
			start, end = 100, 101
		}
		w.Write([]byte("["))
		for i := start; i < end; i++ {
			if i > start {
				w.Write([]byte(","))
			}
			fmt.Fprintf(w, `{"full_name":"alice/r%d","stargazers_count":2,"forks_count":1,"fork":%t}`, i, i%3 == 0)
		}
		w.Write([]byte("]"))
	})

	mux.HandleFunc("GET /repos/alice/dex", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"full_name":"alice/dex","stargazers_count":42,"forks_count":7,"language":"Go"}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestUserStats_AggregatesNonForkRepos(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, &hits)
	c := New(Config{BaseURL: srv.URL, Token: "secret-token"})

	stats, err := c.UserStats(context.Background(), "alice")
	require.NoError(t, err)

	// 101 repos, indexes 0,3,...,99 are forks: 34 forks, 67 originals.
	assert.Equal(t, 67, stats.RepoCount)
	assert.Equal(t, 134, stats.TotalStars)
	assert.Equal(t, 67, stats.TotalForks)
	assert.Equal(t, 120, stats.Followers)
	assert.Equal(t, int32(3), hits.Load(), "profile + two repo pages")
}

func TestUserStats_IsCached(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, &hits)
	c := New(Config{BaseURL: srv.URL, Token: "secret-token"})

	_, err := c.UserStats(context.Background(), "alice")
	require.NoError(t, err)
	_, err = c.UserStats(context.Background(), "Alice")
	require.NoError(t, err)

	assert.Equal(t, int32(3), hits.Load(), "second lookup must be served from cache")
}

func TestUserStats_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	c := New(Config{BaseURL: srv.URL})

	_, err := c.UserStats(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUserStats_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)
	c := New(Config{BaseURL: srv.URL})

	_, err := c.UserStats(context.Background(), "alice")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperror.ErrNotFound)
}

func TestRepository(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, &hits)
	c := New(Config{BaseURL: srv.URL})

	r, err := c.Repository(context.Background(), "alice", "dex")
	require.NoError(t, err)
	assert.Equal(t, 42, r.Stars)
	assert.Equal(t, 7, r.Forks)
}
