package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// DefaultGitHubAPIURL is the REST API root the provider reads the profile from.
const DefaultGitHubAPIURL = "https://api.github.com"

// GitHubUser is the subset of GitHub's GET /user response used at login.
type GitHubUser struct {
	ID        int64  `json:"id"` // stable numeric ID, the identity key
	Login     string `json:"login"`
	Email     string `json:"email"` // empty when hidden in GitHub settings
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"` // profile page, prefills the developer's GitHub link
	Name      string `json:"name"`
	Bio       string `json:"bio"`
	Location  string `json:"location"`
}

// ProfileURL returns the user's github.com page.
func (u *GitHubUser) ProfileURL() string {
	if u.HTMLURL != "" {
		return u.HTMLURL
	}
	return "https://github.com/" + u.Login
}

// GitHubProvider runs the GitHub OAuth authorization code flow.
//
// The code-for-token exchange happens server to server with the client
// secret; the access token never reaches the browser and is dropped once the
// profile has been read.
type GitHubProvider struct {
	config *oauth2.Config
	apiURL string
}

// NewGitHubProvider creates a provider for an OAuth App registered at
// https://github.com/settings/developers. callbackURL must match the app's
// "Authorization callback URL" exactly.
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		apiURL: DefaultGitHubAPIURL,
	}
}

// WithAPIURL points profile lookups at another API root (GitHub Enterprise,
// or an httptest server).
func (p *GitHubProvider) WithAPIURL(apiURL string) *GitHubProvider {
	if apiURL != "" {
		p.apiURL = strings.TrimRight(apiURL, "/")
	}
	return p
}

// WithEndpoint overrides the authorize and token URLs. Used by tests.
func (p *GitHubProvider) WithEndpoint(endpoint oauth2.Endpoint) *GitHubProvider {
	p.config.Endpoint = endpoint
	return p
}

// AuthURL is where the login handler redirects the browser. state is echoed
// back on the callback and checked against a cookie to stop CSRF.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the callback code for an access token and reads the
// authenticated user's profile with it.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+"/user", nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building GitHub /user request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := p.config.Client(ctx, oauthToken).Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: GitHub /user API returned status %d", resp.StatusCode)
	}

	var ghUser GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&ghUser); err != nil {
		return nil, fmt.Errorf("auth: decoding GitHub /user response: %w", err)
	}
	if ghUser.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}
	return &ghUser, nil
}
