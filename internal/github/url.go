package github

import (
	"net/url"
	"regexp"
	"strings"
)

// GitHub usernames: alphanumerics and single hyphens, at most 39 chars.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,37}[A-Za-z0-9])?$`)

// UsernameFromURL extracts the account name from a profile link such as
// "https://github.com/alice" or "github.com/alice/". A bare username is
// accepted as well. ok is false when nothing usable is found.
func UsernameFromURL(raw string) (username string, ok bool) {
	segments, ok := githubPath(raw)
	if !ok || len(segments) < 1 {
		return "", false
	}
	if !usernamePattern.MatchString(segments[0]) {
		return "", false
	}
	return segments[0], true
}

// ParseRepositoryURL splits "https://github.com/owner/repo(.git)" into its
// owner and repository name.
func ParseRepositoryURL(raw string) (owner, repo string, ok bool) {
	segments, ok := githubPath(raw)
	if !ok || len(segments) < 2 {
		return "", "", false
	}
	owner = segments[0]
	repo = strings.TrimSuffix(segments[1], ".git")
	if !usernamePattern.MatchString(owner) || repo == "" {
		return "", "", false
	}
	return owner, repo, true
}

// githubPath returns the non-empty path segments of a github.com URL.
func githubPath(raw string) ([]string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}

	// Bare username.
	if usernamePattern.MatchString(raw) {
		return []string{raw}, true
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "github.com" {
		return nil, false
	}

	var segments []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments, len(segments) > 0
}
