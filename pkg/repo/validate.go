// Package repo implements the Repository Validator (C2): it resolves a
// user-supplied repository reference to a canonical clone URL and proves
// the repository exists via the GitHub API.
package repo

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fleethq/pkg/log"
	"fleethq/pkg/types"
)

var validatorLog = log.WithComponent("repo")

// Meta is the subset of GitHub repository metadata callers care about.
type Meta struct {
	Owner string
	Name  string
}

// Validator resolves and confirms repository references against GitHub.
type Validator struct {
	httpClient *http.Client
	apiBase    string
}

// New constructs a Validator. apiBase is the GitHub API origin
// (e.g. "https://api.github.com"); timeout bounds the existence check.
func New(apiBase string, timeout time.Duration) *Validator {
	return &Validator{
		httpClient: &http.Client{Timeout: timeout},
		apiBase:    strings.TrimRight(apiBase, "/"),
	}
}

// Canonicalize applies the normalization rules in order: strip any number
// of leading "https://github.com/" prefixes, strip a trailing ".git"; the
// remainder is "owner/name". It is idempotent:
// Canonicalize(Canonicalize(x)) == Canonicalize(x).
func Canonicalize(userRef string) (ownerName string) {
	ref := userRef
	for {
		trimmed := strings.TrimPrefix(ref, "https://github.com/")
		if trimmed == ref {
			break
		}
		ref = trimmed
	}
	ref = strings.TrimSuffix(ref, ".git")
	return ref
}

// Validate resolves userRef to its canonical clone URL and confirms the
// repository exists. On non-2xx or timeout it returns ErrInvalidRepository.
func (v *Validator) Validate(ctx context.Context, userRef string) (string, Meta, error) {
	ownerName := Canonicalize(userRef)
	parts := strings.SplitN(ownerName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", Meta{}, fmt.Errorf("%w: %q is not owner/name", types.ErrInvalidRepository, userRef)
	}
	meta := Meta{Owner: parts[0], Name: parts[1]}

	url := fmt.Sprintf("%s/repos/%s/%s", v.apiBase, meta.Owner, meta.Name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", Meta{}, fmt.Errorf("%w: %v", types.ErrInvalidRepository, err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		validatorLog.Warn().Err(err).Str("repo", ownerName).Msg("repository validation request failed")
		return "", Meta{}, fmt.Errorf("%w: %v", types.ErrInvalidRepository, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", Meta{}, fmt.Errorf("%w: %s returned %d", types.ErrInvalidRepository, ownerName, resp.StatusCode)
	}

	canonicalURL := fmt.Sprintf("https://github.com/%s/%s.git", meta.Owner, meta.Name)
	return canonicalURL, meta, nil
}
