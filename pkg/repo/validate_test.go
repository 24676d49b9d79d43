package repo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fleethq/pkg/types"
)

func TestCanonicalizeStripsDoublePrefixAndGitSuffix(t *testing.T) {
	in := "https://github.com/https://github.com/acme/app.git"
	require.Equal(t, "acme/app", Canonicalize(in))
}

func TestCanonicalizeIsIdempotent(t *testing.T) {
	in := "https://github.com/https://github.com/acme/app.git"
	once := Canonicalize(in)
	twice := Canonicalize(once)
	require.Equal(t, once, twice)
}

func TestValidateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/app", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	v := New(srv.URL, time.Second)
	url, meta, err := v.Validate(context.Background(), "https://github.com/https://github.com/acme/app.git")
	require.NoError(t, err)
	require.Equal(t, "https://github.com/acme/app.git", url)
	require.Equal(t, "acme", meta.Owner)
	require.Equal(t, "app", meta.Name)
}

func TestValidateNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	v := New(srv.URL, time.Second)
	_, _, err := v.Validate(context.Background(), "acme/missing")
	require.ErrorIs(t, err, types.ErrInvalidRepository)
}

func TestValidateMalformedRef(t *testing.T) {
	v := New("https://api.github.com", time.Second)
	_, _, err := v.Validate(context.Background(), "not-a-repo-ref")
	require.ErrorIs(t, err, types.ErrInvalidRepository)
}
