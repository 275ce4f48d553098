package mirror

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchForwardsOnlyAllowListedHeaders(t *testing.T) {
	var seen http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Clone()
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	e := New(Config{Logger: zerolog.Nop()})

	in := http.Header{}
	in.Set("User-Agent", "test-agent/1.0")
	in.Set("Accept", "text/html")
	in.Set("Accept-Language", "fr-CA")
	in.Set("Cookie", "session=secret")
	in.Set("Authorization", "Bearer token")

	_, _, err := e.fetch(mustParse(t, srv.URL), in)
	require.NoError(t, err)

	assert.Equal(t, "test-agent/1.0", seen.Get("User-Agent"))
	assert.Equal(t, "text/html", seen.Get("Accept"))
	assert.Equal(t, "fr-CA", seen.Get("Accept-Language"))
	assert.Empty(t, seen.Get("Cookie"))
	assert.Empty(t, seen.Get("Authorization"))
}

func TestFetchDefaultUserAgent(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	e := New(Config{UserAgent: "lookingglass-test/1.0", Logger: zerolog.Nop()})
	_, _, err := e.fetch(mustParse(t, srv.URL), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, "lookingglass-test/1.0", seen)
}

func TestFetchTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := mustParse(t, srv.URL)
	srv.Close()

	e := New(Config{Logger: zerolog.Nop()})
	_, _, err := e.fetch(target, http.Header{})
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, target.String(), fe.URL)
	assert.NotNil(t, fe.Unwrap())
}

func TestFetchNonSuccessStatusIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("<html>not here</html>"))
	}))
	defer srv.Close()

	e := New(Config{Logger: zerolog.Nop()})
	body, _, err := e.fetch(mustParse(t, srv.URL), http.Header{})
	require.NoError(t, err)
	assert.Contains(t, string(body), "not here")
}
