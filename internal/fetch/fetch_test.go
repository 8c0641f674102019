package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSetsUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "mvnresolve/1.0", r.Header.Get("User-Agent"))
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "mvnresolve/1.0")
	require.NoError(t, err)
	resp, err := c.Get(context.Background(), "g/a/maven-metadata.xml")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(body))
}

func TestGetBasicAuthTakesPrecedenceOverBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "user", username)
		assert.Equal(t, "pass", password)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "mvnresolve/1.0",
		WithBasicAuth("user", "pass"),
		WithBearerToken("should-be-ignored"),
	)
	require.NoError(t, err)
	resp, err := c.Get(context.Background(), "g/a/1.0/a-1.0.jar")
	require.NoError(t, err)
	resp.Body.Close()
}

func TestGetBearerTokenWhenNoBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "mvnresolve/1.0", WithBearerToken("sekrit"))
	require.NoError(t, err)
	resp, err := c.Get(context.Background(), "g/a/1.0/a-1.0.jar")
	require.NoError(t, err)
	resp.Body.Close()
}

func TestURLJoinNeverDoubleSlash(t *testing.T) {
	c, err := NewClient("https://repo.example.com/maven2/", "mvnresolve/1.0")
	require.NoError(t, err)
	got := c.URL("/org/example/lib/1.0/lib-1.0.jar")
	assert.Equal(t, "https://repo.example.com/maven2/org/example/lib/1.0/lib-1.0.jar", got)
}

func TestNewClientRejectsInvalidURL(t *testing.T) {
	_, err := NewClient("://not-a-url", "mvnresolve/1.0")
	assert.Error(t, err, "expected an error for an unparseable base url")
}

func TestGetNonSuccessStatusStillReturnsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "mvnresolve/1.0")
	require.NoError(t, err)
	resp, err := c.Get(context.Background(), "missing.xml")
	require.NoError(t, err, "expected no transport error")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
