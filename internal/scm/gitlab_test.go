package scm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Integrator/internal/domain"
	"github.com/shaiso/Integrator/internal/telemetry"
)

func newTestGitLab(t *testing.T, handler http.HandlerFunc) *GitLab {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewGitLab(domain.GitLabConfig{
		APIBaseURL: srv.URL + "/api/v4/",
		APIToken:   "secret",
		ProjectID:  42,
	}, GitLabOptions{RateLimit: 1000, Burst: 100, Logger: telemetry.Discard()})
}

func TestGitLab_ListTree_Paginates(t *testing.T) {
	var pages []string
	gl := newTestGitLab(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v4/projects/42/repository/tree", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("PRIVATE-TOKEN"))
		assert.Equal(t, "release/web", r.URL.Query().Get("path"))
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		assert.Equal(t, "false", r.URL.Query().Get("recursive"))

		page := r.URL.Query().Get("page")
		pages = append(pages, page)

		switch page {
		case "1":
			w.Header().Set("X-Next-Page", "2")
			_ = json.NewEncoder(w).Encode([]TreeEntry{{Name: "a.yml", Type: EntryBlob, Path: "release/web/a.yml"}})
		case "2":
			w.Header().Set("X-Next-Page", "")
			_ = json.NewEncoder(w).Encode([]TreeEntry{{Name: "sub", Type: EntryTree, Path: "release/web/sub"}})
		}
	})

	entries, err := gl.ListTree(context.Background(), 42, "main", "release/web", false)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a.yml", entries[0].Name)
	assert.Equal(t, EntryTree, entries[1].Type)
	assert.Equal(t, []string{"1", "2"}, pages)
}

func TestGitLab_ReadFile(t *testing.T) {
	content := "package:\n  name: portal\n  version: 1.2.3\n"

	gl := newTestGitLab(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v4/projects/42/repository/files/release%2Fweb%2Fportal.yml", r.URL.EscapedPath())
		assert.Equal(t, "main", r.URL.Query().Get("ref"))

		_ = json.NewEncoder(w).Encode(fileResponse{
			Content:  base64.StdEncoding.EncodeToString([]byte(content)),
			Encoding: "base64",
		})
	})

	data, err := gl.ReadFile(context.Background(), 42, "release/web/portal.yml", "main")
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestGitLab_ReadFile_NotFound(t *testing.T) {
	gl := newTestGitLab(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"404 File Not Found"}`))
	})

	_, err := gl.ReadFile(context.Background(), 42, "missing.yml", "main")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorContains(t, err, "404 File Not Found")
}

func TestGitLab_CreateBranch(t *testing.T) {
	gl := newTestGitLab(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v4/projects/42/repository/branches", r.URL.Path)
		assert.Equal(t, "release-1", r.URL.Query().Get("branch"))
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"name":"release-1"}`))
	})

	require.NoError(t, gl.CreateBranch(context.Background(), 42, "release-1", "main"))
}

func TestGitLab_CreateBranch_Exists(t *testing.T) {
	gl := newTestGitLab(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Branch already exists"}`))
	})

	err := gl.CreateBranch(context.Background(), 42, "release-1", "main")
	assert.ErrorIs(t, err, ErrBranchExists)
}

func TestGitLab_CreateCommit(t *testing.T) {
	var got commitRequest
	gl := newTestGitLab(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v4/projects/42/repository/commits", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"abc"}`))
	})

	err := gl.CreateCommit(context.Background(), 42, "release-1", "Update portal package info", []CommitAction{
		{Action: ActionUpdate, FilePath: "release/web/portal.yml", Content: "x: 1\n"},
	})
	require.NoError(t, err)

	assert.Equal(t, "release-1", got.Branch)
	assert.Equal(t, "Update portal package info", got.CommitMessage)
	require.Len(t, got.Actions, 1)
	assert.Equal(t, "release/web/portal.yml", got.Actions[0].FilePath)
}

func TestGitLab_ServerError(t *testing.T) {
	gl := newTestGitLab(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	})

	err := gl.CreateCommit(context.Background(), 42, "b", "m", nil)
	assert.ErrorIs(t, err, ErrRequest)
	assert.ErrorContains(t, err, "status 500")
}

func TestGitLabFactory(t *testing.T) {
	factory := NewGitLabFactory(GitLabOptions{Logger: telemetry.Discard()})
	client := factory(domain.GitLabConfig{APIBaseURL: "https://gitlab.example.com/api/v4", APIToken: "t"})

	gl, ok := client.(*GitLab)
	require.True(t, ok)
	assert.Equal(t, "https://gitlab.example.com/api/v4", gl.baseURL)
}
