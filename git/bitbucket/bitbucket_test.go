package bitbucket_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bb "github.com/byte4ever/create_pr/git/bitbucket"
	"github.com/byte4ever/create_pr/git"
)

func validConfig(baseURL string) bb.Config {
	return bb.Config{
		BaseURL:    baseURL,
		ProjectKey: "PROJ",
		RepoSlug:   "repo",
		User:       "admin",
		Password:   "secret",
	}
}

func TestNewProvider_valid(t *testing.T) {
	t.Parallel()

	pv, err := bb.NewProvider(
		validConfig("https://bb.example.com"),
	)

	require.NoError(t, err)
	assert.NotNil(t, pv)
}

func TestNewProvider_missing_fields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*bb.Config)
		wantErr string
	}{
		{
			name: "base url",
			mutate: func(c *bb.Config) {
				c.BaseURL = ""
			},
			wantErr: "base url",
		},
		{
			name: "project key",
			mutate: func(c *bb.Config) {
				c.ProjectKey = ""
			},
			wantErr: "project key",
		},
		{
			name: "repo slug",
			mutate: func(c *bb.Config) {
				c.RepoSlug = ""
			},
			wantErr: "repo slug",
		},
		{
			name: "user",
			mutate: func(c *bb.Config) {
				c.User = ""
			},
			wantErr: "user must be set",
		},
		{
			name: "password",
			mutate: func(c *bb.Config) {
				c.Password = ""
			},
			wantErr: "password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig("https://bb.example.com")
			tt.mutate(&cfg)

			pv, err := bb.NewProvider(cfg)
			assert.Nil(t, pv)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestProvider_CreateOrUpdatePR_created(
	t *testing.T,
) {
	t.Parallel()

	var gotBody []byte

	var gotPath string

	ts := httptest.NewServer(
		http.HandlerFunc(
			func(
				w http.ResponseWriter,
				r *http.Request,
			) {
				gotPath = r.URL.Path

				var err error

				gotBody, err = io.ReadAll(r.Body)
				if err != nil {
					http.Error(
						w,
						"read error",
						http.StatusInternalServerError,
					)

					return
				}

				w.WriteHeader(http.StatusCreated)
				//nolint:errcheck
				w.Write([]byte(
					`{"id":42,"links":{"self":` +
						`[{"href":"https://bb/pr/42"}]}}`,
				))
			},
		),
	)
	defer ts.Close()

	pv, err := bb.NewProvider(validConfig(ts.URL))
	require.NoError(t, err)

	pr, err := pv.CreateOrUpdatePR(
		context.Background(),
		"deploy/test1",
		"main",
		"test",
		"hello world",
		false,
	)

	require.NoError(t, err)
	assert.Equal(t, 42, pr.Number)
	assert.Equal(t, "https://bb/pr/42", pr.URL)

	assert.Equal(
		t,
		"/rest/api/1.0/projects/PROJ/repos/repo"+
			"/pull-requests",
		gotPath,
	)
	assert.Contains(
		t, string(gotBody), `"title":"test"`,
	)
	assert.Contains(
		t, string(gotBody),
		`"description":"hello world"`,
	)
	assert.Contains(
		t, string(gotBody),
		`refs/heads/deploy/test1`,
	)
}

func TestProvider_CreateOrUpdatePR_conflict(
	t *testing.T,
) {
	t.Parallel()

	mux := http.NewServeMux()

	mux.HandleFunc(
		"POST /rest/api/1.0/projects/PROJ/repos/repo/pull-requests",
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusConflict)
		},
	)
	mux.HandleFunc(
		"GET /rest/api/1.0/projects/PROJ/repos/repo/pull-requests",
		func(w http.ResponseWriter, _ *http.Request) {
			//nolint:errcheck
			w.Write([]byte(
				`{"values":[{"id":7,"version":3,` +
					`"toRef":{"id":"refs/heads/main"},` +
					`"links":{"self":` +
					`[{"href":"https://bb/pr/7"}]}}]}`,
			))
		},
	)
	mux.HandleFunc(
		"PUT /rest/api/1.0/projects/PROJ/repos/repo/pull-requests/7",
		func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			assert.Contains(
				t, string(body), `"version":3`,
			)
			//nolint:errcheck
			w.Write([]byte(
				`{"id":7,"links":{"self":` +
					`[{"href":"https://bb/pr/7"}]}}`,
			))
		},
	)

	ts := httptest.NewServer(mux)
	defer ts.Close()

	pv, err := bb.NewProvider(validConfig(ts.URL))
	require.NoError(t, err)

	pr, err := pv.CreateOrUpdatePR(
		context.Background(),
		"updates", "main", "t", "d", false,
	)

	require.NoError(t, err)
	assert.Equal(t, 7, pr.Number)
}

func TestProvider_CreateOrUpdatePR_unexpected_status(
	t *testing.T,
) {
	t.Parallel()

	ts := httptest.NewServer(
		http.HandlerFunc(
			func(
				w http.ResponseWriter,
				_ *http.Request,
			) {
				w.WriteHeader(
					http.StatusInternalServerError,
				)
			},
		),
	)
	defer ts.Close()

	pv, err := bb.NewProvider(validConfig(ts.URL))
	require.NoError(t, err)

	_, err = pv.CreateOrUpdatePR(
		context.Background(),
		"a", "b", "t", "d", false,
	)

	assert.ErrorContains(t, err, "unexpected status")
}

func TestProvider_ApplyMetadata_reviewers(t *testing.T) {
	t.Parallel()

	var gotBodies []string

	ts := httptest.NewServer(
		http.HandlerFunc(
			func(
				w http.ResponseWriter,
				r *http.Request,
			) {
				body, _ := io.ReadAll(r.Body)
				gotBodies = append(
					gotBodies, string(body),
				)
				w.WriteHeader(http.StatusOK)
			},
		),
	)
	defer ts.Close()

	pv, err := bb.NewProvider(validConfig(ts.URL))
	require.NoError(t, err)

	err = pv.ApplyMetadata(
		context.Background(), 7,
		git.Metadata{
			Reviewers: []string{"alice", "bob"},
		},
	)

	require.NoError(t, err)
	require.Len(t, gotBodies, 2)
	assert.Contains(t, gotBodies[0], `"alice"`)
	assert.Contains(t, gotBodies[1], `"bob"`)
}

func TestProvider_DeleteRemoteBranch(t *testing.T) {
	t.Parallel()

	var gotPath string

	var gotBody []byte

	ts := httptest.NewServer(
		http.HandlerFunc(
			func(
				w http.ResponseWriter,
				r *http.Request,
			) {
				gotPath = r.URL.Path
				gotBody, _ = io.ReadAll(r.Body)
				w.WriteHeader(http.StatusNoContent)
			},
		),
	)
	defer ts.Close()

	pv, err := bb.NewProvider(validConfig(ts.URL))
	require.NoError(t, err)

	err = pv.DeleteRemoteBranch(
		context.Background(), "updates",
	)

	require.NoError(t, err)
	assert.Equal(
		t,
		"/rest/branch-utils/1.0/projects/PROJ"+
			"/repos/repo/branches",
		gotPath,
	)
	assert.Contains(
		t, string(gotBody), "refs/heads/updates",
	)
}

func TestProvider_DeleteRemoteBranch_missing(
	t *testing.T,
) {
	t.Parallel()

	ts := httptest.NewServer(
		http.HandlerFunc(
			func(
				w http.ResponseWriter,
				_ *http.Request,
			) {
				w.WriteHeader(http.StatusNotFound)
			},
		),
	)
	defer ts.Close()

	pv, err := bb.NewProvider(validConfig(ts.URL))
	require.NoError(t, err)

	assert.NoError(t, pv.DeleteRemoteBranch(
		context.Background(), "gone",
	))
}
