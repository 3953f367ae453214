package gitcfg_test

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/create_pr/gitcfg"
	"github.com/byte4ever/create_pr/identity"
)

// fakeConfig is an in-memory git configuration store.
type fakeConfig struct {
	remoteURL    string
	remoteErr    error
	local        map[string]string
	global       map[string]string
	setLocalErr  map[string]error
	setGlobalErr map[string]error
}

func newFakeConfig(remoteURL string) *fakeConfig {
	return &fakeConfig{
		remoteURL: remoteURL,
		local:     map[string]string{},
		global:    map[string]string{},
	}
}

func (f *fakeConfig) RemoteURL(
	_ string,
) (string, error) {
	return f.remoteURL, f.remoteErr
}

func (f *fakeConfig) store(
	global bool,
) map[string]string {
	if global {
		return f.global
	}

	return f.local
}

func (f *fakeConfig) ConfigSet(
	key string,
	value string,
	global bool,
) error {
	errs := f.setLocalErr
	if global {
		errs = f.setGlobalErr
	}

	if err := errs[key]; err != nil {
		return err
	}

	f.store(global)[key] = value

	return nil
}

func (f *fakeConfig) ConfigGet(
	key string,
	global bool,
) (string, bool) {
	v, ok := f.store(global)[key]

	return v, ok
}

func (f *fakeConfig) ConfigUnset(
	key string,
	global bool,
) bool {
	_, ok := f.store(global)[key]
	delete(f.store(global), key)

	return ok
}

const testRemote = "https://github.com/owner/repo.git"

func extraheaderKey() string {
	return "http." + testRemote + "/.extraheader"
}

func TestHelper_Configure_https(t *testing.T) {
	t.Parallel()

	f := newFakeConfig(testRemote)
	h := gitcfg.NewHelper(f, "/work/repo", "")

	require.NoError(t, h.Configure("tok"))

	assert.Equal(
		t, "/work/repo", f.global["safe.directory"],
	)

	wantCreds := base64.StdEncoding.EncodeToString(
		[]byte("x-access-token:tok"),
	)
	assert.Equal(
		t,
		"AUTHORIZATION: basic "+wantCreds,
		f.local[extraheaderKey()],
	)

	detail, ok := h.RemoteDetail()
	require.True(t, ok)
	assert.Equal(t, "owner/repo", detail.Repository)
	assert.Equal(t, gitcfg.ProtocolHTTPS, detail.Protocol)
}

func TestHelper_Configure_ssh(t *testing.T) {
	t.Parallel()

	f := newFakeConfig("git@github.com:owner/repo.git")
	h := gitcfg.NewHelper(f, "/work/repo", "")

	require.NoError(t, h.Configure("tok"))

	// No auth header for non-https transports.
	assert.Empty(t, f.local)

	detail, ok := h.RemoteDetail()
	require.True(t, ok)
	assert.Equal(t, gitcfg.ProtocolSSH, detail.Protocol)
}

func TestHelper_Configure_remoteFailure(t *testing.T) {
	t.Parallel()

	f := newFakeConfig("")
	f.remoteErr = errors.New("no such remote")

	h := gitcfg.NewHelper(f, "/work/repo", "")

	assert.Error(t, h.Configure("tok"))

	_, ok := h.RemoteDetail()
	assert.False(t, ok)
}

func TestHelper_Configure_safeDirectoryFailure(
	t *testing.T,
) {
	t.Parallel()

	f := newFakeConfig(testRemote)
	f.setGlobalErr = map[string]error{
		"safe.directory": errors.New("read-only config"),
	}

	h := gitcfg.NewHelper(f, "/work/repo", "")

	// A failing safe.directory is tolerated.
	require.NoError(t, h.Configure("tok"))

	h.Restore()
	assert.Empty(t, f.global)
}

func TestHelper_Restore(t *testing.T) {
	t.Parallel()

	f := newFakeConfig(testRemote)
	h := gitcfg.NewHelper(f, "/work/repo", "")

	require.NoError(t, h.Configure("tok"))
	h.Restore()

	assert.Empty(t, f.local)
	assert.Empty(t, f.global)
}

func TestHelper_Restore_persistedHeader(t *testing.T) {
	t.Parallel()

	f := newFakeConfig(testRemote)
	f.local[extraheaderKey()] = "AUTHORIZATION: basic old"

	h := gitcfg.NewHelper(f, "/work/repo", "")

	require.NoError(t, h.Configure("tok"))
	assert.NotEqual(
		t,
		"AUTHORIZATION: basic old",
		f.local[extraheaderKey()],
	)

	// The pre-existing header survives the run.
	h.Restore()
	assert.Equal(
		t,
		"AUTHORIZATION: basic old",
		f.local[extraheaderKey()],
	)
}

func TestHelper_ConfigureIdentity(t *testing.T) {
	t.Parallel()

	f := newFakeConfig(testRemote)
	h := gitcfg.NewHelper(f, "/work/repo", "")

	require.NoError(t, h.ConfigureIdentity(
		identity.Identity{
			Name:  "Bot",
			Email: "bot@example.com",
		},
	))

	assert.Equal(t, "Bot", f.local["user.name"])
	assert.Equal(
		t, "bot@example.com", f.local["user.email"],
	)
}

func TestHelper_ConfigureIdentity_partial(t *testing.T) {
	t.Parallel()

	f := newFakeConfig(testRemote)
	h := gitcfg.NewHelper(f, "/work/repo", "")

	require.NoError(t, h.ConfigureIdentity(
		identity.Identity{Name: "Bot"},
	))

	assert.Equal(t, "Bot", f.local["user.name"])
	_, hasEmail := f.local["user.email"]
	assert.False(t, hasEmail)
}

func TestAuthorizationHeader(t *testing.T) {
	t.Parallel()

	got := gitcfg.AuthorizationHeader("tok")

	creds := base64.StdEncoding.EncodeToString(
		[]byte("x-access-token:tok"),
	)
	assert.Equal(t, "AUTHORIZATION: basic "+creds, got)
}
