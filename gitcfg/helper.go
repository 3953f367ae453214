package gitcfg

import (
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/byte4ever/create_pr/identity"
)

// tokenUser is the username paired with an access token in
// basic credentials.
const tokenUser = "x-access-token"

// ConfigOps is the configuration capability of a git
// repository the helper consumes. *git.Repo satisfies it.
type ConfigOps interface {
	RemoteURL(remote string) (string, error)
	ConfigSet(key, value string, global bool) error
	ConfigGet(key string, global bool) (string, bool)
	ConfigUnset(key string, global bool) bool
}

// Helper applies the transient git configuration a run
// needs and undoes it afterwards: a safe.directory entry
// for the working tree and, on https remotes, a basic-auth
// extraheader. Restore puts back whatever extraheader value
// was there before.
type Helper struct {
	git             ConfigOps
	workDir         string
	remote          string
	safeDirSet      bool
	persistedHeader string
	remoteURL       string
	detail          *RemoteDetail
}

// NewHelper returns a Helper over the repository rooted at
// workDir. Pass empty remote for "origin".
func NewHelper(
	gitOps ConfigOps,
	workDir string,
	remote string,
) *Helper {
	if remote == "" {
		remote = "origin"
	}

	return &Helper{
		git:     gitOps,
		workDir: workDir,
		remote:  remote,
	}
}

// Configure marks the working tree safe and installs
// token authentication for https remotes. It must be paired
// with Restore.
func (h *Helper) Configure(token string) error {
	const errCtx = "configuring git"

	// Best effort: the runner's uid may already own the
	// working tree.
	if err := h.git.ConfigSet(
		"safe.directory", h.workDir, true,
	); err != nil {
		slog.Debug(
			"could not mark directory safe",
			"dir", h.workDir,
		)
	} else {
		h.safeDirSet = true
	}

	url, err := h.git.RemoteURL(h.remote)
	if err != nil {
		return fmt.Errorf(
			"%s: remote url: %w", errCtx, err,
		)
	}

	detail, err := ParseRemoteURL(url)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	h.remoteURL = url
	h.detail = &detail

	if detail.Protocol != ProtocolHTTPS {
		return nil
	}

	key := h.extraheaderKey()

	if existing, ok := h.git.ConfigGet(
		key, false,
	); ok {
		h.persistedHeader = existing
	}

	if err := h.git.ConfigSet(
		key, AuthorizationHeader(token), false,
	); err != nil {
		return fmt.Errorf(
			"%s: set auth header: %w", errCtx, err,
		)
	}

	return nil
}

// Restore undoes everything Configure set. Every step is
// best effort.
func (h *Helper) Restore() {
	if h.detail != nil &&
		h.detail.Protocol == ProtocolHTTPS {
		key := h.extraheaderKey()

		h.git.ConfigUnset(key, false)

		if h.persistedHeader != "" {
			if err := h.git.ConfigSet(
				key, h.persistedHeader, false,
			); err != nil {
				slog.Warn(
					"could not restore auth header",
				)
			}
		}
	}

	if h.safeDirSet {
		h.git.ConfigUnset("safe.directory", true)
	}
}

// ConfigureIdentity sets the repository-local committer
// identity. Empty fields are left untouched.
func (h *Helper) ConfigureIdentity(
	id identity.Identity,
) error {
	const errCtx = "configuring identity"

	if id.Name != "" {
		if err := h.git.ConfigSet(
			"user.name", id.Name, false,
		); err != nil {
			return fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}
	}

	if id.Email != "" {
		if err := h.git.ConfigSet(
			"user.email", id.Email, false,
		); err != nil {
			return fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}
	}

	return nil
}

// RemoteDetail returns the parsed remote, valid after a
// successful Configure.
func (h *Helper) RemoteDetail() (RemoteDetail, bool) {
	if h.detail == nil {
		return RemoteDetail{}, false
	}

	return *h.detail, true
}

func (h *Helper) extraheaderKey() string {
	return "http." + h.remoteURL + "/.extraheader"
}

// AuthorizationHeader renders the extraheader value that
// authenticates https operations with the given token.
func AuthorizationHeader(token string) string {
	credentials := base64.StdEncoding.EncodeToString(
		[]byte(tokenUser + ":" + token),
	)

	return "AUTHORIZATION: basic " + credentials
}
