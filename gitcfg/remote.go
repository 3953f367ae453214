package gitcfg

import (
	"fmt"
	"regexp"
	"strings"
)

// Protocol is the transport scheme of a git remote URL.
type Protocol string

const (
	// ProtocolHTTPS is the https:// transport.
	ProtocolHTTPS Protocol = "https"
	// ProtocolSSH is the git@host: transport.
	ProtocolSSH Protocol = "ssh"
	// ProtocolGit is the anonymous git:// transport.
	ProtocolGit Protocol = "git"
)

// RemoteDetail is the decomposition of a git remote URL.
type RemoteDetail struct {
	// Protocol is the transport scheme.
	Protocol Protocol
	// Host is the git server hostname.
	Host string
	// Repository is the "owner/name" path on the host.
	Repository string
}

var (
	httpsURLRe = regexp.MustCompile(
		`^https://(?:[^@]+@)?([^/]+)/(.+?)(\.git)?$`,
	)
	sshURLRe = regexp.MustCompile(
		`^git@([^:]+):(.+?)(\.git)?$`,
	)
	gitURLRe = regexp.MustCompile(
		`^git://([^/]+)/(.+?)(\.git)?$`,
	)
)

// ParseRemoteURL decomposes a git remote URL in https, ssh,
// or git form.
func ParseRemoteURL(url string) (RemoteDetail, error) {
	url = strings.TrimSpace(url)

	if m := httpsURLRe.FindStringSubmatch(url); m != nil {
		return RemoteDetail{
			Protocol:   ProtocolHTTPS,
			Host:       m[1],
			Repository: m[2],
		}, nil
	}

	if m := sshURLRe.FindStringSubmatch(url); m != nil {
		return RemoteDetail{
			Protocol:   ProtocolSSH,
			Host:       m[1],
			Repository: m[2],
		}, nil
	}

	if m := gitURLRe.FindStringSubmatch(url); m != nil {
		return RemoteDetail{
			Protocol:   ProtocolGit,
			Host:       m[1],
			Repository: m[2],
		}, nil
	}

	return RemoteDetail{}, fmt.Errorf(
		"unparsable remote url %q", url,
	)
}

// URL renders the remote URL without credentials.
func (d RemoteDetail) URL() string {
	switch d.Protocol {
	case ProtocolSSH:
		return fmt.Sprintf(
			"git@%s:%s.git", d.Host, d.Repository,
		)
	case ProtocolGit:
		return fmt.Sprintf(
			"git://%s/%s.git", d.Host, d.Repository,
		)
	default:
		return fmt.Sprintf(
			"https://%s/%s.git", d.Host, d.Repository,
		)
	}
}

// AuthenticatedURL renders a push URL carrying the token as
// basic credentials. Only the https transport embeds the
// token; other transports authenticate out of band.
func (d RemoteDetail) AuthenticatedURL(
	token string,
) string {
	if d.Protocol == ProtocolHTTPS && token != "" {
		return fmt.Sprintf(
			"https://%s:%s@%s/%s.git",
			tokenUser, token, d.Host, d.Repository,
		)
	}

	return d.URL()
}
