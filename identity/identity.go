// Package identity resolves git author/committer identity
// strings of the form "Display Name <email@example.com>"
// into structured values.
package identity

import (
	"fmt"
	"regexp"
	"strings"
)

// Identity is a git user identity used to parameterize
// commits. It is never persisted.
type Identity struct {
	// Name is the display name.
	Name string
	// Email is the email address; may be empty when the
	// source string carried no address.
	Email string
}

// String renders the identity back into the canonical
// "Name <email>" form.
func (id Identity) String() string {
	if id.Email == "" {
		return id.Name
	}

	return fmt.Sprintf("%s <%s>", id.Name, id.Email)
}

var nameEmailRe = regexp.MustCompile(
	`^(.+?)\s*<([^>]+)>$`,
)

// Parse resolves an identity string. Accepts
// "Name <email>" or a bare name (empty email). An empty
// string is a configuration error.
func Parse(value string) (Identity, error) {
	const errCtx = "parsing identity"

	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Identity{}, fmt.Errorf(
			"%s: identity string is empty", errCtx,
		)
	}

	m := nameEmailRe.FindStringSubmatch(trimmed)
	if m != nil {
		return Identity{
			Name:  strings.TrimSpace(m[1]),
			Email: strings.TrimSpace(m[2]),
		}, nil
	}

	// A bare name without an address is accepted for
	// backward compatibility.
	return Identity{Name: trimmed}, nil
}
