// Package auth models git credentials and formats them into
// the authentication string each hosting provider expects in
// HTTPS clone URLs.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/byte4ever/gitsync/secrets"
)

// ErrMissingToken is returned when credential fields carry
// no secret at all.
var ErrMissingToken = errors.New(
	"please provide a token or password to clone a repo",
)

// ErrMissingUsername is returned for Bitbucket Server hosts
// when no username accompanies the token.
var ErrMissingUsername = errors.New(
	"please provide a username and a password or token to " +
		"clone a repo from bitbucket server",
)

// Fields are resolved plaintext credential fields. When more
// than one secret field is set, precedence is AccessToken,
// then Token, then Password.
type Fields struct {
	Username    string
	AccessToken string
	Token       string
	Password    string
}

// secret returns the first non-empty secret field.
func (f Fields) secret() string {
	for _, s := range []string{
		f.AccessToken, f.Token, f.Password,
	} {
		if s != "" {
			return s
		}
	}

	return ""
}

// Kind tags the credential representation in use.
type Kind int

const (
	// KindNone means no credentials are configured.
	KindNone Kind = iota
	// KindInline means inline fields, optionally with a
	// secret-backed access token.
	KindInline
	// KindSecretRef means the whole credential set is one
	// externally stored secret resolving to the token.
	KindSecretRef
)

// Credentials is the tagged union of the three credential
// representations a storage descriptor may carry. Exactly
// one representation is active at a time; use Kind to
// branch.
type Credentials struct {
	Fields

	// TokenSecret, when set, supplies the access token
	// from secret storage instead of Fields.AccessToken.
	TokenSecret secrets.Secret

	// Ref, when set, marks the entire credential set as an
	// external secret reference. It resolves to the access
	// token and takes precedence over all other fields.
	Ref secrets.Secret
}

// Kind returns the active representation.
func (c Credentials) Kind() Kind {
	switch {
	case c.Ref != nil:
		return KindSecretRef
	case c.TokenSecret != nil,
		c.Fields != (Fields{}):
		return KindInline
	default:
		return KindNone
	}
}

// None reports whether no credentials are configured.
func (c Credentials) None() bool {
	return c.Kind() == KindNone
}

// Validate checks construction-time invariants: a username
// requires an accompanying secret field.
func (c Credentials) Validate() error {
	const errCtx = "validating credentials"

	if c.Kind() != KindInline {
		return nil
	}

	if c.Username != "" &&
		c.secret() == "" &&
		c.TokenSecret == nil {
		return fmt.Errorf(
			"%s: if a username is provided, an access "+
				"token must also be provided",
			errCtx,
		)
	}

	return nil
}

// Resolve materializes plaintext credential fields,
// consulting secret storage where needed.
func (c Credentials) Resolve() (Fields, error) {
	const errCtx = "resolving credentials"

	switch c.Kind() {
	case KindNone:
		return Fields{}, nil

	case KindSecretRef:
		value, err := c.Ref.Get()
		if err != nil {
			return Fields{}, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return Fields{AccessToken: value}, nil

	default:
		resolved := c.Fields

		if c.TokenSecret != nil {
			value, err := c.TokenSecret.Get()
			if err != nil {
				return Fields{}, fmt.Errorf(
					"%s: %w", errCtx, err,
				)
			}

			resolved.AccessToken = value
		}

		return resolved, nil
	}
}

// FormatToken produces the "user:secret" authentication
// string the hosting provider at host expects in an HTTPS
// clone URL.
//
// Bitbucket Cloud wants an "x-token-auth:" prefix, GitLab an
// "oauth2:" prefix, and Bitbucket Server a real username
// with the token. Both prefixes are applied idempotently.
// The Bitbucket Server check must run before the Bitbucket
// Cloud check because the server host pattern contains
// "bitbucket" as a substring. All other hosts (GitHub among
// them) take the secret verbatim.
func FormatToken(host string, f Fields) (string, error) {
	const errCtx = "formatting credentials"

	token := f.secret()
	if token == "" {
		return "", fmt.Errorf(
			"%s: %w", errCtx, ErrMissingToken,
		)
	}

	// An explicit username always wins, on any host.
	if f.Username != "" {
		if strings.Contains(host, "bitbucketserver") &&
			strings.Contains(token, f.Username) {
			// Username already embedded in the token;
			// do not duplicate it.
			return token, nil
		}

		return f.Username + ":" + token, nil
	}

	switch {
	case strings.Contains(host, "bitbucketserver"):
		if !strings.Contains(token, ":") {
			return "", fmt.Errorf(
				"%s: %w", errCtx, ErrMissingUsername,
			)
		}

		return token, nil

	case strings.Contains(host, "bitbucket"):
		if strings.HasPrefix(token, "x-token-auth:") ||
			strings.Contains(token, ":") {
			return token, nil
		}

		return "x-token-auth:" + token, nil

	case strings.Contains(host, "gitlab"):
		if strings.HasPrefix(token, "oauth2:") {
			return token, nil
		}

		return "oauth2:" + token, nil
	}

	return token, nil
}
