package storage

import (
	"errors"
	"fmt"

	"github.com/byte4ever/gitsync/auth"
	"github.com/byte4ever/gitsync/secrets"
)

// StepKeyGitClone is the step name a serialized git pull
// step is keyed under. Its shape is a stable contract the
// replay engine and external tooling depend on.
const StepKeyGitClone = "gitsync.steps.git_clone"

// ErrRawToken is returned by ToPullStep when inline
// credentials carry a plaintext secret. Replayable steps
// must only ever reference secrets by placeholder.
var ErrRawToken = errors.New(
	"please save your access token in a secret store " +
		"before converting this storage to a pull step",
)

// GitCloneStep is the declarative body of a git clone pull
// step.
//
// Credentials is either a placeholder string (the whole
// credential set references one stored secret) or a
// map[string]string of credential fields whose secret values
// are placeholders.
type GitCloneStep struct {
	Repository  string `json:"repository"             yaml:"repository"`
	Branch      string `json:"branch,omitempty"       yaml:"branch,omitempty"`
	Credentials any    `json:"credentials,omitempty"  yaml:"credentials,omitempty"`
}

// PullStep maps a step name to its declarative body.
type PullStep map[string]GitCloneStep

// ToPullStep renders this storage as a replayable step. The
// plaintext of secret-backed tokens never appears in the
// output; raw inline tokens are rejected with ErrRawToken.
func (g *GitRepository) ToPullStep() (PullStep, error) {
	const errCtx = "serializing pull step"

	step := GitCloneStep{
		Repository: g.url,
		Branch:     g.branch,
	}

	switch g.credentials.Kind() {
	case auth.KindNone:
		// No credentials field at all.

	case auth.KindSecretRef:
		step.Credentials = placeholder(g.credentials.Ref)

	case auth.KindInline:
		if g.credentials.TokenSecret == nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, ErrRawToken,
			)
		}

		fields := map[string]string{
			"access_token": placeholder(
				g.credentials.TokenSecret,
			),
		}
		if g.credentials.Username != "" {
			fields["username"] = g.credentials.Username
		}

		step.Credentials = fields
	}

	return PullStep{StepKeyGitClone: step}, nil
}

// placeholder wraps a secret reference in template braces.
func placeholder(s secrets.Secret) string {
	return "{{ " + s.Placeholder() + " }}"
}
