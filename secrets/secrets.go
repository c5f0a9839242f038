// Package secrets defines the secret resolution capability
// used by storage objects, together with file- and
// environment-backed stores.
//
// A Secret resolves to its plaintext value on demand and can
// produce a non-secret placeholder token for use in
// serialized pull steps. Storage code never reads secret
// storage directly; it only holds Secret handles.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// PlaceholderPrefix namespaces placeholder tokens emitted
// into pull steps. The full token for a secret named "tok"
// is "gitsync.secrets.tok".
const PlaceholderPrefix = "gitsync.secrets."

// ErrNotFound is returned when a store has no secret with
// the requested name.
var ErrNotFound = errors.New("secret not found")

// Secret is a handle to one externally stored secret value.
type Secret interface {
	// Get resolves the plaintext value.
	Get() (string, error)

	// Placeholder returns a non-secret token that
	// references this secret in serialized steps.
	Placeholder() string
}

// Store resolves secret names to Secret handles.
type Store interface {
	Secret(name string) (Secret, error)
}

// storeSecret is a Secret whose value was already resolved
// by its store.
type storeSecret struct {
	name  string
	value string
}

func (s storeSecret) Get() (string, error) {
	return s.value, nil
}

func (s storeSecret) Placeholder() string {
	return PlaceholderPrefix + s.name
}

// FileStore reads secrets from a YAML file mapping secret
// names to plaintext values.
type FileStore struct {
	values map[string]string
}

// NewFileStore loads the YAML secret file at path. The file
// must not be group- or world-readable.
func NewFileStore(path string) (*FileStore, error) {
	const errCtx = "loading secret file"

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if info.Mode().Perm()&0o077 != 0 {
		return nil, fmt.Errorf(
			"%s: %s must not be readable by group or "+
				"others (mode %04o)",
			errCtx, path, info.Mode().Perm(),
		)
	}

	raw, err := os.ReadFile(path) //nolint:gosec // path from caller config
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	values := make(map[string]string)
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf(
			"%s: parse %s: %w", errCtx, path, err,
		)
	}

	return &FileStore{values: values}, nil
}

// Secret returns the named secret or ErrNotFound.
func (s *FileStore) Secret(name string) (Secret, error) {
	value, ok := s.values[name]
	if !ok {
		return nil, fmt.Errorf(
			"secret %q: %w", name, ErrNotFound,
		)
	}

	return storeSecret{name: name, value: value}, nil
}

// EnvStore resolves secrets from environment variables. A
// secret named "repo-token" maps to the variable
// "GITSYNC_SECRET_REPO_TOKEN".
type EnvStore struct{}

// Secret returns the named secret or ErrNotFound when the
// corresponding environment variable is unset.
func (EnvStore) Secret(name string) (Secret, error) {
	key := "GITSYNC_SECRET_" + strings.ToUpper(
		strings.NewReplacer("-", "_", ".", "_").
			Replace(name),
	)

	value, ok := os.LookupEnv(key)
	if !ok {
		return nil, fmt.Errorf(
			"secret %q (env %s): %w",
			name, key, ErrNotFound,
		)
	}

	return storeSecret{name: name, value: value}, nil
}

// Static wraps an in-memory value as a Secret. Intended for
// wiring and tests; the placeholder still references name.
func Static(name string, value string) Secret {
	return storeSecret{name: name, value: value}
}
