// Package config loads the YAML manifest describing which
// repositories a runner keeps in sync.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/byte4ever/gitsync/auth"
	"github.com/byte4ever/gitsync/secrets"
	"github.com/byte4ever/gitsync/storage"
)

// File is the top-level manifest.
type File struct {
	// BasePath is the directory repositories are pulled
	// into. Empty means the process working directory.
	BasePath string `yaml:"base_path"`

	// SecretStore is the path of a YAML secret file.
	// Empty means secrets resolve from the environment.
	SecretStore string `yaml:"secret_store"`

	// Repositories lists the synchronization targets.
	Repositories []Repository `yaml:"repositories"`
}

// Repository describes one synchronization target.
type Repository struct {
	URL               string       `yaml:"url"`
	Name              string       `yaml:"name"`
	Branch            string       `yaml:"branch"`
	IncludeSubmodules bool         `yaml:"include_submodules"`
	Credentials       *Credentials `yaml:"credentials"`

	// PullIntervalSeconds is the sync cadence. Absent
	// means one-time sync.
	PullIntervalSeconds *int `yaml:"pull_interval_seconds"`
}

// Credentials selects one credential representation. At
// most one of AccessToken, AccessTokenSecret, and Secret
// may be set.
type Credentials struct {
	Username string `yaml:"username"`

	// AccessToken is a raw inline token. It works for
	// pulling but blocks pull step serialization; prefer
	// AccessTokenSecret.
	AccessToken string `yaml:"access_token"`

	// AccessTokenSecret names a secret store entry
	// holding the token.
	AccessTokenSecret string `yaml:"access_token_secret"`

	// Secret names a secret store entry holding the whole
	// credential set.
	Secret string `yaml:"secret"`
}

// Load reads and validates the manifest at path.
func Load(path string) (*File, error) {
	const errCtx = "loading config"

	raw, err := os.ReadFile(path) //nolint:gosec // path from CLI flag
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	var file File
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf(
			"%s: parse %s: %w", errCtx, path, err,
		)
	}

	if err := file.validate(); err != nil {
		return nil, fmt.Errorf(
			"%s: %s: %w", errCtx, path, err,
		)
	}

	return &file, nil
}

func (f *File) validate() error {
	if len(f.Repositories) == 0 {
		return fmt.Errorf(
			"at least one repository must be configured",
		)
	}

	for i, repo := range f.Repositories {
		if repo.URL == "" {
			return fmt.Errorf(
				"repository %d: url must be set", i,
			)
		}

		if repo.PullIntervalSeconds != nil &&
			*repo.PullIntervalSeconds < 0 {
			return fmt.Errorf(
				"repository %d: pull interval must be "+
					"non-negative", i,
			)
		}

		if c := repo.Credentials; c != nil {
			set := 0
			for _, v := range []string{
				c.AccessToken,
				c.AccessTokenSecret,
				c.Secret,
			} {
				if v != "" {
					set++
				}
			}

			if set > 1 {
				return fmt.Errorf(
					"repository %d: access_token, "+
						"access_token_secret, and secret "+
						"are mutually exclusive", i,
				)
			}
		}
	}

	return nil
}

// SecretResolver returns the secret store the manifest
// selects: a file store when secret_store is set, the
// environment otherwise.
func (f *File) SecretResolver() (secrets.Store, error) {
	const errCtx = "creating secret store"

	if f.SecretStore == "" {
		return secrets.EnvStore{}, nil
	}

	store, err := secrets.NewFileStore(f.SecretStore)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return store, nil
}

// Storage builds the storage object for one repository
// entry, resolving named secrets through store.
func (r Repository) Storage(
	store secrets.Store,
) (storage.RunnerStorage, error) {
	const errCtx = "building storage from config"

	creds, err := r.credentials(store)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	var pullInterval *time.Duration
	if r.PullIntervalSeconds != nil {
		interval := time.Duration(
			*r.PullIntervalSeconds,
		) * time.Second
		pullInterval = &interval
	}

	st, err := storage.NewGitRepository(
		storage.GitConfig{
			URL:               r.URL,
			Name:              r.Name,
			Branch:            r.Branch,
			Credentials:       creds,
			IncludeSubmodules: r.IncludeSubmodules,
			PullInterval:      pullInterval,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return st, nil
}

func (r Repository) credentials(
	store secrets.Store,
) (auth.Credentials, error) {
	if r.Credentials == nil {
		return auth.Credentials{}, nil
	}

	creds := auth.Credentials{
		Fields: auth.Fields{
			Username:    r.Credentials.Username,
			AccessToken: r.Credentials.AccessToken,
		},
	}

	if name := r.Credentials.AccessTokenSecret; name != "" {
		sec, err := store.Secret(name)
		if err != nil {
			return auth.Credentials{}, err
		}

		creds.TokenSecret = sec
	}

	if name := r.Credentials.Secret; name != "" {
		sec, err := store.Secret(name)
		if err != nil {
			return auth.Credentials{}, err
		}

		creds.Ref = sec
	}

	return creds, nil
}

// Storages builds storage objects for every repository in
// the manifest.
func (f *File) Storages(
	store secrets.Store,
) ([]storage.RunnerStorage, error) {
	const errCtx = "building storages from config"

	out := make(
		[]storage.RunnerStorage, 0, len(f.Repositories),
	)

	for i, repo := range f.Repositories {
		st, err := repo.Storage(store)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: repository %d: %w", errCtx, i, err,
			)
		}

		out = append(out, st)
	}

	return out, nil
}
