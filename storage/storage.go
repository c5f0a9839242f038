// Package storage synchronizes remotely stored workflow
// code to the local filesystem on behalf of a runner.
//
// The RunnerStorage interface abstracts one remote code
// location. GitRepository is the git-backed implementation;
// it shells out to the git tool for all repository
// operations. NewFromURL selects an implementation for a
// URL through an open backend registry.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultPullInterval is applied by NewFromURL when the
// caller does not specify a cadence.
const DefaultPullInterval = 60 * time.Second

// ErrUnsupportedURL is returned by NewFromURL when no
// registered backend can handle the URL.
var ErrUnsupportedURL = errors.New(
	"unsupported storage URL: only git URLs are supported",
)

// RunnerStorage is one remote code location a runner can
// sync to the local filesystem.
type RunnerStorage interface {
	// SetBasePath sets the parent directory that local
	// contents are pulled into. Call it before the first
	// PullCode; it performs no filesystem operations.
	SetBasePath(path string)

	// PullInterval returns the cadence at which contents
	// should be re-pulled. Nil means one-time sync; the
	// caller owns any re-invocation policy. This component
	// never schedules itself.
	PullInterval() *time.Duration

	// Destination is the local path contents are pulled
	// to.
	Destination() string

	// PullCode syncs remote contents to Destination. Each
	// call is a complete sync attempt.
	PullCode(ctx context.Context) error

	// ToPullStep renders a replayable step description of
	// this storage without touching git or the
	// filesystem.
	ToPullStep() (PullStep, error)

	// Equal reports whether other identifies the same
	// storage target.
	Equal(other RunnerStorage) bool
}

// Builder constructs a storage object for a matched URL.
type Builder func(
	rawURL string,
	pullInterval *time.Duration,
) (RunnerStorage, error)

// backend pairs a URL predicate with its builder.
type backend struct {
	matches func(u *url.URL) bool
	build   Builder
}

var (
	backendsMu sync.Mutex
	backends   []backend
)

// RegisterBackend adds a storage backend to the factory.
// Backends are consulted in registration order. Intended to
// be called from package init functions.
func RegisterBackend(
	matches func(u *url.URL) bool,
	build Builder,
) {
	backendsMu.Lock()
	defer backendsMu.Unlock()

	backends = append(backends, backend{
		matches: matches,
		build:   build,
	})
}

// NewFromURL creates a storage object for rawURL. A nil
// pullInterval selects DefaultPullInterval. Returns
// ErrUnsupportedURL when no backend matches.
func NewFromURL(
	rawURL string,
	pullInterval *time.Duration,
) (RunnerStorage, error) {
	const errCtx = "creating storage from url"

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if pullInterval == nil {
		interval := DefaultPullInterval
		pullInterval = &interval
	}

	backendsMu.Lock()
	defer backendsMu.Unlock()

	for _, bk := range backends {
		if !bk.matches(parsed) {
			continue
		}

		st, err := bk.build(rawURL, pullInterval)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return st, nil
	}

	return nil, fmt.Errorf(
		"%s: %s: %w", errCtx, rawURL, ErrUnsupportedURL,
	)
}

//nolint:gochecknoinits // backend self-registration
func init() {
	RegisterBackend(
		func(u *url.URL) bool {
			return u.Scheme == "git" ||
				strings.HasSuffix(u.Path, ".git")
		},
		func(
			rawURL string,
			pullInterval *time.Duration,
		) (RunnerStorage, error) {
			return NewGitRepository(GitConfig{
				URL:          rawURL,
				PullInterval: pullInterval,
			})
		},
	)
}
