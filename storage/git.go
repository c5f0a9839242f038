package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	oe "os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/byte4ever/gitsync/auth"
	"github.com/byte4ever/gitsync/execx"
	"github.com/byte4ever/gitsync/urls"
)

// MismatchError reports that the working copy already
// present at Destination tracks a different repository than
// the one configured. The working copy is never overwritten.
type MismatchError struct {
	Destination string
	Configured  string
	Existing    string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf(
		"the existing repository at %s (%s) does not "+
			"match the configured repository %s",
		e.Destination, e.Existing, e.Configured,
	)
}

// GitConfig holds the settings for a GitRepository.
type GitConfig struct {
	// URL is the repository clone URL.
	URL string

	// Name identifies the local directory. When empty it
	// is derived from the URL's last path segment (minus
	// any ".git" suffix), suffixed with the branch name
	// when Branch is set.
	Name string

	// Branch to sync. Empty means the provider's default
	// branch.
	Branch string

	// Credentials used when pulling from the repository.
	Credentials auth.Credentials

	// IncludeSubmodules enables submodule recursion.
	IncludeSubmodules bool

	// PullInterval is the sync cadence. Nil means the
	// storage performs a one-time sync and the caller owns
	// re-invocation.
	PullInterval *time.Duration
}

// GitRepository pulls the contents of a git repository to
// the local filesystem. It implements RunnerStorage.
//
// History is always shallow (depth 1) to bound transfer
// size and disk use. The object holds no on-disk locks;
// callers must serialize PullCode per destination.
type GitRepository struct {
	url               string
	branch            string
	name              string
	credentials       auth.Credentials
	includeSubmodules bool
	pullInterval      *time.Duration
	basePath          string
	logger            *slog.Logger
}

// NewGitRepository validates cfg and returns a GitRepository
// rooted at the process working directory until SetBasePath
// is called.
func NewGitRepository(
	cfg GitConfig,
) (*GitRepository, error) {
	const errCtx = "creating git repository storage"

	if cfg.URL == "" {
		return nil, fmt.Errorf(
			"%s: url must be set", errCtx,
		)
	}

	if err := cfg.Credentials.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: parse url: %w", errCtx, err,
		)
	}

	name := cfg.Name
	if name == "" {
		name = deriveName(parsed, cfg.Branch)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf(
			"%s: working directory: %w", errCtx, err,
		)
	}

	return &GitRepository{
		url:               cfg.URL,
		branch:            cfg.Branch,
		name:              name,
		credentials:       cfg.Credentials,
		includeSubmodules: cfg.IncludeSubmodules,
		pullInterval:      cfg.PullInterval,
		basePath:          cwd,
		logger:            slog.With("repo", name),
	}, nil
}

// deriveName builds the default local directory name from
// the URL's last path segment. Distinct branches of the same
// repository get distinct names.
func deriveName(u *url.URL, branch string) string {
	name := strings.TrimSuffix(
		path.Base(u.Path), ".git",
	)

	if branch != "" {
		name = name + "-" + branch
	}

	return name
}

// SetBasePath sets the parent directory for Destination.
// It never migrates existing on-disk content.
func (g *GitRepository) SetBasePath(p string) {
	g.basePath = p
}

// Destination is basePath joined with the repository name.
func (g *GitRepository) Destination() string {
	return filepath.Join(g.basePath, g.name)
}

// PullInterval returns the configured sync cadence; nil
// means one-time sync.
func (g *GitRepository) PullInterval() *time.Duration {
	return g.pullInterval
}

// Equal reports identity: url, branch, and name. Credentials
// and pull interval are deliberately excluded so credential
// rotation or cadence changes do not invalidate identity.
func (g *GitRepository) Equal(other RunnerStorage) bool {
	o, ok := other.(*GitRepository)
	if !ok {
		return false
	}

	return g.url == o.url &&
		g.branch == o.branch &&
		g.name == o.name
}

func (g *GitRepository) String() string {
	return fmt.Sprintf(
		"git-repository %s (%s)", g.name, g.url,
	)
}

// PullCode syncs the repository to Destination: an update
// when a working copy is already present, a shallow clone
// otherwise. Cancelling ctx terminates the git process.
func (g *GitRepository) PullCode(
	ctx context.Context,
) error {
	dest := g.Destination()

	g.logger.Debug(
		"pulling contents from repository",
		"destination", dest,
	)

	gitDir := filepath.Join(dest, ".git")
	if _, err := os.Stat(gitDir); err == nil {
		return g.update(ctx, dest)
	}

	return g.clone(ctx, dest)
}

// update verifies that the existing working copy tracks the
// configured repository, then pulls the latest changes.
func (g *GitRepository) update(
	ctx context.Context,
	dest string,
) error {
	const errCtx = "updating repository"

	out, err := execx.Run(
		ctx, dest,
		"git", "config", "--get", "remote.origin.url",
	)
	if err != nil {
		return fmt.Errorf(
			"%s: read remote url: %w", errCtx, err,
		)
	}

	existing, err := urls.StripAuth(
		strings.TrimSpace(out),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	// The configured URL is stripped too: credentials
	// supplied directly in the URL must not cause a
	// false mismatch.
	configured, err := urls.StripAuth(g.url)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if existing != configured {
		return &MismatchError{
			Destination: dest,
			Configured:  g.url,
			Existing:    existing,
		}
	}

	g.logger.Debug(
		"pulling latest changes",
		"branch", g.branch,
	)

	args := []string{"pull", "origin"}
	if g.branch != "" {
		args = append(args, g.branch)
	}

	if g.includeSubmodules {
		args = append(args, "--recurse-submodules")
	}

	args = append(args, "--depth", "1")

	if _, err := execx.Run(
		ctx, dest, "git", args...,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// clone performs a shallow clone into dest. When credentials
// are involved, neither the command line nor the underlying
// cause appears in the returned error.
func (g *GitRepository) clone(
	ctx context.Context,
	dest string,
) error {
	const errCtx = "cloning repository"

	g.logger.Debug("cloning repository", "url", g.url)

	cloneURL, err := g.authenticatedURL()
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	args := []string{"clone", cloneURL}
	if g.branch != "" {
		args = append(args, "--branch", g.branch)
	}

	if g.includeSubmodules {
		args = append(args, "--recurse-submodules")
	}

	args = append(args, "--depth", "1", dest)

	if g.credentials.None() {
		if _, err := execx.Run(
			ctx, "", "git", args...,
		); err != nil {
			return fmt.Errorf(
				"%s: %s: %w", errCtx, g.url, err,
			)
		}

		return nil
	}

	if err := execx.RunQuiet(
		ctx, "", "git", args...,
	); err != nil {
		// The command line carries the access token, so
		// the error reports the exit code only.
		code := -1

		var exitErr *oe.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}

		return fmt.Errorf(
			"%s: failed to clone repository %s with "+
				"exit code %d",
			errCtx, g.url, code,
		)
	}

	return nil
}

// authenticatedURL builds the clone URL with provider
// formatted credentials injected as user-info. Only https
// URLs are rewritten; everything else is used as-is.
func (g *GitRepository) authenticatedURL() (string, error) {
	const errCtx = "building authenticated url"

	if g.credentials.None() {
		return g.url, nil
	}

	parsed, err := url.Parse(g.url)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	if parsed.Scheme != "https" {
		return g.url, nil
	}

	fields, err := g.credentials.Resolve()
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	formatted, err := auth.FormatToken(
		parsed.Host, fields,
	)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	user, pass, ok := strings.Cut(formatted, ":")
	if ok {
		parsed.User = url.UserPassword(user, pass)
	} else {
		parsed.User = url.User(formatted)
	}

	return parsed.String(), nil
}
