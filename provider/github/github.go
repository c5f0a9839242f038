package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	gh "github.com/google/go-github/v68/github"
)

// Config holds the settings needed to create a GitHub
// repository checker.
type Config struct {
	// RepoOwner is the GitHub user or organisation that
	// owns the repository.
	RepoOwner string
	// Repo is the repository name (without owner).
	Repo string
	// AccessToken is a personal access token or GitHub
	// App token used for authentication.
	AccessToken string
	// EnterpriseHost is an optional GitHub Enterprise
	// hostname (e.g. "git.corp.example.com"). Leave empty
	// for github.com.
	EnterpriseHost string
}

// Checker verifies repository access on GitHub.
//
// Pattern: Strategy -- implements provider.Checker.
type Checker struct {
	client    *gh.Client
	repoOwner string
	repo      string
}

// NewChecker validates cfg and returns a Checker ready to
// verify repository access.
func NewChecker(cfg Config) (*Checker, error) {
	const errCtx = "creating github checker"

	if cfg.RepoOwner == "" {
		return nil, fmt.Errorf(
			"%s: repo owner must be set", errCtx,
		)
	}

	if cfg.Repo == "" {
		return nil, fmt.Errorf(
			"%s: repo must be set", errCtx,
		)
	}

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf(
			"%s: access token must be set", errCtx,
		)
	}

	client := gh.NewClient(nil).
		WithAuthToken(cfg.AccessToken)

	if cfg.EnterpriseHost != "" {
		baseURL := "https://" +
			cfg.EnterpriseHost + "/api/v3/"
		uploadURL := "https://" +
			cfg.EnterpriseHost + "/api/uploads/"

		var err error

		client, err = client.WithEnterpriseURLs(
			baseURL, uploadURL,
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: enterprise urls: %w", errCtx, err,
			)
		}
	}

	return &Checker{
		client:    client,
		repoOwner: cfg.RepoOwner,
		repo:      cfg.Repo,
	}, nil
}

// Check verifies that the repository is visible with the
// configured token.
func (c *Checker) Check(ctx context.Context) error {
	const errCtx = "checking github repository"

	_, resp, err := c.client.Repositories.Get(
		ctx, c.repoOwner, c.repo,
	)
	if err == nil {
		slog.Debug(
			"repository reachable",
			"owner", c.repoOwner,
			"repo", c.repo,
		)

		return nil
	}

	// HTTP 404: GitHub reports both missing repositories
	// and insufficient token scope as not found.
	if resp != nil &&
		resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf(
			"%s: repository %s/%s not found or token "+
				"lacks access",
			errCtx, c.repoOwner, c.repo,
		)
	}

	return fmt.Errorf("%s: %w", errCtx, err)
}
