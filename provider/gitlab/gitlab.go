package gitlab

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	gl "gitlab.com/gitlab-org/api/client-go"
)

// Config holds the settings needed to create a GitLab
// project checker.
type Config struct {
	// Host is the base URL of the GitLab instance
	// (e.g. "https://gitlab.com"). Leave empty for
	// gitlab.com.
	Host string
	// Project is the full project path
	// (e.g. "org/project").
	Project string
	// AccessToken is a personal or project access token
	// used for authentication.
	AccessToken string
}

// Checker verifies project access on GitLab.
//
// Pattern: Strategy -- implements provider.Checker.
type Checker struct {
	client  *gl.Client
	project string
}

// NewChecker validates cfg and returns a Checker ready to
// verify project access.
func NewChecker(cfg Config) (*Checker, error) {
	const errCtx = "creating gitlab checker"

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf(
			"%s: access token must be set", errCtx,
		)
	}

	if cfg.Project == "" {
		return nil, fmt.Errorf(
			"%s: project must be set", errCtx,
		)
	}

	host := cfg.Host
	if host == "" {
		host = "https://gitlab.com"
	}

	client, err := gl.NewClient(
		cfg.AccessToken,
		gl.WithBaseURL(host),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: new client: %w", errCtx, err,
		)
	}

	return &Checker{
		client:  client,
		project: cfg.Project,
	}, nil
}

// Check verifies that the project is visible with the
// configured token.
func (c *Checker) Check(ctx context.Context) error {
	const errCtx = "checking gitlab project"

	_, resp, err := c.client.Projects.GetProject(
		c.project, nil, gl.WithContext(ctx),
	)
	if err == nil {
		slog.Debug(
			"project reachable", "project", c.project,
		)

		return nil
	}

	// HTTP 404: GitLab reports both missing projects and
	// insufficient token scope as not found.
	if resp != nil &&
		resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf(
			"%s: project %s not found or token lacks "+
				"access",
			errCtx, c.project,
		)
	}

	return fmt.Errorf("%s: %w", errCtx, err)
}
