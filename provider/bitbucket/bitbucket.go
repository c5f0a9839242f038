package bitbucket

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	json "github.com/goccy/go-json"
)

// Config holds the settings needed to create a Bitbucket
// repository checker.
type Config struct {
	// APIEndpoint is the full REST API URL of the
	// repository resource (e.g.
	// "https://api.bitbucket.org/2.0/repositories/
	// workspace/repo").
	APIEndpoint string
	// User is the Bitbucket API username. Token-based
	// access uses "x-token-auth".
	User string
	// Password is the Bitbucket API password (or access
	// token).
	Password string
}

// Checker verifies repository access on Bitbucket.
//
// Pattern: Strategy -- implements provider.Checker.
type Checker struct {
	endpoint string
	user     string
	password string
}

// apiError mirrors the error payload of the Bitbucket REST
// API.
type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewChecker validates cfg and returns a Checker ready to
// verify repository access.
func NewChecker(cfg Config) (*Checker, error) {
	const errCtx = "creating bitbucket checker"

	if cfg.APIEndpoint == "" {
		return nil, fmt.Errorf(
			"%s: api endpoint must be set", errCtx,
		)
	}

	if cfg.User == "" {
		return nil, fmt.Errorf(
			"%s: user must be set", errCtx,
		)
	}

	if cfg.Password == "" {
		return nil, fmt.Errorf(
			"%s: password must be set", errCtx,
		)
	}

	return &Checker{
		endpoint: cfg.APIEndpoint,
		user:     cfg.User,
		password: cfg.Password,
	}, nil
}

// Check verifies that the repository resource answers with
// 200 for the configured credentials.
func (c *Checker) Check(ctx context.Context) error {
	const errCtx = "checking bitbucket repository"

	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.endpoint, nil,
	)
	if err != nil {
		return fmt.Errorf(
			"%s: build request: %w", errCtx, err,
		)
	}

	req.SetBasicAuth(c.user, c.password)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf(
			"%s: send request: %w", errCtx, err,
		)
	}

	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusOK {
		slog.Debug(
			"repository reachable",
			"endpoint", c.endpoint,
		)

		return nil
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf(
			"%s: repository not found or token lacks "+
				"access",
			errCtx,
		)
	}

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Warn(
			"cannot read response body", "error", err,
		)

		return fmt.Errorf(
			"%s: unexpected status %d",
			errCtx, resp.StatusCode,
		)
	}

	var payload apiError
	if err := json.Unmarshal(rb, &payload); err == nil &&
		payload.Error.Message != "" {
		return fmt.Errorf(
			"%s: unexpected status %d: %s",
			errCtx, resp.StatusCode,
			payload.Error.Message,
		)
	}

	return fmt.Errorf(
		"%s: unexpected status %d",
		errCtx, resp.StatusCode,
	)
}
