// Package provider verifies repository access through git
// hosting provider APIs before the first clone.
//
// A failed preflight turns an opaque git exit status into a
// clear configuration error. The Checker interface abstracts
// the platform; implementations exist for GitHub, GitLab,
// and Bitbucket Cloud in sub-packages. Hosts no
// implementation recognises are skipped, never failed.
package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/byte4ever/gitsync/provider/bitbucket"
	"github.com/byte4ever/gitsync/provider/github"
	"github.com/byte4ever/gitsync/provider/gitlab"
)

// Checker verifies that a repository is reachable with the
// configured token.
//
// Pattern: Strategy -- swap git platform without changing
// preflight logic.
type Checker interface {
	Check(ctx context.Context) error
}

// ForURL selects a Checker for the repository URL, or nil
// when the host is not recognised or no token is available
// (preflight is skipped in both cases).
func ForURL(rawURL string, token string) (Checker, error) {
	const errCtx = "selecting preflight checker"

	if token == "" {
		return nil, nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	host := parsed.Hostname()
	project := strings.TrimSuffix(
		strings.Trim(parsed.Path, "/"), ".git",
	)

	switch {
	case strings.Contains(host, "gitlab"):
		baseURL := ""
		if host != "gitlab.com" {
			baseURL = "https://" + parsed.Host
		}

		ck, err := gitlab.NewChecker(gitlab.Config{
			Host:        baseURL,
			Project:     project,
			AccessToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return ck, nil

	case strings.Contains(host, "github"):
		owner, repo, ok := strings.Cut(project, "/")
		if !ok {
			return nil, fmt.Errorf(
				"%s: url %s has no owner/repo path",
				errCtx, rawURL,
			)
		}

		enterpriseHost := ""
		if host != "github.com" {
			enterpriseHost = parsed.Host
		}

		ck, err := github.NewChecker(github.Config{
			RepoOwner:      owner,
			Repo:           repo,
			AccessToken:    token,
			EnterpriseHost: enterpriseHost,
		})
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return ck, nil

	case host == "bitbucket.org":
		ck, err := bitbucket.NewChecker(bitbucket.Config{
			APIEndpoint: "https://api.bitbucket.org" +
				"/2.0/repositories/" + project,
			User:     "x-token-auth",
			Password: token,
		})
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return ck, nil
	}

	return nil, nil
}
