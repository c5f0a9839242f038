package provider_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/gitsync/provider"
	"github.com/byte4ever/gitsync/provider/bitbucket"
	"github.com/byte4ever/gitsync/provider/github"
	"github.com/byte4ever/gitsync/provider/gitlab"
)

func TestForURL_github(t *testing.T) {
	t.Parallel()

	ck, err := provider.ForURL(
		"https://github.com/org/repo.git", "tok",
	)

	require.NoError(t, err)
	assert.IsType(t, &github.Checker{}, ck)
}

func TestForURL_github_enterprise(t *testing.T) {
	t.Parallel()

	ck, err := provider.ForURL(
		"https://github.corp.example.com/org/repo.git",
		"tok",
	)

	require.NoError(t, err)
	assert.IsType(t, &github.Checker{}, ck)
}

func TestForURL_gitlab(t *testing.T) {
	t.Parallel()

	ck, err := provider.ForURL(
		"https://gitlab.com/group/sub/project.git", "tok",
	)

	require.NoError(t, err)
	assert.IsType(t, &gitlab.Checker{}, ck)
}

func TestForURL_bitbucket(t *testing.T) {
	t.Parallel()

	ck, err := provider.ForURL(
		"https://bitbucket.org/org/repo.git", "tok",
	)

	require.NoError(t, err)
	assert.IsType(t, &bitbucket.Checker{}, ck)
}

func TestForURL_unknown_host_skipped(t *testing.T) {
	t.Parallel()

	ck, err := provider.ForURL(
		"https://git.example.com/org/repo.git", "tok",
	)

	require.NoError(t, err)
	assert.Nil(t, ck)
}

func TestForURL_no_token_skipped(t *testing.T) {
	t.Parallel()

	ck, err := provider.ForURL(
		"https://github.com/org/repo.git", "",
	)

	require.NoError(t, err)
	assert.Nil(t, ck)
}

func TestForURL_github_without_owner(t *testing.T) {
	t.Parallel()

	_, err := provider.ForURL(
		"https://github.com/repo.git", "tok",
	)

	assert.Error(t, err)
}
