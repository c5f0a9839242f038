package gitlab_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gl "github.com/byte4ever/gitsync/provider/gitlab"
)

func TestNewChecker_valid(t *testing.T) {
	t.Parallel()

	ck, err := gl.NewChecker(gl.Config{
		Project:     "org/project",
		AccessToken: "tok",
	})

	require.NoError(t, err)
	assert.NotNil(t, ck)
}

func TestNewChecker_custom_host(t *testing.T) {
	t.Parallel()

	ck, err := gl.NewChecker(gl.Config{
		Host:        "https://gitlab.example.com",
		Project:     "org/project",
		AccessToken: "tok",
	})

	require.NoError(t, err)
	assert.NotNil(t, ck)
}

func TestNewChecker_missing_token(t *testing.T) {
	t.Parallel()

	ck, err := gl.NewChecker(gl.Config{
		Project: "org/project",
	})

	assert.Nil(t, ck)
	assert.ErrorContains(t, err, "access token")
}

func TestNewChecker_missing_project(t *testing.T) {
	t.Parallel()

	ck, err := gl.NewChecker(gl.Config{
		AccessToken: "tok",
	})

	assert.Nil(t, ck)
	assert.ErrorContains(t, err, "project")
}
