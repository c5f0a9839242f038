package storage_test

import (
	"context"
	"errors"
	"os"
	oe "os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/gitsync/auth"
	"github.com/byte4ever/gitsync/storage"
)

// initOriginRepo creates a git repository with one commit
// containing hello.txt, usable as a clone source over
// file://. Git hooks are disabled to avoid interference
// from pre-commit hooks.
func initOriginRepo(tb testing.TB) string {
	tb.Helper()

	dir := filepath.Join(tb.TempDir(), "origin")

	err := os.MkdirAll(dir, 0o750)
	require.NoError(tb, err)

	gitCmd(tb, dir, "init", "-b", "main")
	gitCmd(tb, dir, "config", "user.email", "test@test.com")
	gitCmd(tb, dir, "config", "user.name", "Test")
	gitCmd(tb, dir, "config", "core.hooksPath", "/dev/null")

	writeFile(tb, filepath.Join(dir, "hello.txt"), "v1\n")
	gitCmd(tb, dir, "add", "hello.txt")
	gitCmd(tb, dir, "commit", "-m", "initial")

	return dir
}

// gitCmd runs a git command in the given directory.
func gitCmd(
	tb testing.TB,
	dir string,
	args ...string,
) {
	tb.Helper()

	//nolint:gosec // test helper
	cmd := oe.CommandContext(
		context.Background(), "git", args...,
	)
	cmd.Dir = dir

	out, err := cmd.CombinedOutput()
	if err != nil {
		tb.Fatalf(
			"git %v failed: %s: %v",
			args, string(out), err,
		)
	}
}

func writeFile(
	tb testing.TB,
	path string,
	content string,
) {
	tb.Helper()

	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(tb, err)
}

func newFileStorage(
	tb testing.TB,
	origin string,
	basePath string,
) *storage.GitRepository {
	tb.Helper()

	st, err := storage.NewGitRepository(storage.GitConfig{
		URL:    "file://" + origin,
		Branch: "main",
	})
	require.NoError(tb, err)

	st.SetBasePath(basePath)

	return st
}

func TestPullCode_clones_when_absent(t *testing.T) {
	t.Parallel()

	origin := initOriginRepo(t)
	base := t.TempDir()

	st := newFileStorage(t, origin, base)

	err := st.PullCode(context.Background())
	require.NoError(t, err)

	assert.DirExists(
		t, filepath.Join(st.Destination(), ".git"),
	)
	assert.FileExists(
		t, filepath.Join(st.Destination(), "hello.txt"),
	)
}

func TestPullCode_updates_existing(t *testing.T) {
	t.Parallel()

	origin := initOriginRepo(t)
	base := t.TempDir()

	st := newFileStorage(t, origin, base)

	require.NoError(t, st.PullCode(context.Background()))

	// Advance the origin and sync again: the second call
	// must update, not re-clone.
	writeFile(t, filepath.Join(origin, "hello.txt"), "v2\n")
	gitCmd(t, origin, "commit", "-am", "update")

	require.NoError(t, st.PullCode(context.Background()))

	content, err := os.ReadFile(
		filepath.Join(st.Destination(), "hello.txt"),
	)
	require.NoError(t, err)
	assert.Equal(t, "v2\n", string(content))
}

func TestPullCode_mismatched_remote(t *testing.T) {
	t.Parallel()

	origin := initOriginRepo(t)
	base := t.TempDir()

	// Pre-populate the destination with a working copy
	// tracking a different repository.
	dest := filepath.Join(base, "origin-main")
	require.NoError(t, os.MkdirAll(dest, 0o750))

	gitCmd(t, dest, "init", "-b", "main")
	gitCmd(
		t, dest,
		"remote", "add", "origin",
		"https://example.com/other.git",
	)

	st := newFileStorage(t, origin, base)

	err := st.PullCode(context.Background())
	require.Error(t, err)

	var mismatch *storage.MismatchError

	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, dest, mismatch.Destination)
	assert.Equal(
		t,
		"https://example.com/other.git",
		mismatch.Existing,
	)
}

func TestPullCode_mismatch_ignores_embedded_auth(
	t *testing.T,
) {
	t.Parallel()

	origin := initOriginRepo(t)
	base := t.TempDir()

	st := newFileStorage(t, origin, base)

	require.NoError(t, st.PullCode(context.Background()))

	// Rewrite the working copy's remote to carry
	// userinfo; the comparison must still match. The
	// subsequent pull may fail (git cannot always fetch
	// over a file URL with userinfo) but it must never be
	// reported as a repository mismatch.
	gitCmd(
		t, st.Destination(),
		"remote", "set-url", "origin",
		"file://user:tok@"+origin,
	)

	err := st.PullCode(context.Background())

	var mismatch *storage.MismatchError

	assert.False(t, errors.As(err, &mismatch))
}

func TestPullCode_clone_failure_sanitized(t *testing.T) {
	t.Parallel()

	st, err := storage.NewGitRepository(storage.GitConfig{
		URL: "file:///nonexistent-gitsync/repo.git",
		Credentials: auth.Credentials{
			Fields: auth.Fields{
				AccessToken: "s3cret-token",
			},
		},
	})
	require.NoError(t, err)

	st.SetBasePath(t.TempDir())

	err = st.PullCode(context.Background())
	require.Error(t, err)

	// With credentials involved, the error reports the
	// exit code only: no command line, no token, no
	// wrapped cause.
	assert.Contains(t, err.Error(), "exit code")
	assert.NotContains(t, err.Error(), "s3cret-token")
	assert.Nil(t, errors.Unwrap(err))
}

func TestPullCode_clone_failure_unauthenticated(
	t *testing.T,
) {
	t.Parallel()

	st, err := storage.NewGitRepository(storage.GitConfig{
		URL: "file:///nonexistent-gitsync/repo.git",
	})
	require.NoError(t, err)

	st.SetBasePath(t.TempDir())

	err = st.PullCode(context.Background())
	require.Error(t, err)

	// Without credentials the underlying cause is
	// preserved for diagnosis.
	assert.NotNil(t, errors.Unwrap(err))
}
