package storage_test

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/gitsync/auth"
	"github.com/byte4ever/gitsync/secrets"
	"github.com/byte4ever/gitsync/storage"
)

func TestToPullStep_no_credentials(t *testing.T) {
	t.Parallel()

	st, err := storage.NewGitRepository(storage.GitConfig{
		URL:    "https://github.com/org/repo.git",
		Branch: "main",
	})
	require.NoError(t, err)

	step, err := st.ToPullStep()
	require.NoError(t, err)

	body, ok := step[storage.StepKeyGitClone]
	require.True(t, ok)

	assert.Equal(
		t, "https://github.com/org/repo.git",
		body.Repository,
	)
	assert.Equal(t, "main", body.Branch)
	assert.Nil(t, body.Credentials)
}

func TestToPullStep_secret_ref(t *testing.T) {
	t.Parallel()

	st, err := storage.NewGitRepository(storage.GitConfig{
		URL: "https://github.com/org/repo.git",
		Credentials: auth.Credentials{
			Ref: secrets.Static("gh-creds", "plaintext"),
		},
	})
	require.NoError(t, err)

	step, err := st.ToPullStep()
	require.NoError(t, err)

	body := step[storage.StepKeyGitClone]
	assert.Equal(
		t,
		"{{ gitsync.secrets.gh-creds }}",
		body.Credentials,
	)
}

func TestToPullStep_secret_backed_token(t *testing.T) {
	t.Parallel()

	st, err := storage.NewGitRepository(storage.GitConfig{
		URL: "https://github.com/org/repo.git",
		Credentials: auth.Credentials{
			Fields: auth.Fields{Username: "alice"},
			TokenSecret: secrets.Static(
				"repo-token", "plaintext",
			),
		},
	})
	require.NoError(t, err)

	step, err := st.ToPullStep()
	require.NoError(t, err)

	body := step[storage.StepKeyGitClone]

	fields, ok := body.Credentials.(map[string]string)
	require.True(t, ok)

	assert.Equal(t, "alice", fields["username"])
	assert.Equal(
		t,
		"{{ gitsync.secrets.repo-token }}",
		fields["access_token"],
	)
}

func TestToPullStep_never_leaks_plaintext(t *testing.T) {
	t.Parallel()

	st, err := storage.NewGitRepository(storage.GitConfig{
		URL: "https://github.com/org/repo.git",
		Credentials: auth.Credentials{
			TokenSecret: secrets.Static(
				"repo-token", "s3cret-value",
			),
		},
	})
	require.NoError(t, err)

	step, err := st.ToPullStep()
	require.NoError(t, err)

	raw, err := json.Marshal(step)
	require.NoError(t, err)

	assert.NotContains(t, string(raw), "s3cret-value")
	assert.Contains(
		t, string(raw), "gitsync.secrets.repo-token",
	)
}

func TestToPullStep_raw_token_rejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		fields auth.Fields
	}{
		{
			name: "raw access token",
			fields: auth.Fields{
				AccessToken: "tok",
			},
		},
		{
			name: "raw password",
			fields: auth.Fields{
				Username: "alice",
				Password: "pw",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			st, err := storage.NewGitRepository(
				storage.GitConfig{
					URL: "https://github.com/org/repo.git",
					Credentials: auth.Credentials{
						Fields: tt.fields,
					},
				},
			)
			require.NoError(t, err)

			_, err = st.ToPullStep()
			assert.ErrorIs(t, err, storage.ErrRawToken)
		})
	}
}

func TestToPullStep_json_shape(t *testing.T) {
	t.Parallel()

	st, err := storage.NewGitRepository(storage.GitConfig{
		URL:    "https://github.com/org/repo.git",
		Branch: "main",
	})
	require.NoError(t, err)

	step, err := st.ToPullStep()
	require.NoError(t, err)

	raw, err := json.Marshal(step)
	require.NoError(t, err)

	assert.JSONEq(
		t,
		`{
			"gitsync.steps.git_clone": {
				"repository": "https://github.com/org/repo.git",
				"branch": "main"
			}
		}`,
		string(raw),
	)
}
