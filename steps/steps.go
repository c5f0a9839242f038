// Package steps replays serialized pull steps. It is the
// execution-engine side of the pull step contract: a step
// produced by storage.ToPullStep is decoded, its secret
// placeholders are resolved against a secret store, and the
// described repository is pulled.
package steps

import (
	"context"
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/valyala/fasttemplate"

	"github.com/byte4ever/gitsync/auth"
	"github.com/byte4ever/gitsync/secrets"
	"github.com/byte4ever/gitsync/storage"
)

// Decode parses a JSON pull step.
func Decode(raw []byte) (storage.PullStep, error) {
	const errCtx = "decoding pull step"

	var step storage.PullStep
	if err := json.Unmarshal(raw, &step); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if _, ok := step[storage.StepKeyGitClone]; !ok {
		return nil, fmt.Errorf(
			"%s: missing %q step",
			errCtx, storage.StepKeyGitClone,
		)
	}

	return step, nil
}

// Encode renders a pull step as JSON.
func Encode(step storage.PullStep) ([]byte, error) {
	const errCtx = "encoding pull step"

	raw, err := json.Marshal(step)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return raw, nil
}

// GitClone replays a git clone pull step: placeholders are
// resolved against store, and the repository is pulled under
// basePath (empty means the process working directory).
// Returns the destination the code was pulled to.
func GitClone(
	ctx context.Context,
	step storage.PullStep,
	store secrets.Store,
	basePath string,
) (string, error) {
	const errCtx = "replaying git clone step"

	body, ok := step[storage.StepKeyGitClone]
	if !ok {
		return "", fmt.Errorf(
			"%s: missing %q step",
			errCtx, storage.StepKeyGitClone,
		)
	}

	creds, err := stepCredentials(
		body.Credentials, store,
	)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	st, err := storage.NewGitRepository(
		storage.GitConfig{
			URL:         body.Repository,
			Branch:      body.Branch,
			Credentials: creds,
		},
	)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	if basePath != "" {
		st.SetBasePath(basePath)
	}

	if err := st.PullCode(ctx); err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return st.Destination(), nil
}

// stepCredentials rebuilds credentials from their serialized
// form: absent, a single placeholder string, or a field map.
func stepCredentials(
	serialized any,
	store secrets.Store,
) (auth.Credentials, error) {
	const errCtx = "resolving step credentials"

	switch value := serialized.(type) {
	case nil:
		return auth.Credentials{}, nil

	case string:
		token, err := expand(value, store)
		if err != nil {
			return auth.Credentials{}, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return auth.Credentials{
			Fields: auth.Fields{AccessToken: token},
		}, nil

	default:
		fields, err := fieldMap(serialized)
		if err != nil {
			return auth.Credentials{}, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		resolved := auth.Fields{}

		for key, raw := range fields {
			val, err := expand(raw, store)
			if err != nil {
				return auth.Credentials{}, fmt.Errorf(
					"%s: %s: %w", errCtx, key, err,
				)
			}

			switch key {
			case "username":
				resolved.Username = val
			case "access_token":
				resolved.AccessToken = val
			case "token":
				resolved.Token = val
			case "password":
				resolved.Password = val
			default:
				return auth.Credentials{}, fmt.Errorf(
					"%s: unknown field %q", errCtx, key,
				)
			}
		}

		return auth.Credentials{Fields: resolved}, nil
	}
}

// fieldMap normalises the two map shapes a decoded step may
// carry.
func fieldMap(serialized any) (map[string]string, error) {
	switch m := serialized.(type) {
	case map[string]string:
		return m, nil

	case map[string]any:
		fields := make(map[string]string, len(m))

		for key, val := range m {
			s, ok := val.(string)
			if !ok {
				return nil, fmt.Errorf(
					"field %q is not a string", key,
				)
			}

			fields[key] = s
		}

		return fields, nil

	default:
		return nil, fmt.Errorf(
			"unsupported credentials shape %T", serialized,
		)
	}
}

// expand substitutes {{ gitsync.secrets.* }} placeholders
// with their resolved values. Strings without placeholders
// pass through unchanged.
func expand(
	value string,
	store secrets.Store,
) (string, error) {
	return fasttemplate.ExecuteFuncStringWithErr(
		value, "{{", "}}",
		func(w io.Writer, tag string) (int, error) {
			name := strings.TrimPrefix(
				strings.TrimSpace(tag),
				secrets.PlaceholderPrefix,
			)

			sec, err := store.Secret(name)
			if err != nil {
				return 0, err
			}

			plaintext, err := sec.Get()
			if err != nil {
				return 0, err
			}

			return io.WriteString(w, plaintext)
		},
	)
}
