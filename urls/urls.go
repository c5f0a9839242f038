// Package urls provides safe handling of repository URLs
// that may carry embedded credentials.
package urls

import (
	"fmt"
	"net/url"
)

// StripAuth parses raw and reconstructs it with any
// user-info removed from the authority component. Scheme,
// host, port, path, query, and fragment are preserved
// verbatim. The result is safe for comparison and logging;
// it must never be used to build authenticated clone URLs.
// Stripping an already-clean URL is a no-op.
func StripAuth(raw string) (string, error) {
	const errCtx = "stripping auth from url"

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	parsed.User = nil

	return parsed.String(), nil
}
