package storage

// Exported aliases for testing internal functions from the
// storage_test package.

// AuthenticatedURLForTest exposes
// (*GitRepository).authenticatedURL.
func AuthenticatedURLForTest(
	g *GitRepository,
) (string, error) {
	return g.authenticatedURL()
}
