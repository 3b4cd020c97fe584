// internal/remote/errors.go
package remote

import "errors"

// Sentinel errors for the remote API boundary. Implementations wrap these so
// callers can branch with errors.Is without seeing SDK error types.
var (
	// ErrNotFound indicates the repository (or requested resource) does not
	// exist or is not accessible with the current token. Callers must not
	// distinguish "not found" from "forbidden" at this layer.
	ErrNotFound = errors.New("repository not found or inaccessible")

	// ErrUnauthorized indicates the token was rejected.
	ErrUnauthorized = errors.New("authentication failed")

	// ErrRateLimited indicates the platform-side quota is exhausted.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrPlatformUnsupported indicates the platform has no client
	// implementation yet.
	ErrPlatformUnsupported = errors.New("platform not yet supported")
)
