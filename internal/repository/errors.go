package repository

import "github.com/pkg/errors"

// IsNotFound reports whether err means the requested row does not exist.
// Handlers translate it into an HTTP 404 response.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntryNotFound) || errors.Is(err, ErrUserNotFound)
}
