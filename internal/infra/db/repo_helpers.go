package db

import "errors"

var errDBUnavailable = errors.New("db unavailable")

// ErrDBUnavailable reports whether err came from running in no-db mode, so
// callers can treat persistence as best-effort.
func ErrDBUnavailable(err error) bool {
	return errors.Is(err, errDBUnavailable)
}
