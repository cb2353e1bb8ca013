package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the requested id has no matching row.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the actor does not own the entity.
	ErrForbidden = errors.New("forbidden")
	// ErrNoClient is returned when the actor has no associated client record.
	ErrNoClient = fmt.Errorf("%w: client not found", ErrForbidden)
	// ErrStoreFailure wraps every failure of the underlying store.
	ErrStoreFailure = errors.New("store failure")
	// ErrUnknownRelation is returned by stores for relations they cannot load or attach.
	ErrUnknownRelation = errors.New("unknown relation")
)

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsForbidden reports whether err is an authorization failure.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}
