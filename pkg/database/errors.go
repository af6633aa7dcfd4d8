package database

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrSourceUnavailable is matched by errors from opening a storage target.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrDecode is matched by errors from decoding a raw unit.
	ErrDecode = errors.New("decode error")
	// ErrInvalidArgs is returned for construction arguments a backend does not accept.
	ErrInvalidArgs = errors.New("invalid arguments")
	// ErrClosed is reported by cursors selected from a closed database.
	ErrClosed = errors.New("database is closed")
	// ErrUnknownBackend is returned by Catalog.Get for unregistered names.
	ErrUnknownBackend = errors.New("unknown backend")
)

// SourceError describes a storage target which could not be opened.
type SourceError struct {
	Backend string
	Target  string
	Err     error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %s %q: %v", e.Backend, ErrSourceUnavailable, e.Target, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

func (e *SourceError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

// DecodeError describes a raw unit which could not be decoded. Position is the
// 1-based index of the unit in the source.
type DecodeError struct {
	Position int
	Unit     string
	Err      error
}

const maxUnitInError = 64

func (e *DecodeError) Error() string {
	u := e.Unit
	if len(u) > maxUnitInError {
		u = u[:maxUnitInError] + "..."
	}
	return fmt.Sprintf("%s at unit %d (%q): %v", ErrDecode, e.Position, u, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}
