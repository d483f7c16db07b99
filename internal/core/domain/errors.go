package domain

import (
	"errors"
	"fmt"
)

var (
	ErrCardNotFound      = errors.New("card not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrTemporary         = errors.New("temporary failure")
	ErrMissingCredential = errors.New("missing credential")
	ErrExtraction        = errors.New("extraction failed")
	ErrMirror            = errors.New("mirror failed")
	ErrStorageCorruption = errors.New("storage corruption")
	ErrStaleRevision     = errors.New("stale revision")
	ErrUndoExpired       = errors.New("undo expired")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
