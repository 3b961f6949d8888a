package storage

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidQuery  = errors.New("invalid query")
)

// BackendError wraps a fault reported by one of the storage engines.
type BackendError struct {
	Backend Kind
	Op      string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend: %s: %s", e.Backend, e.Op, e.Err.Error())
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}

	var be *BackendError
	if errors.As(err, &be) {
		return err
	}

	return &BackendError{Backend: kind, Op: op, Err: err}
}

func NotFound(kind Kind, op string) error {
	return &BackendError{Backend: kind, Op: op, Err: ErrNotFound}
}

func InvalidQuery(kind Kind, op, reason string) error {
	return &BackendError{Backend: kind, Op: op, Err: fmt.Errorf("%w: %s", ErrInvalidQuery, reason)}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
