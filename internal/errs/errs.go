// Package errs defines the error taxonomy shared by the storage, worker and
// repository layers, and the error body returned to API clients.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. The zero value is KindOther.
type Kind uint8

const (
	KindOther Kind = iota
	// KindNotFound means no row matched an id-addressed operation.
	KindNotFound
	// KindPool means a connection could not be obtained from the pool.
	KindPool
	// KindStorage is any other database driver failure, constraint violations included.
	KindStorage
	// KindBlockingTask means the worker running the operation failed, independent
	// of the operation's own result.
	KindBlockingTask
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindPool:
		return "pool"
	case KindStorage:
		return "storage"
	case KindBlockingTask:
		return "blocking_task"
	default:
		return "other"
	}
}

// Error carries a Kind across component boundaries.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

// ErrNotFound is wrapped by every KindNotFound error.
var ErrNotFound = errors.New("not found")

// E builds an *Error. A nil err becomes the Kind's name.
func E(op string, kind Kind, err error) *Error {
	if err == nil {
		if kind == KindNotFound {
			err = ErrNotFound
		} else {
			err = errors.New(kind.String())
		}
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// NotFound builds a KindNotFound error for op.
func NotFound(op string) *Error {
	return E(op, KindNotFound, ErrNotFound)
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOther
}

// Is reports whether err carries kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
