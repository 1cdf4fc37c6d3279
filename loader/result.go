package loader

import (
	"fmt"
)

// Reason classifies why a load failed.
type Reason int

const (
	ReasonNetwork Reason = iota + 1
	ReasonStatus
	ReasonDecode
)

func (r Reason) String() string {
	switch r {
	case ReasonNetwork:
		return "network"
	case ReasonStatus:
		return "status"
	case ReasonDecode:
		return "decode"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

type LoadError struct {
	Reason Reason
	URL    string
	// Set for ReasonStatus
	StatusCode int
	Err        error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s failed (%s): %v", e.URL, e.Reason, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Result is either a loaded Value or a typed failure. Loaders never apply a
// fallback themselves; see BlocksPage and TransactionPage.
type Result[T any] struct {
	Value T
	Err   *LoadError
}

func (r Result[T]) OK() bool {
	return r.Err == nil
}

func ok[T any](value T) Result[T] {
	return Result[T]{Value: value}
}

func fail[T any](reason Reason, url string, statusCode int, err error) Result[T] {
	return Result[T]{
		Err: &LoadError{
			Reason:     reason,
			URL:        url,
			StatusCode: statusCode,
			Err:        err,
		},
	}
}
