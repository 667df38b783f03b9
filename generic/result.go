package generic

import "fmt"

// Result carries the (T, error) outcome of a call across a channel.
type Result[T any] struct {
	Value T
	Error error
}

func NewResult[T any](value T, err error) Result[T] {
	return Result[T]{Value: value, Error: err}
}

func Err[T any](err error) Result[T] {
	return Result[T]{Error: err}
}

// Parts splits the Result back into a (T, error) pair.
func (r Result[T]) Parts() (T, error) {
	return r.Value, r.Error
}

// Unwrap returns value, panicking if err is set. Only for errors that mean a programming mistake.
func Unwrap[T any](value T, err error) T {
	if err != nil {
		panic(fmt.Errorf("unexpected error: %w", err))
	}
	return value
}

// Unwrap_ is like Unwrap, for calls that only return an error.
func Unwrap_(err error) {
	Unwrap(Void{}, err)
}
