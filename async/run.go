package async

import (
	"fmt"

	"github.com/alanbriolat/mediagrab/generic"
)

// Run will run a function in a goroutine, returning its result via a channel.
func Run[T any](f func() T) <-chan T {
	c := make(chan T, 1)
	go func() {
		c <- f()
	}()
	return c
}

// RunResult is like Run, but for functions returning (T, error). A panic inside f does not escape the goroutine, it is
// delivered as the Result's error instead.
func RunResult[T any](f func() (T, error)) <-chan generic.Result[T] {
	c := make(chan generic.Result[T], 1)
	go func() {
		var result generic.Result[T]
		defer func() {
			if r := recover(); r != nil {
				result = generic.Err[T](&PanicError{Value: r})
			}
			c <- result
		}()
		result = generic.NewResult(f())
	}()
	return c
}

// PanicError wraps a value recovered from a panic.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value if it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
