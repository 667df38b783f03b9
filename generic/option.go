package generic

// Option is a value that may be missing, e.g. a progress percentage when the total size is unknown.
type Option[T any] struct {
	Value    T
	hasValue bool
}

func Some[T any](value T) Option[T] {
	return Option[T]{Value: value, hasValue: true}
}

func None[T any]() Option[T] {
	return Option[T]{}
}

func (o Option[T]) IsSome() bool {
	return o.hasValue
}

func (o Option[T]) IsNone() bool {
	return !o.hasValue
}

// UnwrapOr returns the value, or fallback if there is none.
func (o Option[T]) UnwrapOr(fallback T) T {
	if o.hasValue {
		return o.Value
	}
	return fallback
}
