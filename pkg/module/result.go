package module

// Result carries a check value together with the reason it was degraded
// to a default, if it was. A nil Cause means the value was observed.
type Result[T any] struct {
	Value T
	Cause error
}

// Observed wraps a value read successfully.
func Observed[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Degrade wraps a default value substituted because of cause.
func Degrade[T any](def T, cause error) Result[T] {
	return Result[T]{Value: def, Cause: cause}
}

// Degraded reports whether the value is a fallback.
func (r Result[T]) Degraded() bool {
	return r.Cause != nil
}
