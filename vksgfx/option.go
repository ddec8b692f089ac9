package vksgfx

// option tracks a value that may not have been found yet, such as a queue
// family index.
type option[T any] struct {
	v   T
	set bool
}

func some[T any](value T) option[T] {
	return option[T]{v: value, set: true}
}

func (o option[T]) isSet() bool { return o.set }

// get returns the value, or fallback when it was never set.
func (o option[T]) get(fallback T) T {
	if o.set {
		return o.v
	}
	return fallback
}
