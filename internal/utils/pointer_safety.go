package utils

// Value dereferences v, returning the zero value for nil.
func Value[T any](v *T) T {
	if v == nil {
		return *new(T)
	}
	return *v
}

func Ptr[T any](v T) *T {
	return &v
}

// Clone returns a shallow copy of *v, or nil.
func Clone[T any](v *T) *T {
	if v == nil {
		return nil
	}
	return Ptr(*v)
}
