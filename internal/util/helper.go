package util

// CloneSlice clones slice with cloneSize.
// This function will use src length as the clone size if cloneSize is 0.
func CloneSlice[T any](src []T, cloneSize int) []T {
	if cloneSize == 0 {
		cloneSize = len(src)
	}
	clone := make([]T, cloneSize)
	copy(clone, src)

	return clone
}

// CloneMap returns a shallow copy of src. It returns a non-nil empty map
// when src is nil so callers can mutate the result without a nil check.
func CloneMap[K comparable, V any](src map[K]V) map[K]V {
	clone := make(map[K]V, len(src))
	for k, v := range src {
		clone[k] = v
	}

	return clone
}
