//go:build !unix

package arena

// mapAnon falls back to a heap slice when mmap is not available.
func mapAnon(size int) ([]byte, func([]byte) error, error) {
	return make([]byte, size), func([]byte) error { return nil }, nil
}
