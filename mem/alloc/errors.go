package alloc

import "errors"

var (
	// ErrNoMemory indicates the managed region (or sub-region) cannot satisfy the request.
	ErrNoMemory = errors.New("alloc: out of memory")

	// ErrUnsupported indicates the allocator does not provide the requested capability.
	ErrUnsupported = errors.New("alloc: unsupported operation")

	// ErrAlreadyInitialized indicates a second Init on a Global handle.
	ErrAlreadyInitialized = errors.New("alloc: already initialized")

	// ErrNotInitialized indicates an allocation before Init on a Global handle.
	ErrNotInitialized = errors.New("alloc: not initialized")
)
