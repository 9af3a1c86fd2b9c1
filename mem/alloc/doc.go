// Package alloc defines the capability contracts the kernel's memory subsystem
// consumes, plus two wrappers that sit between the kernel and any allocator.
//
// # Capabilities
//
// An allocator satisfies any subset of:
//
//   - BaseAllocator: Init(start, size), called exactly once
//   - GrowableAllocator: AddMemory(start, size), for allocators that can take more spans
//   - ByteAllocator: Alloc/Dealloc of arbitrary layouts plus byte introspection
//   - PageAllocator: AllocPages/DeallocPages plus page introspection
//
// Fixed-region allocators (mem/early, mem/lab) do not implement GrowableAllocator.
// Use AddMemory to attempt growth generically; it returns ErrUnsupported when the
// allocator cannot grow.
//
// # Global
//
// Global is the allocator handle owned by the boot context. It serializes every
// call behind one mutex and enforces Init-before-use ordering, so the allocators
// themselves can stay lock-free and unchecked.
//
// # Checked
//
// Checked records every live allocation of a ByteAllocator and reports misaligned
// or overlapping results, double frees and layout mismatches. It is meant for tests
// and the bench harness; it never changes what the wrapped allocator returns.
//
// # Thread Safety
//
// Allocators are not thread-safe. Callers must synchronize access externally or go
// through Global.
package alloc
