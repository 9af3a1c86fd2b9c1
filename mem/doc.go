// Package mem defines the value types shared by the kernel allocators: addresses,
// request layouts, owned regions and the page-size constants.
//
// # Addresses
//
// Addr is a 64-bit address in the managed address space. Allocators in this module
// never dereference an Addr; they only partition ranges of them. A host that wants
// real bytes behind the addresses maps an arena (see internal/arena) and passes its
// region to Init.
//
// # Layouts
//
// A Layout is the (size, alignment) pair carried by every byte request and every
// matching release. Alignment is always a non-zero power of two; NewLayout is the
// checked constructor, and the allocators assume callers went through it.
//
// # Related Packages
//
//   - github.com/joshuapare/allockit/mem/alloc: capability contracts and the Global shim
//   - github.com/joshuapare/allockit/mem/early: double-ended early-boot allocator
//   - github.com/joshuapare/allockit/mem/lab: pool + generational bump byte allocator
//   - github.com/joshuapare/allockit/mem/pool: segregated-fit delegate allocator
package mem
