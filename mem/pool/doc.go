// Package pool provides a general-purpose byte allocator over fixed address spans.
//
// # Overview
//
// Free blocks live on segregated lists keyed by size class, each list a min-heap
// ordered by size and then address, so Alloc is best fit within a class. Blocks
// larger than the last class sit on a single large list. Dealloc coalesces a
// freed block with free neighbours inside the same span.
//
// # Size Classes
//
// The class table is built from a SizeClassConfig: linear steps up to LinearMax,
// then geometric growth up to GeometricMax. ConfigBalanced is the default; the
// other presets trade class count against internal fragmentation.
//
// # Spans
//
// Init manages one span. AddMemory adds more; span ends are trimmed inward to the
// 8-byte granule and overlapping spans are rejected with ErrBadSpan. Blocks never
// coalesce across spans, even adjacent ones.
//
// The lab allocator uses a pool as the delegate for 8-byte-aligned requests.
package pool
