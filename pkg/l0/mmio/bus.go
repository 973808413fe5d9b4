// Package mmio abstracts memory-mapped register access.
package mmio

// Bus reads and writes device registers at base+offset.
//
// Implementations must not reorder or coalesce accesses: every call is one
// bus transaction.
type Bus interface {
	Read8(base, offset uintptr) uint8
	Write8(base, offset uintptr, val uint8)
	Read32(base, offset uintptr) uint32
	Write32(base, offset uintptr, val uint32)
}
