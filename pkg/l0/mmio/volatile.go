//go:build tinygo
// +build tinygo

package mmio

import (
	"runtime/volatile"
	"unsafe"
)

// Volatile is the Bus of the physical address space.
type Volatile struct{}

// Read8 implements Bus.
func (Volatile) Read8(base, offset uintptr) uint8 {
	return (*volatile.Register8)(unsafe.Pointer(base + offset)).Get()
}

// Write8 implements Bus.
func (Volatile) Write8(base, offset uintptr, val uint8) {
	(*volatile.Register8)(unsafe.Pointer(base + offset)).Set(val)
}

// Read32 implements Bus.
func (Volatile) Read32(base, offset uintptr) uint32 {
	return (*volatile.Register32)(unsafe.Pointer(base + offset)).Get()
}

// Write32 implements Bus.
func (Volatile) Write32(base, offset uintptr, val uint32) {
	(*volatile.Register32)(unsafe.Pointer(base + offset)).Set(val)
}
