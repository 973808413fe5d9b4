//go:build tinygo
// +build tinygo

package boot

import "unsafe"

//go:extern stack_top
var stackTop unsafe.Pointer

//go:extern irq_stack_top
var irqStackTop unsafe.Pointer

// LinkedStacks returns the stack tops placed by the linker script.
func LinkedStacks() Stacks {
	return Stacks{
		Main: uintptr(unsafe.Pointer(&stackTop)),
		IRQ:  uintptr(unsafe.Pointer(&irqStackTop)),
	}
}
