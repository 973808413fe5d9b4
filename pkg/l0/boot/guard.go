// Package boot checks the memory map before any driver runs and provides
// the terminal failure state of the firmware.
package boot

// MemoryLimit is the end of RAM on the Versatile PB (128MB).
const MemoryLimit uintptr = 0x08000000

// Stacks are the stack tops resolved by the linker.
type Stacks struct {
	Main uintptr
	IRQ  uintptr
}

// CheckStacks calls halt if a stack top is at or beyond limit.
func CheckStacks(stacks Stacks, limit uintptr, halt func()) {
	if stacks.Main >= limit {
		halt()
	}
	if stacks.IRQ >= limit {
		halt()
	}
}

// Panic is the terminal state. It never returns.
func Panic() {
	for {
	}
}
