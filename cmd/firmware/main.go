//go:build tinygo
// +build tinygo

package main

import (
	"device/arm"

	"github.com/robotalks/uartecho/pkg/l0/board/versatile"
	"github.com/robotalks/uartecho/pkg/l0/boot"
	"github.com/robotalks/uartecho/pkg/l0/console"
	"github.com/robotalks/uartecho/pkg/l0/mmio"
	"github.com/robotalks/uartecho/pkg/l0/uart"
)

// fw is only reachable from the exception vector, which cannot take
// arguments.
var fw *versatile.Firmware

// coreHalt waits for an interrupt (ARMv5 CP15 wait-for-interrupt).
func coreHalt() bool {
	arm.Asm("mcr p15, 0, r0, c7, c0, 4")
	return true
}

func main() {
	fw = versatile.Boot(mmio.Volatile{}, versatile.Config{
		Stacks: boot.LinkedStacks(),
		Mode:   console.ModeContinuous,
	})
	fw.Idle(versatile.WaitFunc(coreHalt))
}

// Called by the VIC vector for the UART0 line.
//
//go:export uart0_irq_handler
func uart0IRQHandler() {
	fw.HandleIRQ(uart.UART0)
}
