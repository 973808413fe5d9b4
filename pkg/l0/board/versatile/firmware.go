// Package versatile wires the echo console on the Versatile PB board.
package versatile

import (
	"github.com/robotalks/uartecho/pkg/l0/boot"
	"github.com/robotalks/uartecho/pkg/l0/console"
	"github.com/robotalks/uartecho/pkg/l0/mmio"
	"github.com/robotalks/uartecho/pkg/l0/uart"
)

// Banner clears the terminal and shows the prompt.
const Banner = "\033[H\033[J >"

// ConsolePort is the UART carrying the echo console.
const ConsolePort = uart.UART0

// Waiter suspends the core until an interrupt has been serviced.
// Wait returns false when the idle loop must end, which only happens on
// hosted builds.
type Waiter interface {
	Wait() bool
}

// WaitFunc is func form of Waiter.
type WaitFunc func() bool

// Wait implements Waiter.
func (f WaitFunc) Wait() bool {
	return f()
}

// Config defines the board parameters.
type Config struct {
	Stacks      boot.Stacks
	MemoryLimit uintptr
	Mode        console.Mode
	Overrun     console.OverrunPolicy
	// Guarded masks the console port interrupts during each callback, for
	// interrupt controllers delivering nested interrupts.
	Guarded bool
	// Halt is the panic sink, boot.Panic if nil.
	Halt func()
}

// Firmware is the running firmware.
type Firmware struct {
	Ports   *uart.Registry
	Console *console.Session
}

// Boot validates the stacks, brings up the ports and starts the console.
// Interrupts of the console port are unmasked when it returns.
func Boot(bus mmio.Bus, conf Config) *Firmware {
	halt := conf.Halt
	if halt == nil {
		halt = boot.Panic
	}
	limit := conf.MemoryLimit
	if limit == 0 {
		limit = boot.MemoryLimit
	}
	boot.CheckStacks(conf.Stacks, limit, halt)

	ports := uart.NewRegistry(bus, halt)
	session := console.NewSession(ports, ConsolePort)
	session.Mode = conf.Mode
	session.Overrun = conf.Overrun
	session.Halt = halt
	if conf.Guarded {
		session.Guard = ports
	}
	ports.Bind(ConsolePort, session)
	ports.Enable(ConsolePort)
	ports.SendString(ConsolePort, Banner)
	return &Firmware{Ports: ports, Console: session}
}

// HandleIRQ services the interrupt of a UART.
func (f *Firmware) HandleIRQ(no int) {
	f.Ports.Dispatch(no)
}

// Idle is the main loop after boot.
func (f *Firmware) Idle(w Waiter) {
	for w.Wait() {
	}
}
