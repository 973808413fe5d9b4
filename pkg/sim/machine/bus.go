package machine

import (
	"github.com/golang/glog"

	"github.com/robotalks/uartecho/pkg/l0/uart"
	"github.com/robotalks/uartecho/pkg/sim/pl011"
)

// window is the size of a UART register block.
const window uintptr = 0x1000

func (m *Machine) device(base, offset uintptr) (*pl011.Device, uintptr) {
	addr := base + offset
	for n, dev := range m.Devices {
		start := uart.UART0Base + uintptr(n)*window
		if addr >= start && addr < start+window {
			return dev, addr - start
		}
	}
	glog.Warningf("access to unmapped address 0x%08x", addr)
	return nil, 0
}

// Read8 implements mmio.Bus.
func (m *Machine) Read8(base, offset uintptr) uint8 {
	return uint8(m.Read32(base, offset))
}

// Write8 implements mmio.Bus.
func (m *Machine) Write8(base, offset uintptr, val uint8) {
	m.Write32(base, offset, uint32(val))
}

// Read32 implements mmio.Bus.
func (m *Machine) Read32(base, offset uintptr) uint32 {
	if dev, reg := m.device(base, offset); dev != nil {
		return dev.Read(reg)
	}
	return 0
}

// Write32 implements mmio.Bus.
func (m *Machine) Write32(base, offset uintptr, val uint32) {
	if dev, reg := m.device(base, offset); dev != nil {
		dev.Write(reg, val)
	}
}
