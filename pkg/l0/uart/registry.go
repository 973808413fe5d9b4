// Package uart drives the PL011 UARTs of the board.
//
// All operations are non-blocking: a full transmit FIFO or an empty receive
// FIFO is reported as "no progress" and the caller is expected to retry on
// the next interrupt, never by spinning.
package uart

import (
	"github.com/robotalks/uartecho/pkg/l0/mmio"
)

// Listener receives the interrupt callbacks of a port.
type Listener interface {
	// OnReceive is called when input may be present in the receive FIFO.
	OnReceive()
	// OnFlush is called when the transmit FIFO may have room.
	OnFlush()
}

// Port is the descriptor of a UART.
type Port struct {
	No       int
	Base     uintptr
	Listener Listener
}

// Registry holds the descriptors of all UARTs.
type Registry struct {
	bus   mmio.Bus
	halt  func()
	ports [NumPorts]Port
}

// NewRegistry initializes the descriptors of all ports.
// It performs no register access. halt is called on an invalid port number
// and must not return.
func NewRegistry(bus mmio.Bus, halt func()) *Registry {
	r := &Registry{bus: bus, halt: halt}
	for n := range r.ports {
		r.ports[n] = Port{No: n, Base: bases[n]}
	}
	return r
}

func (r *Registry) port(no int) *Port {
	if no < 0 || no >= NumPorts {
		r.halt()
	}
	return &r.ports[no]
}

// Base returns the register base of a port.
func (r *Registry) Base(no int) uintptr {
	return r.port(no).Base
}

// Bound returns the listener bound to the port, nil if none.
func (r *Registry) Bound(no int) Listener {
	return r.port(no).Listener
}

// Bind attaches the listener to the port, replacing any previous one.
func (r *Registry) Bind(no int, l Listener) {
	r.port(no).Listener = l
}

// Enable unmasks the receive interrupt.
func (r *Registry) Enable(no int) {
	r.setMask(r.port(no), MaskRXIM)
}

// Disable masks the receive interrupt.
func (r *Registry) Disable(no int) {
	r.clearMask(r.port(no), MaskRXIM)
}

// EnableTransmit unmasks the transmit interrupt.
func (r *Registry) EnableTransmit(no int) {
	r.setMask(r.port(no), MaskTXIM)
}

// DisableTransmit masks the transmit interrupt.
func (r *Registry) DisableTransmit(no int) {
	r.clearMask(r.port(no), MaskTXIM)
}

// Mask masks every interrupt source of a port and returns the mask it
// replaced.
func (r *Registry) Mask(no int) uint32 {
	p := r.port(no)
	saved := r.bus.Read32(p.Base, RegIMSC)
	r.bus.Write32(p.Base, RegIMSC, 0)
	return saved
}

// Restore writes back an interrupt mask returned by Mask.
func (r *Registry) Restore(no int, mask uint32) {
	r.bus.Write32(r.port(no).Base, RegIMSC, mask)
}

func (r *Registry) setMask(p *Port, bits uint32) {
	r.bus.Write32(p.Base, RegIMSC, r.bus.Read32(p.Base, RegIMSC)|bits)
}

func (r *Registry) clearMask(p *Port, bits uint32) {
	r.bus.Write32(p.Base, RegIMSC, r.bus.Read32(p.Base, RegIMSC)&^bits)
}

// Receive reads one byte if the receive FIFO is not empty.
func (r *Registry) Receive(no int) (byte, bool) {
	p := r.port(no)
	if r.bus.Read8(p.Base, RegFR)&FlagRXFE != 0 {
		return 0, false
	}
	return r.bus.Read8(p.Base, RegDR), true
}

// Send writes one byte if the transmit FIFO is not full.
func (r *Registry) Send(no int, b byte) bool {
	p := r.port(no)
	if r.bus.Read8(p.Base, RegFR)&FlagTXFF != 0 {
		return false
	}
	r.bus.Write8(p.Base, RegDR, b)
	return true
}

// SendString sends s up to the first NUL byte. Bytes that do not fit into
// the transmit FIFO are lost, so it is only meant for short banners.
func (r *Registry) SendString(no int, s string) {
	for i := 0; i < len(s) && s[i] != 0; i++ {
		r.Send(no, s[i])
	}
}

// Dispatch is the interrupt entry point of a port: it runs the receive
// then the flush callback of the bound listener.
func (r *Registry) Dispatch(no int) {
	if l := r.port(no).Listener; l != nil {
		l.OnReceive()
		l.OnFlush()
	}
}
