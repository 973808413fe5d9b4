// Package pl011 simulates the subset of an ARM PL011 UART used by the
// firmware: data, flag and interrupt mask registers over two FIFOs.
package pl011

import (
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/uartecho/pkg/l0/uart"
)

// Stats counts device activity.
type Stats struct {
	// DataReads and DataWrites count accesses to the data register.
	DataReads  int
	DataWrites int
	// Overruns counts injected bytes refused by a full receive FIFO.
	Overruns int
	// TxDropped counts data register writes refused by a full transmit FIFO.
	TxDropped int
}

// Device is a simulated PL011. It is safe for concurrent use.
type Device struct {
	Name string

	rx    fifo
	tx    fifo
	imsc  uint32
	stats Stats
	lock  sync.Mutex
}

// New creates a Device.
func New(name string) *Device {
	return &Device{Name: name}
}

// Read performs a register read.
func (d *Device) Read(offset uintptr) uint32 {
	d.lock.Lock()
	defer d.lock.Unlock()
	switch offset {
	case uart.RegDR:
		d.stats.DataReads++
		b, _ := d.rx.pop()
		return uint32(b)
	case uart.RegFR:
		return uint32(d.flags())
	case uart.RegIMSC:
		return d.imsc
	}
	glog.Warningf("%s: read of unimplemented register 0x%03x", d.Name, offset)
	return 0
}

// Write performs a register write.
func (d *Device) Write(offset uintptr, val uint32) {
	d.lock.Lock()
	defer d.lock.Unlock()
	switch offset {
	case uart.RegDR:
		d.stats.DataWrites++
		if !d.tx.push(byte(val)) {
			d.stats.TxDropped++
		}
	case uart.RegFR:
		// read only
	case uart.RegIMSC:
		d.imsc = val & (uart.MaskRXIM | uart.MaskTXIM)
	default:
		glog.Warningf("%s: write of unimplemented register 0x%03x", d.Name, offset)
	}
}

func (d *Device) flags() uint8 {
	var fr uint8
	if d.rx.empty() {
		fr |= uart.FlagRXFE
	}
	if d.tx.full() {
		fr |= uart.FlagTXFF
	}
	return fr
}

// Inject feeds the receive FIFO as if the bytes arrived on the line and
// returns how many were accepted.
func (d *Device) Inject(data []byte) int {
	d.lock.Lock()
	defer d.lock.Unlock()
	for n, b := range data {
		if !d.rx.push(b) {
			d.stats.Overruns += len(data) - n
			return n
		}
	}
	return len(data)
}

// Drain takes up to max transmitted bytes off the transmit FIFO.
func (d *Device) Drain(max int) []byte {
	d.lock.Lock()
	defer d.lock.Unlock()
	var out []byte
	for len(out) < max {
		b, ok := d.tx.pop()
		if !ok {
			break
		}
		out = append(out, b)
	}
	return out
}

// Pending reports the interrupt line is asserted: an unmasked receive
// FIFO holds data, or an unmasked transmit FIFO is at most half full.
func (d *Device) Pending() bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.imsc&uart.MaskRXIM != 0 && !d.rx.empty() {
		return true
	}
	return d.imsc&uart.MaskTXIM != 0 && d.tx.size <= FIFODepth/2
}

// Buffered returns the number of bytes in the receive and transmit FIFOs.
func (d *Device) Buffered() (rx, tx int) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.rx.size, d.tx.size
}

// Stats returns the activity counters.
func (d *Device) Stats() Stats {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.stats
}
