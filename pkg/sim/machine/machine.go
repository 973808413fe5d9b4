// Package machine runs the firmware on a simulated Versatile PB.
package machine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/uartecho/pkg/l0/board/versatile"
	"github.com/robotalks/uartecho/pkg/l0/uart"
	"github.com/robotalks/uartecho/pkg/sim/pl011"
)

// Default line speed, roughly 115200 baud.
const (
	DefaultTickInterval = time.Millisecond
	DefaultBytesPerTick = 12
)

// OutputHandler receives bytes transmitted by a UART.
type OutputHandler interface {
	HandleOutput(port int, data []byte)
}

// HandleOutputFunc is func form of OutputHandler.
type HandleOutputFunc func(port int, data []byte)

// HandleOutput implements OutputHandler.
func (f HandleOutputFunc) HandleOutput(port int, data []byte) {
	f(port, data)
}

// State is a snapshot of the console session.
type State struct {
	Head       int    `json:"head"`
	Tail       int    `json:"tail"`
	Processing bool   `json:"processing"`
	Full       bool   `json:"full"`
	Dropped    int    `json:"dropped"`
	Completed  int    `json:"completed"`
	Line       []byte `json:"line"`
}

// Machine is the simulated board.
//
// The firmware is only ever executed by the goroutine in Run, so interrupt
// delivery is never reentrant. Other goroutines interact through Input,
// Subscribe and Do.
type Machine struct {
	Devices      [uart.NumPorts]*pl011.Device
	Config       versatile.Config
	TickInterval time.Duration
	BytesPerTick int

	fw      *versatile.Firmware
	kickCh  chan struct{}
	reqCh   chan func(*versatile.Firmware)
	doneCh  chan struct{}
	outputs [uart.NumPorts][]OutputHandler
	lock    sync.RWMutex
}

type panicked struct{}

// New creates a Machine with all UARTs attached.
func New(conf versatile.Config) *Machine {
	m := &Machine{
		Config:       conf,
		TickInterval: DefaultTickInterval,
		BytesPerTick: DefaultBytesPerTick,
		kickCh:       make(chan struct{}, 1),
		reqCh:        make(chan func(*versatile.Firmware)),
		doneCh:       make(chan struct{}),
	}
	for n := range m.Devices {
		m.Devices[n] = pl011.New(fmt.Sprintf("uart%d", n))
	}
	return m
}

// Name implements Named.
func (m *Machine) Name() string {
	return "machine"
}

func (m *Machine) checkPort(port int) error {
	if port < 0 || port >= len(m.Devices) {
		return &NoSuchPortError{Port: port}
	}
	return nil
}

// Input delivers bytes to the receive side of a UART and returns the
// number of bytes accepted by its FIFO. Callers decide whether the rest is
// retried or lost.
func (m *Machine) Input(port int, data []byte) (int, error) {
	if err := m.checkPort(port); err != nil {
		return 0, err
	}
	n := m.Devices[port].Inject(data)
	if n < len(data) {
		glog.V(1).Infof("uart%d: receive FIFO full, %d of %d bytes accepted", port, n, len(data))
	}
	m.kick()
	return n, nil
}

// Subscribe registers a handler for transmitted bytes of a UART.
// Handlers are called from the machine goroutine and must not block.
func (m *Machine) Subscribe(port int, h OutputHandler) error {
	if err := m.checkPort(port); err != nil {
		return err
	}
	m.lock.Lock()
	m.outputs[port] = append(m.outputs[port], h)
	m.lock.Unlock()
	return nil
}

// Do runs fn on the machine goroutine between interrupts.
func (m *Machine) Do(ctx context.Context, fn func(*versatile.Firmware)) error {
	done := make(chan struct{})
	req := func(fw *versatile.Firmware) {
		fn(fw)
		close(done)
	}
	select {
	case m.reqCh <- req:
	case <-m.doneCh:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-done
	return nil
}

// Snapshot captures the console session state.
func (m *Machine) Snapshot(ctx context.Context) (state State, err error) {
	err = m.Do(ctx, func(fw *versatile.Firmware) {
		s := fw.Console
		state = State{
			Head:       s.Head(),
			Tail:       s.Tail(),
			Processing: s.Processing(),
			Full:       s.Full(),
			Dropped:    s.Dropped(),
			Completed:  s.Completed(),
			Line:       s.Line(),
		}
	})
	return
}

// Run implements Runnable: it boots the firmware and runs its idle loop
// until ctx is done or the firmware panics. A Machine runs only once.
func (m *Machine) Run(ctx context.Context) (err error) {
	defer close(m.doneCh)
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(panicked); !ok {
				panic(r)
			}
			glog.Error("firmware panicked, machine halted")
			err = ErrPanicked
		}
	}()

	conf := m.Config
	conf.Halt = func() { panic(panicked{}) }
	m.fw = versatile.Boot(m, conf)
	glog.Info("firmware booted")

	interval := m.TickInterval
	if interval == 0 {
		interval = DefaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.fw.Idle(versatile.WaitFunc(func() bool {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			m.transmit()
		case <-m.kickCh:
		case req := <-m.reqCh:
			req(m.fw)
		}
		m.dispatch()
		return true
	}))
	return ctx.Err()
}

func (m *Machine) kick() {
	select {
	case m.kickCh <- struct{}{}:
	default:
	}
}

func (m *Machine) transmit() {
	max := m.BytesPerTick
	if max <= 0 {
		max = DefaultBytesPerTick
	}
	for n, dev := range m.Devices {
		out := dev.Drain(max)
		if len(out) == 0 {
			continue
		}
		glog.V(2).Infof("uart%d: TX %q", n, out)
		m.lock.RLock()
		handlers := m.outputs[n]
		m.lock.RUnlock()
		for _, h := range handlers {
			h.HandleOutput(n, out)
		}
	}
}

func (m *Machine) dispatch() {
	for n, dev := range m.Devices {
		if dev.Pending() {
			glog.V(3).Infof("uart%d: IRQ", n)
			m.fw.HandleIRQ(n)
		}
	}
}
