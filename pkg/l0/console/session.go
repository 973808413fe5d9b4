// Package console implements the line echo session bound to a UART.
package console

const (
	// LineCapacity is the size of the line buffer.
	LineCapacity = 128
	// Terminator completes a line.
	Terminator byte = '\n'
)

// Driver is the byte level access to a port.
type Driver interface {
	Receive(no int) (byte, bool)
	Send(no int, b byte) bool
}

// TransmitArmer controls the transmit interrupt of a port. When the Driver
// also implements it, a flush blocked by a full FIFO re-arms the transmit
// interrupt so the next flush is triggered by the hardware.
type TransmitArmer interface {
	EnableTransmit(no int)
	DisableTransmit(no int)
}

// Masker masks and unmasks the receive interrupt of a port. When the Driver
// also implements it, a continuous session masks the receive interrupt while
// a completed line is echoed, so input typed ahead waits in the FIFO.
type Masker interface {
	Enable(no int)
	Disable(no int)
}

// InterruptGuard is a critical section over all interrupt sources of a port.
type InterruptGuard interface {
	// Mask masks every interrupt source of the port and returns the mask it
	// replaced.
	Mask(no int) uint32
	// Restore writes back a mask returned by Mask.
	Restore(no int, mask uint32)
}

// Mode decides what happens after a line is complete.
type Mode int

const (
	// ModeOneShot keeps the completed line forever: all later input is
	// discarded for the lifetime of the session.
	ModeOneShot Mode = iota
	// ModeContinuous starts a new line once the completed one is echoed.
	// A line reaching LineCapacity without terminator is completed as is.
	ModeContinuous
)

// OverrunPolicy decides what to do with input arriving while a completed
// line is kept in ModeOneShot. ModeContinuous never overruns: input waits
// until the line is echoed.
type OverrunPolicy int

const (
	// OverrunDiscard drops the input and counts it.
	OverrunDiscard OverrunPolicy = iota
	// OverrunPanic drops the input and calls Session.Halt.
	OverrunPanic
)

// Session buffers one line from a port and echoes it back.
//
// Callbacks are not reentrant. If the interrupt controller may deliver a
// port interrupt while a callback of the same port runs, set Guard so each
// callback masks all interrupts of the port for its duration. Interrupt
// mask changes of the session are applied once the guard is released.
type Session struct {
	Port    int
	Mode    Mode
	Overrun OverrunPolicy
	Guard   InterruptGuard
	Halt    func()

	drv   Driver
	armer TransmitArmer
	rxCtl Masker

	line       [LineCapacity]byte
	head       int
	tail       int
	processing bool
	txArmed    bool
	rxHeld     bool

	dropped   int
	completed int
}

// NewSession creates a Session on a port.
func NewSession(drv Driver, port int) *Session {
	s := &Session{Port: port, drv: drv}
	s.armer, _ = drv.(TransmitArmer)
	s.rxCtl, _ = drv.(Masker)
	return s
}

// OnReceive implements uart.Listener.
func (s *Session) OnReceive() {
	saved := s.enter()
	s.receive()
	s.leave(saved)
}

// OnFlush implements uart.Listener.
func (s *Session) OnFlush() {
	saved := s.enter()
	s.flush()
	s.leave(saved)
}

func (s *Session) enter() uint32 {
	if s.Guard == nil {
		return 0
	}
	return s.Guard.Mask(s.Port)
}

func (s *Session) leave(saved uint32) {
	if s.Guard != nil {
		s.Guard.Restore(s.Port, saved)
	}
	s.updateMasks()
}

// updateMasks arms the transmit interrupt while echo is pending and holds
// the receive interrupt while a continuous session echoes a completed line.
func (s *Session) updateMasks() {
	if armed := s.tail < s.head; s.armer != nil && armed != s.txArmed {
		s.txArmed = armed
		if armed {
			s.armer.EnableTransmit(s.Port)
		} else {
			s.armer.DisableTransmit(s.Port)
		}
	}
	if held := s.processing && s.Mode == ModeContinuous; s.rxCtl != nil && held != s.rxHeld {
		s.rxHeld = held
		if held {
			s.rxCtl.Disable(s.Port)
		} else {
			s.rxCtl.Enable(s.Port)
		}
	}
}

func (s *Session) receive() {
	for !s.processing {
		b, ok := s.drv.Receive(s.Port)
		if !ok {
			return
		}
		s.store(b)
		s.flush()
	}
	if s.Mode == ModeContinuous {
		// the rest is received once the line is echoed
		return
	}
	var dropped bool
	for s.processing {
		if _, ok := s.drv.Receive(s.Port); !ok {
			break
		}
		s.dropped++
		dropped = true
	}
	if dropped && s.Overrun == OverrunPanic && s.Halt != nil {
		s.Halt()
	}
}

func (s *Session) store(b byte) {
	if s.head == len(s.line) {
		// only reachable in ModeOneShot, continuous mode completes full lines.
		s.dropped++
		return
	}
	s.line[s.head] = b
	s.head++
	s.processing = b == Terminator
	if s.processing {
		s.completed++
	} else if s.head == len(s.line) && s.Mode == ModeContinuous {
		s.processing = true
		s.completed++
	}
}

func (s *Session) flush() {
	for s.tail < s.head {
		if !s.drv.Send(s.Port, s.line[s.tail]) {
			return
		}
		s.tail++
	}
	if s.processing && s.Mode == ModeContinuous {
		s.Reset()
	}
}

// Reset discards the current line, echoed or not.
func (s *Session) Reset() {
	s.head, s.tail, s.processing = 0, 0, false
}

// Head is the index of the next byte to store.
func (s *Session) Head() int { return s.head }

// Tail is the index of the next byte to echo.
func (s *Session) Tail() int { return s.tail }

// Processing reports a completed line is pending.
func (s *Session) Processing() bool { return s.processing }

// Full reports the line buffer has no room left.
func (s *Session) Full() bool { return s.head == len(s.line) }

// Dropped is the number of received bytes not stored.
func (s *Session) Dropped() int { return s.dropped }

// Completed is the number of lines completed so far.
func (s *Session) Completed() int { return s.completed }

// Line returns a copy of the bytes stored for the current line.
func (s *Session) Line() []byte {
	return append([]byte(nil), s.line[:s.head]...)
}
