// Package stream bridges a board UART to a byte stream, like a host serial
// device or a network connection.
package stream

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"
	"github.com/tarm/serial"

	fx "github.com/robotalks/uartecho/pkg/framework"
	"github.com/robotalks/uartecho/pkg/sim/machine"
	"github.com/robotalks/uartecho/pkg/sim/pl011"
)

// OutputQueueSize is the number of pending transmitted chunks before
// output is dropped.
const OutputQueueSize = 64

// Input waiting for room in the receive FIFO is retried every
// InputRetryInterval, at most InputRetries times.
const (
	InputRetries       = 100
	InputRetryInterval = time.Millisecond
)

// Board is the part of the simulated board used by the bridge.
type Board interface {
	Input(port int, data []byte) (int, error)
	Subscribe(port int, h machine.OutputHandler) error
}

// Bridge copies bytes from the stream into a UART and bytes transmitted by
// the UART back to the stream.
type Bridge struct {
	Port   int
	Stream io.ReadWriter

	board Board
	outCh chan []byte
}

// New creates a Bridge.
func New(board Board, port int, rw io.ReadWriter) *Bridge {
	return &Bridge{
		Port:   port,
		Stream: rw,
		board:  board,
		outCh:  make(chan []byte, OutputQueueSize),
	}
}

// OpenSerial opens a host serial device.
func OpenSerial(name string, baud int) (io.ReadWriteCloser, error) {
	port, err := serial.OpenPort(&serial.Config{Name: name, Baud: baud})
	if err != nil {
		return nil, err
	}
	return port, nil
}

// Name implements Named.
func (b *Bridge) Name() string {
	return fmt.Sprintf("stream:uart%d", b.Port)
}

// Run implements Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.board.Subscribe(b.Port, machine.HandleOutputFunc(b.enqueue)); err != nil {
		return err
	}
	go b.writeLoop(ctx)

	if closer, ok := b.Stream.(io.Closer); ok {
		return fx.RunWithContextCloser(ctx, closer, b.readLoop)
	}
	// The reader can't be interrupted, it's left behind when ctx is done.
	errCh := make(chan error, 1)
	go func() {
		errCh <- b.readLoop()
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (b *Bridge) enqueue(_ int, data []byte) {
	select {
	case b.outCh <- append([]byte(nil), data...):
	default:
		glog.Warningf("uart%d: stream output queue full, %d bytes dropped", b.Port, len(data))
	}
}

func (b *Bridge) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-b.outCh:
			if _, err := b.Stream.Write(data); err != nil {
				glog.Errorf("uart%d: stream write error: %v", b.Port, err)
			}
		}
	}
}

// input delivers data, waiting for the firmware to drain the receive FIFO
// when it is full.
func (b *Bridge) input(data []byte) error {
	for retry := 0; ; retry++ {
		n, err := b.board.Input(b.Port, data)
		if err != nil {
			return err
		}
		if data = data[n:]; len(data) == 0 {
			return nil
		}
		if retry >= InputRetries {
			glog.Warningf("%s: receive FIFO full, %d bytes dropped", b.Name(), len(data))
			return nil
		}
		time.Sleep(InputRetryInterval)
	}
}

func (b *Bridge) readLoop() error {
	// Chunks never exceed the receive FIFO.
	buf := make([]byte, pl011.FIFODepth)
	for {
		n, err := b.Stream.Read(buf)
		if n > 0 {
			if e := b.input(buf[:n]); e != nil {
				return e
			}
		}
		if err == io.EOF {
			glog.Infof("uart%d: stream closed", b.Port)
			return nil
		}
		if err != nil {
			return err
		}
	}
}
