package machine

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/uartecho/pkg/l0/board/versatile"
	"github.com/robotalks/uartecho/pkg/l0/boot"
	"github.com/robotalks/uartecho/pkg/l0/console"
	"github.com/robotalks/uartecho/pkg/l0/uart"
	"github.com/robotalks/uartecho/pkg/sim/pl011"
)

type collector struct {
	t  *testing.T
	ch chan []byte
}

func newCollector(t *testing.T, m *Machine, port int) *collector {
	c := &collector{t: t, ch: make(chan []byte, 256)}
	require.NoError(t, m.Subscribe(port, HandleOutputFunc(func(_ int, data []byte) {
		c.ch <- append([]byte(nil), data...)
	})))
	return c
}

func (c *collector) expect(want string) {
	var got []byte
	for len(got) < len(want) {
		select {
		case data := <-c.ch:
			got = append(got, data...)
		case <-time.After(time.Second):
			c.t.Fatalf("expect %q timeout, got %q", want, got)
		}
	}
	require.Equal(c.t, want, string(got))
}

type machineTestCtx struct {
	t      *testing.T
	m      *Machine
	cancel func()
	errCh  chan error
}

func startMachine(t *testing.T, conf versatile.Config, opts ...func(*Machine)) (*machineTestCtx, *collector) {
	tctx := &machineTestCtx{t: t, m: New(conf), errCh: make(chan error, 1)}
	for _, opt := range opts {
		opt(tctx.m)
	}
	out := newCollector(t, tctx.m, uart.UART0)
	ctx, cancel := context.WithCancel(context.Background())
	tctx.cancel = cancel
	go func() {
		tctx.errCh <- tctx.m.Run(ctx)
	}()
	return tctx, out
}

func (c *machineTestCtx) stop() {
	c.cancel()
	select {
	case err := <-c.errCh:
		require.Equal(c.t, context.Canceled, err)
	case <-time.After(time.Second):
		c.t.Fatal("machine stop timeout")
	}
}

func (c *machineTestCtx) input(text string) {
	n, err := c.m.Input(uart.UART0, []byte(text))
	require.NoError(c.t, err)
	require.Equal(c.t, len(text), n)
}

func TestBootAndEcho(t *testing.T) {
	tctx, out := startMachine(t, versatile.Config{Mode: console.ModeContinuous})
	defer tctx.stop()

	out.expect(versatile.Banner)
	tctx.input("hi\n")
	out.expect("hi\n")
	tctx.input("again\n")
	out.expect("again\n")

	state, err := tctx.m.Snapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, state.Completed)
	require.False(t, state.Processing)
	require.Zero(t, state.Head)
	require.Zero(t, state.Dropped)
}

func TestOneShotSession(t *testing.T) {
	tctx, out := startMachine(t, versatile.Config{Mode: console.ModeOneShot})
	defer tctx.stop()

	out.expect(versatile.Banner)
	tctx.input("hi\n")
	out.expect("hi\n")
	tctx.input("x")

	var state State
	for {
		var err error
		state, err = tctx.m.Snapshot(context.Background())
		require.NoError(t, err)
		if state.Dropped > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, state.Processing)
	require.Equal(t, 3, state.Head)
	require.Equal(t, []byte("hi\n"), state.Line)
	require.Equal(t, 1, state.Dropped)
}

func TestLongLineWithSlowLine(t *testing.T) {
	tctx, out := startMachine(t, versatile.Config{Mode: console.ModeContinuous}, func(m *Machine) {
		m.BytesPerTick = 1
	})
	defer tctx.stop()

	out.expect(versatile.Banner)
	line := bytes.Repeat([]byte("0123456789"), 5)
	for off := 0; off < len(line); off += pl011.FIFODepth / 2 {
		end := off + pl011.FIFODepth/2
		if end > len(line) {
			end = len(line)
		}
		tctx.input(string(line[off:end]))
		out.expect(string(line[off:end]))
	}
	tctx.input("\n")
	out.expect("\n")
}

func TestEchoResumesOnTransmitInterrupt(t *testing.T) {
	tctx, out := startMachine(t, versatile.Config{Mode: console.ModeContinuous}, func(m *Machine) {
		m.BytesPerTick = 1
	})
	defer tctx.stop()

	out.expect(versatile.Banner)
	busy := bytes.Repeat([]byte{'-'}, pl011.FIFODepth)
	for _, b := range busy {
		tctx.m.Devices[uart.UART0].Write(uart.RegDR, uint32(b))
	}
	tctx.input("abc\n")
	out.expect(string(busy) + "abc\n")

	state, err := tctx.m.Snapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, state.Completed)
	require.Zero(t, state.Dropped)
}

func TestTypeAheadWhileEchoing(t *testing.T) {
	for _, guarded := range []bool{false, true} {
		t.Run(fmt.Sprintf("guarded=%v", guarded), func(t *testing.T) {
			conf := versatile.Config{
				Mode:    console.ModeContinuous,
				Overrun: console.OverrunPanic,
				Guarded: guarded,
			}
			tctx, out := startMachine(t, conf, func(m *Machine) {
				m.BytesPerTick = 1
			})
			defer tctx.stop()

			out.expect(versatile.Banner)
			busy := bytes.Repeat([]byte{'-'}, pl011.FIFODepth)
			for _, b := range busy {
				tctx.m.Devices[uart.UART0].Write(uart.RegDR, uint32(b))
			}
			tctx.input("abcdefghij\n")
			tctx.input("xy\n")
			out.expect(string(busy) + "abcdefghij\nxy\n")

			state, err := tctx.m.Snapshot(context.Background())
			require.NoError(t, err)
			require.Equal(t, 2, state.Completed)
			require.Zero(t, state.Dropped)
			require.Zero(t, state.Head)
		})
	}
}

func TestPanicStopsMachine(t *testing.T) {
	m := New(versatile.Config{Stacks: boot.Stacks{Main: boot.MemoryLimit}})
	require.Equal(t, ErrPanicked, m.Run(context.Background()))
	_, err := m.Snapshot(context.Background())
	require.Equal(t, ErrStopped, err)
}

func TestOverrunPanic(t *testing.T) {
	tctx, out := startMachine(t, versatile.Config{Overrun: console.OverrunPanic})
	out.expect(versatile.Banner)
	tctx.input("ok\n")
	out.expect("ok\n")
	tctx.input("!")
	select {
	case err := <-tctx.errCh:
		require.Equal(t, ErrPanicked, err)
	case <-time.After(time.Second):
		t.Fatal("expect panic timeout")
	}
	tctx.cancel()
}

func TestNoSuchPort(t *testing.T) {
	m := New(versatile.Config{})
	_, err := m.Input(uart.NumPorts, []byte("x"))
	require.Equal(t, &NoSuchPortError{Port: uart.NumPorts}, err)
	require.Error(t, m.Subscribe(-1, HandleOutputFunc(func(int, []byte) {})))
}
