package stream

import (
	"context"
	"io"
	"io/ioutil"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/uartecho/pkg/l0/board/versatile"
	"github.com/robotalks/uartecho/pkg/l0/console"
	"github.com/robotalks/uartecho/pkg/l0/uart"
	"github.com/robotalks/uartecho/pkg/sim/machine"
)

type testBoard struct {
	lock   sync.Mutex
	inputs []byte
}

func (b *testBoard) Input(port int, data []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.inputs = append(b.inputs, data...)
	return len(data), nil
}

func (b *testBoard) Subscribe(port int, h machine.OutputHandler) error {
	return nil
}

// fifoBoard accepts at most room bytes per Input.
type fifoBoard struct {
	testBoard
	room  int
	calls int
}

func (b *fifoBoard) Input(port int, data []byte) (int, error) {
	b.calls++
	if len(data) > b.room {
		data = data[:b.room]
	}
	return b.testBoard.Input(port, data)
}

func TestBridgeRetriesPartialInput(t *testing.T) {
	board := &fifoBoard{room: 3}
	b := New(board, uart.UART0, nil)
	require.NoError(t, b.input([]byte("abcdefgh")))
	require.Equal(t, "abcdefgh", string(board.inputs))
	require.Equal(t, 3, board.calls)
}

func TestBridgeGivesUpOnFullFIFO(t *testing.T) {
	board := &fifoBoard{}
	b := New(board, uart.UART0, nil)
	require.NoError(t, b.input([]byte("ab")))
	require.Empty(t, board.inputs)
	require.Equal(t, InputRetries+1, board.calls)
}

func TestBridgeReaderEOF(t *testing.T) {
	board := &testBoard{}
	rw := struct {
		io.Reader
		io.Writer
	}{strings.NewReader("abc"), ioutil.Discard}
	b := New(board, uart.UART0, rw)
	require.Equal(t, "stream:uart0", b.Name())
	require.NoError(t, b.Run(context.Background()))
	require.Equal(t, "abc", string(board.inputs))
}

func TestBridgeEcho(t *testing.T) {
	m := machine.New(versatile.Config{Mode: console.ModeContinuous})
	host, dev := net.Pipe()
	defer host.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	machineErr := make(chan error, 1)
	bridgeErr := make(chan error, 1)
	b := New(m, uart.UART0, dev)
	go func() { bridgeErr <- b.Run(ctx) }()
	go func() { machineErr <- m.Run(ctx) }()

	require.NoError(t, host.SetDeadline(time.Now().Add(2*time.Second)))
	_, err := host.Write([]byte("hi\n"))
	require.NoError(t, err)

	var got []byte
	buf := make([]byte, 32)
	for !strings.HasSuffix(string(got), "hi\n") {
		n, err := host.Read(buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}

	cancel()
	for _, ch := range []chan error{bridgeErr, machineErr} {
		select {
		case err := <-ch:
			require.Equal(t, context.Canceled, err)
		case <-time.After(time.Second):
			t.Fatal("stop timeout")
		}
	}
}
