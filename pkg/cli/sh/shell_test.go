package sh

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/uartecho/pkg/l0/board/versatile"
	"github.com/robotalks/uartecho/pkg/l0/console"
	"github.com/robotalks/uartecho/pkg/sim/machine"
)

func runShell(t *testing.T, mode console.Mode) (*Shell, func()) {
	m := machine.New(versatile.Config{Mode: mode})
	s, err := newShell(m)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(ctx) }()
	return s, func() {
		cancel()
		select {
		case err := <-errCh:
			require.Equal(t, context.Canceled, err)
		case <-time.After(time.Second):
			t.Fatal("machine stop timeout")
		}
	}
}

func waitOutput(t *testing.T, s *Shell, port int, suffix string) string {
	var got []byte
	deadline := time.Now().Add(time.Second)
	for !strings.HasSuffix(string(got), suffix) {
		if time.Now().After(deadline) {
			t.Fatalf("expect %q timeout, got %q", suffix, got)
		}
		out, err := s.TakeOutput(port)
		require.NoError(t, err)
		got = append(got, out...)
		time.Sleep(time.Millisecond)
	}
	return string(got)
}

func TestShellEcho(t *testing.T) {
	s, stop := runShell(t, console.ModeContinuous)
	defer stop()

	require.Equal(t, versatile.Banner, waitOutput(t, s, 0, versatile.Banner))
	require.NoError(t, s.Input([]byte("hi\n")))
	require.Equal(t, "hi\n", waitOutput(t, s, 0, "hi\n"))

	state, err := s.State()
	require.NoError(t, err)
	require.Equal(t, 1, state.Completed)
	require.False(t, state.Processing)
}

func TestShellOneShotState(t *testing.T) {
	s, stop := runShell(t, console.ModeOneShot)
	defer stop()

	require.NoError(t, s.Input([]byte("ab\n")))
	waitOutput(t, s, 0, "ab\n")
	state, err := s.State()
	require.NoError(t, err)
	require.True(t, state.Processing)
	require.Equal(t, 3, state.Head)
	require.Equal(t, 3, state.Tail)
	require.Equal(t, "ab\n", string(state.Line))
	require.Equal(t,
		`head=3/128 tail=3 completed=1 dropped=0 line="ab\n" [processing]`,
		FormatState(state))
}

func TestShellSelectPort(t *testing.T) {
	s, err := newShell(machine.New(versatile.Config{}))
	require.NoError(t, err)
	require.NoError(t, s.SelectPort(2))
	require.Equal(t, 2, s.Port)
	require.Error(t, s.SelectPort(3))
	require.Equal(t, 2, s.Port)
	_, err = s.TakeOutput(-1)
	require.Error(t, err)
}

func TestShellPorts(t *testing.T) {
	m := machine.New(versatile.Config{})
	s, err := newShell(m)
	require.NoError(t, err)
	_, err = m.Input(1, []byte("xyz"))
	require.NoError(t, err)
	infos := s.Ports()
	require.Len(t, infos, 3)
	require.Equal(t, "uart1", infos[1].Name)
	require.Equal(t, 3, infos[1].RxBuffered)
	require.Equal(t, 0, infos[0].RxBuffered)
}

func TestCaptureLimit(t *testing.T) {
	s, err := newShell(machine.New(versatile.Config{}))
	require.NoError(t, err)
	s.capture(0, make([]byte, OutputLimit))
	s.capture(0, []byte("end"))
	out, err := s.TakeOutput(0)
	require.NoError(t, err)
	require.Len(t, out, OutputLimit)
	require.Equal(t, "end", string(out[OutputLimit-3:]))
}
