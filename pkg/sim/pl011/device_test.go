package pl011

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/uartecho/pkg/l0/uart"
)

func TestFlags(t *testing.T) {
	d := New("test")
	require.Equal(t, uint32(uart.FlagRXFE), d.Read(uart.RegFR))

	require.Equal(t, 1, d.Inject([]byte{'a'}))
	require.Zero(t, d.Read(uart.RegFR))

	for i := 0; i < FIFODepth; i++ {
		d.Write(uart.RegDR, uint32('0'+i))
	}
	require.Equal(t, uint32(uart.FlagTXFF), d.Read(uart.RegFR))

	require.Equal(t, uint32('a'), d.Read(uart.RegDR))
	require.Equal(t, uint32(uart.FlagRXFE|uart.FlagTXFF), d.Read(uart.RegFR))
}

func TestInjectOverrun(t *testing.T) {
	d := New("test")
	data := make([]byte, FIFODepth+3)
	require.Equal(t, FIFODepth, d.Inject(data))
	require.Equal(t, 3, d.Stats().Overruns)
	rx, tx := d.Buffered()
	require.Equal(t, FIFODepth, rx)
	require.Zero(t, tx)
}

func TestTransmit(t *testing.T) {
	d := New("test")
	for _, b := range []byte("hello") {
		d.Write(uart.RegDR, uint32(b))
	}
	require.Equal(t, []byte("hel"), d.Drain(3))
	require.Equal(t, []byte("lo"), d.Drain(10))
	require.Empty(t, d.Drain(10))

	for i := 0; i < FIFODepth+2; i++ {
		d.Write(uart.RegDR, 'x')
	}
	st := d.Stats()
	require.Equal(t, 2, st.TxDropped)
	require.Equal(t, 5+FIFODepth+2, st.DataWrites)
}

func TestReadEmptyData(t *testing.T) {
	d := New("test")
	require.Zero(t, d.Read(uart.RegDR))
	require.Equal(t, 1, d.Stats().DataReads)
}

func TestPending(t *testing.T) {
	d := New("test")
	d.Inject([]byte("x"))
	require.False(t, d.Pending())

	d.Write(uart.RegIMSC, uart.MaskRXIM)
	require.True(t, d.Pending())
	d.Read(uart.RegDR)
	require.False(t, d.Pending())

	d.Write(uart.RegIMSC, uart.MaskTXIM)
	require.True(t, d.Pending())
	for i := 0; i <= FIFODepth/2; i++ {
		d.Write(uart.RegDR, 'y')
	}
	require.False(t, d.Pending())
	d.Drain(1)
	require.True(t, d.Pending())

	d.Write(uart.RegIMSC, 0xffffffff)
	require.Equal(t, uart.MaskRXIM|uart.MaskTXIM, d.Read(uart.RegIMSC))
}
