package mqtt

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/uartecho/pkg/bridge/msgs"
	"github.com/robotalks/uartecho/pkg/sim/machine"
)

// Board is the part of the simulated board used by the bridge.
type Board interface {
	Input(port int, data []byte) (int, error)
	Subscribe(port int, h machine.OutputHandler) error
}

// RxTopic is the topic carrying bytes into a UART.
func RxTopic(board string, port int) string {
	return fmt.Sprintf("%s/uart%d/rx", board, port)
}

// TxTopic is the topic carrying bytes transmitted by a UART.
func TxTopic(board string, port int) string {
	return fmt.Sprintf("%s/uart%d/tx", board, port)
}

// Bridge forwards UART traffic between a board and the message queue.
type Bridge struct {
	Queue   *Queue
	BoardID string
	Ports   []int

	board   Board
	seq     uint32
	stopped int32
}

// NewBridge creates a Bridge.
func NewBridge(q *Queue, boardID string, board Board, ports ...int) *Bridge {
	return &Bridge{Queue: q, BoardID: boardID, Ports: ports, board: board}
}

// NewBridgeFromURL creates a Bridge connecting to the broker at brokerURL.
func NewBridgeFromURL(brokerURL, boardID string, board Board, ports ...int) (*Bridge, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	if opts.ClientID == "" {
		opts.SetClientID("uartecho:" + boardID)
	}
	return NewBridge(NewQueue(opts, topicPrefix), boardID, board, ports...), nil
}

// Name implements Named.
func (b *Bridge) Name() string {
	return "mqtt"
}

// Run implements Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	token := b.Queue.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return err
	}
	defer b.Queue.Close()
	defer atomic.StoreInt32(&b.stopped, 1)

	for _, port := range b.Ports {
		sub := b.Queue.Sub(RxTopic(b.BoardID, port), b.rxHandler(port))
		defer sub.Close()
		if err := b.board.Subscribe(port, machine.HandleOutputFunc(b.publish)); err != nil {
			return err
		}
	}
	glog.Infof("MQTT bridge of board %s started", b.BoardID)
	<-ctx.Done()
	return ctx.Err()
}

func (b *Bridge) rxHandler(port int) Handler {
	return func(topic string, payload []byte) {
		frame, err := msgs.DecodeUARTFrame(payload)
		if err != nil {
			glog.Errorf("%s: bad frame: %v", topic, err)
			return
		}
		n, err := b.board.Input(port, frame.Data)
		if err != nil {
			glog.Errorf("%s: %v", topic, err)
			return
		}
		if n < len(frame.Data) {
			glog.Warningf("%s: receive FIFO full, %d bytes of frame #%d dropped", topic, len(frame.Data)-n, frame.Seq)
		}
	}
}

// Frame builds the next outgoing frame.
func (b *Bridge) Frame(port int, data []byte) *msgs.UARTFrame {
	return &msgs.UARTFrame{
		Board: b.BoardID,
		Port:  uint32(port),
		Seq:   atomic.AddUint32(&b.seq, 1),
		Data:  append([]byte(nil), data...),
	}
}

func (b *Bridge) publish(port int, data []byte) {
	if atomic.LoadInt32(&b.stopped) != 0 {
		return
	}
	payload, err := b.Frame(port, data).Encode()
	if err != nil {
		glog.Errorf("uart%d: encode frame: %v", port, err)
		return
	}
	// Not waiting on the token, the machine goroutine must not block.
	b.Queue.Pub(TxTopic(b.BoardID, port), payload)
}
